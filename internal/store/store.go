// Package store defines the persistence interface for the league engine.
// Implementations include PostgreSQL (source of truth), Redis (read-through
// cache for display queries), and in-memory (for testing).
package store

import (
	"context"
	"errors"

	"github.com/draftleague/league-engine/internal/model"
)

// ErrNotFound is returned (wrapped) when a looked-up row does not exist.
var ErrNotFound = errors.New("store: not found")

// Reader is the read surface shared by the store and its transactions.
type Reader interface {
	// GetSeason retrieves a season by ID.
	GetSeason(ctx context.Context, id string) (*model.Season, error)

	// GetSeasonCoach retrieves a team by ID.
	GetSeasonCoach(ctx context.Context, id string) (*model.SeasonCoach, error)

	// GetPrice returns the season-scoped price sheet row for a Pokemon.
	GetPrice(ctx context.Context, seasonID, pokemonID string) (*model.SeasonPrice, error)

	// GetRosterEntry retrieves a roster entry by ID.
	GetRosterEntry(ctx context.Context, id string) (*model.RosterEntry, error)

	// ListRoster returns a team's current roster.
	ListRoster(ctx context.Context, seasonCoachID string) ([]model.RosterEntry, error)

	// FindOwner returns the entry owning the Pokemon on any active team in
	// the season, or ErrNotFound when it is a free agent.
	FindOwner(ctx context.Context, seasonID, pokemonID string) (*model.RosterEntry, error)

	// ListFreeAgents returns priced Pokemon no active team owns in the season.
	ListFreeAgents(ctx context.Context, seasonID string) ([]model.Pokemon, error)

	// GetTransaction retrieves a ledger row by ID.
	GetTransaction(ctx context.Context, id string) (*model.Transaction, error)

	// ListTransactions returns ledger rows matching the filter, newest first.
	ListTransactions(ctx context.Context, filter model.TransactionFilter) ([]model.Transaction, error)

	// CountLimited counts the team's ledger rows in the category that have
	// CountsAgainstLimit set, as primary team or trading partner.
	CountLimited(ctx context.Context, seasonCoachID string, category model.LimitCategory) (int, error)
}

// Tx is one atomic unit of work. Nothing written through a Tx is visible
// to other readers until RunInTx returns nil.
type Tx interface {
	Reader

	// LockSeasonCoaches serialises concurrent writers on the listed teams.
	LockSeasonCoaches(ctx context.Context, ids ...string) error

	// LockPokemon serialises concurrent pickups of one Pokemon in a season.
	LockPokemon(ctx context.Context, seasonID, pokemonID string) error

	// AdjustBudget adds delta to the team's remaining budget.
	AdjustBudget(ctx context.Context, seasonCoachID string, delta int) error

	// InsertRosterEntry creates a roster entry.
	InsertRosterEntry(ctx context.Context, entry *model.RosterEntry) error

	// UpdateRosterEntry overwrites an existing roster entry.
	UpdateRosterEntry(ctx context.Context, entry *model.RosterEntry) error

	// DeleteRosterEntry removes a roster entry.
	DeleteRosterEntry(ctx context.Context, id string) error

	// InsertTransaction appends a ledger row.
	InsertTransaction(ctx context.Context, t *model.Transaction) error

	// DeleteTransaction removes a ledger row (undo only).
	DeleteTransaction(ctx context.Context, id string) error
}

// Store is the persistence interface. PostgreSQL is the source of truth;
// Redis provides a read-through cache layer for display reads.
type Store interface {
	Reader

	// RunInTx executes fn inside one transaction. Writes commit only when
	// fn returns nil; any error rolls everything back.
	RunInTx(ctx context.Context, fn func(tx Tx) error) error
}
