// Package engine is the transaction engine: it validates and executes roster
// actions (free-agent pickup, drop and swap, player-to-player trades, tera
// captain swaps) against a team's roster and budget, appends them to the
// transaction ledger, and undoes them.
//
// Every Execute call is one store transaction. On any failure nothing is
// written and an *Error describes why.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/draftleague/league-engine/internal/limits"
	"github.com/draftleague/league-engine/internal/metrics"
	"github.com/draftleague/league-engine/internal/model"
	"github.com/draftleague/league-engine/internal/store"
)

// Config holds the league rules the engine enforces.
type Config struct {
	FALimit  int
	P2PLimit int

	// AllowNegativeBudget lets an execute drive remaining budget below zero.
	AllowNegativeBudget bool

	// TradeLockWeeks is the trade-lock window; 0 disables it.
	TradeLockWeeks int
}

// DefaultConfig returns the standard league rules.
func DefaultConfig() Config {
	return Config{
		FALimit:        limits.DefaultCap,
		P2PLimit:       limits.DefaultCap,
		TradeLockWeeks: 1,
	}
}

// Engine executes and undoes roster transactions.
type Engine struct {
	store         store.Store
	limiter       *limits.Limiter
	tradeLock     limits.TradeLock
	allowNegative bool
	now           func() time.Time
	newID         func() string
}

// Option customises an Engine.
type Option func(*Engine)

// WithClock overrides the clock used for CreatedAt.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithIDGenerator overrides transaction and roster entry id generation.
func WithIDGenerator(newID func() string) Option {
	return func(e *Engine) { e.newID = newID }
}

// New creates an engine over the given store.
func New(st store.Store, cfg Config, opts ...Option) *Engine {
	e := &Engine{
		store:         st,
		limiter:       limits.NewLimiter(cfg.FALimit, cfg.P2PLimit),
		tradeLock:     limits.NewTradeLock(cfg.TradeLockWeeks),
		allowNegative: cfg.AllowNegativeBudget,
		now:           time.Now,
		newID:         func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute validates and applies one action. For Undo the returned record
// is the transaction that was reversed.
func (e *Engine) Execute(ctx context.Context, a Action) (*model.Transaction, error) {
	start := time.Now()
	kind := a.Kind()

	if err := a.Validate(); err != nil {
		return nil, e.reject(kind, err)
	}

	var (
		t   *model.Transaction
		err error
	)
	switch a := a.(type) {
	case FAPickup:
		t, err = e.faPickup(ctx, a)
	case FADrop:
		t, err = e.faDrop(ctx, a)
	case FASwap:
		t, err = e.faSwap(ctx, a)
	case P2PTrade:
		t, err = e.p2pTrade(ctx, a)
	case TeraSwap:
		t, err = e.teraSwap(ctx, a)
	case Undo:
		t, err = e.undo(ctx, a)
	default:
		err = validationf("unsupported action %T", a)
	}
	metrics.ExecuteLatency.WithLabelValues(string(kind)).Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, e.reject(kind, err)
	}

	if kind == ActionUndo {
		metrics.UndoTotal.WithLabelValues(string(t.Type)).Inc()
		slog.Info("transaction undone",
			"transaction_id", t.ID,
			"type", t.Type,
			"team", t.SeasonCoachID,
			"budget_change", t.BudgetChange,
		)
		return t, nil
	}

	metrics.TransactionsTotal.WithLabelValues(string(t.Type)).Inc()
	slog.Info("transaction executed",
		"transaction_id", t.ID,
		"type", t.Type,
		"team", t.SeasonCoachID,
		"week", t.Week,
		"pokemon_in", t.PokemonIn,
		"pokemon_out", t.PokemonOut,
		"budget_change", t.BudgetChange,
	)
	return t, nil
}

func (e *Engine) reject(kind ActionKind, err error) error {
	ee := asError(err)
	metrics.TransactionRejections.WithLabelValues(string(kind), string(ee.Kind)).Inc()
	if ee.Kind == KindStore {
		slog.Error("transaction failed", "action", kind, "err", ee.Err)
	} else {
		slog.Warn("transaction rejected", "action", kind, "kind", ee.Kind, "reason", ee.Message)
	}
	return ee
}

// --- Queries ---

// ListFreeAgents returns the Pokemon no active team owns in the season.
// Served without locking; may trail a concurrent write.
func (e *Engine) ListFreeAgents(ctx context.Context, seasonID string) ([]model.Pokemon, error) {
	if seasonID == "" {
		return nil, validationf("season_id is required")
	}
	if _, err := e.store.GetSeason(ctx, seasonID); err != nil {
		return nil, notFoundAs(err, ErrSeasonNotFound, seasonID)
	}
	agents, err := e.store.ListFreeAgents(ctx, seasonID)
	if err != nil {
		return nil, storeError(err)
	}
	return agents, nil
}

// TransactionCounts reports used and remaining credits for a team.
func (e *Engine) TransactionCounts(ctx context.Context, seasonCoachID string) (model.TransactionCounts, error) {
	if seasonCoachID == "" {
		return model.TransactionCounts{}, validationf("season_coach_id is required")
	}
	if _, err := e.store.GetSeasonCoach(ctx, seasonCoachID); err != nil {
		return model.TransactionCounts{}, notFoundAs(err, ErrTeamNotFound, seasonCoachID)
	}
	fa, err := e.store.CountLimited(ctx, seasonCoachID, model.LimitFA)
	if err != nil {
		return model.TransactionCounts{}, storeError(err)
	}
	p2p, err := e.store.CountLimited(ctx, seasonCoachID, model.LimitP2P)
	if err != nil {
		return model.TransactionCounts{}, storeError(err)
	}
	return e.limiter.Counts(seasonCoachID, fa, p2p), nil
}

// IsTradeLocked reports whether the roster entry cannot be traded in week.
func (e *Engine) IsTradeLocked(ctx context.Context, rosterID string, week int) (bool, error) {
	if rosterID == "" {
		return false, validationf("roster_id is required")
	}
	if err := validateWeek(week); err != nil {
		return false, err
	}
	entry, err := e.store.GetRosterEntry(ctx, rosterID)
	if err != nil {
		return false, notFoundAs(err, ErrRosterNotFound, rosterID)
	}
	return e.tradeLock.Locked(*entry, week), nil
}

// ListTransactions returns ledger history, newest first.
func (e *Engine) ListTransactions(ctx context.Context, filter model.TransactionFilter) ([]model.Transaction, error) {
	if filter.Type != "" && !filter.Type.Valid() {
		return nil, validationf("unknown transaction type %q", filter.Type)
	}
	txs, err := e.store.ListTransactions(ctx, filter)
	if err != nil {
		return nil, storeError(err)
	}
	return txs, nil
}

// --- Shared execution helpers (all run inside a store transaction) ---

// notFoundAs maps store.ErrNotFound to a precondition on sentinel.
func notFoundAs(err error, sentinel error, id string) error {
	if errors.Is(err, store.ErrNotFound) {
		return preconditionf(sentinel, "%s", id)
	}
	return storeError(err)
}

// lockTeams locks the teams, then loads each and checks it may transact in
// the season. Results follow the order of ids.
func (e *Engine) lockTeams(ctx context.Context, tx store.Tx, seasonID string, ids ...string) ([]*model.SeasonCoach, error) {
	if _, err := tx.GetSeason(ctx, seasonID); err != nil {
		return nil, notFoundAs(err, ErrSeasonNotFound, seasonID)
	}
	if err := tx.LockSeasonCoaches(ctx, ids...); err != nil {
		return nil, notFoundAs(err, ErrTeamNotFound, fmt.Sprint(ids))
	}
	teams := make([]*model.SeasonCoach, 0, len(ids))
	for _, id := range ids {
		team, err := tx.GetSeasonCoach(ctx, id)
		if err != nil {
			return nil, notFoundAs(err, ErrTeamNotFound, id)
		}
		if team.SeasonID != seasonID {
			return nil, preconditionf(ErrTeamNotInSeason, "%s is in season %s", id, team.SeasonID)
		}
		if !team.IsActive {
			return nil, preconditionf(ErrTeamInactive, "%s", id)
		}
		teams = append(teams, team)
	}
	return teams, nil
}

// ownedEntry loads a roster entry and checks the team owns it.
func ownedEntry(ctx context.Context, tx store.Tx, rosterID, seasonCoachID string) (*model.RosterEntry, error) {
	entry, err := tx.GetRosterEntry(ctx, rosterID)
	if err != nil {
		return nil, notFoundAs(err, ErrRosterNotFound, rosterID)
	}
	if entry.SeasonCoachID != seasonCoachID {
		return nil, preconditionf(ErrRosterNotOwned, "%s is not on team %s", rosterID, seasonCoachID)
	}
	return entry, nil
}

// captainOf returns the team's tera captain, ignoring the excluded entry.
func captainOf(roster []model.RosterEntry, excludeID string) *model.RosterEntry {
	for i := range roster {
		if roster[i].IsTeraCaptain && roster[i].ID != excludeID {
			return &roster[i]
		}
	}
	return nil
}

// checkLimit rejects a limited transaction when the team has no credits left.
func (e *Engine) checkLimit(ctx context.Context, tx store.Tx, seasonCoachID string, typ model.TransactionType, counts bool) error {
	cat := typ.Category()
	if !counts || cat == "" {
		return nil
	}
	used, err := tx.CountLimited(ctx, seasonCoachID, cat)
	if err != nil {
		return storeError(err)
	}
	if err := e.limiter.CheckLimit(cat, used); err != nil {
		metrics.LimitRejections.WithLabelValues(string(cat)).Inc()
		return precondition(fmt.Errorf("team %s: %w", seasonCoachID, err))
	}
	return nil
}

// checkBudget enforces the budget floor unless negative budgets are allowed.
func (e *Engine) checkBudget(team *model.SeasonCoach, delta int) error {
	if e.allowNegative || delta >= 0 {
		return nil
	}
	if after := team.RemainingBudget + delta; after < 0 {
		return preconditionf(ErrInsufficientBudget, "team %s has %d, needs %d", team.ID, team.RemainingBudget, -delta)
	}
	return nil
}

// checkPickup verifies the Pokemon can join the team right now and returns
// its price row. excludeID names an entry leaving in the same transaction.
func (e *Engine) checkPickup(ctx context.Context, tx store.Tx, team *model.SeasonCoach, roster []model.RosterEntry,
	pokemonID string, isTera bool, excludeID string) (*model.SeasonPrice, error) {
	if err := tx.LockPokemon(ctx, team.SeasonID, pokemonID); err != nil {
		return nil, storeError(err)
	}
	price, err := tx.GetPrice(ctx, team.SeasonID, pokemonID)
	if err != nil {
		return nil, notFoundAs(err, ErrNotPriced, pokemonID)
	}

	owner, err := tx.FindOwner(ctx, team.SeasonID, pokemonID)
	switch {
	case err == nil && owner.SeasonCoachID == team.ID:
		return nil, preconditionf(ErrAlreadyOwned, "%s", pokemonID)
	case err == nil:
		return nil, preconditionf(ErrNotFreeAgent, "%s is on team %s", pokemonID, owner.SeasonCoachID)
	case !errors.Is(err, store.ErrNotFound):
		return nil, storeError(err)
	}

	if isTera {
		if price.TeraBanned {
			return nil, preconditionf(ErrTeraBanned, "%s", pokemonID)
		}
		if price.TeraCaptainCost == nil {
			return nil, preconditionf(ErrTeraNotAllowed, "%s", pokemonID)
		}
		if c := captainOf(roster, excludeID); c != nil {
			return nil, preconditionf(ErrAlreadyHasCaptain, "%s is captain of %s", c.PokemonID, team.ID)
		}
	}
	return price, nil
}

// newTransaction starts a ledger row; callers fill in the effects.
func (e *Engine) newTransaction(typ model.TransactionType, seasonID, seasonCoachID string, week int, counts bool, notes string) *model.Transaction {
	return &model.Transaction{
		ID:                 e.newID(),
		SeasonID:           seasonID,
		Type:               typ,
		Week:               week,
		SeasonCoachID:      seasonCoachID,
		PokemonIn:          []string{},
		PokemonOut:         []string{},
		CountsAgainstLimit: counts,
		Notes:              notes,
		CreatedAt:          e.now().UTC(),
	}
}

// acquire builds the roster entry a pickup creates.
func (e *Engine) acquire(t *model.Transaction, price *model.SeasonPrice, isTera bool) *model.RosterEntry {
	week := t.Week
	entry := &model.RosterEntry{
		ID:                    e.newID(),
		SeasonCoachID:         t.SeasonCoachID,
		PokemonID:             price.PokemonID,
		BasePrice:             price.BasePrice,
		IsTeraCaptain:         isTera,
		AcquiredWeek:          &week,
		AcquiredVia:           model.AcquiredFAPickup,
		AcquiredTransactionID: t.ID,
		LastTransactionID:     t.ID,
	}
	if isTera {
		entry.TeraSurcharge = price.TeraCost()
	}
	return entry
}

func strPtr(s string) *string { return &s }
