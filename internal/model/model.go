// Package model defines the core domain types shared across the league engine.
// Budgets and prices are integral draft points.
package model

import (
	"encoding/json"
	"time"
)

// TransactionType tags a ledger row with the roster action it recorded.
type TransactionType string

const (
	TxFAPickup TransactionType = "FA_PICKUP"
	TxFADrop   TransactionType = "FA_DROP"
	TxFASwap   TransactionType = "FA_SWAP"
	TxP2PTrade TransactionType = "P2P_TRADE"
	TxTeraSwap TransactionType = "TERA_SWAP"
)

// Valid reports whether t is one of the known transaction types.
func (t TransactionType) Valid() bool {
	switch t {
	case TxFAPickup, TxFADrop, TxFASwap, TxP2PTrade, TxTeraSwap:
		return true
	}
	return false
}

// Category returns the limit bucket the type spends credits from, or ""
// when the type is never limited.
func (t TransactionType) Category() LimitCategory {
	switch t {
	case TxFAPickup, TxFADrop, TxFASwap:
		return LimitFA
	case TxP2PTrade:
		return LimitP2P
	}
	return ""
}

// LimitCategory groups transaction types that share a seasonal cap.
type LimitCategory string

const (
	LimitFA  LimitCategory = "fa"
	LimitP2P LimitCategory = "p2p"
)

// Types lists the transaction types counted against the category.
func (c LimitCategory) Types() []TransactionType {
	switch c {
	case LimitFA:
		return []TransactionType{TxFAPickup, TxFADrop, TxFASwap}
	case LimitP2P:
		return []TransactionType{TxP2PTrade}
	}
	return nil
}

// AcquiredVia records how a roster entry came to its current owner.
// The empty value means unknown (legacy import).
type AcquiredVia string

const (
	AcquiredDraft    AcquiredVia = "DRAFT"
	AcquiredFAPickup AcquiredVia = "FA_PICKUP"
	AcquiredP2PTrade AcquiredVia = "P2P_TRADE"
)

// Season is one league instance. Limits and budgets never cross seasons.
type Season struct {
	ID          string `json:"id" db:"id"`
	Name        string `json:"name" db:"name"`
	DraftBudget int    `json:"draft_budget" db:"draft_budget"`
	IsCurrent   bool   `json:"is_current" db:"is_current"`
	IsPublic    bool   `json:"is_public" db:"is_public"`
}

// SeasonCoach is a coach's participation in one season and division: the
// team that owns a roster and a budget.
type SeasonCoach struct {
	ID               string  `json:"id" db:"id"`
	SeasonID         string  `json:"season_id" db:"season_id"`
	DivisionID       string  `json:"division_id" db:"division_id"`
	CoachID          string  `json:"coach_id" db:"coach_id"`
	TeamName         string  `json:"team_name" db:"team_name"`
	TeamAbbreviation string  `json:"team_abbreviation" db:"team_abbreviation"`
	RemainingBudget  int     `json:"remaining_budget" db:"remaining_budget"`
	IsActive         bool    `json:"is_active" db:"is_active"`
	ReplacedByID     *string `json:"replaced_by_id,omitempty" db:"replaced_by_id"`
}

// Pokemon is immutable reference data.
type Pokemon struct {
	ID          string   `json:"id" db:"id"`
	Name        string   `json:"name" db:"name"`
	DisplayName string   `json:"display_name" db:"display_name"`
	Types       []string `json:"types" db:"types"`
}

// SeasonPrice is the per-season price sheet row for one Pokemon.
type SeasonPrice struct {
	SeasonID        string `json:"season_id" db:"season_id"`
	PokemonID       string `json:"pokemon_id" db:"pokemon_id"`
	BasePrice       int    `json:"base_price" db:"base_price"`
	TeraCaptainCost *int   `json:"tera_captain_cost,omitempty" db:"tera_captain_cost"` // nil: never a captain
	TeraBanned      bool   `json:"tera_banned" db:"tera_banned"`
}

// CanBeTeraCaptain reports whether the Pokemon may hold the tera captain slot.
func (p SeasonPrice) CanBeTeraCaptain() bool {
	return p.TeraCaptainCost != nil && !p.TeraBanned
}

// TeraCost returns the captain surcharge, zero when none is defined.
func (p SeasonPrice) TeraCost() int {
	if p.TeraCaptainCost == nil {
		return 0
	}
	return *p.TeraCaptainCost
}

// RosterEntry is the ownership edge between a team and a Pokemon.
// The charged price is BasePrice + TeraSurcharge; see Price.
type RosterEntry struct {
	ID                    string      `json:"id" db:"id"`
	SeasonCoachID         string      `json:"season_coach_id" db:"season_coach_id"`
	PokemonID             string      `json:"pokemon_id" db:"pokemon_id"`
	BasePrice             int         `json:"base_price" db:"base_price"`
	TeraSurcharge         int         `json:"tera_surcharge" db:"tera_surcharge"`
	IsTeraCaptain         bool        `json:"is_tera_captain" db:"is_tera_captain"`
	AcquiredWeek          *int        `json:"acquired_week,omitempty" db:"acquired_week"` // nil: drafted
	AcquiredVia           AcquiredVia `json:"acquired_via,omitempty" db:"acquired_via"`
	AcquiredTransactionID string      `json:"acquired_transaction_id,omitempty" db:"acquired_transaction_id"`

	// LastTransactionID is the transaction that last created or mutated the
	// entry. Undo refuses to touch an entry whose provenance moved on.
	LastTransactionID string `json:"last_transaction_id,omitempty" db:"last_transaction_id"`
}

// Price is the amount charged against the owning team's budget.
func (r RosterEntry) Price() int {
	return r.BasePrice + r.TeraSurcharge
}

// MarshalJSON adds the derived price for presentation consumers.
func (r RosterEntry) MarshalJSON() ([]byte, error) {
	type alias RosterEntry
	return json.Marshal(struct {
		alias
		Price int `json:"price"`
	}{alias(r), r.Price()})
}

// Transaction is an immutable ledger row. It is removed only by undo.
type Transaction struct {
	ID                          string          `json:"id" db:"id"`
	SeasonID                    string          `json:"season_id" db:"season_id"`
	Type                        TransactionType `json:"type" db:"type"`
	Week                        int             `json:"week" db:"week"`
	SeasonCoachID               string          `json:"season_coach_id" db:"season_coach_id"`
	TradingPartnerSeasonCoachID *string         `json:"trading_partner_season_coach_id,omitempty" db:"trading_partner_season_coach_id"`
	PokemonIn                   []string        `json:"pokemon_in" db:"pokemon_in"`
	PokemonOut                  []string        `json:"pokemon_out" db:"pokemon_out"`
	NewTeraCaptainID            *string         `json:"new_tera_captain_id,omitempty" db:"new_tera_captain_id"`
	OldTeraCaptainID            *string         `json:"old_tera_captain_id,omitempty" db:"old_tera_captain_id"`
	BudgetChange                int             `json:"budget_change" db:"budget_change"` // signed, primary team
	CountsAgainstLimit          bool            `json:"counts_against_limit" db:"counts_against_limit"`
	Notes                       string          `json:"notes,omitempty" db:"notes"`
	CreatedAt                   time.Time       `json:"created_at" db:"created_at"`

	// RosterBefore holds every entry the transaction removed or mutated,
	// as it stood immediately before execution.
	RosterBefore []RosterEntry `json:"roster_before,omitempty" db:"roster_before"`
	// RosterAfter lists the ids of entries the transaction created or mutated.
	RosterAfter []string `json:"roster_after,omitempty" db:"roster_after"`
}

// Involves reports whether the team is the primary or the trading partner.
func (t Transaction) Involves(seasonCoachID string) bool {
	if t.SeasonCoachID == seasonCoachID {
		return true
	}
	return t.TradingPartnerSeasonCoachID != nil && *t.TradingPartnerSeasonCoachID == seasonCoachID
}

// TransactionFilter narrows history queries. Zero fields match everything.
type TransactionFilter struct {
	SeasonID      string          `json:"season_id,omitempty"`
	SeasonCoachID string          `json:"season_coach_id,omitempty"` // primary or partner
	Type          TransactionType `json:"type,omitempty"`
}

// Matches reports whether t passes the filter.
func (f TransactionFilter) Matches(t Transaction) bool {
	if f.SeasonID != "" && t.SeasonID != f.SeasonID {
		return false
	}
	if f.SeasonCoachID != "" && !t.Involves(f.SeasonCoachID) {
		return false
	}
	if f.Type != "" && t.Type != f.Type {
		return false
	}
	return true
}

// TransactionCounts is the per-team credit summary shown in admin forms.
type TransactionCounts struct {
	SeasonCoachID string `json:"season_coach_id"`
	FAUsed        int    `json:"fa_used"`
	FARemaining   int    `json:"fa_remaining"`
	P2PUsed       int    `json:"p2p_used"`
	P2PRemaining  int    `json:"p2p_remaining"`
}
