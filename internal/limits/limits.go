// Package limits implements the seasonal transaction caps and the trade-lock
// rule that keeps freshly acquired Pokemon from being flipped.
//
// Usage counts come from the transaction ledger; this package only decides
// whether one more transaction fits.
package limits

import (
	"errors"
	"fmt"

	"github.com/draftleague/league-engine/internal/model"
)

// DefaultCap is the per-season cap for each limited category.
const DefaultCap = 6

var (
	// ErrLimitExceeded is returned when a team has no credits left in the
	// transaction's category.
	ErrLimitExceeded = errors.New("limits: seasonal transaction limit exceeded")

	// ErrTradeLocked is returned when a roster entry was acquired too
	// recently to be traded.
	ErrTradeLocked = errors.New("limits: roster entry is trade-locked")
)

// Limiter enforces per-team, per-category caps.
type Limiter struct {
	// MaxFA caps FA_PICKUP + FA_DROP + FA_SWAP per team per season.
	MaxFA int

	// MaxP2P caps P2P_TRADE per team per season. Both sides of a trade
	// spend a credit.
	MaxP2P int
}

// NewLimiter creates a limiter with the given caps. Negative caps are
// treated as zero.
func NewLimiter(maxFA, maxP2P int) *Limiter {
	return &Limiter{MaxFA: max(maxFA, 0), MaxP2P: max(maxP2P, 0)}
}

// Max returns the cap for a category.
func (l *Limiter) Max(c model.LimitCategory) int {
	switch c {
	case model.LimitFA:
		return l.MaxFA
	case model.LimitP2P:
		return l.MaxP2P
	}
	return 0
}

// Remaining returns max(0, cap - used).
func (l *Limiter) Remaining(c model.LimitCategory, used int) int {
	return max(l.Max(c)-used, 0)
}

// CheckLimit validates whether one more transaction in the category fits.
// Returns nil if within limits, or an error wrapping ErrLimitExceeded.
func (l *Limiter) CheckLimit(c model.LimitCategory, used int) error {
	if used+1 > l.Max(c) {
		return fmt.Errorf("%w: %s used %d of %d", ErrLimitExceeded, c, used, l.Max(c))
	}
	return nil
}

// Counts builds the credit summary for a team.
func (l *Limiter) Counts(seasonCoachID string, faUsed, p2pUsed int) model.TransactionCounts {
	return model.TransactionCounts{
		SeasonCoachID: seasonCoachID,
		FAUsed:        faUsed,
		FARemaining:   l.Remaining(model.LimitFA, faUsed),
		P2PUsed:       p2pUsed,
		P2PRemaining:  l.Remaining(model.LimitP2P, p2pUsed),
	}
}

// TradeLock decides whether an entry is too fresh to trade.
//
// An entry acquired in week A is locked for weeks A .. A+Weeks-1. Weeks=1
// locks only the acquisition week; Weeks=0 disables the rule. Drafted
// entries (no acquisition week) are never locked.
type TradeLock struct {
	Weeks int
}

// NewTradeLock creates a trade-lock rule with the given window.
func NewTradeLock(weeks int) TradeLock {
	return TradeLock{Weeks: max(weeks, 0)}
}

// Locked reports whether the entry cannot be traded in the given week.
func (t TradeLock) Locked(entry model.RosterEntry, week int) bool {
	if t.Weeks == 0 || entry.AcquiredWeek == nil {
		return false
	}
	return week-*entry.AcquiredWeek < t.Weeks
}

// Check returns an error wrapping ErrTradeLocked when the entry is locked.
func (t TradeLock) Check(entry model.RosterEntry, week int) error {
	if t.Locked(entry, week) {
		return fmt.Errorf("%w: %s acquired in week %d, tradeable from week %d",
			ErrTradeLocked, entry.PokemonID, *entry.AcquiredWeek, *entry.AcquiredWeek+t.Weeks)
	}
	return nil
}
