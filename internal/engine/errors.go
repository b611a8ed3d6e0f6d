package engine

import (
	"errors"
	"fmt"

	"github.com/draftleague/league-engine/internal/limits"
)

// Kind classifies engine failures for the boundary.
type Kind string

const (
	// KindValidation: missing or malformed input, no store access attempted.
	KindValidation Kind = "validation"
	// KindPrecondition: a domain rule rejected the action against current state.
	KindPrecondition Kind = "precondition"
	// KindConsistency: undo refused because later state diverged.
	KindConsistency Kind = "consistency"
	// KindStore: persistence failure. Nothing was applied.
	KindStore Kind = "store"
)

// Precondition failures. Returned wrapped in an *Error; match with errors.Is.
var (
	ErrSeasonNotFound      = errors.New("engine: season not found")
	ErrTeamNotFound        = errors.New("engine: team not found")
	ErrTeamNotInSeason     = errors.New("engine: team does not belong to season")
	ErrTeamInactive        = errors.New("engine: team is no longer active")
	ErrNotPriced           = errors.New("engine: pokemon has no price this season")
	ErrNotFreeAgent        = errors.New("engine: pokemon is not a free agent")
	ErrAlreadyOwned        = errors.New("engine: team already has this pokemon")
	ErrTeraBanned          = errors.New("engine: pokemon is tera-banned")
	ErrTeraNotAllowed      = errors.New("engine: pokemon has no tera captain cost")
	ErrAlreadyHasCaptain   = errors.New("engine: team already has a tera captain")
	ErrAlreadyCaptain      = errors.New("engine: roster entry is already tera captain")
	ErrNotCaptain          = errors.New("engine: roster entry is not the tera captain")
	ErrRosterNotFound      = errors.New("engine: roster entry not found")
	ErrRosterNotOwned      = errors.New("engine: roster entry belongs to another team")
	ErrSameTeam            = errors.New("engine: a team cannot trade with itself")
	ErrEmptyTradeSide      = errors.New("engine: each side of a trade needs at least one roster entry")
	ErrTradeSideTooLarge   = errors.New("engine: a trade side holds at most 3 roster entries")
	ErrInsufficientBudget  = errors.New("engine: insufficient budget")
	ErrTransactionNotFound = errors.New("engine: transaction not found")

	ErrLimitExceeded = limits.ErrLimitExceeded
	ErrTradeLocked   = limits.ErrTradeLocked
)

// ErrDiverged marks every consistency failure raised by undo.
var ErrDiverged = errors.New("engine: roster changed since the transaction")

// Error is the structured failure returned by every engine operation.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func validationf(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// precondition wraps err, which should itself wrap one of the sentinels.
func precondition(err error) *Error {
	return &Error{Kind: KindPrecondition, Message: err.Error(), Err: err}
}

func preconditionf(sentinel error, format string, args ...any) *Error {
	return precondition(fmt.Errorf("%w: %s", sentinel, fmt.Sprintf(format, args...)))
}

func divergedf(format string, args ...any) *Error {
	err := fmt.Errorf("%w: %s", ErrDiverged, fmt.Sprintf(format, args...))
	return &Error{Kind: KindConsistency, Message: err.Error(), Err: err}
}

func storeError(err error) *Error {
	return &Error{Kind: KindStore, Message: "storage failure", Err: err}
}

// asError returns err as an *Error, classifying unknown errors as store
// failures.
func asError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return storeError(err)
}

// KindOf returns the kind of err. Errors not produced by the engine are
// store failures.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	return asError(err).Kind
}
