// internal/game/errors.go
package game

import "fmt"

// ErrorKind classifies every caller-visible failure. The kind is machine
// checkable; the reason is for humans.
type ErrorKind int

const (
	// KindValidation covers wrong turn, wrong stage, wrong ability step,
	// out-of-range indices and illegal self-targets. Rejected synchronously
	// with no state mutation.
	KindValidation ErrorKind = iota

	// KindResourceExhausted covers draws from an empty source. Fatal to the
	// action, never to the game.
	KindResourceExhausted

	// KindConcurrencyConflict marks a lost atomic race. The slap resolver
	// absorbs these internally; they are never surfaced to callers.
	KindConcurrencyConflict

	// KindNotFound covers unknown rooms and players.
	KindNotFound
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindResourceExhausted:
		return "resource_exhausted"
	case KindConcurrencyConflict:
		return "concurrency_conflict"
	case KindNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// GameError is the typed failure returned by the dispatcher.
type GameError struct {
	Kind   ErrorKind
	Reason string
}

func (e *GameError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

func validationErrorf(format string, args ...any) *GameError {
	return &GameError{Kind: KindValidation, Reason: fmt.Sprintf(format, args...)}
}

// Predeclared failures for the common rejections.
var (
	ErrNotYourTurn     = &GameError{Kind: KindValidation, Reason: "it is not your turn"}
	ErrWrongStage      = &GameError{Kind: KindValidation, Reason: "action not legal in the current turn stage"}
	ErrWrongPhase      = &GameError{Kind: KindValidation, Reason: "action not legal in the current game phase"}
	ErrAlreadyDrawn    = &GameError{Kind: KindValidation, Reason: "a drawn card is already pending"}
	ErrNothingDrawn    = &GameError{Kind: KindValidation, Reason: "no drawn card is pending"}
	ErrNoAbility       = &GameError{Kind: KindValidation, Reason: "no ability is pending"}
	ErrWrongStep       = &GameError{Kind: KindValidation, Reason: "wrong step for the pending ability"}
	ErrSelfTarget      = &GameError{Kind: KindValidation, Reason: "cannot target your own hand"}
	ErrHandLocked      = &GameError{Kind: KindValidation, Reason: "that hand is locked by the Kabul call"}
	ErrKabulCalled     = &GameError{Kind: KindValidation, Reason: "Kabul has already been called"}
	ErrDeckEmpty       = &GameError{Kind: KindResourceExhausted, Reason: "the deck is empty"}
	ErrDiscardEmpty    = &GameError{Kind: KindResourceExhausted, Reason: "the discard pile is empty"}
	ErrUnknownAction   = &GameError{Kind: KindValidation, Reason: "unknown action type"}
	ErrPlayerNotFound  = &GameError{Kind: KindNotFound, Reason: "player is not seated in this game"}
	ErrIndexOutOfRange = &GameError{Kind: KindValidation, Reason: "card index out of range"}
)
