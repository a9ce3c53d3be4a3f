// internal/models/action.go
package models

import "github.com/google/uuid"

// ActionType enumerates every externally submittable action. The dispatcher
// switches exhaustively over these; anything else is rejected.
type ActionType string

const (
	ActionDrawDeck           ActionType = "DRAW_DECK"
	ActionDrawDiscard        ActionType = "DRAW_DISCARD"
	ActionSwapCard           ActionType = "SWAP_CARD"
	ActionDiscardDrawn       ActionType = "DISCARD_DRAWN"
	ActionSlapMatch          ActionType = "SLAP_MATCH"
	ActionCallKabul          ActionType = "CALL_KABUL"
	ActionSelectOwnCard      ActionType = "SELECT_OWN_CARD"
	ActionSelectEnemyCard    ActionType = "SELECT_ENEMY_CARD"
	ActionSelectTargetPlayer ActionType = "SELECT_TARGET_PLAYER"
	ActionConfirmSwap        ActionType = "CONFIRM_SWAP"
	ActionSkipAbility        ActionType = "SKIP_ABILITY"
)

// GameAction captures a player's submitted move.
type GameAction struct {
	Type ActionType `json:"type"`

	// HandIndex is the 0-3 slot in the actor's own hand, where relevant.
	HandIndex *int `json:"handIndex,omitempty"`

	// TargetPlayerID and TargetIndex address a card in another player's hand.
	TargetPlayerID *uuid.UUID `json:"targetPlayerId,omitempty"`
	TargetIndex    *int       `json:"targetIndex,omitempty"`
}

// Result is the success payload returned by the dispatcher. Failures travel
// separately as typed errors.
type Result struct {
	Action  ActionType     `json:"action"`
	Payload map[string]any `json:"payload,omitempty"`
}
