// internal/game/events.go
package game

import (
	"github.com/google/uuid"
	"github.com/kabulhq/kabul/internal/models"
)

// GameEventType is an enum-like type for broadcasting game events.
type GameEventType string

const (
	EventGamePhase       GameEventType = "game_phase"        // public phase transition
	EventPlayerTurn      GameEventType = "game_player_turn"  // public notification of whose turn it is
	EventPlayerDrawDeck  GameEventType = "player_draw_deck"  // public draw notification (card id only)
	EventPrivateDrawn    GameEventType = "private_drawn"     // private drawn card details
	EventPlayerDiscard   GameEventType = "player_discard"    // public discard (full card, it is face up)
	EventPlayerSwap      GameEventType = "player_swap"       // public swap-into-hand notification
	EventPlayerSlapOk    GameEventType = "player_slap_success"
	EventPlayerSlapFail  GameEventType = "player_slap_fail"
	EventPlayerPenalty   GameEventType = "player_slap_penalty"  // public penalty draw (card id only)
	EventPrivatePenalty  GameEventType = "private_slap_penalty" // private penalty card details
	EventAbilityOpened   GameEventType = "ability_opened"       // public: an ability stage began
	EventAbilityStep     GameEventType = "ability_step"         // public: a selection step was taken (obfuscated)
	EventAbilityResolved GameEventType = "ability_resolved"     // public: ability executed or skipped
	EventPrivateReveal   GameEventType = "private_reveal"       // private peek result
	EventPrivateRevealEnd GameEventType = "private_reveal_expired"
	EventPrivatePreview  GameEventType = "private_swap_preview" // private see-and-swap reveal of both cards
	EventPrivateInitial  GameEventType = "private_initial_cards"
	EventPlayerKabul     GameEventType = "player_kabul"
	EventGameEnd         GameEventType = "game_end"
	EventPrivateSync     GameEventType = "private_sync_state"
	EventPrivateFail     GameEventType = "private_action_fail"
)

// EventUser identifies a player inside event payloads.
type EventUser struct {
	ID uuid.UUID `json:"id"`
}

// EventCard carries card information inside event payloads. Public events
// omit rank/suit/value unless the card is face up; private events carry the
// full identity.
type EventCard struct {
	ID    uuid.UUID  `json:"id"`
	Rank  string     `json:"rank,omitempty"`
	Suit  string     `json:"suit,omitempty"`
	Value *int       `json:"value,omitempty"`
	Idx   *int       `json:"idx,omitempty"`
	User  *EventUser `json:"user,omitempty"`
}

// GameEvent is the single wire format pushed to clients.
type GameEvent struct {
	Type    GameEventType  `json:"type"`
	User    *EventUser     `json:"user,omitempty"`
	Card    *EventCard     `json:"card,omitempty"`
	Card1   *EventCard     `json:"card1,omitempty"`
	Card2   *EventCard     `json:"card2,omitempty"`
	Ability string         `json:"ability,omitempty"`
	Payload map[string]any `json:"payload,omitempty"`
	State   *ObfGameState  `json:"state,omitempty"`
}

// obfCardID wraps a card into an id-only EventCard for public events.
func obfCardID(c *models.Card, idx *int) *EventCard {
	if c == nil {
		return nil
	}
	return &EventCard{ID: c.ID, Idx: idx}
}

// fullCard wraps a card with its complete identity for private events and
// face-up public cards.
func fullCard(c *models.Card, idx *int) *EventCard {
	if c == nil {
		return nil
	}
	v := c.Value
	return &EventCard{ID: c.ID, Rank: c.Rank, Suit: c.Suit, Value: &v, Idx: idx}
}
