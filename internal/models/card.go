// internal/models/card.go
package models

import "github.com/google/uuid"

// Ability is the power a card grants when it reaches the discard pile
// through a discard or swap.
type Ability int

const (
	AbilityNone Ability = iota
	AbilityPeekSelf
	AbilityPeekEnemy
	AbilityBlindSwap
	AbilitySeeAndSwap
)

func (a Ability) String() string {
	switch a {
	case AbilityPeekSelf:
		return "peek_self"
	case AbilityPeekEnemy:
		return "peek_enemy"
	case AbilityBlindSwap:
		return "blind_swap"
	case AbilitySeeAndSwap:
		return "see_and_swap"
	default:
		return "none"
	}
}

// Card is a single physical card. The id is the only attribute clients are
// allowed to learn about a face-down card; rank, suit and value travel only
// over private reveals or when the card is face up on the discard pile.
type Card struct {
	ID      uuid.UUID `json:"id"`
	Rank    string    `json:"rank"`
	Suit    string    `json:"suit"`
	Value   int       `json:"value"`
	Ability Ability   `json:"-"`
}

// IsJoker reports whether the card is one of the two jokers.
func (c *Card) IsJoker() bool {
	return c.Rank == "O"
}

// IsRed reports whether the card's suit is hearts or diamonds.
func (c *Card) IsRed() bool {
	return c.Suit == "H" || c.Suit == "D"
}

// Label is the compact human-readable form, e.g. "KH" or "OR" for a joker.
func (c *Card) Label() string {
	return c.Rank + c.Suit
}
