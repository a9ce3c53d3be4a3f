// internal/game/deck.go
package game

import (
	"math/rand"

	"github.com/google/uuid"
	"github.com/kabulhq/kabul/internal/models"
)

const jokerRank = "O"

// DeckSize is the fixed card count: 4 suits x 13 ranks plus 2 jokers.
// The total across deck, discard pile and hands stays at this number for
// the whole life of a game.
const DeckSize = 54

var (
	suits      = []string{"H", "D", "C", "S"}
	ranks      = []string{"A", "2", "3", "4", "5", "6", "7", "8", "9", "T", "J", "Q", "K"}
	jokerSuits = []string{"R", "B"}
)

// GenerateDeck builds an ordered 54-card deck with scoring values taken
// from the ruleset table. Cards are immutable after this point.
func GenerateDeck(rs Ruleset) []*models.Card {
	deck := make([]*models.Card, 0, DeckSize)
	for _, suit := range suits {
		for _, rank := range ranks {
			deck = append(deck, &models.Card{
				ID:      uuid.New(),
				Rank:    rank,
				Suit:    suit,
				Value:   rs.CardValue(rank, suit),
				Ability: abilityForRank(rank),
			})
		}
	}
	for _, suit := range jokerSuits {
		deck = append(deck, &models.Card{
			ID:      uuid.New(),
			Rank:    jokerRank,
			Suit:    suit,
			Value:   rs.JokerValue,
			Ability: models.AbilityNone,
		})
	}
	return deck
}

// Shuffle permutes the deck in place with a Fisher-Yates pass, so every
// permutation of the 54 cards is equally likely under the given source.
func Shuffle(deck []*models.Card, rng *rand.Rand) {
	rng.Shuffle(len(deck), func(i, j int) {
		deck[i], deck[j] = deck[j], deck[i]
	})
}
