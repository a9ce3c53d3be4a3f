// internal/game/dispatcher_test.go
package game

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kabulhq/kabul/internal/models"
)

// TestFullTurnWithPeekEnemy walks one complete turn end to end through the
// dispatcher: draw, swap into the hand, resolve the displaced card's peek,
// and hand the turn over.
func TestFullTurnWithPeekEnemy(t *testing.T) {
	g, players, mb := setupTestGame(t, 2)
	a, b := players[0], players[1]
	g.Rules.RevealSec = 0

	drawn := craftCard("4", "C", 4)
	displaced := craftCard("9", "H", 9) // peek_enemy on discard
	g.deck[0] = drawn
	a.Hand[0] = displaced

	_, err := g.HandleAction(a.ID, models.GameAction{Type: models.ActionDrawDeck})
	require.NoError(t, err)

	res, err := g.HandleAction(a.ID, models.GameAction{Type: models.ActionSwapCard, HandIndex: intp(0)})
	require.NoError(t, err)
	assert.Equal(t, "peek_enemy", res.Payload["ability"])
	assert.Equal(t, drawn.ID, a.Hand[0].ID)
	assert.Equal(t, displaced.ID, g.DiscardTop().ID)

	secret := b.Hand[2]
	_, err = g.HandleAction(a.ID, models.GameAction{
		Type: models.ActionSelectEnemyCard, TargetPlayerID: &b.ID, TargetIndex: intp(2),
	})
	require.NoError(t, err)

	reveals := mb.playerEventsOf(a.ID, EventPrivateReveal)
	require.Len(t, reveals, 1)
	assert.Equal(t, secret.Rank, reveals[0].Card.Rank)

	require.Eventually(t, func() bool {
		return g.CurrentPlayerID() == b.ID
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, DeckSize, g.CardCount())
}

func TestSlapDuringAnotherPlayersTurn(t *testing.T) {
	g, players, _ := setupTestGame(t, 2)
	a, b := players[0], players[1]

	// A draws and swaps out a six; B slaps their own six onto it while A's
	// turn is still open.
	g.deck[0] = craftCard("2", "C", 2)
	a.Hand[0] = craftCard("6", "H", 6)
	b.Hand[0] = craftCard("6", "S", 6)

	_, err := g.HandleAction(a.ID, models.GameAction{Type: models.ActionDrawDeck})
	require.NoError(t, err)
	_, err = g.HandleAction(a.ID, models.GameAction{Type: models.ActionSwapCard, HandIndex: intp(0)})
	require.NoError(t, err)

	res, err := g.HandleAction(b.ID, models.GameAction{Type: models.ActionSlapMatch, HandIndex: intp(0)})
	require.NoError(t, err)
	assert.Equal(t, true, res.Payload["matched"])
	assert.Len(t, b.Hand, 3)

	// The turn machinery was untouched by the out-of-turn slap.
	assert.Equal(t, b.ID, g.CurrentPlayerID(), "swap completed A's turn")
	assert.Equal(t, DeckSize, g.CardCount())
}

func TestSlapRequiresHandIndex(t *testing.T) {
	g, players, _ := setupTestGame(t, 2)

	_, err := g.HandleAction(players[1].ID, models.GameAction{Type: models.ActionSlapMatch})
	require.Error(t, err)
	assert.Equal(t, KindValidation, err.(*GameError).Kind)
}
