// internal/game/kabul_test.go
package game

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kabulhq/kabul/internal/models"
)

// setHand replaces a player's hand with crafted cards of the given values so
// the final scores are known in advance.
func setHand(p *models.Player, values ...int) {
	p.Hand = make([]*models.Card, len(values))
	for i, v := range values {
		p.Hand[i] = &models.Card{ID: uuid.New(), Rank: "2", Suit: "C", Value: v}
	}
}

// playNeutralTurn drives one draw -> discard turn with a card that carries
// no ability, so the turn machine advances with no side quests.
func playNeutralTurn(t *testing.T, g *KabulGame, playerID uuid.UUID) {
	t.Helper()
	g.deck[0] = craftCard("2", "C", 2)
	_, err := g.HandleAction(playerID, models.GameAction{Type: models.ActionDrawDeck})
	require.NoError(t, err)
	_, err = g.HandleAction(playerID, models.GameAction{Type: models.ActionDiscardDrawn})
	require.NoError(t, err)
}

func TestKabulCallArmsCountdown(t *testing.T) {
	g, players, mb := setupTestGame(t, 3)
	a := players[0]

	res, err := g.HandleAction(a.ID, models.GameAction{Type: models.ActionCallKabul})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Payload["finalTurnsRemaining"], "n-1 opponents each get one turn")

	assert.True(t, a.HasCalledKabul)
	assert.Equal(t, a.ID, g.KabulCallerID)
	assert.Equal(t, players[1].ID, g.CurrentPlayerID(), "call consumes the caller's turn")
	require.Len(t, mb.publicEvents(EventPlayerKabul), 1)

	// Only one call per game.
	_, err = g.HandleAction(players[1].ID, models.GameAction{Type: models.ActionCallKabul})
	require.ErrorIs(t, err, error(ErrKabulCalled))
}

func TestKabulCallRequiresUntouchedTurn(t *testing.T) {
	g, players, _ := setupTestGame(t, 2)
	a := players[0]

	g.deck[0] = craftCard("2", "C", 2)
	_, err := g.HandleAction(a.ID, models.GameAction{Type: models.ActionDrawDeck})
	require.NoError(t, err)

	// Too late once a card has been drawn.
	_, err = g.HandleAction(a.ID, models.GameAction{Type: models.ActionCallKabul})
	require.ErrorIs(t, err, error(ErrWrongStage))
}

func TestKabulCountdownEndsGame(t *testing.T) {
	g, players, mb := setupTestGame(t, 3)
	a, b, c := players[0], players[1], players[2]

	setHand(a, 1, 1, 1, 1) // 4, lowest
	setHand(b, 3, 3, 3, 3) // 12
	setHand(c, 5, 5, 5, 5) // 20

	_, err := g.HandleAction(a.ID, models.GameAction{Type: models.ActionCallKabul})
	require.NoError(t, err)
	require.Equal(t, 2, g.FinalTurnsRemaining)

	playNeutralTurn(t, g, b.ID)
	assert.Equal(t, 1, g.FinalTurnsRemaining)
	assert.Equal(t, c.ID, g.CurrentPlayerID())

	playNeutralTurn(t, g, c.ID)
	assert.Equal(t, PhaseEnded, g.Phase)
	assert.Equal(t, a.ID, g.WinnerID, "lowest total wins")

	ends := mb.publicEvents(EventGameEnd)
	require.Len(t, ends, 1)
	scores := ends[0].Payload["scores"].(map[string]int)
	assert.Equal(t, 4, scores[a.ID.String()])
	assert.Equal(t, 12, scores[b.ID.String()])
	assert.Equal(t, 20, scores[c.ID.String()])
	require.NotNil(t, a.FinalScore)
	assert.Equal(t, 4, *a.FinalScore)
}

func TestKabulCallerIsSkippedAndLocked(t *testing.T) {
	g, players, _ := setupTestGame(t, 4)
	a, b, c, d := players[0], players[1], players[2], players[3]

	// B calls mid-rotation: A plays first, then B calls on their own turn.
	playNeutralTurn(t, g, a.ID)
	_, err := g.HandleAction(b.ID, models.GameAction{Type: models.ActionCallKabul})
	require.NoError(t, err)
	require.Equal(t, 3, g.FinalTurnsRemaining)

	playNeutralTurn(t, g, c.ID)
	playNeutralTurn(t, g, d.ID)
	// Rotation wraps; the caller is skipped, A plays the last final turn.
	assert.Equal(t, a.ID, g.CurrentPlayerID())

	// The caller's hand is frozen against swaps.
	dischargeAbility(t, g, a.ID, "J")
	_, err = g.HandleAction(a.ID, models.GameAction{Type: models.ActionSelectOwnCard, HandIndex: intp(0)})
	require.NoError(t, err)
	_, err = g.HandleAction(a.ID, models.GameAction{Type: models.ActionSelectTargetPlayer, TargetPlayerID: &b.ID})
	require.ErrorIs(t, err, error(ErrHandLocked))

	// Finish the last turn: skip the ability, game ends.
	_, err = g.HandleAction(a.ID, models.GameAction{Type: models.ActionSkipAbility})
	require.NoError(t, err)
	assert.Equal(t, PhaseEnded, g.Phase)
}

func TestTieGoesToFirstInTurnOrder(t *testing.T) {
	g, players, _ := setupTestGame(t, 2)
	a, b := players[0], players[1]

	setHand(a, 2, 2)
	setHand(b, 1, 3)

	_, err := g.HandleAction(a.ID, models.GameAction{Type: models.ActionCallKabul})
	require.NoError(t, err)
	playNeutralTurn(t, g, b.ID)

	require.Equal(t, PhaseEnded, g.Phase)
	assert.Equal(t, a.ID, g.WinnerID)
	assert.Equal(t, g.FinalScores[a.ID], g.FinalScores[b.ID])
}
