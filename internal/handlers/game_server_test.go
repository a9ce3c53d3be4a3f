// internal/handlers/game_server_test.go
package handlers

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kabulhq/kabul/internal/game"
	"github.com/kabulhq/kabul/internal/models"
	"github.com/kabulhq/kabul/internal/store"
)

func testSeats(n int) []models.Seat {
	seats := make([]models.Seat, n)
	for i := range seats {
		seats[i] = models.Seat{ID: uuid.New(), Name: "player"}
	}
	return seats
}

func TestCreateGameValidatesRoster(t *testing.T) {
	gs := NewGameServer(nil, store.NewMemoryStore(), nil)

	_, err := gs.CreateGame(testSeats(1), "")
	require.Error(t, err, "solo games are not allowed")

	_, err = gs.CreateGame(testSeats(5), "")
	require.Error(t, err, "table seats at most four")

	dup := testSeats(2)
	dup[1].ID = dup[0].ID
	_, err = gs.CreateGame(dup, "")
	require.Error(t, err)

	missing := testSeats(2)
	missing[0].ID = uuid.Nil
	_, err = gs.CreateGame(missing, "")
	require.Error(t, err)

	_, err = gs.CreateGame(testSeats(2), "speed")
	require.Error(t, err, "unknown ruleset")
}

func TestCreateGameRegistersAndStarts(t *testing.T) {
	gs := NewGameServer(nil, store.NewMemoryStore(), nil)

	g, err := gs.CreateGame(testSeats(3), "classic")
	require.NoError(t, err)
	t.Cleanup(func() { g.ForceEnd("test teardown") })

	got, ok := gs.GameStore.GetGame(g.ID)
	require.True(t, ok)
	assert.Same(t, g, got)
	assert.Equal(t, "classic", g.Ruleset.Name)
	assert.Equal(t, game.PhaseMemorize, g.Phase, "created games open in the memorize window")
	for _, p := range g.Players {
		assert.Len(t, p.Hand, 4)
	}
}

func TestPerformActionRoutesAndRejects(t *testing.T) {
	gs := NewGameServer(nil, store.NewMemoryStore(), nil)

	// Unknown room.
	_, err := gs.PerformAction(uuid.New(), uuid.New(), models.GameAction{Type: models.ActionDrawDeck})
	require.Error(t, err)
	ge, ok := err.(*game.GameError)
	require.True(t, ok)
	assert.Equal(t, game.KindNotFound, ge.Kind)

	g, err := gs.CreateGame(testSeats(2), "")
	require.NoError(t, err)
	t.Cleanup(func() { g.ForceEnd("test teardown") })
	g.BeginPlay()

	first := g.CurrentPlayerID()
	res, err := gs.PerformAction(g.ID, first, models.GameAction{Type: models.ActionDrawDeck})
	require.NoError(t, err)
	assert.Equal(t, models.ActionDrawDeck, res.Action)

	// Seated player acting out of turn gets a typed validation failure.
	var other uuid.UUID
	for _, p := range g.Players {
		if p.ID != first {
			other = p.ID
		}
	}
	_, err = gs.PerformAction(g.ID, other, models.GameAction{Type: models.ActionDrawDeck})
	require.Error(t, err)
	assert.Equal(t, game.KindValidation, err.(*game.GameError).Kind)
}
