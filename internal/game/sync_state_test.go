// internal/game/sync_state_test.go
package game

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kabulhq/kabul/internal/models"
	"github.com/kabulhq/kabul/internal/store"
)

func TestMaskedStateHidesOtherHands(t *testing.T) {
	g, players, _ := setupTestGame(t, 3)
	a := players[0]

	seedDiscard(g, "5", "H", 5)

	view := g.MaskedState(a.ID)
	assert.Equal(t, "playing", view.Phase)
	assert.Equal(t, a.ID, view.CurrentPlayerID)
	require.NotNil(t, view.DiscardTop)
	assert.Equal(t, "5", view.DiscardTop.Rank, "discard top is face up for everyone")

	for _, ps := range view.Players {
		assert.Equal(t, 4, ps.HandSize)
		if ps.PlayerID == a.ID {
			require.Len(t, ps.RevealedHand, 4)
			for _, c := range ps.RevealedHand {
				assert.NotEmpty(t, c.Rank)
			}
		} else {
			assert.Empty(t, ps.RevealedHand, "opponent hands stay face down")
			assert.Nil(t, ps.DrawnCard)
		}
	}
}

func TestMaskedStateNeverSerializesDeck(t *testing.T) {
	g, _, _ := setupTestGame(t, 2)

	view := g.MaskedState(uuid.Nil)
	data, err := json.Marshal(view)
	require.NoError(t, err)

	assert.Equal(t, len(g.deck), view.DeckSize)
	// The wire form carries a count, never the cards themselves.
	assert.NotContains(t, string(data), "\"deck\":")
	for _, c := range g.deck {
		assert.NotContains(t, string(data), c.ID.String())
	}
}

func TestMaskedStateSpectatorSeesNoHand(t *testing.T) {
	g, _, _ := setupTestGame(t, 2)

	view := g.MaskedState(uuid.Nil)
	for _, ps := range view.Players {
		assert.Empty(t, ps.RevealedHand)
	}
}

func TestPublishStateWritesPublicAndPrivateDocs(t *testing.T) {
	g, players, _ := setupTestGame(t, 2)
	a, b := players[0], players[1]

	docs := store.NewMemoryStore()
	g.mu.Lock()
	g.Store = docs
	g.publishState()
	g.mu.Unlock()

	ctx := context.Background()
	var public ObfGameState
	require.Eventually(t, func() bool {
		data, err := docs.Get(ctx, publicStatePath(g.ID))
		if err != nil {
			return false
		}
		return json.Unmarshal(data, &public) == nil
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, g.ID, public.GameID)
	for _, ps := range public.Players {
		assert.Empty(t, ps.RevealedHand, "the public doc carries no identities")
	}

	var viewA ObfGameState
	require.Eventually(t, func() bool {
		data, err := docs.Get(ctx, playerViewPath(g.ID, a.ID))
		if err != nil {
			return false
		}
		return json.Unmarshal(data, &viewA) == nil
	}, 2*time.Second, 10*time.Millisecond)

	for _, ps := range viewA.Players {
		if ps.PlayerID == a.ID {
			assert.Len(t, ps.RevealedHand, 4)
		} else {
			assert.Empty(t, ps.RevealedHand)
		}
	}

	// A's private document never references B's cards at all.
	dataA, err := docs.Get(ctx, playerViewPath(g.ID, a.ID))
	require.NoError(t, err)
	for _, c := range b.Hand {
		assert.NotContains(t, string(dataA), c.ID.String())
	}
}

func TestAbilityOpenPublishesPendingState(t *testing.T) {
	g, players, _ := setupTestGame(t, 2)
	a := players[0]
	g.Rules.RevealSec = 60

	docs := store.NewMemoryStore()
	g.mu.Lock()
	g.Store = docs
	g.mu.Unlock()

	dischargeAbility(t, g, a.ID, "7")

	ctx := context.Background()
	require.Eventually(t, func() bool {
		data, err := docs.Get(ctx, publicStatePath(g.ID))
		if err != nil {
			return false
		}
		var doc ObfGameState
		if json.Unmarshal(data, &doc) != nil {
			return false
		}
		return doc.PendingAbility == "peek_self" && doc.PendingAbilityStep == "select_own"
	}, 2*time.Second, 10*time.Millisecond, "opening an ability must refresh the shared documents")

	_, err := g.HandleAction(a.ID, models.GameAction{Type: models.ActionSelectOwnCard, HandIndex: intp(1)})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		data, err := docs.Get(ctx, publicStatePath(g.ID))
		if err != nil {
			return false
		}
		var doc ObfGameState
		if json.Unmarshal(data, &doc) != nil {
			return false
		}
		return doc.PendingAbilityStep == "revealing"
	}, 2*time.Second, 10*time.Millisecond, "the reveal step shows up in the public doc")
}

func TestDrawnCardAppearsOnlyInOwnersView(t *testing.T) {
	g, players, _ := setupTestGame(t, 2)
	a, b := players[0], players[1]

	g.deck[0] = craftCard("3", "D", 3)
	_, err := g.HandleAction(a.ID, models.GameAction{Type: models.ActionDrawDeck})
	require.NoError(t, err)

	viewA := g.MaskedState(a.ID)
	viewB := g.MaskedState(b.ID)

	var drawnSeen bool
	for _, ps := range viewA.Players {
		if ps.PlayerID == a.ID && ps.DrawnCard != nil {
			drawnSeen = true
			assert.Equal(t, "3", ps.DrawnCard.Rank)
		}
	}
	assert.True(t, drawnSeen)
	for _, ps := range viewB.Players {
		assert.Nil(t, ps.DrawnCard)
	}
}
