// internal/game/sync_state.go
package game

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ObfCard is a card as seen from a particular player's perspective:
// face-down cards expose only their id.
type ObfCard struct {
	ID    uuid.UUID `json:"id"`
	Known bool      `json:"known"`
	Rank  string    `json:"rank,omitempty"`
	Suit  string    `json:"suit,omitempty"`
	Value int       `json:"value,omitempty"`
	Idx   int       `json:"idx"`
}

// ObfPlayerState is one seat as seen by the requesting player.
type ObfPlayerState struct {
	PlayerID       uuid.UUID `json:"playerId"`
	Name           string    `json:"name"`
	HandSize       int       `json:"handSize"`
	HasCalledKabul bool      `json:"hasCalledKabul"`
	Connected      bool      `json:"connected"`
	IsCurrentTurn  bool      `json:"isCurrentTurn"`
	FinalScore     *int      `json:"finalScore,omitempty"`

	// RevealedHand and DrawnCard are populated only for the requesting
	// player's own seat. Ability reveals travel as private events, never
	// through this snapshot.
	RevealedHand []ObfCard `json:"revealedHand,omitempty"`
	DrawnCard    *ObfCard  `json:"drawnCard,omitempty"`
}

// ObfGameState is the masked room snapshot. The deck contents never appear
// here — only the count.
type ObfGameState struct {
	GameID              uuid.UUID        `json:"gameId"`
	Phase               string           `json:"phase"`
	Stage               string           `json:"stage"`
	TurnID              int              `json:"turn"`
	CurrentPlayerID     uuid.UUID        `json:"currentPlayerId"`
	DeckSize            int              `json:"deckSize"`
	DiscardSize         int              `json:"discardSize"`
	DiscardTop          *ObfCard         `json:"discardTop,omitempty"`
	PendingAbility      string           `json:"pendingAbility,omitempty"`
	PendingAbilityStep  string           `json:"pendingAbilityStep,omitempty"`
	KabulCallerID       uuid.UUID        `json:"kabulCallerId,omitempty"`
	FinalTurnsRemaining int              `json:"finalTurnsRemaining"`
	WinnerID            uuid.UUID        `json:"winnerId,omitempty"`
	Players             []ObfPlayerState `json:"players"`
}

// MaskedState builds the snapshot for one requesting player.
func (g *KabulGame) MaskedState(forUser uuid.UUID) ObfGameState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.maskedStateFor(forUser)
}

// maskedStateFor assumes lock is held.
func (g *KabulGame) maskedStateFor(forUser uuid.UUID) ObfGameState {
	obf := ObfGameState{
		GameID:              g.ID,
		Phase:               g.Phase.String(),
		Stage:               g.Stage.String(),
		TurnID:              g.TurnID,
		CurrentPlayerID:     g.Players[g.CurrentPlayerIndex].ID,
		DeckSize:            len(g.deck),
		DiscardSize:         g.discard.size(),
		KabulCallerID:       g.KabulCallerID,
		FinalTurnsRemaining: g.FinalTurnsRemaining,
		WinnerID:            g.WinnerID,
	}
	if top, _, _ := g.discard.snapshot(); top != nil {
		obf.DiscardTop = &ObfCard{
			ID: top.ID, Known: true, Rank: top.Rank, Suit: top.Suit, Value: top.Value,
		}
	}
	if g.pending != nil {
		obf.PendingAbility = g.pending.Type.String()
		obf.PendingAbilityStep = g.pending.Step.String()
	}

	for i, pl := range g.Players {
		ps := ObfPlayerState{
			PlayerID:       pl.ID,
			Name:           pl.Name,
			HandSize:       len(pl.Hand),
			HasCalledKabul: pl.HasCalledKabul,
			Connected:      pl.Connected,
			IsCurrentTurn:  i == g.CurrentPlayerIndex,
			FinalScore:     pl.FinalScore,
		}
		if pl.ID == forUser {
			ps.RevealedHand = make([]ObfCard, len(pl.Hand))
			for j, c := range pl.Hand {
				ps.RevealedHand[j] = ObfCard{
					ID: c.ID, Known: true, Rank: c.Rank, Suit: c.Suit, Value: c.Value, Idx: j,
				}
			}
			if g.drawn != nil && g.drawn.OwnerID == pl.ID {
				ps.DrawnCard = &ObfCard{
					ID: g.drawn.Card.ID, Known: true,
					Rank: g.drawn.Card.Rank, Suit: g.drawn.Card.Suit, Value: g.drawn.Card.Value,
				}
			}
		}
		obf.Players = append(obf.Players, ps)
	}
	return obf
}

// publicStatePath and playerViewPath lay out the room's documents in the
// shared store. There is intentionally no deck path.
func publicStatePath(gameID uuid.UUID) string {
	return "rooms/" + gameID.String() + "/state"
}

func playerViewPath(gameID, playerID uuid.UUID) string {
	return "rooms/" + gameID.String() + "/players/" + playerID.String() + "/view"
}

// publishState pushes the public document and every player's masked view to
// the shared store. Writes happen off the lock path; subscribers pick the
// change up through the store's own notification channel.
// Assumes lock is held.
func (g *KabulGame) publishState() {
	if g.Store == nil {
		return
	}
	// The spectator view is the masked state for nobody in particular.
	public := g.maskedStateFor(uuid.Nil)
	views := make(map[string]ObfGameState, len(g.Players))
	for _, p := range g.Players {
		views[playerViewPath(g.ID, p.ID)] = g.maskedStateFor(p.ID)
	}
	st := g.Store
	gameID := g.ID
	logger := g.log
	g.pubSeq++
	seq := g.pubSeq

	go func() {
		g.pubMu.Lock()
		defer g.pubMu.Unlock()
		if seq <= g.pubDone {
			return // a newer snapshot already landed
		}
		g.pubDone = seq

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := st.Set(ctx, publicStatePath(gameID), public); err != nil {
			logger.WithError(err).Warn("public state publish failed")
		}
		for path, view := range views {
			if err := st.Set(ctx, path, view); err != nil {
				logger.WithError(err).Warn("player view publish failed")
			}
		}
	}()
}
