// internal/game/slap.go
package game

import (
	"sync"

	"github.com/google/uuid"
	"github.com/kabulhq/kabul/internal/models"
)

// discardPile is the one piece of state the turn machine does not serialize:
// any player may slap it at any moment. Every mutation bumps the version so
// a slap validated against a stale top can never commit; a top that itself
// arrived by slap is not slappable again.
type discardPile struct {
	mu          sync.Mutex
	cards       []*models.Card
	version     uint64
	topFromSlap bool
}

// snapshot returns the current top, its version stamp and whether it may be
// slapped.
func (d *discardPile) snapshot() (*models.Card, uint64, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.cards) == 0 {
		return nil, d.version, false
	}
	return d.cards[len(d.cards)-1], d.version, !d.topFromSlap
}

// push places a card on top through the normal discard path.
func (d *discardPile) push(c *models.Card) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cards = append(d.cards, c)
	d.version++
	d.topFromSlap = false
}

// compareAndPush commits a slap only if the pile has not changed since the
// caller's snapshot. This is the atomic compare-and-apply at the heart of
// the race: exactly one of several simultaneous attempts can win.
func (d *discardPile) compareAndPush(expect uint64, c *models.Card) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.version != expect {
		return false
	}
	d.cards = append(d.cards, c)
	d.version++
	d.topFromSlap = true
	return true
}

// pop removes and returns the top card, or nil when empty.
func (d *discardPile) pop() *models.Card {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.cards) == 0 {
		return nil
	}
	c := d.cards[len(d.cards)-1]
	d.cards = d.cards[:len(d.cards)-1]
	d.version++
	d.topFromSlap = false
	return c
}

func (d *discardPile) size() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.cards)
}

// HandleSlap processes an out-of-turn slap attempt. The top snapshot is
// deliberately taken before the game lock so that an attempt racing a
// concurrent winner is detected by the version check, re-evaluated against
// the post-commit top, and failing that treated as an ordinary mismatch.
// A lost race is absorbed here; it never surfaces as a system error.
func (g *KabulGame) HandleSlap(playerID uuid.UUID, handIndex int) (models.Result, error) {
	top, version, slappable := g.discard.snapshot()

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.Phase != PhasePlaying {
		return models.Result{}, ErrWrongPhase
	}
	player := g.playerByID(playerID)
	if player == nil {
		return models.Result{}, ErrPlayerNotFound
	}
	if player.HasCalledKabul {
		return models.Result{}, ErrHandLocked
	}
	if handIndex < 0 || handIndex >= len(player.Hand) {
		return models.Result{}, ErrIndexOutOfRange
	}
	card := player.Hand[handIndex]

	for {
		if top == nil || !slappable || card.Rank != top.Rank {
			return g.slapMismatch(player, card, handIndex), nil
		}
		if g.discard.compareAndPush(version, card) {
			return g.slapCommit(player, card, handIndex), nil
		}
		// Lost the race to a concurrent winner: re-evaluate once more
		// against whatever is on top now.
		top, version, slappable = g.discard.snapshot()
	}
}

// slapCommit finishes a successful slap: the card is already on the pile,
// so remove it from the hand and re-index. Assumes lock is held.
func (g *KabulGame) slapCommit(player *models.Player, card *models.Card, handIndex int) models.Result {
	player.Hand = append(player.Hand[:handIndex], player.Hand[handIndex+1:]...)

	idx := handIndex
	g.fireEvent(GameEvent{
		Type: EventPlayerSlapOk,
		User: &EventUser{ID: player.ID},
		Card: fullCard(card, &idx),
	})
	g.logAction(player.ID, "slap_success", map[string]any{"cardId": card.ID, "rank": card.Rank})
	g.publishState()

	return models.Result{Action: models.ActionSlapMatch, Payload: map[string]any{
		"matched":  true,
		"handSize": len(player.Hand),
	}}
}

// slapMismatch applies the penalty draw for a failed attempt. An empty deck
// means failure without punishment. Assumes lock is held.
func (g *KabulGame) slapMismatch(player *models.Player, card *models.Card, handIndex int) models.Result {
	idx := handIndex
	g.fireEvent(GameEvent{
		Type: EventPlayerSlapFail,
		User: &EventUser{ID: player.ID},
		Card: fullCard(card, &idx), // a failed slap exposes the attempted card
	})
	g.logAction(player.ID, "slap_fail", map[string]any{"cardId": card.ID})

	penalized := false
	for i := 0; i < g.Rules.PenaltyDrawCount && len(g.deck) > 0; i++ {
		penalty := g.deck[0]
		g.deck = g.deck[1:]
		player.Hand = append(player.Hand, penalty)
		penalized = true

		newIdx := len(player.Hand) - 1
		g.fireEvent(GameEvent{
			Type: EventPlayerPenalty,
			User: &EventUser{ID: player.ID},
			Card: obfCardID(penalty, nil),
		})
		g.fireEventToPlayer(player.ID, GameEvent{
			Type: EventPrivatePenalty,
			Card: fullCard(penalty, &newIdx),
		})
	}
	g.logAction(player.ID, "slap_penalty", map[string]any{"applied": penalized})
	g.publishState()

	return models.Result{Action: models.ActionSlapMatch, Payload: map[string]any{
		"matched":  false,
		"penalty":  penalized,
		"handSize": len(player.Hand),
	}}
}
