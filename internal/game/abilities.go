// internal/game/abilities.go
package game

import (
	"time"

	"github.com/google/uuid"
	"github.com/kabulhq/kabul/internal/models"
)

// AbilityStep sequences the selection protocol of the pending ability.
type AbilityStep int

const (
	StepSelectOwn AbilityStep = iota
	StepSelectTargetPlayer
	StepSelectTargetCard
	StepConfirm
	StepRevealing // peek display window; turn auto-advances when it expires
)

func (s AbilityStep) String() string {
	switch s {
	case StepSelectOwn:
		return "select_own"
	case StepSelectTargetPlayer:
		return "select_target_player"
	case StepSelectTargetCard:
		return "select_target_card"
	case StepConfirm:
		return "confirm"
	case StepRevealing:
		return "revealing"
	default:
		return "unknown"
	}
}

// pendingAbility is the at-most-one in-flight ability record. The instance
// id keys every deferred task belonging to this ability, so a stale timer
// or out-of-order message can never touch a successor.
type pendingAbility struct {
	ID             uuid.UUID
	Type           models.Ability
	PlayerID       uuid.UUID
	Step           AbilityStep
	OwnIndex       int
	TargetPlayerID uuid.UUID
	TargetIndex    int
}

// openAbility enters the ability stage for the card that just hit the
// discard pile. Assumes lock is held.
func (g *KabulGame) openAbility(playerID uuid.UUID, ability models.Ability) {
	step := StepSelectOwn
	if ability == models.AbilityPeekEnemy {
		// Target player and index arrive in a single selection message.
		step = StepSelectTargetCard
	}
	g.pending = &pendingAbility{
		ID:          uuid.New(),
		Type:        ability,
		PlayerID:    playerID,
		Step:        step,
		OwnIndex:    -1,
		TargetIndex: -1,
	}
	g.Stage = StageAbility

	// The ability deadline replaces the turn deadline until resolution.
	if g.turnTimer != nil {
		g.turnTimer.Stop()
		g.turnTimer = nil
	}
	g.armAbilityTimeout()

	g.fireEvent(GameEvent{
		Type:    EventAbilityOpened,
		User:    &EventUser{ID: playerID},
		Ability: ability.String(),
		Payload: map[string]any{"step": step.String()},
	})
	g.logAction(playerID, "ability_opened", map[string]any{"ability": ability.String()})
	g.publishState()
}

// armAbilityTimeout (re)schedules the defensive auto-skip for the pending
// ability. Assumes lock is held.
func (g *KabulGame) armAbilityTimeout() {
	if g.pending == nil || g.Rules.AbilityTimeoutSec <= 0 {
		return
	}
	g.cancelDeferred(g.pending.ID)
	g.scheduleDeferred(g.pending.ID, time.Duration(g.Rules.AbilityTimeoutSec)*time.Second, func() {
		g.skipAbility("timeout")
	})
}

// handleSelectOwnCard is the first selection of every protocol except
// peek-enemy. Assumes lock is held.
func (g *KabulGame) handleSelectOwnCard(playerID uuid.UUID, action models.GameAction) (models.Result, error) {
	p := g.pending
	if p == nil || p.PlayerID != playerID {
		return models.Result{}, ErrNoAbility
	}
	if p.Step != StepSelectOwn {
		return models.Result{}, ErrWrongStep
	}
	if action.HandIndex == nil {
		return models.Result{}, validationErrorf("handIndex is required")
	}
	idx := *action.HandIndex
	player := g.playerByID(playerID)
	if idx < 0 || idx >= len(player.Hand) {
		return models.Result{}, ErrIndexOutOfRange
	}

	switch p.Type {
	case models.AbilityPeekSelf:
		p.OwnIndex = idx
		return g.beginReveal(models.ActionSelectOwnCard, playerID, player.Hand[idx], playerID, idx), nil

	case models.AbilityBlindSwap, models.AbilitySeeAndSwap:
		p.OwnIndex = idx
		p.Step = StepSelectTargetPlayer
		g.armAbilityTimeout()
		g.fireEvent(GameEvent{
			Type:    EventAbilityStep,
			User:    &EventUser{ID: playerID},
			Ability: p.Type.String(),
			Card:    obfCardID(player.Hand[idx], &idx),
			Payload: map[string]any{"step": p.Step.String()},
		})
		g.publishState()
		return models.Result{Action: models.ActionSelectOwnCard, Payload: map[string]any{"step": p.Step.String()}}, nil

	default:
		return models.Result{}, ErrWrongStep
	}
}

// handleSelectTargetPlayer is the middle step of the swap protocols.
// Assumes lock is held.
func (g *KabulGame) handleSelectTargetPlayer(playerID uuid.UUID, action models.GameAction) (models.Result, error) {
	p := g.pending
	if p == nil || p.PlayerID != playerID {
		return models.Result{}, ErrNoAbility
	}
	if p.Step != StepSelectTargetPlayer {
		return models.Result{}, ErrWrongStep
	}
	if action.TargetPlayerID == nil {
		return models.Result{}, validationErrorf("targetPlayerId is required")
	}
	targetID := *action.TargetPlayerID
	if targetID == playerID {
		return models.Result{}, ErrSelfTarget
	}
	target := g.playerByID(targetID)
	if target == nil {
		return models.Result{}, ErrPlayerNotFound
	}
	if target.HasCalledKabul {
		return models.Result{}, ErrHandLocked
	}

	p.TargetPlayerID = targetID
	p.Step = StepSelectTargetCard
	g.armAbilityTimeout()
	g.fireEvent(GameEvent{
		Type:    EventAbilityStep,
		User:    &EventUser{ID: playerID},
		Ability: p.Type.String(),
		Payload: map[string]any{"step": p.Step.String(), "target": targetID.String()},
	})
	g.publishState()
	return models.Result{Action: models.ActionSelectTargetPlayer, Payload: map[string]any{"step": p.Step.String()}}, nil
}

// handleSelectEnemyCard finishes peek-enemy outright, executes a blind swap,
// or opens the see-and-swap preview. Assumes lock is held.
func (g *KabulGame) handleSelectEnemyCard(playerID uuid.UUID, action models.GameAction) (models.Result, error) {
	p := g.pending
	if p == nil || p.PlayerID != playerID {
		return models.Result{}, ErrNoAbility
	}
	if p.Step != StepSelectTargetCard {
		return models.Result{}, ErrWrongStep
	}
	if action.TargetIndex == nil {
		return models.Result{}, validationErrorf("targetIndex is required")
	}
	idx := *action.TargetIndex

	switch p.Type {
	case models.AbilityPeekEnemy:
		if action.TargetPlayerID == nil {
			return models.Result{}, validationErrorf("targetPlayerId is required")
		}
		targetID := *action.TargetPlayerID
		if targetID == playerID {
			return models.Result{}, ErrSelfTarget
		}
		target := g.playerByID(targetID)
		if target == nil {
			return models.Result{}, ErrPlayerNotFound
		}
		if idx < 0 || idx >= len(target.Hand) {
			return models.Result{}, ErrIndexOutOfRange
		}
		p.TargetPlayerID = targetID
		p.TargetIndex = idx
		return g.beginReveal(models.ActionSelectEnemyCard, playerID, target.Hand[idx], targetID, idx), nil

	case models.AbilityBlindSwap:
		target := g.playerByID(p.TargetPlayerID)
		if idx < 0 || idx >= len(target.Hand) {
			return models.Result{}, ErrIndexOutOfRange
		}
		p.TargetIndex = idx
		if err := g.executePendingSwap(); err != nil {
			return models.Result{}, err
		}
		g.resolveAbility(playerID, map[string]any{"swapped": true})
		return models.Result{Action: models.ActionSelectEnemyCard, Payload: map[string]any{"swapped": true}}, nil

	case models.AbilitySeeAndSwap:
		target := g.playerByID(p.TargetPlayerID)
		if idx < 0 || idx >= len(target.Hand) {
			return models.Result{}, ErrIndexOutOfRange
		}
		p.TargetIndex = idx
		p.Step = StepConfirm
		g.armAbilityTimeout()

		// Both involved cards are revealed to the acting player only.
		own := g.playerByID(playerID)
		ownIdx, tgtIdx := p.OwnIndex, idx
		g.fireEventToPlayer(playerID, GameEvent{
			Type:    EventPrivatePreview,
			Ability: p.Type.String(),
			Card1:   fullCard(own.Hand[ownIdx], &ownIdx),
			Card2: &EventCard{
				ID:    target.Hand[tgtIdx].ID,
				Rank:  target.Hand[tgtIdx].Rank,
				Suit:  target.Hand[tgtIdx].Suit,
				Value: intPtr(target.Hand[tgtIdx].Value),
				Idx:   &tgtIdx,
				User:  &EventUser{ID: p.TargetPlayerID},
			},
		})
		g.fireEvent(GameEvent{
			Type:    EventAbilityStep,
			User:    &EventUser{ID: playerID},
			Ability: p.Type.String(),
			Payload: map[string]any{"step": p.Step.String(), "target": p.TargetPlayerID.String()},
		})
		g.logAction(playerID, "ability_preview", map[string]any{"target": p.TargetPlayerID})
		g.publishState()
		return models.Result{Action: models.ActionSelectEnemyCard, Payload: map[string]any{"step": p.Step.String()}}, nil

	default:
		return models.Result{}, ErrWrongStep
	}
}

// handleConfirmSwap executes the previewed see-and-swap exchange.
// Assumes lock is held.
func (g *KabulGame) handleConfirmSwap(playerID uuid.UUID) (models.Result, error) {
	p := g.pending
	if p == nil || p.PlayerID != playerID {
		return models.Result{}, ErrNoAbility
	}
	if p.Type != models.AbilitySeeAndSwap || p.Step != StepConfirm {
		return models.Result{}, ErrWrongStep
	}
	if err := g.executePendingSwap(); err != nil {
		return models.Result{}, err
	}
	g.resolveAbility(playerID, map[string]any{"swapped": true})
	return models.Result{Action: models.ActionConfirmSwap, Payload: map[string]any{"swapped": true}}, nil
}

// handleSkipAbility abandons the pending ability at any step, leaving all
// hands unchanged. Assumes lock is held.
func (g *KabulGame) handleSkipAbility(playerID uuid.UUID) (models.Result, error) {
	p := g.pending
	if p == nil || p.PlayerID != playerID {
		return models.Result{}, ErrNoAbility
	}
	g.skipAbility("player")
	return models.Result{Action: models.ActionSkipAbility, Payload: map[string]any{"skipped": true}}, nil
}

// skipAbility clears the pending ability without effect and completes the
// turn. Reason is "player" or "timeout". Assumes lock is held.
func (g *KabulGame) skipAbility(reason string) {
	p := g.pending
	if p == nil {
		return
	}
	g.cancelDeferred(p.ID)
	g.pending = nil
	g.fireEvent(GameEvent{
		Type:    EventAbilityResolved,
		User:    &EventUser{ID: p.PlayerID},
		Ability: p.Type.String(),
		Payload: map[string]any{"skipped": true, "reason": reason},
	})
	g.logAction(p.PlayerID, "ability_skipped", map[string]any{"reason": reason})
	g.advanceTurn()
}

// beginReveal privately shows a card to the acting player for the fixed
// display duration, then auto-advances the turn. The reveal never touches
// publicly readable state; the public step event carries the card id only.
// Assumes lock is held.
func (g *KabulGame) beginReveal(action models.ActionType, actorID uuid.UUID, card *models.Card, ownerID uuid.UUID, idx int) models.Result {
	p := g.pending
	p.Step = StepRevealing

	i := idx
	g.fireEventToPlayer(actorID, GameEvent{
		Type:    EventPrivateReveal,
		Ability: p.Type.String(),
		Card: &EventCard{
			ID:    card.ID,
			Rank:  card.Rank,
			Suit:  card.Suit,
			Value: intPtr(card.Value),
			Idx:   &i,
			User:  &EventUser{ID: ownerID},
		},
		Payload: map[string]any{"durationSec": g.Rules.RevealSec, "instance": p.ID.String()},
	})
	g.fireEvent(GameEvent{
		Type:    EventAbilityStep,
		User:    &EventUser{ID: actorID},
		Ability: p.Type.String(),
		Card:    &EventCard{ID: card.ID, Idx: &i, User: &EventUser{ID: ownerID}},
		Payload: map[string]any{"step": p.Step.String()},
	})
	g.logAction(actorID, "ability_reveal", map[string]any{"owner": ownerID, "idx": idx})
	g.publishState()

	g.cancelDeferred(p.ID)
	d := time.Duration(g.Rules.RevealSec) * time.Second
	instance := p.ID
	g.scheduleDeferred(instance, d, func() {
		if g.pending == nil || g.pending.ID != instance {
			return
		}
		actor := g.pending.PlayerID
		ability := g.pending.Type
		g.pending = nil
		g.fireEventToPlayer(actor, GameEvent{
			Type:    EventPrivateRevealEnd,
			Payload: map[string]any{"instance": instance.String()},
		})
		g.fireEvent(GameEvent{
			Type:    EventAbilityResolved,
			User:    &EventUser{ID: actor},
			Ability: ability.String(),
		})
		g.advanceTurn()
	})

	return models.Result{Action: action, Payload: map[string]any{
		"step":     StepRevealing.String(),
		"revealed": card.Label(),
	}}
}

// executePendingSwap exchanges the two selected cards. Indices are
// re-validated at execution time because an interleaved slap may have
// re-indexed either hand since selection. Assumes lock is held.
func (g *KabulGame) executePendingSwap() error {
	p := g.pending
	own := g.playerByID(p.PlayerID)
	target := g.playerByID(p.TargetPlayerID)
	if own == nil || target == nil {
		return ErrPlayerNotFound
	}
	if p.OwnIndex < 0 || p.OwnIndex >= len(own.Hand) || p.TargetIndex < 0 || p.TargetIndex >= len(target.Hand) {
		return ErrIndexOutOfRange
	}
	if target.HasCalledKabul {
		return ErrHandLocked
	}
	own.Hand[p.OwnIndex], target.Hand[p.TargetIndex] = target.Hand[p.TargetIndex], own.Hand[p.OwnIndex]
	return nil
}

// resolveAbility clears the pending record after a completed exchange and
// completes the turn. The public event carries card positions, never
// identities. Assumes lock is held.
func (g *KabulGame) resolveAbility(playerID uuid.UUID, payload map[string]any) {
	p := g.pending
	g.cancelDeferred(p.ID)
	g.pending = nil

	ownIdx, tgtIdx := p.OwnIndex, p.TargetIndex
	if payload == nil {
		payload = map[string]any{}
	}
	payload["ownIdx"] = ownIdx
	payload["targetIdx"] = tgtIdx
	payload["target"] = p.TargetPlayerID.String()
	g.fireEvent(GameEvent{
		Type:    EventAbilityResolved,
		User:    &EventUser{ID: playerID},
		Ability: p.Type.String(),
		Payload: payload,
	})
	g.logAction(playerID, "ability_resolved", payload)
	g.advanceTurn()
}

func intPtr(v int) *int { return &v }
