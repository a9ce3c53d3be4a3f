// internal/game/dispatcher.go
package game

import (
	"github.com/google/uuid"
	"github.com/kabulhq/kabul/internal/models"
)

// HandleAction is the single validated entry point for every externally
// submitted action. It checks the actor against the current phase, stage
// and pending-ability step before touching anything, and either commits
// the whole action or fails fast with a typed reason — no partial state.
//
// Stale or out-of-order messages (an old client retrying a superseded step,
// a selection for a finished ability) fall out of these checks as ordinary
// validation failures.
func (g *KabulGame) HandleAction(playerID uuid.UUID, action models.GameAction) (models.Result, error) {
	// The slap race is the one path not serialized by turn ownership; it
	// snapshots the discard top before taking the game lock.
	if action.Type == models.ActionSlapMatch {
		if action.HandIndex == nil {
			return g.reject(playerID, validationErrorf("handIndex is required"))
		}
		res, err := g.HandleSlap(playerID, *action.HandIndex)
		if err != nil {
			return g.reject(playerID, err)
		}
		return res, nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.Phase != PhasePlaying {
		return g.rejectLocked(playerID, ErrWrongPhase)
	}
	player := g.playerByID(playerID)
	if player == nil {
		return models.Result{}, ErrPlayerNotFound
	}

	var res models.Result
	var err error
	switch action.Type {
	case models.ActionDrawDeck, models.ActionDrawDiscard,
		models.ActionSwapCard, models.ActionDiscardDrawn, models.ActionCallKabul:
		// Ordinary turn actions are serialized by turn ownership.
		if g.Players[g.CurrentPlayerIndex].ID != playerID {
			return g.rejectLocked(playerID, ErrNotYourTurn)
		}
		switch action.Type {
		case models.ActionDrawDeck:
			res, err = g.handleDraw(playerID, false)
		case models.ActionDrawDiscard:
			res, err = g.handleDraw(playerID, true)
		case models.ActionSwapCard:
			if action.HandIndex == nil {
				err = validationErrorf("handIndex is required")
			} else {
				res, err = g.handleSwap(playerID, *action.HandIndex)
			}
		case models.ActionDiscardDrawn:
			res, err = g.handleDiscardDrawn(playerID)
		case models.ActionCallKabul:
			res, err = g.handleCallKabul(playerID)
		}

	case models.ActionSelectOwnCard:
		res, err = g.handleSelectOwnCard(playerID, action)
	case models.ActionSelectTargetPlayer:
		res, err = g.handleSelectTargetPlayer(playerID, action)
	case models.ActionSelectEnemyCard:
		res, err = g.handleSelectEnemyCard(playerID, action)
	case models.ActionConfirmSwap:
		res, err = g.handleConfirmSwap(playerID)
	case models.ActionSkipAbility:
		res, err = g.handleSkipAbility(playerID)

	default:
		err = ErrUnknownAction
	}

	if err != nil {
		return g.rejectLocked(playerID, err)
	}
	return res, nil
}

// reject reports a failure to the caller and over their private channel.
func (g *KabulGame) reject(playerID uuid.UUID, err error) (models.Result, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rejectLocked(playerID, err)
}

// rejectLocked is reject for callers already holding the lock.
func (g *KabulGame) rejectLocked(playerID uuid.UUID, err error) (models.Result, error) {
	ge, ok := err.(*GameError)
	if !ok {
		ge = &GameError{Kind: KindValidation, Reason: err.Error()}
	}
	g.fireEventToPlayer(playerID, GameEvent{
		Type: EventPrivateFail,
		Payload: map[string]any{
			"kind":    ge.Kind.String(),
			"message": ge.Reason,
		},
	})
	return models.Result{}, ge
}
