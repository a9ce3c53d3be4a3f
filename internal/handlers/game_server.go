// internal/handlers/game_server.go
package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/kabulhq/kabul/internal/cache"
	"github.com/kabulhq/kabul/internal/database"
	"github.com/kabulhq/kabul/internal/game"
	"github.com/kabulhq/kabul/internal/models"
	"github.com/kabulhq/kabul/internal/store"
)

// endedGameRetention is how long a finished room stays queryable before the
// registry drops it.
const endedGameRetention = 5 * time.Minute

// GameServer owns the room registry and wires each new game to the shared
// infrastructure: the document store for masked views, the action history
// queue, and result persistence.
type GameServer struct {
	GameStore *game.GameStore
	Store     store.DocumentStore
	History   *cache.ActionLogger
	Logger    *logrus.Logger
}

func NewGameServer(logger *logrus.Logger, docs store.DocumentStore, history *cache.ActionLogger) *GameServer {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &GameServer{
		GameStore: game.NewGameStore(),
		Store:     docs,
		History:   history,
		Logger:    logger,
	}
}

// CreateGame seats the roster, wires the game to the shared services and
// starts it. The roster is fixed from this point on.
func (gs *GameServer) CreateGame(seats []models.Seat, rulesetName string) (*game.KabulGame, error) {
	if len(seats) < 2 || len(seats) > 4 {
		return nil, fmt.Errorf("a game needs 2 to 4 players, got %d", len(seats))
	}
	seen := make(map[uuid.UUID]bool, len(seats))
	for _, s := range seats {
		if s.ID == uuid.Nil {
			return nil, fmt.Errorf("seat %q is missing a player id", s.Name)
		}
		if seen[s.ID] {
			return nil, fmt.Errorf("player %s seated twice", s.ID)
		}
		seen[s.ID] = true
	}
	rs, ok := game.RulesetByName(rulesetName)
	if !ok {
		return nil, fmt.Errorf("unknown ruleset %q", rulesetName)
	}

	g := game.NewKabulGame(seats, rs)
	g.Store = gs.Store
	g.History = gs.History
	g.BroadcastFn = gs.broadcastFunc(g)
	g.BroadcastToPlayerFn = gs.broadcastToPlayerFunc(g)
	g.OnGameEnd = gs.onGameEnd(g)

	gs.GameStore.AddGame(g)
	gs.Logger.WithFields(logrus.Fields{
		"game":    g.ID,
		"players": len(seats),
		"ruleset": rs.Name,
	}).Info("game created")

	g.Start()
	return g, nil
}

// PerformAction routes one externally submitted action to its room.
func (gs *GameServer) PerformAction(gameID, playerID uuid.UUID, action models.GameAction) (models.Result, error) {
	g, ok := gs.GameStore.GetGame(gameID)
	if !ok {
		return models.Result{}, &game.GameError{Kind: game.KindNotFound, Reason: "game not found"}
	}
	return g.HandleAction(playerID, action)
}

// onGameEnd persists the final results and schedules the room's removal.
func (gs *GameServer) onGameEnd(g *game.KabulGame) game.OnGameEndFunc {
	return func(gameID uuid.UUID, winner uuid.UUID, scores map[uuid.UUID]int) {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if database.DB != nil {
				if err := database.RecordGameResults(ctx, gameID, g.Players, scores, winner); err != nil {
					gs.Logger.WithError(err).WithField("game", gameID).Error("failed to persist game results")
				}
			}
			time.AfterFunc(endedGameRetention, func() {
				gs.GameStore.DeleteGame(gameID)
			})
		}()
	}
}
