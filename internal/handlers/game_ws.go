// internal/handlers/game_ws.go
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/kabulhq/kabul/internal/game"
	"github.com/kabulhq/kabul/internal/middleware"
	"github.com/kabulhq/kabul/internal/models"
)

// wsWriteTimeout bounds a single outbound frame write.
const wsWriteTimeout = 3 * time.Second

// GameMessage is the incoming WebSocket message shape. Type carries one of
// the action constants; the index and target fields are optional and only
// read by the actions that need them.
type GameMessage struct {
	Type           string     `json:"type"`
	HandIndex      *int       `json:"handIndex,omitempty"`
	TargetPlayerID *uuid.UUID `json:"targetPlayerId,omitempty"`
	TargetIndex    *int       `json:"targetIndex,omitempty"`
}

// GameWSHandler upgrades the HTTP connection for a specific game instance,
// verifies the player holds a seat, attaches the connection and runs the
// read loop until the socket closes.
//
// Routes: /game/ws/{game_id}?player={player_id}
func GameWSHandler(logger *logrus.Logger, gs *GameServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pathParts := strings.Split(strings.TrimPrefix(r.URL.Path, "/game/ws/"), "/")
		if len(pathParts) < 1 || pathParts[0] == "" {
			http.Error(w, "missing game_id in path (/game/ws/{game_id})", http.StatusBadRequest)
			return
		}
		gameID, err := uuid.Parse(pathParts[0])
		if err != nil {
			http.Error(w, "invalid game_id format", http.StatusBadRequest)
			return
		}
		playerID, err := uuid.Parse(r.URL.Query().Get("player"))
		if err != nil {
			http.Error(w, "missing or invalid player query parameter", http.StatusBadRequest)
			return
		}

		g, ok := gs.GameStore.GetGame(gameID)
		if !ok {
			http.Error(w, "game not found", http.StatusNotFound)
			return
		}
		if g.Ended() {
			http.Error(w, "game has already ended", http.StatusGone)
			return
		}
		if !g.HasPlayer(playerID) {
			http.Error(w, "you are not seated in this game", http.StatusForbidden)
			return
		}

		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{"game"},
			OriginPatterns: []string{"*"}, // tighten for production deployments
		})
		if err != nil {
			logger.Warnf("WebSocket accept error for game %s: %v", gameID, err)
			return
		}
		defer c.Close(websocket.StatusInternalError, "internal server error")

		if c.Subprotocol() != "game" {
			c.Close(websocket.StatusPolicyViolation, "client must use the 'game' subprotocol")
			return
		}
		middleware.LogWebSocketConnect(logger, r.RemoteAddr, r.URL.Path)

		// Attaching also replays the player's masked view over their
		// private channel, which covers reconnects for free.
		g.HandleReconnect(playerID, c)

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		readErr := readGameMessages(ctx, c, g, playerID, logger)

		g.HandleDisconnect(playerID)
		middleware.LogWebSocketDisconnect(logger, r.RemoteAddr, r.URL.Path, readErr)
	}
}

// broadcastFunc builds the fan-out used for public events. The engine calls
// it with its lock held, so the connection snapshot and all writes happen on
// a separate goroutine.
func (gs *GameServer) broadcastFunc(g *game.KabulGame) func(ev game.GameEvent) {
	return func(ev game.GameEvent) {
		data, err := json.Marshal(ev)
		if err != nil {
			gs.Logger.Errorf("failed to marshal broadcast event (%s) for game %s: %v", ev.Type, g.ID, err)
			return
		}
		go func() {
			for playerID, conn := range g.ConnectionsSnapshot() {
				writeFrame(gs.Logger, conn, data, playerID, g.ID)
			}
		}()
	}
}

// broadcastToPlayerFunc builds the private-channel sender. Same locking
// contract as broadcastFunc.
func (gs *GameServer) broadcastToPlayerFunc(g *game.KabulGame) func(playerID uuid.UUID, ev game.GameEvent) {
	return func(playerID uuid.UUID, ev game.GameEvent) {
		data, err := json.Marshal(ev)
		if err != nil {
			gs.Logger.Errorf("failed to marshal private event (%s) for player %s in game %s: %v", ev.Type, playerID, g.ID, err)
			return
		}
		go func() {
			if conn := g.PlayerConnection(playerID); conn != nil {
				writeFrame(gs.Logger, conn, data, playerID, g.ID)
			}
		}()
	}
}

func writeFrame(logger *logrus.Logger, conn *websocket.Conn, data []byte, playerID, gameID uuid.UUID) {
	ctx, cancel := context.WithTimeout(context.Background(), wsWriteTimeout)
	defer cancel()
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		logger.Warnf("failed to write to player %s in game %s: %v", playerID, gameID, err)
	}
}

// readGameMessages pumps client frames into the action dispatcher until the
// connection drops or the context is cancelled. Action rejections surface to
// the client through the engine's private failure events, not here.
func readGameMessages(ctx context.Context, c *websocket.Conn, g *game.KabulGame, playerID uuid.UUID, logger *logrus.Logger) error {
	for {
		msgType, data, err := c.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
				return nil
			}
			return err
		}
		if msgType != websocket.MessageText {
			continue
		}

		var msg GameMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			logger.Warnf("invalid JSON from player %s in game %s: %v", playerID, g.ID, err)
			sendWsError(c, "invalid JSON format")
			continue
		}

		if msg.Type == "ping" {
			sendWsMessage(c, map[string]string{"type": "pong"})
			continue
		}

		action := models.GameAction{
			Type:           models.ActionType(msg.Type),
			HandIndex:      msg.HandIndex,
			TargetPlayerID: msg.TargetPlayerID,
			TargetIndex:    msg.TargetIndex,
		}
		logger.Debugf("action '%s' from player %s in game %s", msg.Type, playerID, g.ID)
		if _, err := g.HandleAction(playerID, action); err != nil {
			// Already reported over the private channel; log at debug so a
			// noisy client cannot flood the logs.
			logger.Debugf("action '%s' rejected for player %s: %v", msg.Type, playerID, err)
		}

		select {
		case <-ctx.Done():
			return nil
		default:
		}
	}
}

// sendWsMessage marshals and writes a frame with its own timeout.
func sendWsMessage(c *websocket.Conn, message any) {
	data, err := json.Marshal(message)
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), wsWriteTimeout)
	defer cancel()
	_ = c.Write(ctx, websocket.MessageText, data)
}

// sendWsError sends a structured error frame to the client.
func sendWsError(c *websocket.Conn, errorMsg string) {
	sendWsMessage(c, map[string]any{
		"type":    "error",
		"message": errorMsg,
	})
}
