// internal/handlers/game.go
package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/kabulhq/kabul/internal/models"
)

// createGameRequest is the POST /game/create body. Seats are in turn order;
// a missing id gets one generated so ad-hoc clients can play immediately.
type createGameRequest struct {
	Ruleset string `json:"ruleset,omitempty"`
	Players []struct {
		ID   *uuid.UUID `json:"id,omitempty"`
		Name string     `json:"name"`
	} `json:"players"`
}

// ServeHTTP routes the non-WebSocket game endpoints.
func (gs *GameServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/game/create" && r.Method == http.MethodPost:
		gs.handleCreateGame(w, r)
	case strings.HasPrefix(r.URL.Path, "/game/state/") && r.Method == http.MethodGet:
		gs.handleGameState(w, r)
	default:
		http.Error(w, "unsupported route, use /game/ws/{id} for websockets", http.StatusNotFound)
	}
}

// handleCreateGame seats the requested roster and starts a game.
func (gs *GameServer) handleCreateGame(w http.ResponseWriter, r *http.Request) {
	var req createGameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	seats := make([]models.Seat, 0, len(req.Players))
	for _, p := range req.Players {
		id := uuid.New()
		if p.ID != nil {
			id = *p.ID
		}
		seats = append(seats, models.Seat{ID: id, Name: p.Name})
	}

	g, err := gs.CreateGame(seats, req.Ruleset)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"game_id": g.ID,
		"ruleset": g.Ruleset.Name,
		"seats":   seats,
	})
}

// handleGameState serves a masked snapshot over plain HTTP, mostly for
// spectators and debugging; the WebSocket and document store are the live
// paths. The requesting player id widens the view to their own hand.
//
// Route: GET /game/state/{game_id}?player={player_id}
func (gs *GameServer) handleGameState(w http.ResponseWriter, r *http.Request) {
	gameID, err := uuid.Parse(strings.TrimPrefix(r.URL.Path, "/game/state/"))
	if err != nil {
		http.Error(w, "invalid game id", http.StatusBadRequest)
		return
	}
	g, ok := gs.GameStore.GetGame(gameID)
	if !ok {
		http.Error(w, "game not found", http.StatusNotFound)
		return
	}

	viewer := uuid.Nil
	if p := r.URL.Query().Get("player"); p != "" {
		if viewer, err = uuid.Parse(p); err != nil {
			http.Error(w, "invalid player id", http.StatusBadRequest)
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(g.MaskedState(viewer))
}
