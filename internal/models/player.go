// internal/models/player.go
package models

import (
	"github.com/coder/websocket"
	"github.com/google/uuid"
)

// Player is one seated participant. The hand holds exactly 4 slots during
// normal play; a failed slap penalty may transiently push it to 5 or more
// until the next re-index settles it.
type Player struct {
	ID             uuid.UUID       `json:"id"`
	Name           string          `json:"name"`
	Hand           []*Card         `json:"-"`
	Connected      bool            `json:"connected"`
	Conn           *websocket.Conn `json:"-"`
	HasCalledKabul bool            `json:"hasCalledKabul"`

	// FinalScore is set once, when the game ends.
	FinalScore *int `json:"finalScore,omitempty"`
}

// Seat describes one roster entry handed to the engine at game start.
// The room service owns the roster; the engine only consumes it.
type Seat struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}
