package game

import (
	"sync"

	"github.com/google/uuid"
)

// GameStore is the in-process registry of live rooms.
type GameStore struct {
	mu    sync.Mutex
	games map[uuid.UUID]*KabulGame
}

func NewGameStore() *GameStore {
	return &GameStore{
		games: make(map[uuid.UUID]*KabulGame),
	}
}

func (s *GameStore) AddGame(game *KabulGame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.games[game.ID] = game
}

func (s *GameStore) GetGame(id uuid.UUID) (*KabulGame, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, exists := s.games[id]
	return g, exists
}

func (s *GameStore) DeleteGame(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.games, id)
}

// GameIDs lists every registered room, for health and admin endpoints.
func (s *GameStore) GameIDs() []uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]uuid.UUID, 0, len(s.games))
	for id := range s.games {
		ids = append(ids, id)
	}
	return ids
}
