// internal/database/game.go
package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/kabulhq/kabul/internal/models"
)

// RecordGameResults persists the final outcome of a finished game: the game
// row itself plus one result row per player. Both writes happen in a single
// transaction so a partially recorded game can never be observed.
func RecordGameResults(ctx context.Context, gameID uuid.UUID, players []*models.Player, finalScores map[uuid.UUID]int, winnerID uuid.UUID) error {
	if DB == nil {
		return fmt.Errorf("database not connected")
	}
	err := pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		upsertGame := `
			INSERT INTO games (id, status)
			VALUES ($1, 'completed')
			ON CONFLICT (id) DO UPDATE SET status = 'completed'
		`
		if _, e := tx.Exec(ctx, upsertGame, gameID); e != nil {
			return e
		}

		for _, pl := range players {
			q := `
				INSERT INTO game_results (game_id, player_id, score, did_win)
				VALUES ($1, $2, $3, $4)
				ON CONFLICT (game_id, player_id)
				DO UPDATE SET score=$3, did_win=$4
			`
			if _, e := tx.Exec(ctx, q, gameID, pl.ID, finalScores[pl.ID], pl.ID == winnerID); e != nil {
				return e
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("tx upsert game or results: %w", err)
	}
	return nil
}
