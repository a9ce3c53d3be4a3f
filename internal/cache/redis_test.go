// internal/cache/redis_test.go
package cache

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger(t *testing.T) (*ActionLogger, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewActionLogger(client), client
}

func TestPublishAppendsToQueue(t *testing.T) {
	logger, client := newTestLogger(t)
	ctx := context.Background()

	gameID := uuid.New()
	actor := uuid.New()
	rec := ActionRecord{
		GameID:      gameID,
		ActionIndex: 1,
		ActorID:     actor,
		ActionType:  "action_draw",
		Payload:     map[string]any{"source": "deck"},
		Timestamp:   time.Now().UnixMilli(),
	}
	require.NoError(t, logger.Publish(rec))

	n, err := logger.Pending(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	raw, err := client.LIndex(ctx, DefaultQueueName, 0).Result()
	require.NoError(t, err)
	var got ActionRecord
	require.NoError(t, json.Unmarshal([]byte(raw), &got))
	assert.Equal(t, gameID, got.GameID)
	assert.Equal(t, "action_draw", got.ActionType)
	assert.Equal(t, "deck", got.Payload["source"])
}

func TestPublishPreservesOrder(t *testing.T) {
	logger, client := newTestLogger(t)
	ctx := context.Background()

	gameID := uuid.New()
	for i := 1; i <= 3; i++ {
		require.NoError(t, logger.Publish(ActionRecord{
			GameID:      gameID,
			ActionIndex: i,
			ActionType:  "action_draw",
			Timestamp:   time.Now().UnixMilli(),
		}))
	}

	items, err := client.LRange(ctx, DefaultQueueName, 0, -1).Result()
	require.NoError(t, err)
	require.Len(t, items, 3)
	for i, raw := range items {
		var got ActionRecord
		require.NoError(t, json.Unmarshal([]byte(raw), &got))
		assert.Equal(t, i+1, got.ActionIndex, "consumer sees actions in submit order")
	}
}
