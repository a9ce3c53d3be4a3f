// internal/cache/redis.go
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultQueueName is the Redis list (queue) name for game action logs.
var DefaultQueueName = "kabul_actions"

// ActionRecord holds the ordered per-game action log entry consumed by the
// history service.
type ActionRecord struct {
	GameID      uuid.UUID      `json:"game_id"`
	ActionIndex int            `json:"action_index"`
	ActorID     uuid.UUID      `json:"actor_id"`
	ActionType  string         `json:"action_type"`
	Payload     map[string]any `json:"payload,omitempty"`
	Timestamp   int64          `json:"timestamp"`
}

// ActionLogger pushes records onto a Redis list. It is safe for concurrent
// use; each Publish is a single RPush.
type ActionLogger struct {
	client *redis.Client
	queue  string
}

// ConnectActionLogger builds a logger from environment variables:
//   - REDIS_ADDR (default "localhost:6379")
//   - REDIS_DB (optional, default 0)
//   - HISTORY_QUEUE_NAME (default DefaultQueueName)
func ConnectActionLogger() (*ActionLogger, error) {
	addr := getEnv("REDIS_ADDR", "localhost:6379")
	dbIdx := getEnvInt("REDIS_DB", 0)

	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   dbIdx,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return NewActionLogger(client), nil
}

// NewActionLogger wraps an existing client; tests use this with miniredis.
func NewActionLogger(client *redis.Client) *ActionLogger {
	return &ActionLogger{
		client: client,
		queue:  getEnv("HISTORY_QUEUE_NAME", DefaultQueueName),
	}
}

// Publish serializes the record to JSON and pushes it onto the queue.
func (l *ActionLogger) Publish(rec ActionRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal ActionRecord: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := l.client.RPush(ctx, l.queue, data).Err(); err != nil {
		return fmt.Errorf("failed to RPush to Redis list '%s': %w", l.queue, err)
	}
	return nil
}

// Pending reports the queue depth, mostly for health checks and tests.
func (l *ActionLogger) Pending(ctx context.Context) (int64, error) {
	return l.client.LLen(ctx, l.queue).Result()
}

// getEnv is a helper to read an environment variable or return a default value.
func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

// getEnvInt is a helper to parse an environment variable as integer, else a default value.
func getEnvInt(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
