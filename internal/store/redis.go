// internal/store/redis.go
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	docKeyPrefix  = "doc:"
	docChanPrefix = "docch:"

	// casAttempts bounds the optimistic retry loop in AtomicUpdate.
	casAttempts = 16
)

// RedisStore backs the DocumentStore with Redis: documents are plain JSON
// strings and write notifications ride pub/sub on a per-path channel.
// AtomicUpdate uses WATCH so a concurrent write aborts the transaction and
// the update is retried against the fresh document.
type RedisStore struct {
	client *redis.Client
	log    logrus.FieldLogger
}

// NewRedisStore connects using REDIS_URL or REDIS_ADDR, matching how the
// rest of the service reaches Redis.
func NewRedisStore(ctx context.Context) (*RedisStore, error) {
	var opts *redis.Options
	if url := os.Getenv("REDIS_URL"); url != "" {
		parsed, err := redis.ParseURL(url)
		if err != nil {
			return nil, fmt.Errorf("parse REDIS_URL: %w", err)
		}
		opts = parsed
	} else {
		addr := os.Getenv("REDIS_ADDR")
		if addr == "" {
			addr = "localhost:6379"
		}
		opts = &redis.Options{Addr: addr, Password: os.Getenv("REDIS_PASSWORD")}
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewRedisStoreWithClient(client), nil
}

// NewRedisStoreWithClient wraps an existing client; tests use this with
// miniredis.
func NewRedisStoreWithClient(client *redis.Client) *RedisStore {
	return &RedisStore{
		client: client,
		log:    logrus.StandardLogger().WithField("component", "docstore"),
	}
}

func (s *RedisStore) Get(ctx context.Context, path string) ([]byte, error) {
	data, err := s.client.Get(ctx, docKeyPrefix+path).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (s *RedisStore) Set(ctx context.Context, path string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, docKeyPrefix+path, data, 0).Err(); err != nil {
		return err
	}
	return s.client.Publish(ctx, docChanPrefix+path, data).Err()
}

func (s *RedisStore) Delete(ctx context.Context, path string) error {
	return s.client.Del(ctx, docKeyPrefix+path).Err()
}

func (s *RedisStore) AtomicUpdate(ctx context.Context, path string, update func(current []byte) (any, error)) error {
	key := docKeyPrefix + path

	var committed []byte
	txn := func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			current = nil
		} else if err != nil {
			return err
		}
		next, err := update(current)
		if err != nil {
			return err
		}
		data, err := json.Marshal(next)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			return nil
		})
		if err == nil {
			committed = data
		}
		return err
	}

	for i := 0; i < casAttempts; i++ {
		err := s.client.Watch(ctx, txn, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue // lost the race, retry against the fresh document
		}
		if err != nil {
			return err
		}
		return s.client.Publish(ctx, docChanPrefix+path, committed).Err()
	}
	return fmt.Errorf("atomic update on %q: too much contention", path)
}

func (s *RedisStore) Subscribe(ctx context.Context, path string) (<-chan []byte, func(), error) {
	sub := s.client.Subscribe(ctx, docChanPrefix+path)
	// Force the subscription onto the wire before returning so callers do
	// not miss writes issued right after Subscribe.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, err
	}

	out := make(chan []byte, 16)
	go func() {
		defer close(out)
		for msg := range sub.Channel() {
			select {
			case out <- []byte(msg.Payload):
			default:
				s.log.WithField("path", path).Warn("subscriber lagging, dropping update")
			}
		}
	}()
	cancel := func() {
		if err := sub.Close(); err != nil {
			s.log.WithError(err).Warn("subscription close failed")
		}
	}
	return out, cancel, nil
}
