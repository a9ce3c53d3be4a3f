// internal/store/store_test.go
package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stores under test, by constructor, so every case runs against both
// implementations.
func testStores(t *testing.T) map[string]DocumentStore {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return map[string]DocumentStore{
		"memory": NewMemoryStore(),
		"redis":  NewRedisStoreWithClient(client),
	}
}

func TestGetSetDelete(t *testing.T) {
	for name, s := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := s.Get(ctx, "rooms/r1/state")
			require.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, s.Set(ctx, "rooms/r1/state", map[string]any{"phase": "playing"}))

			data, err := s.Get(ctx, "rooms/r1/state")
			require.NoError(t, err)
			var doc map[string]any
			require.NoError(t, json.Unmarshal(data, &doc))
			assert.Equal(t, "playing", doc["phase"])

			require.NoError(t, s.Delete(ctx, "rooms/r1/state"))
			_, err = s.Get(ctx, "rooms/r1/state")
			assert.ErrorIs(t, err, ErrNotFound)

			// Deleting a missing path is a no-op.
			assert.NoError(t, s.Delete(ctx, "rooms/none"))
		})
	}
}

func TestPathsAreIndependent(t *testing.T) {
	for name, s := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, s.Set(ctx, "rooms/r1/players/a/view", map[string]int{"handSize": 4}))
			require.NoError(t, s.Set(ctx, "rooms/r1/players/b/view", map[string]int{"handSize": 3}))

			data, err := s.Get(ctx, "rooms/r1/players/a/view")
			require.NoError(t, err)
			var doc map[string]int
			require.NoError(t, json.Unmarshal(data, &doc))
			assert.Equal(t, 4, doc["handSize"])
		})
	}
}

func TestAtomicUpdateReadModifyWrite(t *testing.T) {
	for name, s := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			// First update sees no document.
			err := s.AtomicUpdate(ctx, "counters/c1", func(current []byte) (any, error) {
				require.Nil(t, current)
				return map[string]int{"n": 1}, nil
			})
			require.NoError(t, err)

			// Second update sees the committed value.
			err = s.AtomicUpdate(ctx, "counters/c1", func(current []byte) (any, error) {
				var doc map[string]int
				if err := json.Unmarshal(current, &doc); err != nil {
					return nil, err
				}
				doc["n"]++
				return doc, nil
			})
			require.NoError(t, err)

			data, err := s.Get(ctx, "counters/c1")
			require.NoError(t, err)
			var doc map[string]int
			require.NoError(t, json.Unmarshal(data, &doc))
			assert.Equal(t, 2, doc["n"])
		})
	}
}

func TestSubscribeReceivesWrites(t *testing.T) {
	for name, s := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			ch, cancel, err := s.Subscribe(ctx, "rooms/r2/state")
			require.NoError(t, err)
			defer cancel()

			require.NoError(t, s.Set(ctx, "rooms/r2/state", map[string]string{"phase": "memorize"}))

			select {
			case data := <-ch:
				var doc map[string]string
				require.NoError(t, json.Unmarshal(data, &doc))
				assert.Equal(t, "memorize", doc["phase"])
			case <-time.After(2 * time.Second):
				t.Fatal("subscriber never received the write")
			}

			// Writes to other paths are not delivered.
			require.NoError(t, s.Set(ctx, "rooms/other/state", map[string]string{"phase": "playing"}))
			select {
			case data := <-ch:
				var doc map[string]string
				require.NoError(t, json.Unmarshal(data, &doc))
				assert.NotEqual(t, "playing", doc["phase"])
			case <-time.After(100 * time.Millisecond):
			}
		})
	}
}

func TestSubscribeCancelStopsDelivery(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	ch, cancel, err := s.Subscribe(ctx, "rooms/r3/state")
	require.NoError(t, err)
	cancel()

	_, open := <-ch
	assert.False(t, open, "cancel closes the channel")

	// Writing after cancel must not panic or block.
	assert.NoError(t, s.Set(ctx, "rooms/r3/state", map[string]int{"x": 1}))
}
