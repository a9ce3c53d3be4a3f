// internal/store/store.go
package store

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
)

// ErrNotFound is returned by Get when no document exists at the path.
var ErrNotFound = errors.New("store: document not found")

// DocumentStore is a shared JSON document tree addressed by slash-separated
// paths. Writers replace whole documents; readers either poll with Get or
// watch a path with Subscribe. AtomicUpdate gives read-modify-write callers
// a compare-and-set loop so concurrent writers cannot clobber each other.
type DocumentStore interface {
	// Get returns the raw JSON document at path, or ErrNotFound.
	Get(ctx context.Context, path string) ([]byte, error)
	// Set marshals value and replaces the document at path.
	Set(ctx context.Context, path string, value any) error
	// Delete removes the document at path. Deleting a missing path is a no-op.
	Delete(ctx context.Context, path string) error
	// AtomicUpdate applies update to the current document (nil when absent)
	// and commits the result only if the document was not modified in
	// between; otherwise it retries with the fresh value.
	AtomicUpdate(ctx context.Context, path string, update func(current []byte) (any, error)) error
	// Subscribe delivers the document each time path is written. The
	// returned cancel func releases the subscription and closes the channel.
	Subscribe(ctx context.Context, path string) (<-chan []byte, func(), error)
}

// MemoryStore is the in-process DocumentStore used by tests and single-node
// runs. Notifications are best-effort: a subscriber that cannot keep up
// drops intermediate versions, never blocks a writer.
type MemoryStore struct {
	mu   sync.Mutex
	docs map[string][]byte
	subs map[string]map[int]chan []byte
	next int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs: make(map[string][]byte),
		subs: make(map[string]map[int]chan []byte),
	}
}

func (m *MemoryStore) Get(_ context.Context, path string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[path]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(doc))
	copy(out, doc)
	return out, nil
}

func (m *MemoryStore) Set(_ context.Context, path string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[path] = data
	m.notifyLocked(path, data)
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.docs, path)
	return nil
}

func (m *MemoryStore) AtomicUpdate(_ context.Context, path string, update func(current []byte) (any, error)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	next, err := update(m.docs[path])
	if err != nil {
		return err
	}
	data, err := json.Marshal(next)
	if err != nil {
		return err
	}
	m.docs[path] = data
	m.notifyLocked(path, data)
	return nil
}

func (m *MemoryStore) Subscribe(_ context.Context, path string) (<-chan []byte, func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.next
	m.next++
	ch := make(chan []byte, 16)
	if m.subs[path] == nil {
		m.subs[path] = make(map[int]chan []byte)
	}
	m.subs[path][id] = ch

	cancel := func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if sub, ok := m.subs[path][id]; ok {
			delete(m.subs[path], id)
			close(sub)
		}
	}
	return ch, cancel, nil
}

// notifyLocked fans a new version out to subscribers. Assumes lock is held.
func (m *MemoryStore) notifyLocked(path string, data []byte) {
	for _, ch := range m.subs[path] {
		out := make([]byte, len(data))
		copy(out, data)
		select {
		case ch <- out:
		default:
		}
	}
}
