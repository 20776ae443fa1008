package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// MemStore is an in-memory implementation of Store[T].
//
// Values are deep-copied through JSON on save and load so callers can never
// mutate stored history by accident; T must therefore be JSON-serializable,
// exactly as for the SQL stores.
//
// MemStore is safe for concurrent use. Data is lost when the process exits.
type MemStore[T any] struct {
	mu        sync.RWMutex
	snapshots map[string][]memRecord // key -> snapshots in Seq order
	closed    bool
	now       func() time.Time
}

type memRecord struct {
	seq     int64
	payload []byte
	savedAt time.Time
}

// NewMemStore creates an empty in-memory store.
//
// Example:
//
//	st := store.NewMemStore[[]stability.Order]()
//	fetcher, err := stability.NewReliableFetcher(url, stability.WithSnapshotStore(st))
func NewMemStore[T any]() *MemStore[T] {
	return &MemStore[T]{
		snapshots: make(map[string][]memRecord),
		now:       time.Now,
	}
}

// Save appends value as the newest snapshot of key.
func (m *MemStore[T]) Save(_ context.Context, key string, value T) error {
	if err := validateKey(key); err != nil {
		return err
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}

	records := m.snapshots[key]
	var seq int64 = 1
	if n := len(records); n > 0 {
		seq = records[n-1].seq + 1
	}
	m.snapshots[key] = append(records, memRecord{seq: seq, payload: payload, savedAt: m.now()})
	return nil
}

// LoadLatest returns the newest snapshot of key.
func (m *MemStore[T]) LoadLatest(_ context.Context, key string) (Snapshot[T], error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return Snapshot[T]{}, ErrClosed
	}

	records := m.snapshots[key]
	if len(records) == 0 {
		return Snapshot[T]{}, ErrNotFound
	}
	return decodeRecord[T](key, records[len(records)-1])
}

// History returns up to limit snapshots of key, newest first.
func (m *MemStore[T]) History(_ context.Context, key string, limit int) ([]Snapshot[T], error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrClosed
	}

	records := m.snapshots[key]
	result := make([]Snapshot[T], 0, len(records))
	for i := len(records) - 1; i >= 0; i-- {
		if limit > 0 && len(result) == limit {
			break
		}
		snap, err := decodeRecord[T](key, records[i])
		if err != nil {
			return nil, err
		}
		result = append(result, snap)
	}
	return result, nil
}

// Prune keeps only the newest keep snapshots of key. Seq numbering continues
// from the highest surviving value; pruning everything restarts it at 1.
func (m *MemStore[T]) Prune(_ context.Context, key string, keep int) error {
	if err := validateKeep(keep); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}

	records := m.snapshots[key]
	if len(records) <= keep {
		return nil
	}
	if keep == 0 {
		delete(m.snapshots, key)
		return nil
	}
	m.snapshots[key] = append([]memRecord(nil), records[len(records)-keep:]...)
	return nil
}

// Close marks the store closed and drops its data.
func (m *MemStore[T]) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.snapshots = nil
	return nil
}

func decodeRecord[T any](key string, rec memRecord) (Snapshot[T], error) {
	var value T
	if err := json.Unmarshal(rec.payload, &value); err != nil {
		return Snapshot[T]{}, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return Snapshot[T]{Key: key, Seq: rec.seq, Value: value, SavedAt: rec.savedAt}, nil
}
