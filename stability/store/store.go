// Package store persists last-known-good snapshots of fetched data.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a key has no snapshots.
var ErrNotFound = errors.New("not found")

// ErrClosed is returned by any operation on a closed store.
var ErrClosed = errors.New("store is closed")

// ErrInvalidArgument is returned for a negative keep count or an empty key.
var ErrInvalidArgument = errors.New("invalid argument")

// Snapshot is one saved value of a key.
type Snapshot[T any] struct {
	// Key identifies the data source, typically the endpoint URL.
	Key string

	// Seq increases by one for every save of the same key, starting at 1.
	Seq int64

	// Value is the saved data.
	Value T

	// SavedAt is when the snapshot was written.
	SavedAt time.Time
}

// Store keeps an append-only history of snapshots per key.
//
// A fetcher saves every successful response here and reads the latest
// snapshot back when the endpoint is unavailable and the caller supplied no
// fallback of its own.
//
// Implementations:
//   - MemStore: in-process, for tests and short-lived tools
//   - SQLiteStore: single-file database, survives restarts
//   - MySQLStore: shared database for several processes
//
// Type parameter T must be JSON-serializable for the SQL implementations.
type Store[T any] interface {
	// Save appends value as the newest snapshot of key.
	Save(ctx context.Context, key string, value T) error

	// LoadLatest returns the snapshot with the highest Seq for key,
	// or ErrNotFound.
	LoadLatest(ctx context.Context, key string) (Snapshot[T], error)

	// History returns up to limit snapshots of key, newest first.
	// limit <= 0 returns all of them. An unknown key yields an empty slice.
	History(ctx context.Context, key string, limit int) ([]Snapshot[T], error)

	// Prune deletes all but the newest keep snapshots of key.
	Prune(ctx context.Context, key string, keep int) error

	// Close releases resources. Closing twice is a no-op.
	Close() error
}

func validateKey(key string) error {
	if key == "" {
		return errors.Join(ErrInvalidArgument, errors.New("empty key"))
	}
	return nil
}

func validateKeep(keep int) error {
	if keep < 0 {
		return errors.Join(ErrInvalidArgument, errors.New("keep must be >= 0"))
	}
	return nil
}
