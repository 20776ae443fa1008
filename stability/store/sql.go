package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"
)

// sqlSnapshots holds the queries shared by the SQLite and MySQL stores. Both
// drivers use "?" placeholders and both accept INSERT ... SELECT from the
// target table, so only the DDL differs between them.
type sqlSnapshots[T any] struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
	now    func() time.Time

	// conflict reports whether a failed Save lost a race for the next seq
	// and may simply be repeated.
	conflict func(error) bool
}

// saveAttempts bounds how often Save repeats after losing a seq race.
const saveAttempts = 3

func (s *sqlSnapshots[T]) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

// Save appends value as the newest snapshot of key.
//
// The next Seq is computed inside the INSERT so that a single statement both
// reads and writes it. Writers in other processes can still pick the same
// Seq; the loser hits the unique key (or a deadlock) and tries again.
func (s *sqlSnapshots[T]) Save(ctx context.Context, key string, value T) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if err := s.checkOpen(); err != nil {
		return err
	}

	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	query := `
		INSERT INTO order_snapshots (snapshot_key, seq, payload, saved_at)
		SELECT ?, COALESCE(MAX(seq), 0) + 1, ?, ?
		FROM order_snapshots
		WHERE snapshot_key = ?
	`
	err = retryConflicts(ctx, saveAttempts, s.conflict, func() error {
		_, err := s.db.ExecContext(ctx, query, key, string(payload), s.now().UnixNano(), key)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

// retryConflicts runs op up to attempts times, repeating only while conflict
// reports the failure as a lost race and ctx is still live.
func retryConflicts(ctx context.Context, attempts int, conflict func(error) bool, op func() error) error {
	var err error
	for i := 0; i < attempts; i++ {
		err = op()
		if err == nil || conflict == nil || !conflict(err) || ctx.Err() != nil {
			return err
		}
	}
	return err
}

// LoadLatest returns the newest snapshot of key.
func (s *sqlSnapshots[T]) LoadLatest(ctx context.Context, key string) (Snapshot[T], error) {
	if err := s.checkOpen(); err != nil {
		return Snapshot[T]{}, err
	}

	query := `
		SELECT seq, payload, saved_at
		FROM order_snapshots
		WHERE snapshot_key = ?
		ORDER BY seq DESC
		LIMIT 1
	`
	row := s.db.QueryRowContext(ctx, query, key)
	snap, err := scanSnapshot[T](key, row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot[T]{}, ErrNotFound
	}
	if err != nil {
		return Snapshot[T]{}, fmt.Errorf("failed to load latest snapshot: %w", err)
	}
	return snap, nil
}

// History returns up to limit snapshots of key, newest first.
func (s *sqlSnapshots[T]) History(ctx context.Context, key string, limit int) ([]Snapshot[T], error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	query := `
		SELECT seq, payload, saved_at
		FROM order_snapshots
		WHERE snapshot_key = ?
		ORDER BY seq DESC
	`
	args := []interface{}{key}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshot history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	result := make([]Snapshot[T], 0)
	for rows.Next() {
		snap, err := scanSnapshot[T](key, rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		result = append(result, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate snapshot history: %w", err)
	}
	return result, nil
}

// Prune deletes all but the newest keep snapshots of key.
//
// The cutoff is read first because MySQL rejects a DELETE whose subquery
// selects from the table being deleted from.
func (s *sqlSnapshots[T]) Prune(ctx context.Context, key string, keep int) error {
	if err := validateKeep(keep); err != nil {
		return err
	}
	if err := s.checkOpen(); err != nil {
		return err
	}

	var maxSeq sql.NullInt64
	if err := s.db.QueryRowContext(ctx,
		"SELECT MAX(seq) FROM order_snapshots WHERE snapshot_key = ?", key,
	).Scan(&maxSeq); err != nil {
		return fmt.Errorf("failed to read snapshot cutoff: %w", err)
	}
	if !maxSeq.Valid {
		return nil
	}

	cutoff := maxSeq.Int64 - int64(keep)
	if cutoff < 1 {
		return nil
	}
	if _, err := s.db.ExecContext(ctx,
		"DELETE FROM order_snapshots WHERE snapshot_key = ? AND seq <= ?", key, cutoff,
	); err != nil {
		return fmt.Errorf("failed to prune snapshots: %w", err)
	}
	return nil
}

// Close closes the database. Double-close is a no-op.
func (s *sqlSnapshots[T]) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// Ping verifies the database connection is alive.
func (s *sqlSnapshots[T]) Ping(ctx context.Context) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	return s.db.PingContext(ctx)
}

func scanSnapshot[T any](key string, scan func(dest ...interface{}) error) (Snapshot[T], error) {
	var (
		seq     int64
		payload []byte
		savedAt int64
	)
	if err := scan(&seq, &payload, &savedAt); err != nil {
		return Snapshot[T]{}, err
	}

	var value T
	if err := json.Unmarshal(payload, &value); err != nil {
		return Snapshot[T]{}, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return Snapshot[T]{
		Key:     key,
		Seq:     seq,
		Value:   value,
		SavedAt: time.Unix(0, savedAt),
	}, nil
}
