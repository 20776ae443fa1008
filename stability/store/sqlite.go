package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// SQLiteStore is a SQLite implementation of Store[T].
//
// It keeps snapshots in a single-file database, which makes it the natural
// choice for a command-line tool that should still answer with the last
// known orders after a restart while the endpoint is down.
//
// Features:
//   - Single file database (e.g., "./orders.db") or ":memory:"
//   - Auto-migration on first use
//   - WAL mode so readers never block the writer
//
// Schema:
//   - order_snapshots(snapshot_key, seq, payload, saved_at), unique on (snapshot_key, seq)
type SQLiteStore[T any] struct {
	sqlSnapshots[T]
	path string
}

// NewSQLiteStore opens (or creates) the database at path.
//
// Example:
//
//	st, err := store.NewSQLiteStore[[]stability.Order]("./orders.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer st.Close()
func NewSQLiteStore[T any](path string) (*SQLiteStore[T], error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite connection: %w", err)
	}

	// SQLite supports one writer at a time; a single connection also keeps
	// ":memory:" databases alive for the life of the store.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	ctx := context.Background()
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	st := &SQLiteStore[T]{
		sqlSnapshots: sqlSnapshots[T]{db: db, now: time.Now, conflict: isSQLiteConflict},
		path:         path,
	}
	if err := st.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return st, nil
}

func (s *SQLiteStore[T]) createTables(ctx context.Context) error {
	table := `
		CREATE TABLE IF NOT EXISTS order_snapshots (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			snapshot_key TEXT NOT NULL,
			seq INTEGER NOT NULL,
			payload TEXT NOT NULL,
			saved_at INTEGER NOT NULL,
			UNIQUE(snapshot_key, seq)
		)
	`
	if _, err := s.db.ExecContext(ctx, table); err != nil {
		return fmt.Errorf("failed to create order_snapshots table: %w", err)
	}
	return nil
}

// isSQLiteConflict matches a duplicate (snapshot_key, seq) and a writer lock
// that outlasted busy_timeout.
func isSQLiteConflict(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch code := se.Code(); {
	case code == sqlite3.SQLITE_CONSTRAINT_UNIQUE:
		return true
	case code == sqlite3.SQLITE_CONSTRAINT:
		return strings.Contains(se.Error(), "UNIQUE")
	case code&0xff == sqlite3.SQLITE_BUSY:
		return true
	}
	return false
}

// Path returns the database location given to NewSQLiteStore.
func (s *SQLiteStore[T]) Path() string {
	return s.path
}
