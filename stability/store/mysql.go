package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
)

// MySQL server error numbers that mean a concurrent writer won the seq.
const (
	mysqlErrDupEntry = 1062
	mysqlErrDeadlock = 1213
)

// MySQLStore is a MySQL/MariaDB implementation of Store[T].
//
// Use it when several fetcher processes should share one last-known-good
// history. Payloads are stored in a JSON column.
//
// Security Warning:
//
//	NEVER hardcode credentials. Read the DSN from the environment:
//	    st, err := store.NewMySQLStore[[]stability.Order](os.Getenv("MYSQL_DSN"))
type MySQLStore[T any] struct {
	sqlSnapshots[T]
}

// NewMySQLStore connects with dsn, verifies the connection, and creates the
// schema if needed.
//
// DSN format:
//
//	[username[:password]@][protocol[(address)]]/dbname[?param1=value1&...]
//
// Example:
//
//	user:password@tcp(localhost:3306)/orders
func NewMySQLStore[T any](dsn string) (*MySQLStore[T], error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL connection: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping MySQL: %w", err)
	}

	st := &MySQLStore[T]{
		sqlSnapshots: sqlSnapshots[T]{db: db, now: time.Now, conflict: isMySQLConflict},
	}
	if err := st.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return st, nil
}

func (m *MySQLStore[T]) createTables(ctx context.Context) error {
	table := `
		CREATE TABLE IF NOT EXISTS order_snapshots (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			snapshot_key VARCHAR(512) NOT NULL,
			seq BIGINT NOT NULL,
			payload JSON NOT NULL,
			saved_at BIGINT NOT NULL,
			UNIQUE KEY unique_key_seq (snapshot_key, seq)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci
	`
	if _, err := m.db.ExecContext(ctx, table); err != nil {
		return fmt.Errorf("failed to create order_snapshots table: %w", err)
	}
	return nil
}

// Stats returns database connection pool statistics.
func (m *MySQLStore[T]) Stats() sql.DBStats {
	return m.db.Stats()
}

func isMySQLConflict(err error) bool {
	var me *mysql.MySQLError
	if !errors.As(err, &me) {
		return false
	}
	return me.Number == mysqlErrDupEntry || me.Number == mysqlErrDeadlock
}
