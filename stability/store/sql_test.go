package store

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
)

func TestRetryConflicts(t *testing.T) {
	errLost := errors.New("lost the race")
	isLost := func(err error) bool { return errors.Is(err, errLost) }

	t.Run("repeats lost races until success", func(t *testing.T) {
		calls := 0
		err := retryConflicts(context.Background(), saveAttempts, isLost, func() error {
			calls++
			if calls < saveAttempts {
				return errLost
			}
			return nil
		})
		if err != nil {
			t.Errorf("retryConflicts() error = %v, want nil", err)
		}
		if calls != saveAttempts {
			t.Errorf("calls = %d, want %d", calls, saveAttempts)
		}
	})

	t.Run("gives up after the last attempt", func(t *testing.T) {
		calls := 0
		err := retryConflicts(context.Background(), saveAttempts, isLost, func() error {
			calls++
			return errLost
		})
		if !errors.Is(err, errLost) {
			t.Errorf("retryConflicts() error = %v, want errLost", err)
		}
		if calls != saveAttempts {
			t.Errorf("calls = %d, want %d", calls, saveAttempts)
		}
	})

	t.Run("does not repeat other errors", func(t *testing.T) {
		calls := 0
		boom := errors.New("boom")
		err := retryConflicts(context.Background(), saveAttempts, isLost, func() error {
			calls++
			return boom
		})
		if !errors.Is(err, boom) || calls != 1 {
			t.Errorf("retryConflicts() = %v after %d calls, want boom after 1", err, calls)
		}
	})

	t.Run("stops when the context ends", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		calls := 0
		_ = retryConflicts(ctx, saveAttempts, isLost, func() error {
			calls++
			return errLost
		})
		if calls != 1 {
			t.Errorf("calls = %d, want 1", calls)
		}
	})

	t.Run("nil classifier never repeats", func(t *testing.T) {
		calls := 0
		_ = retryConflicts(context.Background(), saveAttempts, nil, func() error {
			calls++
			return errLost
		})
		if calls != 1 {
			t.Errorf("calls = %d, want 1", calls)
		}
	})
}

func TestIsSQLiteConflict(t *testing.T) {
	ctx := context.Background()
	st, err := NewSQLiteStore[[]int](":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	defer st.Close()

	if err := st.Save(ctx, "orders", []int{1}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	// A second writer that read the same MAX(seq) inserts the same seq.
	_, dupErr := st.db.ExecContext(ctx,
		"INSERT INTO order_snapshots (snapshot_key, seq, payload, saved_at) VALUES (?, 1, '[]', 0)", "orders")
	if dupErr == nil {
		t.Fatal("duplicate insert error = nil, want unique constraint error")
	}
	if !isSQLiteConflict(dupErr) {
		t.Errorf("isSQLiteConflict(%v) = false, want true", dupErr)
	}
	if !isSQLiteConflict(fmt.Errorf("failed to save snapshot: %w", dupErr)) {
		t.Error("isSQLiteConflict(wrapped) = false, want true")
	}

	_, badErr := st.db.ExecContext(ctx, "INSERT INTO no_such_table VALUES (1)")
	if badErr == nil || isSQLiteConflict(badErr) {
		t.Errorf("isSQLiteConflict(%v) = true, want false", badErr)
	}
	if isSQLiteConflict(errors.New("UNIQUE constraint failed")) {
		t.Error("isSQLiteConflict(plain error) = true, want false")
	}
}

func TestIsMySQLConflict(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"duplicate entry", &mysql.MySQLError{Number: mysqlErrDupEntry, Message: "Duplicate entry 'orders-2' for key 'unique_key_seq'"}, true},
		{"deadlock", &mysql.MySQLError{Number: mysqlErrDeadlock, Message: "Deadlock found when trying to get lock"}, true},
		{"wrapped duplicate", fmt.Errorf("exec: %w", &mysql.MySQLError{Number: mysqlErrDupEntry}), true},
		{"bad null", &mysql.MySQLError{Number: 1048, Message: "Column 'payload' cannot be null"}, false},
		{"other error", errors.New("connection refused"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isMySQLConflict(tt.err); got != tt.want {
				t.Errorf("isMySQLConflict(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
