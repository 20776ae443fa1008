package store

import (
	"context"
	"path/filepath"
	"testing"
)

func TestSQLiteStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orders.db")
	ctx := context.Background()

	st, err := NewSQLiteStore[[]int](path)
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	if st.Path() != path {
		t.Errorf("Path() = %q, want %q", st.Path(), path)
	}
	if err := st.Save(ctx, "orders", []int{1, 2, 3}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	reopened, err := NewSQLiteStore[[]int](path)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer reopened.Close()

	snap, err := reopened.LoadLatest(ctx, "orders")
	if err != nil {
		t.Fatalf("LoadLatest() error = %v", err)
	}
	if len(snap.Value) != 3 || snap.Value[2] != 3 {
		t.Errorf("Value = %v, want [1 2 3]", snap.Value)
	}
}

func TestSQLiteStore_InMemory(t *testing.T) {
	st, err := NewSQLiteStore[string](":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore(:memory:) error = %v", err)
	}
	defer st.Close()

	ctx := context.Background()
	if err := st.Ping(ctx); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}
	if err := st.Save(ctx, "k", "v"); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	snap, err := st.LoadLatest(ctx, "k")
	if err != nil {
		t.Fatalf("LoadLatest() error = %v", err)
	}
	if snap.Value != "v" {
		t.Errorf("Value = %q, want %q", snap.Value, "v")
	}
}
