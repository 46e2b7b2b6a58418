package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"shipflow/internal/kv/core"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(filepath.Join(t.TempDir(), "nested", "slots.db"))
	if err != nil {
		t.Fatalf("new sqlite store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStore_UpsertAndRead(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	if store.Driver() != core.DriverSQLite {
		t.Fatalf("expected sqlite driver")
	}
	if _, ok, err := store.GetItem(ctx, "currentBillingInfo"); err != nil || ok {
		t.Fatalf("expected missing slot, ok=%v err=%v", ok, err)
	}
	if err := store.SetItem(ctx, "currentBillingInfo", `{"a":1}`); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := store.SetItem(ctx, "currentBillingInfo", `{"a":2}`); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	v, ok, err := store.GetItem(ctx, "currentBillingInfo")
	if err != nil || !ok || v != `{"a":2}` {
		t.Fatalf("expected upserted value, got %q ok=%v err=%v", v, ok, err)
	}
	var count int
	if err := store.DB().QueryRow(`SELECT COUNT(*) FROM slots`).Scan(&count); err != nil || count != 1 {
		t.Fatalf("expected one row, got %d err=%v", count, err)
	}
	if err := store.RemoveItem(ctx, "currentBillingInfo"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, ok, _ := store.GetItem(ctx, "currentBillingInfo"); ok {
		t.Fatalf("expected slot removed")
	}
}

func TestStore_KeysEscapesLikeWildcards(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	for _, k := range []string{"form_instance", "formXinstance", "form_timestamp", "other"} {
		if err := store.SetItem(ctx, k, "v"); err != nil {
			t.Fatalf("set %s: %v", k, err)
		}
	}
	keys, err := store.Keys(ctx, "form_")
	if err != nil {
		t.Fatalf("keys: %v", err)
	}
	if len(keys) != 2 || keys[0] != "form_instance" || keys[1] != "form_timestamp" {
		t.Fatalf("expected literal underscore match, got %v", keys)
	}
	all, _ := store.Keys(ctx, "")
	if len(all) != 4 {
		t.Fatalf("expected all keys, got %v", all)
	}
}

func TestStore_ReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "slots.db")
	first, err := New(path)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := first.SetItem(ctx, "k", "v"); err != nil {
		t.Fatalf("set: %v", err)
	}
	_ = first.Close()
	second, err := New(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = second.Close() }()
	if v, ok, _ := second.GetItem(ctx, "k"); !ok || v != "v" {
		t.Fatalf("expected persisted value, got %q", v)
	}
	if second.Path() != path {
		t.Fatalf("unexpected path %s", second.Path())
	}
}

func TestStore_InvalidKeyAndMemory(t *testing.T) {
	store, err := New(":memory:")
	if err != nil {
		t.Fatalf("memory db: %v", err)
	}
	defer func() { _ = store.Close() }()
	if err := store.SetItem(context.Background(), "", "v"); !errors.Is(err, core.ErrInvalidKey) {
		t.Fatalf("expected invalid key error, got %v", err)
	}
}
