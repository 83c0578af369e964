package cache

import (
	"context"
	"testing"
	"time"
)

func TestMemory_SetGet(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := NewMemory()

	if err := m.Set(ctx, "k", "v", time.Minute); err != nil {
		t.Fatalf("Set error: %v", err)
	}

	v, ok, err := m.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if !ok || v != "v" {
		t.Fatalf("got (%q, %v), want (\"v\", true)", v, ok)
	}
}

func TestMemory_Expiry(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := NewMemory()

	if err := m.Set(ctx, "k", "v", -time.Second); err != nil {
		t.Fatalf("Set error: %v", err)
	}

	if _, ok, _ := m.Get(ctx, "k"); ok {
		t.Fatalf("expected expired entry to be a miss")
	}
}

func TestMemory_Delete(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := NewMemory()

	if err := m.Set(ctx, "k", "v", time.Minute); err != nil {
		t.Fatalf("Set error: %v", err)
	}
	if err := m.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if _, ok, _ := m.Get(ctx, "k"); ok {
		t.Fatalf("expected deleted entry to be a miss")
	}

	// deleting again is fine
	if err := m.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete of absent key: %v", err)
	}
}
