package presence

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// newTestStore creates a Store connected to a local Redis instance and
// cleans up test keys before and after. Tests that call this helper require
// a running Redis on localhost:6379.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis not available: %v", err)
	}
	cleanup := func() {
		iter := client.Scan(ctx, 0, KeyPrefix+"test_*", 100).Iterator()
		for iter.Next(ctx) {
			client.Del(ctx, iter.Val())
		}
	}
	cleanup()
	client.Close()

	store, err := NewStore("localhost:6379", "test-server")
	if err != nil {
		t.Fatalf("NewStore() error: %v", err)
	}
	t.Cleanup(func() {
		iter := store.client.Scan(ctx, 0, KeyPrefix+"test_*", 100).Iterator()
		for iter.Next(ctx) {
			store.client.Del(ctx, iter.Val())
		}
		store.Close()
	})
	return store
}

func TestCreateAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Create(ctx, "test_create", "alice"); err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	entry, err := store.Get(ctx, "test_create")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if entry == nil {
		t.Fatal("expected entry, got nil")
	}
	if entry.ID != "test_create" {
		t.Errorf("expected id=%q, got %q", "test_create", entry.ID)
	}
	if entry.Status != "idle" {
		t.Errorf("expected status=idle, got %q", entry.Status)
	}
	if entry.Identity != "alice" {
		t.Errorf("expected identity=alice, got %q", entry.Identity)
	}
	if entry.Server != "test-server" {
		t.Errorf("expected server=test-server, got %q", entry.Server)
	}
}

func TestGet_NotFound(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	entry, err := store.Get(ctx, "test_missing")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if entry != nil {
		t.Errorf("expected nil entry, got %+v", entry)
	}
}

func TestSetStatus(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Create(ctx, "test_status", ""); err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	for _, status := range []string{"waiting", "paired", "idle"} {
		if err := store.SetStatus(ctx, "test_status", status); err != nil {
			t.Fatalf("SetStatus(%q) error: %v", status, err)
		}
		entry, err := store.Get(ctx, "test_status")
		if err != nil {
			t.Fatalf("Get() error: %v", err)
		}
		if entry.Status != status {
			t.Errorf("expected status=%q, got %q", status, entry.Status)
		}
	}
}

func TestSetStatus_RefreshesTTL(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Create(ctx, "test_ttl", ""); err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if err := store.SetStatus(ctx, "test_ttl", "waiting"); err != nil {
		t.Fatalf("SetStatus() error: %v", err)
	}

	ttl, err := store.client.TTL(ctx, KeyPrefix+"test_ttl").Result()
	if err != nil {
		t.Fatalf("TTL() error: %v", err)
	}
	// TTL should be positive and close to the configured lifetime.
	if ttl < TTL-10*time.Second || ttl > TTL {
		t.Errorf("expected TTL ~%v, got %v", TTL, ttl)
	}
}

func TestDelete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Create(ctx, "test_delete", ""); err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if err := store.Delete(ctx, "test_delete"); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}

	entry, err := store.Get(ctx, "test_delete")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if entry != nil {
		t.Errorf("expected nil entry after delete, got %+v", entry)
	}
}
