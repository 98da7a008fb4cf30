package flagged

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// newTestStore creates a Store connected to a local Redis instance and
// cleans up all test keys before and after the test. Tests that call this
// helper require a running Redis on localhost:6379.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis not available: %v", err)
	}
	cleanup := func() {
		for _, prefix := range []string{ReportsPrefix + "test_*", FlagPrefix + "test_*"} {
			iter := client.Scan(ctx, 0, prefix, 100).Iterator()
			for iter.Next(ctx) {
				client.Del(ctx, iter.Val())
			}
		}
	}
	cleanup()
	t.Cleanup(func() {
		cleanup()
		client.Close()
	})
	return NewStore(client)
}

func TestRecordReport_Increments(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	label := "test_increments"

	for want := int64(1); want <= 3; want++ {
		count, err := store.RecordReport(ctx, label)
		if err != nil {
			t.Fatalf("RecordReport() error: %v", err)
		}
		if count != want {
			t.Errorf("expected count=%d, got %d", want, count)
		}
	}
}

func TestRecordReport_CounterTTL(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	label := "test_counter_ttl"

	if _, err := store.RecordReport(ctx, label); err != nil {
		t.Fatalf("RecordReport() error: %v", err)
	}

	ttl, err := store.client.TTL(ctx, ReportsPrefix+label).Result()
	if err != nil {
		t.Fatalf("TTL() error: %v", err)
	}
	// TTL should be positive and close to 24h. Allow 10s slack.
	if ttl < ReportsTTL-10*time.Second || ttl > ReportsTTL {
		t.Errorf("expected TTL ~%v, got %v", ReportsTTL, ttl)
	}
}

func TestIsFlagged_NotFlagged(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	flaggedNow, reason, err := store.IsFlagged(ctx, "test_not_flagged")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if flaggedNow {
		t.Errorf("expected not flagged, got flagged (reason=%q)", reason)
	}
}

func TestFlagAndCheck(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	label := "test_flag_check"

	if err := store.Flag(ctx, label, "report threshold reached"); err != nil {
		t.Fatalf("Flag() error: %v", err)
	}

	flaggedNow, reason, err := store.IsFlagged(ctx, label)
	if err != nil {
		t.Fatalf("IsFlagged() error: %v", err)
	}
	if !flaggedNow {
		t.Fatal("expected flagged=true")
	}
	if reason != "report threshold reached" {
		t.Errorf("expected reason=%q, got %q", "report threshold reached", reason)
	}
}
