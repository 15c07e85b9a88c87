package dedup_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"github.com/jonesrussell/reelcast/internal/dedup"
	"github.com/jonesrussell/reelcast/internal/logger"
)

func newTestTracker(t *testing.T) (*dedup.Tracker, *miniredis.Miniredis) {
	t.Helper()

	srv := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { client.Close() })

	return dedup.NewTracker(client, time.Hour, logger.NewNopLogger()), srv
}

func TestTrackerMarkAndCheck(t *testing.T) {
	tracker, _ := newTestTracker(t)
	ctx := context.Background()
	contentKey := "abc123def456abcd"

	if tracker.HasPosted(ctx, contentKey) {
		t.Error("HasPosted() = true before marking, want false")
	}

	if err := tracker.MarkPosted(ctx, contentKey); err != nil {
		t.Fatalf("MarkPosted() error = %v", err)
	}

	if !tracker.HasPosted(ctx, contentKey) {
		t.Error("HasPosted() = false after marking, want true")
	}
}

func TestTrackerClear(t *testing.T) {
	tracker, _ := newTestTracker(t)
	ctx := context.Background()
	contentKey := "abc123def456abcd"

	if err := tracker.MarkPosted(ctx, contentKey); err != nil {
		t.Fatalf("MarkPosted() error = %v", err)
	}
	if err := tracker.Clear(ctx, contentKey); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}

	if tracker.HasPosted(ctx, contentKey) {
		t.Error("HasPosted() = true after Clear(), want false")
	}
}

func TestTrackerTTLExpiry(t *testing.T) {
	tracker, srv := newTestTracker(t)
	ctx := context.Background()
	contentKey := "abc123def456abcd"

	if err := tracker.MarkPosted(ctx, contentKey); err != nil {
		t.Fatalf("MarkPosted() error = %v", err)
	}

	srv.FastForward(2 * time.Hour)

	if tracker.HasPosted(ctx, contentKey) {
		t.Error("HasPosted() = true after TTL expiry, want false")
	}
}

func TestTrackerFlushAll(t *testing.T) {
	tracker, srv := newTestTracker(t)
	ctx := context.Background()

	for _, key := range []string{"key-one", "key-two", "key-three"} {
		if err := tracker.MarkPosted(ctx, key); err != nil {
			t.Fatalf("MarkPosted(%q) error = %v", key, err)
		}
	}

	// An unrelated key must survive the flush
	srv.Set("unrelated:key", "1")

	if err := tracker.FlushAll(ctx); err != nil {
		t.Fatalf("FlushAll() error = %v", err)
	}

	for _, key := range []string{"key-one", "key-two", "key-three"} {
		if tracker.HasPosted(ctx, key) {
			t.Errorf("HasPosted(%q) = true after FlushAll(), want false", key)
		}
	}
	if !srv.Exists("unrelated:key") {
		t.Error("unrelated key was deleted by FlushAll()")
	}
}

func TestTrackerRedisDownDoesNotBlock(t *testing.T) {
	srv := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { client.Close() })
	tracker := dedup.NewTracker(client, time.Hour, logger.NewNopLogger())

	srv.Close()

	// A cache outage must read as "not posted", never as an error
	if tracker.HasPosted(context.Background(), "abc123def456abcd") {
		t.Error("HasPosted() = true with Redis down, want false")
	}
}
