package ratelimit

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// setupTestRedis connects to a local Redis and skips the test if none is running.
func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   14, // Use a separate DB for tests
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available for testing: %v", err)
	}

	if err := client.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("Failed to flush test DB: %v", err)
	}

	t.Cleanup(func() {
		client.FlushDB(context.Background())
		client.Close()
	})

	return client
}

func TestTracker_GetState_Empty(t *testing.T) {
	redisClient := setupTestRedis(t)
	tracker := NewTracker(redisClient, zerolog.New(os.Stderr).Level(zerolog.Disabled))

	state, err := tracker.GetState(context.Background())
	if err != nil {
		t.Fatalf("GetState() error = %v", err)
	}
	if !state.Last429At.IsZero() {
		t.Errorf("Last429At = %v, want zero", state.Last429At)
	}
	if state.Count429 != 0 {
		t.Errorf("Count429 = %d, want 0", state.Count429)
	}
}

func TestTracker_RecordRateLimited(t *testing.T) {
	redisClient := setupTestRedis(t)
	tracker := NewTracker(redisClient, zerolog.New(os.Stderr).Level(zerolog.Disabled))
	ctx := context.Background()

	now := time.Now().Truncate(time.Millisecond)
	tracker.now = func() time.Time { return now }

	if err := tracker.RecordRateLimited(ctx, "/appointments", 10*time.Second); err != nil {
		t.Fatalf("RecordRateLimited() error = %v", err)
	}
	// A shorter window must not shrink the shared one.
	if err := tracker.RecordRateLimited(ctx, "/appointments", 2*time.Second); err != nil {
		t.Fatalf("RecordRateLimited() error = %v", err)
	}

	state, err := tracker.GetState(ctx)
	if err != nil {
		t.Fatalf("GetState() error = %v", err)
	}

	if state.Count429 != 2 {
		t.Errorf("Count429 = %d, want 2", state.Count429)
	}
	if !state.Last429At.Equal(now) {
		t.Errorf("Last429At = %v, want %v", state.Last429At, now)
	}
	if want := now.Add(10 * time.Second); !state.BackoffUntil.Equal(want) {
		t.Errorf("BackoffUntil = %v, want %v", state.BackoffUntil, want)
	}
	if !state.IsBackingOff(now) {
		t.Error("State should be backing off")
	}
}
