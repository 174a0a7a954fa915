package ratelimit

import (
	"testing"
	"time"
)

func TestRateLimitState_IsBackingOff(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name         string
		backoffUntil time.Time
		want         bool
		wantClear    time.Duration
	}{
		{
			name:         "empty state",
			backoffUntil: time.Time{},
			want:         false,
			wantClear:    0,
		},
		{
			name:         "window in the future",
			backoffUntil: now.Add(30 * time.Second),
			want:         true,
			wantClear:    30 * time.Second,
		},
		{
			name:         "window already passed",
			backoffUntil: now.Add(-time.Second),
			want:         false,
			wantClear:    0,
		},
		{
			name:         "window ends exactly now",
			backoffUntil: now,
			want:         false,
			wantClear:    0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := &RateLimitState{BackoffUntil: tt.backoffUntil}

			if got := state.IsBackingOff(now); got != tt.want {
				t.Errorf("IsBackingOff() = %v, want %v", got, tt.want)
			}
			if got := state.TimeUntilClear(now); got != tt.wantClear {
				t.Errorf("TimeUntilClear() = %v, want %v", got, tt.wantClear)
			}
		})
	}
}

func TestRateLimitState_IsStale(t *testing.T) {
	tests := []struct {
		name      string
		last429At time.Time
		maxAge    time.Duration
		want      bool
	}{
		{
			name:   "never rate limited",
			maxAge: time.Minute,
			want:   true,
		},
		{
			name:      "recent observation",
			last429At: time.Now().Add(-10 * time.Second),
			maxAge:    time.Minute,
			want:      false,
		},
		{
			name:      "old observation",
			last429At: time.Now().Add(-2 * time.Minute),
			maxAge:    time.Minute,
			want:      true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := &RateLimitState{Last429At: tt.last429At}
			if got := state.IsStale(tt.maxAge); got != tt.want {
				t.Errorf("IsStale(%v) = %v, want %v", tt.maxAge, got, tt.want)
			}
		})
	}
}
