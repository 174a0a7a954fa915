// Package ratelimit records HTTP 429 observations in Redis so that every
// client instance sharing an API key can see when the scheduling service
// last pushed back and for how long it asked callers to wait.
package ratelimit

import (
	"time"
)

// Redis keys for rate limit state storage.
const (
	RedisKeyLast429At    = "schedule:rate_limit:last_429_at"
	RedisKeyBackoffUntil = "schedule:rate_limit:backoff_until"
	RedisKeyCount429     = "schedule:rate_limit:count_429"
)

// StateTTL is how long recorded observations live in Redis.
const StateTTL = time.Hour

// RateLimitState is the shared view of recent rate limiting.
type RateLimitState struct {
	// Last429At is when any client last received a 429. Zero if never.
	Last429At time.Time `json:"last_429_at"`

	// BackoffUntil is the latest point in time any client planned to wait until.
	BackoffUntil time.Time `json:"backoff_until"`

	// Count429 is the number of 429 responses recorded within StateTTL.
	Count429 int64 `json:"count_429"`
}

// IsBackingOff returns true if some client is still inside its backoff window.
func (s *RateLimitState) IsBackingOff(now time.Time) bool {
	return now.Before(s.BackoffUntil)
}

// TimeUntilClear returns the remaining backoff window.
// Returns 0 if the window has already passed.
func (s *RateLimitState) TimeUntilClear(now time.Time) time.Duration {
	d := s.BackoffUntil.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// IsStale returns true if no 429 was seen within maxAge.
func (s *RateLimitState) IsStale(maxAge time.Duration) bool {
	if s.Last429At.IsZero() {
		return true
	}
	return time.Since(s.Last429At) > maxAge
}
