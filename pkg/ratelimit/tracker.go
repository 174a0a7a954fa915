package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Prometheus metrics for rate limit tracking.
var (
	rateLimitedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "schedule_rate_limited_total",
		Help: "Total number of 429 responses observed by endpoint",
	}, []string{"endpoint"})

	rateLimitBackoffSeconds = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "schedule_rate_limit_backoff_seconds",
		Help: "Backoff delay chosen for the most recent 429 response",
	})
)

// Tracker stores 429 observations in Redis. It never gates requests; the
// retry budget of each request remains the only thing deciding retries.
type Tracker struct {
	redis  *redis.Client
	logger zerolog.Logger
	now    func() time.Time
}

// NewTracker creates a new rate limit tracker.
func NewTracker(redisClient *redis.Client, logger zerolog.Logger) *Tracker {
	return &Tracker{
		redis:  redisClient,
		logger: logger,
		now:    time.Now,
	}
}

// GetState retrieves the shared rate limit state from Redis.
// Returns an empty state if nothing was recorded yet.
func (t *Tracker) GetState(ctx context.Context) (*RateLimitState, error) {
	last, err := t.redis.Get(ctx, RedisKeyLast429At).Int64()
	if err == redis.Nil {
		t.logger.Debug().Msg("No rate limit observations in Redis")
		return &RateLimitState{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get last 429: %w", err)
	}

	until, err := t.redis.Get(ctx, RedisKeyBackoffUntil).Int64()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("get backoff until: %w", err)
	}

	count, err := t.redis.Get(ctx, RedisKeyCount429).Int64()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("get 429 count: %w", err)
	}

	state := &RateLimitState{
		Last429At: time.UnixMilli(last),
		Count429:  count,
	}
	if until > 0 {
		state.BackoffUntil = time.UnixMilli(until)
	}
	return state, nil
}

// RecordRateLimited stores a 429 observation for endpoint together with the
// delay the caller is about to wait. The backoff window only ever grows.
func (t *Tracker) RecordRateLimited(ctx context.Context, endpoint string, delay time.Duration) error {
	now := t.now()
	until := now.Add(delay)

	current, err := t.redis.Get(ctx, RedisKeyBackoffUntil).Int64()
	if err != nil && err != redis.Nil {
		return fmt.Errorf("get backoff until: %w", err)
	}

	pipe := t.redis.Pipeline()
	pipe.Set(ctx, RedisKeyLast429At, now.UnixMilli(), StateTTL)
	pipe.Incr(ctx, RedisKeyCount429)
	pipe.Expire(ctx, RedisKeyCount429, StateTTL)
	if until.UnixMilli() > current {
		pipe.Set(ctx, RedisKeyBackoffUntil, until.UnixMilli(), StateTTL)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store rate limit state in redis: %w", err)
	}

	rateLimitedTotal.WithLabelValues(endpoint).Inc()
	rateLimitBackoffSeconds.Set(delay.Seconds())

	t.logger.Debug().
		Str("endpoint", endpoint).
		Dur("delay", delay).
		Time("backoff_until", until).
		Msg("Rate limit observation recorded")

	return nil
}
