package client

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for retry operations.
var (
	retriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "schedule_retries_total",
		Help: "Total number of rate limit retries by endpoint",
	}, []string{"endpoint"})

	retryBackoffSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "schedule_retry_backoff_seconds",
		Help:    "Backoff duration slept before a retry by endpoint",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"endpoint"})

	retryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "schedule_retry_exhausted_total",
		Help: "Total number of requests whose retry budget was exhausted by endpoint",
	}, []string{"endpoint"})
)

// DefaultBaseDelay is the first exponential backoff step.
const DefaultBaseDelay = 1 * time.Second

// Jitter bounds applied to exponential delays.
const (
	jitterMin  = 0.75
	jitterSpan = 0.5
)

// Backoff computes the wait before retrying a rate limited request.
// The zero value uses DefaultBaseDelay, math/rand and the wall clock.
type Backoff struct {
	// Base is the delay for attempt 0, doubled on each further attempt.
	Base time.Duration

	// Rand returns a uniform draw in [0, 1) used for jitter.
	Rand func() float64

	// Now returns the current time for HTTP-date Retry-After values.
	Now func() time.Time
}

// ComputeDelay returns the delay before the next attempt using the default
// Backoff. See Backoff.Delay.
func ComputeDelay(attempt int, retryAfter string, maxDelay time.Duration) time.Duration {
	return Backoff{}.Delay(attempt, retryAfter, maxDelay)
}

// Delay returns the wait before retrying after attempt (zero-based) was
// answered with 429.
//
// An integer Retry-After is taken as seconds, an HTTP-date or RFC 3339
// timestamp as an absolute deadline; both are used as given. Anything else,
// including an absent or malformed header, falls back to Base×2^attempt with
// ±25% jitter. The result never exceeds maxDelay.
func (b Backoff) Delay(attempt int, retryAfter string, maxDelay time.Duration) time.Duration {
	if maxDelay < 0 {
		maxDelay = 0
	}

	if d, ok := b.retryAfterDelay(retryAfter); ok {
		return min(d, maxDelay)
	}

	return min(b.exponential(attempt, maxDelay), maxDelay)
}

// retryAfterDelay interprets a Retry-After header value.
func (b Backoff) retryAfterDelay(header string) (time.Duration, bool) {
	header = strings.TrimSpace(header)
	if header == "" {
		return 0, false
	}

	if secs, err := strconv.ParseInt(header, 10, 64); err == nil {
		switch {
		case secs <= 0:
			return 0, true
		case secs > math.MaxInt64/int64(time.Second):
			return time.Duration(math.MaxInt64), true
		default:
			return time.Duration(secs) * time.Second, true
		}
	}

	at, err := http.ParseTime(header)
	if err != nil {
		if at, err = time.Parse(time.RFC3339, header); err != nil {
			return 0, false
		}
	}

	return max(at.Sub(b.now()), 0), true
}

// exponential returns the jittered exponential delay, capped before jitter
// so that large attempt counts cannot overflow.
func (b Backoff) exponential(attempt int, maxDelay time.Duration) time.Duration {
	base := b.Base
	if base <= 0 {
		base = DefaultBaseDelay
	}
	if attempt < 0 {
		attempt = 0
	}

	delay := math.Min(float64(base)*math.Pow(2, float64(attempt)), float64(maxDelay))
	delay *= jitterMin + jitterSpan*b.random()

	if delay >= math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(delay)
}

func (b Backoff) random() float64 {
	if b.Rand == nil {
		// #nosec G404 -- jitter is non-cryptographic timing variance.
		return rand.Float64()
	}
	return math.Min(math.Max(b.Rand(), 0), 1)
}

func (b Backoff) now() time.Time {
	if b.Now == nil {
		return time.Now()
	}
	return b.Now()
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// retryRateLimited runs attempt until it yields anything but RateLimited.
//
// The budget spent is the larger of the summed backoff sleeps and the wall
// clock time since the first attempt, so zero-delay Retry-After answers still
// use it up. It is checked before every attempt, and a retry is abandoned as
// soon as the next delay would reach MaxRetryTime. There is no attempt-count
// ceiling.
func (c *Client) retryRateLimited(ctx context.Context, endpoint Endpoint, attempt func(context.Context) Outcome) (Outcome, error) {
	var elapsed time.Duration
	attempts := 0
	logger := c.logger.With().Str("endpoint", string(endpoint)).Logger()

	start := c.now()
	spent := func() time.Duration {
		return max(elapsed, c.now().Sub(start))
	}

	for spent() < c.config.MaxRetryTime {
		outcome := attempt(ctx)
		attempts++

		limited, ok := outcome.(RateLimited)
		if !ok {
			if attempts > 1 {
				logger.Info().
					Int("attempts", attempts).
					Dur("waited", spent()).
					Msg("Request completed after rate limit retries")
			}
			return outcome, nil
		}

		errorsTotal.WithLabelValues(string(ErrorClassRateLimit)).Inc()
		delay := c.backoff.Delay(attempts-1, limited.RetryAfter, c.config.MaxRetryDelay)
		c.observeRateLimited(ctx, endpoint, delay)

		if used := spent(); used+delay >= c.config.MaxRetryTime {
			logger.Warn().
				Int("attempt", attempts-1).
				Dur("delay", delay).
				Dur("waited", used).
				Dur("budget", c.config.MaxRetryTime).
				Msg("Retry budget cannot fit next backoff")
			break
		}

		retriesTotal.WithLabelValues(string(endpoint)).Inc()
		retryBackoffSeconds.WithLabelValues(string(endpoint)).Observe(delay.Seconds())

		logger.Warn().
			Int("attempt", attempts-1).
			Str("retry_after", limited.RetryAfter).
			Dur("delay", delay).
			Msg("Rate limited, backing off")

		if err := c.sleep(ctx, delay); err != nil {
			logger.Warn().
				Int("attempt", attempts-1).
				Msg("Context cancelled during retry backoff")
			return nil, fmt.Errorf("%w: %v", ErrContextCancelled, err)
		}
		elapsed += delay
	}

	retryExhaustedTotal.WithLabelValues(string(endpoint)).Inc()
	logger.Error().
		Int("attempts", attempts).
		Dur("budget", c.config.MaxRetryTime).
		Msg("Retry budget exhausted")

	return nil, &BudgetExhaustedError{
		Endpoint: endpoint,
		Budget:   c.config.MaxRetryTime,
		Attempts: attempts,
	}
}
