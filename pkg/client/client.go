// Package client provides the core scheduling API HTTP client with rate limit
// retries, optional response caching, and error classification.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/schedule-client/pkg/cache"
	"github.com/Sternrassler/schedule-client/pkg/logging"
	"github.com/Sternrassler/schedule-client/pkg/ratelimit"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

// Prometheus metrics for client operations.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "schedule_requests_total",
		Help: "Total scheduling API requests by endpoint and status",
	}, []string{"endpoint", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "schedule_request_duration_seconds",
		Help:    "Scheduling API request duration in seconds by endpoint, including retries",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"endpoint"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "schedule_errors_total",
		Help: "Total scheduling API errors by class",
	}, []string{"class"})
)

const (
	tracerName       = "github.com/Sternrassler/schedule-client/pkg/client"
	defaultUserAgent = "schedule-client/0.1.0"
	requestIDHeader  = "X-Request-ID"
)

// Endpoint identifies an API path such as "/appointments" or "/appointments/42".
type Endpoint string

// Client is the scheduling API client. It is safe for concurrent use; every
// call owns its own retry state.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	cache      *cache.Manager
	tracker    *ratelimit.Tracker
	tracer     trace.Tracer
	config     Config
	baseURL    string
	cacheScope string
	logger     zerolog.Logger

	backoff Backoff
	sleep   func(context.Context, time.Duration) error
	now     func() time.Time
}

// Config holds the client configuration.
type Config struct {
	// BaseURL is the absolute API root, e.g. "https://api.example.com/v1".
	BaseURL string

	// APIKey is sent as a bearer token.
	APIKey string

	// UserAgent header (default: "schedule-client/0.1.0")
	UserAgent string

	// Retry budget. MaxRetryTime bounds the total backoff of one request,
	// MaxRetryDelay bounds a single backoff.
	MaxRetryTime  time.Duration
	MaxRetryDelay time.Duration

	// Timeout of a single HTTP attempt.
	Timeout time.Duration

	// Client-side pacing. 0 disables the limiter.
	RequestsPerSecond float64
	Burst             int

	// Redis enables the shared rate limit tracker and, with CacheTTL > 0,
	// the GET response cache. Optional.
	Redis    *redis.Client
	CacheTTL time.Duration

	// Logger receives attempt and outcome tracing (default: global zerolog logger).
	Logger *zerolog.Logger

	// Tracer creates request spans (default: global OpenTelemetry provider).
	Tracer trace.Tracer

	// HTTPClient overrides the transport. Timeout is ignored when set.
	HTTPClient *http.Client
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(baseURL, apiKey string) Config {
	return Config{
		BaseURL:       baseURL,
		APIKey:        apiKey,
		UserAgent:     defaultUserAgent,
		MaxRetryTime:  60 * time.Second,
		MaxRetryDelay: 30 * time.Second,
		Timeout:       30 * time.Second,
	}
}

// New creates a new scheduling API client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}

	parsed, err := url.Parse(cfg.BaseURL)
	if err != nil || !parsed.IsAbs() || parsed.Host == "" {
		return nil, fmt.Errorf("base URL must be absolute (got %q)", cfg.BaseURL)
	}

	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	if cfg.MaxRetryTime <= 0 {
		return nil, fmt.Errorf("max_retry_time must be > 0 (got %s)", cfg.MaxRetryTime)
	}

	if cfg.MaxRetryDelay <= 0 {
		return nil, fmt.Errorf("max_retry_delay must be > 0 (got %s)", cfg.MaxRetryDelay)
	}

	if cfg.RequestsPerSecond < 0 {
		return nil, fmt.Errorf("requests_per_second must be >= 0 (got %g)", cfg.RequestsPerSecond)
	}

	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	// Initialize logger
	logger := logging.NewLogger("schedule-client")
	if cfg.Logger != nil {
		logger = cfg.Logger.With().Str("component", "schedule-client").Logger()
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	tracer := cfg.Tracer
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}

	c := &Client{
		httpClient: httpClient,
		tracer:     tracer,
		config:     cfg,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		cacheScope: cache.ScopeFor(cfg.APIKey),
		logger:     logger,
		sleep:      sleepContext,
		now:        time.Now,
	}

	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	if cfg.Redis != nil {
		c.tracker = ratelimit.NewTracker(cfg.Redis, logger)
		if cfg.CacheTTL > 0 {
			c.cache = cache.NewManager(cfg.Redis)
		}
	}

	return c, nil
}

// Execute performs one logical request against endpoint and returns the raw
// 2xx response body.
//
// GET requests carry payload as query parameters, other methods as a JSON
// body. 429 responses are retried within the configured time budget; every
// other failure is returned immediately as *APIError, *NetworkError or
// *BudgetExhaustedError.
func (c *Client) Execute(ctx context.Context, method string, endpoint Endpoint, payload map[string]any) (json.RawMessage, error) {
	requestID := uuid.NewString()
	ctx, span := c.tracer.Start(ctx, "schedule.request", trace.WithAttributes(
		attribute.String("schedule.endpoint", string(endpoint)),
		attribute.String("http.request.method", method),
		attribute.String("schedule.request_id", requestID),
	))
	defer span.End()

	startTime := time.Now()
	defer func() {
		requestDuration.WithLabelValues(string(endpoint)).Observe(time.Since(startTime).Seconds())
	}()

	logger := c.logger.With().
		Str("endpoint", string(endpoint)).
		Str("method", method).
		Str("request_id", requestID).
		Logger()

	target, query, body, err := c.buildRequest(method, endpoint, payload)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("build request: %w", err)
	}

	// Step 1: Check cache
	cacheable := c.cache != nil && method == http.MethodGet
	cacheKey := cache.CacheKey{Scope: c.cacheScope, Endpoint: string(endpoint), QueryParams: query}
	if cacheable {
		entry, err := c.cache.Get(ctx, cacheKey)
		switch {
		case err == nil:
			logger.Debug().Msg("Served from cache")
			span.SetAttributes(attribute.Bool("schedule.cache_hit", true))
			requestsTotal.WithLabelValues(string(endpoint), "cached").Inc()
			return json.RawMessage(entry.Data), nil
		case !errors.Is(err, cache.ErrCacheMiss):
			logger.Warn().Err(err).Msg("Cache get error")
		}
	}

	// Step 2: Report shared backoff seen by other clients
	c.checkSharedBackoff(ctx, logger)

	// Step 3: Execute with rate limit retries
	outcome, err := c.retryRateLimited(ctx, endpoint, func(ctx context.Context) Outcome {
		return c.attempt(ctx, logger, method, target, body, requestID)
	})
	if err != nil {
		var budgetErr *BudgetExhaustedError
		if errors.As(err, &budgetErr) {
			errorsTotal.WithLabelValues(string(ErrorClassBudget)).Inc()
			requestsTotal.WithLabelValues(string(endpoint), "budget_exhausted").Inc()
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	// Step 4: Map the final outcome
	switch o := outcome.(type) {
	case Success:
		requestsTotal.WithLabelValues(string(endpoint), strconv.Itoa(o.StatusCode)).Inc()
		span.SetAttributes(attribute.Int("http.response.status_code", o.StatusCode))
		c.updateCache(ctx, logger, method, endpoint, cacheKey, o)
		return json.RawMessage(o.Body), nil

	case ClientError:
		apiErr := newAPIError(endpoint, o.StatusCode, o.Body)
		errorsTotal.WithLabelValues(string(apiErr.ErrorClass)).Inc()
		requestsTotal.WithLabelValues(string(endpoint), strconv.Itoa(o.StatusCode)).Inc()
		span.SetAttributes(attribute.Int("http.response.status_code", o.StatusCode))

		event := logger.Warn()
		if apiErr.ErrorClass == ErrorClassServer {
			event = logger.Error()
		}
		event.
			Int("status", o.StatusCode).
			Str("error_class", string(apiErr.ErrorClass)).
			Str("message", apiErr.Message).
			Msg("Scheduling API request failed")

		span.RecordError(apiErr)
		span.SetStatus(codes.Error, apiErr.Error())
		return nil, apiErr

	case NetworkFailure:
		netErr := &NetworkError{Endpoint: endpoint, Err: o.Err}
		errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		requestsTotal.WithLabelValues(string(endpoint), "network_error").Inc()
		logger.Error().Err(o.Err).Str("error_class", string(ErrorClassNetwork)).Msg("HTTP request failed")
		span.RecordError(netErr)
		span.SetStatus(codes.Error, netErr.Error())
		return nil, netErr

	case RateLimited:
		// retryRateLimited converts a final 429 into BudgetExhaustedError.
		return nil, &BudgetExhaustedError{Endpoint: endpoint, Budget: c.config.MaxRetryTime}

	default:
		return nil, fmt.Errorf("unclassified outcome %T", outcome)
	}
}

// attempt performs a single transport call and classifies it.
func (c *Client) attempt(ctx context.Context, logger zerolog.Logger, method, target string, body []byte, requestID string) Outcome {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return NetworkFailure{Err: fmt.Errorf("rate limiter wait: %w", err)}
		}
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return NetworkFailure{Err: fmt.Errorf("create request: %w", err)}
	}

	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set(requestIDHeader, requestID)

	logger.Debug().Str("url", target).Msg("Executing scheduling API request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Classify(nil, nil, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return NetworkFailure{Err: fmt.Errorf("read response body: %w", err)}
	}

	logger.Debug().Int("status", resp.StatusCode).Int("bytes", len(data)).Msg("Attempt completed")
	return Classify(resp, data, nil)
}

// buildRequest resolves the target URL and encodes payload for method.
func (c *Client) buildRequest(method string, endpoint Endpoint, payload map[string]any) (string, url.Values, []byte, error) {
	target := c.baseURL + "/" + strings.TrimLeft(string(endpoint), "/")

	if method == http.MethodGet || method == http.MethodHead {
		query, err := encodeQuery(payload)
		if err != nil {
			return "", nil, nil, err
		}
		if len(query) > 0 {
			sep := "?"
			if strings.Contains(target, "?") {
				sep = "&"
			}
			target += sep + query.Encode()
		}
		return target, query, nil, nil
	}

	if payload == nil {
		return target, nil, nil, nil
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", nil, nil, fmt.Errorf("marshal payload: %w", err)
	}
	return target, nil, body, nil
}

// encodeQuery converts a payload to query parameters. nil values are skipped
// and slices become repeated parameters.
func encodeQuery(payload map[string]any) (url.Values, error) {
	query := url.Values{}

	keys := make([]string, 0, len(payload))
	for key := range payload {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		switch v := payload[key].(type) {
		case nil:
		case []string:
			for _, s := range v {
				query.Add(key, s)
			}
		case []any:
			for _, item := range v {
				s, err := queryValue(item)
				if err != nil {
					return nil, fmt.Errorf("query parameter %q: %w", key, err)
				}
				query.Add(key, s)
			}
		default:
			s, err := queryValue(v)
			if err != nil {
				return nil, fmt.Errorf("query parameter %q: %w", key, err)
			}
			query.Add(key, s)
		}
	}

	return query, nil
}

func queryValue(v any) (string, error) {
	switch val := v.(type) {
	case string:
		return val, nil
	case time.Time:
		return val.Format(time.RFC3339), nil
	case fmt.Stringer:
		return val.String(), nil
	case bool:
		return strconv.FormatBool(val), nil
	case int:
		return strconv.Itoa(val), nil
	case int64:
		return strconv.FormatInt(val, 10), nil
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), nil
	default:
		data, err := json.Marshal(val)
		if err != nil {
			return "", err
		}
		return strings.Trim(string(data), `"`), nil
	}
}

// checkSharedBackoff logs when another client is inside a 429 backoff window.
// It never blocks the request.
func (c *Client) checkSharedBackoff(ctx context.Context, logger zerolog.Logger) {
	if c.tracker == nil {
		return
	}

	state, err := c.tracker.GetState(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("Rate limit state check failed")
		return
	}

	now := time.Now()
	if state.IsBackingOff(now) {
		logger.Warn().
			Dur("remaining", state.TimeUntilClear(now)).
			Int64("recent_429s", state.Count429).
			Msg("Another client is backing off from rate limiting")
	}
}

// observeRateLimited records a 429 in the shared tracker, if configured.
func (c *Client) observeRateLimited(ctx context.Context, endpoint Endpoint, delay time.Duration) {
	if c.tracker == nil {
		return
	}
	if err := c.tracker.RecordRateLimited(ctx, string(endpoint), delay); err != nil {
		c.logger.Warn().Err(err).Str("endpoint", string(endpoint)).Msg("Failed to record rate limit observation")
	}
}

// updateCache stores successful reads and invalidates the endpoint after writes.
func (c *Client) updateCache(ctx context.Context, logger zerolog.Logger, method string, endpoint Endpoint, key cache.CacheKey, o Success) {
	if c.cache == nil {
		return
	}

	if method != http.MethodGet {
		removed, err := c.cache.InvalidateEndpoint(ctx, c.cacheScope, string(endpoint))
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to invalidate cached responses")
			return
		}
		if removed > 0 {
			logger.Debug().Int("removed", removed).Msg("Invalidated cached responses")
		}
		return
	}

	entry := cache.NewEntry(o.StatusCode, o.Header, o.Body, c.config.CacheTTL)
	if err := c.cache.Set(ctx, key, entry); err != nil {
		logger.Warn().Err(err).Msg("Failed to cache response")
		return
	}
	logger.Debug().Dur("ttl", entry.TTL()).Msg("Cached response")
}

// Get performs a GET request to an endpoint.
func (c *Client) Get(ctx context.Context, endpoint Endpoint, params map[string]any) (json.RawMessage, error) {
	return c.Execute(ctx, http.MethodGet, endpoint, params)
}

// Post performs a POST request to an endpoint.
func (c *Client) Post(ctx context.Context, endpoint Endpoint, body map[string]any) (json.RawMessage, error) {
	return c.Execute(ctx, http.MethodPost, endpoint, body)
}

// FetchPage implements pagination.PageFetcher.
func (c *Client) FetchPage(ctx context.Context, method, endpoint string, payload map[string]any) (json.RawMessage, error) {
	return c.Execute(ctx, method, Endpoint(endpoint), payload)
}

// Fetch performs a request and decodes the response body into T.
// An empty 2xx body yields the zero value.
func Fetch[T any](ctx context.Context, c *Client, method string, endpoint Endpoint, payload map[string]any) (T, error) {
	var out T

	raw, err := c.Execute(ctx, method, endpoint, payload)
	if err != nil {
		return out, err
	}

	if len(bytes.TrimSpace(raw)) == 0 {
		return out, nil
	}

	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("decode %s response: %w", endpoint, err)
	}
	return out, nil
}

// FetchOptional is Fetch for a single entity that may not exist: a 404
// yields (nil, nil).
func FetchOptional[T any](ctx context.Context, c *Client, method string, endpoint Endpoint, payload map[string]any) (*T, error) {
	out, err := Fetch[T](ctx, c, method, endpoint, payload)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Close releases client resources. The Redis client is owned by the caller
// and stays open.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// GetCache returns the cache manager, nil when caching is disabled.
func (c *Client) GetCache() *cache.Manager {
	return c.cache
}
