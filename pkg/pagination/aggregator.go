package pagination

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
)

// Payload keys merged into every page request.
const (
	FilterKey = "filter"
	PageKey   = "page"
)

// firstPage is the cursor the server expects for the first page.
const firstPage = 1

// ErrPageLimit is returned when a listing has more pages than Config.MaxPages.
var ErrPageLimit = errors.New("page limit exceeded")

var pagesFetchedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "schedule_pages_fetched_total",
	Help: "Total listing pages fetched by endpoint",
}, []string{"endpoint"})

// Config holds aggregator configuration
type Config struct {
	// MaxPages aborts a listing after this many pages (0 = unlimited)
	MaxPages int
	// Timeout per page fetch, retries included (0 = none)
	Timeout time.Duration
}

// DefaultConfig returns the default configuration: no page limit and no
// per-page timeout beyond the client's own retry budget.
func DefaultConfig() Config {
	return Config{}
}

// PageFetcher performs one page request. *client.Client implements it.
type PageFetcher interface {
	FetchPage(ctx context.Context, method, endpoint string, payload map[string]any) (json.RawMessage, error)
}

// Expression renders a filter for the request payload. *filter.Builder
// implements it.
type Expression interface {
	Render(urlEncode bool) (string, error)
}

// Page is the paginated response envelope.
type Page[T any] struct {
	Data     []T  `json:"data"`
	NextPage *int `json:"next_page"`
}

// notFound is implemented by errors that represent a missing resource.
type notFound interface {
	NotFound() bool
}

// Aggregator walks paginated listings sequentially
type Aggregator struct {
	fetcher PageFetcher
	config  Config
}

// NewAggregator creates a new aggregator
func NewAggregator(fetcher PageFetcher, config Config) *Aggregator {
	if config.MaxPages < 0 {
		config.MaxPages = 0
	}
	return &Aggregator{
		fetcher: fetcher,
		config:  config,
	}
}

// CollectAll fetches every page of a listing with the default configuration.
// See Collect.
func CollectAll[T any](ctx context.Context, fetcher PageFetcher, method, endpoint string, payload map[string]any, expr Expression) ([]T, error) {
	return Collect[T](ctx, NewAggregator(fetcher, DefaultConfig()), method, endpoint, payload, expr)
}

// Collect fetches pages starting at page 1 and follows next_page until it is
// null, concatenating data in server order.
//
// Pages are requested strictly one after another. Any failure discards the
// pages collected so far, except a not-found response on any page, which
// yields an empty result. The payload map is not modified.
func Collect[T any](ctx context.Context, a *Aggregator, method, endpoint string, payload map[string]any, expr Expression) ([]T, error) {
	start := time.Now()

	request := maps.Clone(payload)
	if request == nil {
		request = make(map[string]any, 2)
	}

	request[FilterKey] = nil
	if expr != nil {
		rendered, err := expr.Render(true)
		if err != nil {
			return nil, fmt.Errorf("render filter for %s: %w", endpoint, err)
		}
		request[FilterKey] = rendered
	}

	results := make([]T, 0)
	pages := 0

	for next := firstPage; ; {
		if a.config.MaxPages > 0 && pages >= a.config.MaxPages {
			return nil, fmt.Errorf("%w: %s has more than %d pages", ErrPageLimit, endpoint, a.config.MaxPages)
		}

		request[PageKey] = next
		page, err := fetchPage[T](ctx, a, method, endpoint, request)
		if err != nil {
			var nf notFound
			if errors.As(err, &nf) && nf.NotFound() {
				log.Debug().
					Str("endpoint", endpoint).
					Int("page", next).
					Msg("Listing not found, returning empty result")
				return make([]T, 0), nil
			}

			log.Warn().
				Err(err).
				Str("endpoint", endpoint).
				Int("page", next).
				Int("discarded_items", len(results)).
				Msg("Page fetch failed, discarding partial results")
			return nil, fmt.Errorf("fetch %s page %d: %w", endpoint, next, err)
		}

		pages++
		pagesFetchedTotal.WithLabelValues(endpoint).Inc()
		results = append(results, page.Data...)

		if page.NextPage == nil {
			break
		}
		next = *page.NextPage
	}

	log.Info().
		Str("endpoint", endpoint).
		Int("pages", pages).
		Int("items", len(results)).
		Dur("duration", time.Since(start)).
		Msg("Listing complete")

	return results, nil
}

// fetchPage requests and decodes a single page.
func fetchPage[T any](ctx context.Context, a *Aggregator, method, endpoint string, request map[string]any) (*Page[T], error) {
	if a.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.config.Timeout)
		defer cancel()
	}

	raw, err := a.fetcher.FetchPage(ctx, method, endpoint, request)
	if err != nil {
		return nil, err
	}

	var page Page[T]
	if err := json.Unmarshal(raw, &page); err != nil {
		return nil, fmt.Errorf("decode page: %w", err)
	}
	return &page, nil
}
