package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Sternrassler/schedule-client/internal/testutil"
	"github.com/Sternrassler/schedule-client/pkg/client"
	"github.com/Sternrassler/schedule-client/pkg/pagination"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

func TestRegistry(t *testing.T) {
	if Registry == nil {
		t.Error("Registry should not be nil")
	}

	if Registry != prometheus.DefaultRegisterer {
		t.Error("Registry should be the default Prometheus registerer")
	}
}

func TestHandler_ExposesClientMetrics(t *testing.T) {
	mock := testutil.NewMockScheduler()
	defer mock.Close()
	mock.SetPages("/appointments", []any{1}, []any{2})
	mock.SetResponse("/missing", testutil.NewNotFoundResponse())

	logger := zerolog.Nop()
	cfg := client.DefaultConfig(mock.URL(), "metrics-key")
	cfg.Logger = &logger
	c, err := client.New(cfg)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}

	ctx := context.Background()
	if _, err := pagination.CollectAll[int](ctx, c, http.MethodGet, "/appointments", nil, nil); err != nil {
		t.Fatalf("CollectAll failed: %v", err)
	}
	_, _ = c.Get(ctx, "/missing", nil)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	for _, name := range []string{
		"schedule_requests_total",
		"schedule_request_duration_seconds",
		"schedule_errors_total",
		"schedule_pages_fetched_total",
	} {
		if !strings.Contains(string(body), name) {
			t.Errorf("Expected %s in metrics output", name)
		}
	}
}

func TestNames_Prefix(t *testing.T) {
	seen := make(map[string]bool)
	for _, name := range Names {
		if !strings.HasPrefix(name, "schedule_") {
			t.Errorf("Metric %s lacks the schedule_ prefix", name)
		}
		if seen[name] {
			t.Errorf("Metric %s listed twice", name)
		}
		seen[name] = true
	}
}
