package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestHabitEventAndRefreshCounters(t *testing.T) {
	m := New()

	m.HabitEvent("complete")
	m.HabitEvent("complete")
	m.HabitEvent("skip")
	m.InsightsRefreshed(4)

	if got := testutil.ToFloat64(m.HabitEvents.WithLabelValues("complete")); got != 2 {
		t.Fatalf("expected 2 complete events, got %v", got)
	}
	if got := testutil.ToFloat64(m.InsightRefreshes); got != 1 {
		t.Fatalf("expected 1 refresh, got %v", got)
	}
	if got := testutil.ToFloat64(m.InsightsAvailable); got != 4 {
		t.Fatalf("expected 4 insights, got %v", got)
	}
}

func TestMiddlewareAndHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := New()

	r := gin.New()
	r.Use(m.Middleware())
	r.GET("/api/habits/:id", func(c *gin.Context) { c.Status(http.StatusNotFound) })
	r.GET("/metrics", gin.WrapH(m.Handler()))

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/habits/abc", nil))

	if got := testutil.ToFloat64(m.HTTPRequests.WithLabelValues("GET", "/api/habits/:id", "404")); got != 1 {
		t.Fatalf("expected 1 request counted by route template, got %v", got)
	}

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "habitlog_http_requests_total") {
		t.Fatalf("unexpected metrics output %d", rr.Code)
	}
}

func TestNewUsesIsolatedRegistry(t *testing.T) {
	first := New()
	second := New()
	first.HabitEvent("add")

	if got := testutil.ToFloat64(second.HabitEvents.WithLabelValues("add")); got != 0 {
		t.Fatalf("expected registries to be isolated, got %v", got)
	}
}
