package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveUpstream(t *testing.T) {
	before := testutil.ToFloat64(UpstreamRequestsTotal.WithLabelValues(OutcomeStatus))
	ObserveUpstream(OutcomeStatus, 120*time.Millisecond)

	if got := testutil.ToFloat64(UpstreamRequestsTotal.WithLabelValues(OutcomeStatus)); got != before+1 {
		t.Errorf("Expected status outcome counter to grow by 1, got %v -> %v", before, got)
	}
}

func TestEchoMiddlewareUsesRoutePattern(t *testing.T) {
	e := echo.New()
	e.Use(EchoMiddleware())
	e.GET("/api/v1/books/:id", func(c echo.Context) error {
		return c.NoContent(http.StatusNoContent)
	})

	counter := HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/api/v1/books/:id", "204")
	before := testutil.ToFloat64(counter)

	for _, id := range []string{"1", "2"} {
		e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/books/"+id, nil))
	}

	if got := testutil.ToFloat64(counter); got != before+2 {
		t.Errorf("Expected both requests under one route label, got %v -> %v", before, got)
	}
}

func TestEchoMiddlewareRecordsHTTPErrors(t *testing.T) {
	e := echo.New()
	e.Use(EchoMiddleware())
	e.GET("/broken", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusBadGateway, "upstream down")
	})

	counter := HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/broken", "502")
	before := testutil.ToFloat64(counter)
	e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/broken", nil))

	if got := testutil.ToFloat64(counter); got != before+1 {
		t.Errorf("Expected 502 to be counted, got %v -> %v", before, got)
	}
}
