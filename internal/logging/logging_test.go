package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{in: "debug", want: zerolog.DebugLevel},
		{in: " WARN ", want: zerolog.WarnLevel},
		{in: "warning", want: zerolog.WarnLevel},
		{in: "error", want: zerolog.ErrorLevel},
		{in: "off", want: zerolog.Disabled},
		{in: "", want: zerolog.InfoLevel},
		{in: "verbose", want: zerolog.InfoLevel},
	}

	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewAddsServiceAndFiltersLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, Config{Level: "warn", ServiceName: "booksearch"})

	logger.Info().Msg("dropped")
	logger.Warn().Str(FieldKeyword, "dune").Msg("kept")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Expected one JSON line, got %q: %v", buf.String(), err)
	}
	if entry["message"] != "kept" || entry[FieldService] != "booksearch" || entry[FieldKeyword] != "dune" {
		t.Errorf("Unexpected entry: %v", entry)
	}
}

func TestCtxFallsBackToGlobal(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, Config{Level: "info"})

	ctx := WithLogger(context.Background(), logger)
	l := Ctx(ctx)
	l.Info().Msg("from context")
	if !bytes.Contains(buf.Bytes(), []byte("from context")) {
		t.Errorf("Expected context logger to be used")
	}

	buf.Reset()
	g := Ctx(context.Background())
	g.Info().Msg("global")
	if buf.Len() != 0 {
		t.Errorf("Expected global logger for a bare context")
	}
}

func TestEchoMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, Config{Level: "info"})

	e := echo.New()
	e.Use(EchoMiddleware(logger))
	e.GET("/books", func(c echo.Context) error {
		l := Ctx(c.Request().Context())
		l.Info().Msg("inside handler")
		return c.String(http.StatusOK, "ok")
	})
	e.GET("/fail", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusTeapot, "nope")
	})

	req := httptest.NewRequest(http.MethodGet, "/books", nil)
	req.Header.Set(echo.HeaderXRequestID, "req-123")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Header().Get(echo.HeaderXRequestID) != "req-123" {
		t.Errorf("Expected request id to be echoed back")
	}
	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	if len(lines) != 2 {
		t.Fatalf("Expected handler and completion lines, got %q", buf.String())
	}
	for _, line := range lines {
		var entry map[string]any
		if err := json.Unmarshal(line, &entry); err != nil {
			t.Fatalf("Bad log line %q: %v", line, err)
		}
		if entry[FieldRequestID] != "req-123" || entry[FieldPath] != "/books" {
			t.Errorf("Expected request fields on %v", entry)
		}
	}

	buf.Reset()
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/fail", nil))
	if rec.Code != http.StatusTeapot {
		t.Errorf("Expected handler error to be rendered, got %d", rec.Code)
	}
	if rec.Header().Get(echo.HeaderXRequestID) == "" {
		t.Errorf("Expected a generated request id")
	}
	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("Bad log line %q: %v", buf.String(), err)
	}
	if entry[FieldStatus] != float64(http.StatusTeapot) {
		t.Errorf("Expected logged status 418, got %v", entry[FieldStatus])
	}
}
