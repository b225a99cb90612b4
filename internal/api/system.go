package api

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/shelfarr/booksearch/internal/logging"
	"github.com/shelfarr/booksearch/internal/scheduler"
)

const deepCheckTimeout = 5 * time.Second

// HealthStatus represents the overall service status
type HealthStatus struct {
	Status    string               `json:"status"`
	Version   string               `json:"version"`
	StartTime time.Time            `json:"startTime"`
	Uptime    string               `json:"uptime"`
	GoVersion string               `json:"goVersion"`
	Sessions  int                  `json:"sessions"`
	Upstream  *UpstreamStatus      `json:"upstream,omitempty"`
	Tasks     []scheduler.TaskInfo `json:"tasks"`
}

// UpstreamStatus is the result of a live Open Library check
type UpstreamStatus struct {
	URL     string `json:"url"`
	Status  string `json:"status"`
	Latency string `json:"latency"`
	Error   string `json:"error,omitempty"`
}

var serverStartTime = time.Now()

// healthCheck returns server health status. With deep=1 it also pings
// Open Library and answers 503 when that fails.
func (s *Server) healthCheck(c echo.Context) error {
	status := HealthStatus{
		Status:    "healthy",
		Version:   s.version,
		StartTime: serverStartTime,
		Uptime:    time.Since(serverStartTime).Round(time.Second).String(),
		GoVersion: runtime.Version(),
		Sessions:  s.wsHub.ClientCount(),
		Tasks:     s.scheduler.GetTasks(),
	}

	code := http.StatusOK
	if deep := c.QueryParam("deep"); deep == "1" || deep == "true" {
		ctx, cancel := context.WithTimeout(c.Request().Context(), deepCheckTimeout)
		defer cancel()

		start := time.Now()
		err := s.client.Ping(ctx)
		status.Upstream = &UpstreamStatus{
			URL:     s.client.BaseURL(),
			Status:  "up",
			Latency: time.Since(start).Round(time.Millisecond).String(),
		}
		if err != nil {
			logging.Ctx(c.Request().Context()).Warn().Err(err).Msg("deep health check failed")
			status.Status = "degraded"
			status.Upstream.Status = "down"
			status.Upstream.Error = err.Error()
			code = http.StatusServiceUnavailable
		}
	}

	return c.JSON(code, status)
}
