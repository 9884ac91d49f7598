package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/danielgtaylor/huma/v2"
)

func (s *Server) registerHealthRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "healthCheck",
		Method:      http.MethodGet,
		Path:        "/api/v1/health",
		Summary:     "Health check",
		Description: "Returns proxy health with cache, browser session and upstream checks",
		Tags:        []string{"Health"},
	}, s.handleHealthCheck)
}

// ComponentHealth describes the health of a single component.
type ComponentHealth struct {
	Status  string `json:"status" doc:"Component status: healthy, degraded, or unhealthy"`
	Latency string `json:"latency,omitempty" doc:"Response time for this component"`
	Message string `json:"message,omitempty" doc:"Additional status information"`
}

// HealthResponse contains health check data in API responses.
type HealthResponse struct {
	Status     string                     `json:"status" doc:"Overall status: healthy, degraded, or unhealthy"`
	Components map[string]ComponentHealth `json:"components" doc:"Individual component statuses"`
}

// HealthOutput wraps the health response for Huma.
type HealthOutput struct {
	Body HealthResponse
}

func (s *Server) handleHealthCheck(ctx context.Context, _ *struct{}) (*HealthOutput, error) {
	components := map[string]ComponentHealth{
		"cache":    s.checkCache(ctx),
		"browser":  s.checkBrowser(),
		"upstream": s.checkUpstream(),
	}

	overall := "healthy"
	for _, c := range components {
		switch c.Status {
		case "unhealthy":
			overall = "unhealthy"
		case "degraded":
			if overall == "healthy" {
				overall = "degraded"
			}
		}
	}

	return &HealthOutput{
		Body: HealthResponse{
			Status:     overall,
			Components: components,
		},
	}, nil
}

// checkCache verifies the cache backend answers.
func (s *Server) checkCache(ctx context.Context) ComponentHealth {
	start := time.Now()
	n, err := s.metadata.CacheEntries(ctx)
	latency := time.Since(start)

	if err != nil {
		return ComponentHealth{
			Status:  "unhealthy",
			Latency: latency.String(),
			Message: "cache read failed",
		}
	}
	return ComponentHealth{
		Status:  "healthy",
		Latency: latency.String(),
		Message: strconv.Itoa(n) + " entries",
	}
}

// checkBrowser reports the session. No session is normal; one starts on demand.
func (s *Server) checkBrowser() ComponentHealth {
	st := s.metadata.SessionStatus()
	if !st.Active {
		return ComponentHealth{Status: "healthy", Message: "no session, starts on next request"}
	}
	return ComponentHealth{
		Status:  "healthy",
		Message: "session " + st.SessionID + " idle for " + st.IdleFor.Round(time.Second).String(),
	}
}

func (s *Server) checkUpstream() ComponentHealth {
	if s.metadata.Ready() {
		return ComponentHealth{Status: "healthy"}
	}
	return ComponentHealth{Status: "degraded", Message: "preload did not reach the site cleanly"}
}
