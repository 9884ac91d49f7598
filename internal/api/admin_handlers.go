package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
)

func (s *Server) registerSessionRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "getSession",
		Method:      http.MethodGet,
		Path:        "/api/v1/session",
		Summary:     "Get browser session",
		Description: "Returns the state of the shared browser session",
		Tags:        []string{"Session"},
	}, s.handleGetSession)

	huma.Register(s.api, huma.Operation{
		OperationID:   "closeSession",
		Method:        http.MethodDelete,
		Path:          "/api/v1/session",
		Summary:       "Close browser session",
		Description:   "Tears the browser session down; the next request starts a new one",
		Tags:          []string{"Session"},
		DefaultStatus: http.StatusNoContent,
	}, s.handleCloseSession)
}

func (s *Server) registerCacheRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID:   "invalidateCacheEntry",
		Method:        http.MethodDelete,
		Path:          "/api/v1/cache",
		Summary:       "Invalidate cache entry",
		Description:   "Removes one cache entry by key, e.g. album:<url>",
		Tags:          []string{"Cache"},
		DefaultStatus: http.StatusNoContent,
	}, s.handleInvalidateCache)

	huma.Register(s.api, huma.Operation{
		OperationID: "sweepCache",
		Method:      http.MethodPost,
		Path:        "/api/v1/cache/sweep",
		Summary:     "Sweep cache",
		Description: "Removes every expired cache entry",
		Tags:        []string{"Cache"},
	}, s.handleSweepCache)
}

// SessionResponse contains browser session state in API responses.
type SessionResponse struct {
	Active      bool       `json:"active" doc:"Whether a browser session is live"`
	SessionID   string     `json:"session_id,omitempty" doc:"Generation id of the live session"`
	StartedAt   *time.Time `json:"started_at,omitempty" doc:"When the live session started"`
	LastUsed    *time.Time `json:"last_used,omitempty" doc:"When the live session was last used"`
	IdleSeconds int64      `json:"idle_seconds" doc:"Seconds since last use"`
}

// SessionOutput wraps the session response for Huma.
type SessionOutput struct {
	Body SessionResponse
}

func (s *Server) handleGetSession(_ context.Context, _ *struct{}) (*SessionOutput, error) {
	st := s.metadata.SessionStatus()

	resp := SessionResponse{Active: st.Active, SessionID: st.SessionID}
	if st.Active {
		resp.StartedAt = &st.StartedAt
		resp.LastUsed = &st.LastUsed
		resp.IdleSeconds = int64(st.IdleFor / time.Second)
	}
	return &SessionOutput{Body: resp}, nil
}

func (s *Server) handleCloseSession(_ context.Context, _ *struct{}) (*struct{}, error) {
	if err := s.metadata.CloseSession(); err != nil {
		// The session is reset even when a handle failed to close.
		s.logger.Warn("browser session closed with errors", "error", err)
	}
	return nil, nil
}

// InvalidateCacheInput contains the key to drop.
type InvalidateCacheInput struct {
	Key string `query:"key" required:"true" minLength:"1" doc:"Cache key, e.g. album:https://www.metal-archives.com/albums/..."`
}

func (s *Server) handleInvalidateCache(ctx context.Context, input *InvalidateCacheInput) (*struct{}, error) {
	if err := s.metadata.InvalidateCache(ctx, input.Key); err != nil {
		return nil, huma.Error500InternalServerError("invalidate cache entry", err)
	}
	return nil, nil
}

// SweepResponse reports a sweep.
type SweepResponse struct {
	Removed int `json:"removed" doc:"Number of expired entries removed"`
}

// SweepOutput wraps the sweep response for Huma.
type SweepOutput struct {
	Body SweepResponse
}

func (s *Server) handleSweepCache(ctx context.Context, _ *struct{}) (*SweepOutput, error) {
	removed, err := s.metadata.SweepCache(ctx)
	if err != nil {
		return nil, huma.Error500InternalServerError("sweep cache", err)
	}
	s.logger.Info("cache swept on request", "removed", removed)
	return &SweepOutput{Body: SweepResponse{Removed: removed}}, nil
}
