// Package api provides the HTTP surface: the tagging routes used by Mp3tag
// web sources, a small huma admin API and the Prometheus endpoint.
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/maproxy/maproxy/internal/browser"
	"github.com/maproxy/maproxy/internal/extract"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metadata is the orchestrator the handlers call.
type Metadata interface {
	SearchAlbums(ctx context.Context, artist, album string) (*extract.SearchResults[extract.AlbumSearchRow], error)
	SearchAlbumsFull(ctx context.Context, artist, album string) (*extract.SearchResults[extract.AlbumSearchRow], error)
	SearchArtists(ctx context.Context, artist string) (*extract.SearchResults[extract.ArtistSearchRow], error)
	GetAlbum(ctx context.Context, url string) (*extract.Album, error)
	GetAlbumWithArtist(ctx context.Context, url string) (*extract.AlbumWithArtist, error)
	GetArtist(ctx context.Context, url string) (*extract.Artist, error)

	InvalidateCache(ctx context.Context, key string) error
	SweepCache(ctx context.Context) (int, error)
	CacheEntries(ctx context.Context) (int, error)
	SessionStatus() browser.Status
	CloseSession() error
	Ready() bool
}

// Config holds server options.
type Config struct {
	Version            string
	CORSAllowedOrigins []string
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	metadata Metadata
	router   *chi.Mux
	api      huma.API
	cfg      Config
	logger   *slog.Logger
}

// NewServer creates a new HTTP server with all routes configured.
func NewServer(metadata Metadata, cfg Config, logger *slog.Logger) *Server {
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	if len(cfg.CORSAllowedOrigins) == 0 {
		cfg.CORSAllowedOrigins = []string{"*"}
	}

	s := &Server{
		metadata: metadata,
		router:   chi.NewRouter(),
		cfg:      cfg,
		logger:   logger,
	}

	s.setupMiddleware()

	humaConfig := huma.DefaultConfig("maproxy admin API", cfg.Version)
	s.api = humachi.New(s.router, humaConfig)
	RegisterErrorHandler()

	s.setupRoutes()

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger(s.logger))
	s.router.Use(middleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.CORSAllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         86400,
	}))
}

func (s *Server) setupRoutes() {
	s.registerTaggingRoutes()
	s.registerHealthRoutes()
	s.registerSessionRoutes()
	s.registerCacheRoutes()

	s.router.Handle("/metrics", promhttp.Handler())
	s.router.Get("/favicon.ico", s.handleFavicon)
	s.router.NotFound(s.handleInvalidPath)
	s.router.MethodNotAllowed(s.handleInvalidPath)
}
