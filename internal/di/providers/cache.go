package providers

import (
	"context"
	"fmt"

	"github.com/samber/do/v2"

	"github.com/maproxy/maproxy/internal/cache"
	"github.com/maproxy/maproxy/internal/config"
	"github.com/maproxy/maproxy/internal/logger"
)

// CacheHandle wraps the cache store with shutdown capability.
type CacheHandle struct {
	*cache.Store
}

// Shutdown implements do.Shutdownable.
func (h *CacheHandle) Shutdown() error {
	return h.Close()
}

// ProvideCacheStore opens the configured backend and drops entries that
// expired while the proxy was down.
func ProvideCacheStore(i do.Injector) (*CacheHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	backend, err := cache.Open(cfg.Cache.Backend, cfg.Cache.Path, log.Logger)
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}

	store := cache.New(backend, cfg.Cache.TTL, log.Logger)

	removed, err := store.Sweep(context.Background())
	if err != nil {
		log.Warn("Startup cache sweep failed", "error", err)
	}

	log.Info("Cache initialized",
		"backend", cfg.Cache.Backend,
		"path", cfg.Cache.Path,
		"ttl", cfg.Cache.TTL,
		"expired_removed", removed,
	)

	return &CacheHandle{Store: store}, nil
}
