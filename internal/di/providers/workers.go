package providers

import (
	"context"
	"time"

	"github.com/samber/do/v2"

	"github.com/maproxy/maproxy/internal/config"
	"github.com/maproxy/maproxy/internal/logger"
)

// CacheSweepJob runs periodic removal of expired cache entries.
type CacheSweepJob struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Shutdown implements do.Shutdownable.
func (j *CacheSweepJob) Shutdown() error {
	j.cancel()
	<-j.done
	return nil
}

// ProvideCacheSweepJob provides the periodic cache sweep job. The startup
// sweep runs in ProvideCacheStore.
func ProvideCacheSweepJob(i do.Injector) (*CacheSweepJob, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	cacheHandle := do.MustInvoke[*CacheHandle](i)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)

		ticker := time.NewTicker(cfg.Cache.SweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if count, err := cacheHandle.Sweep(ctx); err != nil {
					log.Warn("Cache sweep failed", "error", err)
				} else if count > 0 {
					log.Info("Cache sweep completed", "removed", count)
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	log.Info("Cache sweep job started", "interval", cfg.Cache.SweepInterval)

	return &CacheSweepJob{cancel: cancel, done: done}, nil
}
