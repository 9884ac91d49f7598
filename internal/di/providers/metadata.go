package providers

import (
	"github.com/samber/do/v2"

	"github.com/maproxy/maproxy/internal/config"
	"github.com/maproxy/maproxy/internal/debugdump"
	"github.com/maproxy/maproxy/internal/logger"
	"github.com/maproxy/maproxy/internal/service"
)

// DebugDumpHandle holds the debug dump writer. Writer is nil when dumps are off.
type DebugDumpHandle struct {
	*debugdump.Writer
}

// ProvideDebugDump provides the debug dump writer.
func ProvideDebugDump(i do.Injector) (*DebugDumpHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	if !cfg.Debug.Enabled {
		return &DebugDumpHandle{}, nil
	}

	w, err := debugdump.New(cfg.Debug.Path, log.Logger)
	if err != nil {
		// Dumps are a diagnostic aid; the proxy runs without them.
		log.Warn("Debug dumps disabled", "path", cfg.Debug.Path, "error", err)
		return &DebugDumpHandle{}, nil
	}

	log.Info("Debug dumps enabled", "path", w.Dir())
	return &DebugDumpHandle{Writer: w}, nil
}

// ProvideMetadataService provides the fetch orchestrator.
func ProvideMetadataService(i do.Injector) (*service.MetadataService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	cacheHandle := do.MustInvoke[*CacheHandle](i)
	browserHandle := do.MustInvoke[*BrowserHandle](i)
	limiterHandle := do.MustInvoke[*RateLimiterHandle](i)
	dumpHandle := do.MustInvoke[*DebugDumpHandle](i)

	svc := service.NewMetadataService(
		browserHandle.Manager,
		cacheHandle.Store,
		service.Config{
			BaseURL:         cfg.Upstream.BaseURL,
			PublicURL:       cfg.Server.PublicURL,
			ScrapeTimeout:   cfg.Upstream.ScrapeTimeout,
			PreloadTimeout:  cfg.Upstream.PreloadTimeout,
			SettleDelay:     cfg.Upstream.SettleDelay,
			PreloadRetries:  cfg.Upstream.PreloadRetries,
			PreloadBackoff:  cfg.Upstream.PreloadBackoff,
			BreakerFailures: cfg.Upstream.BreakerFailures,
			BreakerCooldown: cfg.Upstream.BreakerCooldown,
		},
		log.Logger,
		service.WithLimiter(limiterHandle.KeyedRateLimiter),
		service.WithDebugDump(dumpHandle.Writer),
	)

	log.Info("Metadata service initialized",
		"upstream", cfg.Upstream.BaseURL,
		"requests_per_sec", cfg.Upstream.RequestsPerSec,
	)

	return svc, nil
}
