package providers

import (
	"fmt"

	"github.com/samber/do/v2"

	"github.com/maproxy/maproxy/internal/browser"
	"github.com/maproxy/maproxy/internal/config"
	"github.com/maproxy/maproxy/internal/logger"
	"github.com/maproxy/maproxy/internal/ratelimit"
)

// BrowserHandle wraps the session manager with shutdown capability.
type BrowserHandle struct {
	*browser.Manager
}

// Shutdown implements do.Shutdownable.
func (h *BrowserHandle) Shutdown() error {
	return h.Manager.Shutdown()
}

// ProvideBrowser provides the browser session manager. The browser itself
// starts lazily on the first upstream request.
func ProvideBrowser(i do.Injector) (*BrowserHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	if cfg.Browser.Install {
		log.Info("Installing browser driver", "engine", cfg.Browser.Engine)
		if err := browser.InstallPlaywright(cfg.Browser.Engine); err != nil {
			return nil, fmt.Errorf("install browser: %w", err)
		}
	}

	manager := browser.NewManager(browser.Playwright(cfg.Browser.Engine), browser.Config{
		Headless:        cfg.Browser.Headless,
		DefaultTimeout:  cfg.Browser.DefaultTimeout,
		IdleTimeout:     cfg.Browser.IdleTimeout,
		MonitorInterval: cfg.Browser.MonitorInterval,
		Filter:          browser.DefaultRequestFilter(),
	}, log.Logger)

	log.Info("Browser session manager initialized",
		"engine", cfg.Browser.Engine,
		"headless", cfg.Browser.Headless,
		"idle_timeout", cfg.Browser.IdleTimeout,
	)

	return &BrowserHandle{Manager: manager}, nil
}

// RateLimiterHandle wraps the upstream rate limiter with shutdown capability.
type RateLimiterHandle struct {
	*ratelimit.KeyedRateLimiter
}

// Shutdown implements do.Shutdownable.
func (h *RateLimiterHandle) Shutdown() error {
	h.Stop()
	return nil
}

// ProvideRateLimiter provides the per-host upstream rate limiter.
func ProvideRateLimiter(i do.Injector) (*RateLimiterHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)

	return &RateLimiterHandle{
		KeyedRateLimiter: ratelimit.New(cfg.Upstream.RequestsPerSec, cfg.Upstream.Burst),
	}, nil
}
