// Package di provides dependency injection configuration for the proxy.
package di

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/maproxy/maproxy/internal/config"
	"github.com/maproxy/maproxy/internal/di/providers"
	"github.com/maproxy/maproxy/internal/logger"
	"github.com/maproxy/maproxy/internal/service"
)

// NewContainer creates and configures the DI container with all providers.
func NewContainer(build providers.BuildInfo) *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.ProvideValue(injector, build)
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)
	do.Provide(injector, providers.ProvideSlogLogger)

	// Storage and upstream access
	do.Provide(injector, providers.ProvideCacheStore)
	do.Provide(injector, providers.ProvideBrowser)
	do.Provide(injector, providers.ProvideRateLimiter)
	do.Provide(injector, providers.ProvideDebugDump)

	// Business services
	do.Provide(injector, providers.ProvideMetadataService)

	// Workers
	do.Provide(injector, providers.ProvideCacheSweepJob)

	// Server
	do.Provide(injector, providers.ProvideHTTPServer)

	return injector
}

// Bootstrap initializes all services, warms the browser session and starts
// the HTTP server. A failed warm-up is logged; the proxy serves regardless.
func Bootstrap(ctx context.Context, injector *do.RootScope) error {
	cfg, err := do.Invoke[*config.Config](injector)
	if err != nil {
		return err
	}
	log, err := do.Invoke[*logger.Logger](injector)
	if err != nil {
		return err
	}
	if _, err := do.Invoke[*providers.CacheSweepJob](injector); err != nil {
		return err
	}
	svc, err := do.Invoke[*service.MetadataService](injector)
	if err != nil {
		return err
	}

	if !svc.Preload(ctx) {
		log.Warn("Preload failed, proxy will start without preload",
			"url", cfg.Upstream.BaseURL,
			"attempts", cfg.Upstream.PreloadRetries,
		)
	}

	if _, err := do.Invoke[*providers.HTTPServerHandle](injector); err != nil {
		return err
	}
	return nil
}
