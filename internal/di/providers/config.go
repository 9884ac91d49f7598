// Package providers contains dependency injection providers for the proxy.
package providers

import (
	"log/slog"

	"github.com/samber/do/v2"

	"github.com/maproxy/maproxy/internal/config"
	"github.com/maproxy/maproxy/internal/logger"
)

// ProvideConfig provides the application configuration.
func ProvideConfig(i do.Injector) (*config.Config, error) {
	return config.LoadConfig()
}

// ProvideLogger provides the structured logger.
func ProvideLogger(i do.Injector) (*logger.Logger, error) {
	cfg := do.MustInvoke[*config.Config](i)
	build := do.MustInvoke[BuildInfo](i)

	log := logger.New(logger.Config{
		Level:       logger.ParseLevel(cfg.Logger.Level),
		AddSource:   cfg.App.Environment == "development",
		Environment: cfg.App.Environment,
		Dir:         cfg.LogDir(),
	})

	log.Info("Starting Metal Archives proxy",
		"version", build.Version,
		"environment", cfg.App.Environment,
		"log_level", cfg.Logger.Level,
		"data_path", cfg.Data.BasePath,
		"public_url", cfg.Server.PublicURL,
		"upstream", cfg.Upstream.BaseURL,
	)

	return log, nil
}

// ProvideSlogLogger provides access to the underlying slog.Logger for packages that need it.
func ProvideSlogLogger(i do.Injector) (*slog.Logger, error) {
	log := do.MustInvoke[*logger.Logger](i)
	return log.Logger, nil
}
