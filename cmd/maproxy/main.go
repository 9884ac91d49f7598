// Package main provides the entry point for the Metal Archives proxy.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/samber/do/v2"

	"github.com/maproxy/maproxy/internal/di"
	"github.com/maproxy/maproxy/internal/di/providers"
	"github.com/maproxy/maproxy/internal/logger"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Create DI container
	injector := di.NewContainer(providers.BuildInfo{Version: version})

	// Bootstrap all services
	if err := di.Bootstrap(ctx, injector); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start proxy: %v\n", err)
		if report := injector.Shutdown(); report != nil {
			fmt.Fprintf(os.Stderr, "Shutdown error: %v\n", report)
		}
		os.Exit(1)
	}

	log := do.MustInvoke[*logger.Logger](injector)

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("Shutting down proxy gracefully...")

	// The container stops the HTTP server first, then the service's
	// dependencies: browser session, rate limiter and cache store.
	if err := injector.Shutdown(); err != nil {
		log.Error("Shutdown error", "error", err)
	}

	log.Info("Proxy stopped")
	if err := log.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to close log file: %v\n", err)
	}
}
