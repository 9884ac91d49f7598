package providers

import "time"

const (
	// shutdownTimeout is the maximum time to wait for graceful shutdown of services.
	shutdownTimeout = 30 * time.Second
)

// BuildInfo carries values stamped into the binary at link time.
type BuildInfo struct {
	Version string
}
