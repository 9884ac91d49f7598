package cache

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Backend names accepted by Open.
const (
	BackendBadger = "badger"
	BackendBolt   = "bolt"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// Open creates the named backend at path, creating parent directories.
func Open(kind, path string, logger *slog.Logger) (Backend, error) {
	switch kind {
	case BackendMemory:
		return NewMemoryBackend(), nil
	case BackendBadger, "":
		if err := os.MkdirAll(path, 0o750); err != nil {
			return nil, fmt.Errorf("create cache dir: %w", err)
		}
		return OpenBadger(path, logger)
	case BackendBolt, BackendSQLite:
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return nil, fmt.Errorf("create cache dir: %w", err)
		}
		if kind == BackendBolt {
			return OpenBolt(path, logger)
		}
		return OpenSQLite(path, logger)
	default:
		return nil, fmt.Errorf("unknown cache backend %q", kind)
	}
}
