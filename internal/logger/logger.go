// Package logger builds the process-wide slog logger.
//
// Production output is JSON; anything else gets a colored single-line format meant for a terminal.
// When a log directory is configured, every record is also appended to a daily file
// (proxy_YYYY-MM-DD.log) so a tagging session can be reviewed after the fact.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

const (
	formatJSON   = "json"
	formatPretty = "pretty"
)

// Logger wraps slog.Logger and owns the optional daily log file.
type Logger struct {
	*slog.Logger
	file *DailyFile
}

// Config holds logger configuration.
type Config struct {
	Writer      io.Writer
	Format      string
	Environment string
	Dir         string // empty disables the daily file
	Level       slog.Level
	AddSource   bool
}

// New creates a logger. A daily file that cannot be opened is reported on the
// returned logger and otherwise ignored.
func New(cfg Config) *Logger {
	if cfg.Writer == nil {
		cfg.Writer = os.Stdout
	}
	if cfg.Format == "" {
		if cfg.Environment == "production" {
			cfg.Format = formatJSON
		} else {
			cfg.Format = formatPretty
		}
	}

	opts := &slog.HandlerOptions{
		Level:     cfg.Level,
		AddSource: cfg.AddSource,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == slog.SourceKey {
				if source, ok := a.Value.Any().(*slog.Source); ok {
					source.File = filepath.Base(source.File)
				}
			}
			return a
		},
	}

	var (
		file    *DailyFile
		fileErr error
	)
	if cfg.Dir != "" {
		file, fileErr = OpenDailyFile(cfg.Dir, "proxy")
	}

	var handler slog.Handler
	if cfg.Format == formatJSON {
		w := cfg.Writer
		if file != nil {
			w = io.MultiWriter(cfg.Writer, file)
		}
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = NewPrettyHandler(cfg.Writer, opts)
		if file != nil {
			// Color codes stay on the terminal; the file gets plain JSON lines.
			handler = fanout{handler, slog.NewJSONHandler(file, opts)}
		}
	}

	l := &Logger{Logger: slog.New(handler), file: file}
	if fileErr != nil {
		l.Warn("daily log file disabled", "dir", cfg.Dir, "error", fileErr)
	}
	return l
}

// Close flushes and closes the daily log file, if any.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

// ParseLevel converts a string to slog.Level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithError adds an error attribute to the logger.
func (l *Logger) WithError(err error) *Logger {
	return &Logger{Logger: l.With(slog.String("error", err.Error())), file: l.file}
}

// Fatal logs an error and exits.
func (l *Logger) Fatal(msg string, args ...any) {
	l.Error(msg, args...)
	_ = l.Close()
	os.Exit(1)
}

// Fatalf logs a formatted error and exits.
func (l *Logger) Fatalf(format string, args ...any) {
	l.Fatal(fmt.Sprintf(format, args...))
}
