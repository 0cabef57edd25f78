package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/homesync/node-agent/internal/infrastructure/config"
)

const serviceName = "homesync-node"

// Logger is the node's slog logger. Every entry carries service and version.
// Safe for concurrent use; the status server logs from its own goroutines.
type Logger struct {
	*slog.Logger
}

// New builds the logger described by the logging section of config.yaml.
// Output "stderr" writes to stderr, anything else to stdout. Format "text"
// suits a serial console; the default is JSON for journald and log shippers.
func New(cfg config.LoggingConfig, version string) *Logger {
	return NewWithWriter(cfg, version, destination(cfg.Output))
}

// NewWithWriter is New writing to output. cfg.Output is ignored.
func NewWithWriter(cfg config.LoggingConfig, version string, output io.Writer) *Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}

	var h slog.Handler = slog.NewJSONHandler(output, opts)
	if strings.EqualFold(cfg.Format, "text") {
		h = slog.NewTextHandler(output, opts)
	}

	return &Logger{Logger: slog.New(h.WithAttrs([]slog.Attr{
		slog.String("service", serviceName),
		slog.String("version", version),
	}))}
}

func destination(name string) io.Writer {
	if strings.EqualFold(name, "stderr") {
		return os.Stderr
	}
	return os.Stdout
}

// parseLevel maps debug, info, warn (or warning) and error. Anything else is info.
func parseLevel(level string) slog.Level {
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

// With returns a child logger; main uses it to stamp device_id on everything.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// Default is the bootstrap logger used until config.yaml has been read:
// JSON on stdout at info, version "dev".
func Default() *Logger {
	return New(config.LoggingConfig{Level: "info", Format: "json", Output: "stdout"}, "dev")
}

// Discard writes nothing. For tests.
func Discard() *Logger {
	return NewWithWriter(config.LoggingConfig{Level: "error"}, "test", io.Discard)
}
