package infrastructure

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/architeacher/svc-icqueue/internal/config"
)

// Logger wraps zerolog so that services share one configured instance.
type Logger struct {
	*zerolog.Logger
}

// New creates a logger writing to stdout.
func New(cfg config.LoggingConfig) Logger {
	return NewWithWriter(cfg, os.Stdout)
}

// NewWithWriter creates a logger writing JSON, or human-readable output when the format is "console".
func NewWithWriter(cfg config.LoggingConfig, out io.Writer) Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	if strings.EqualFold(cfg.Format, "console") {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	logger := zerolog.New(out).
		Level(level).
		With().
		Timestamp().
		Logger()

	return Logger{Logger: &logger}
}

func NewTestLogger() Logger {
	logger := zerolog.Nop()

	return Logger{Logger: &logger}
}
