package infrastructure

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/architeacher/svc-icqueue/internal/config"
)

func TestNewWithWriter(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		cfg           config.LoggingConfig
		expectedLevel zerolog.Level
	}{
		{"debug level", config.LoggingConfig{Level: "debug", Format: "json"}, zerolog.DebugLevel},
		{"upper case level", config.LoggingConfig{Level: "WARN", Format: "json"}, zerolog.WarnLevel},
		{"invalid level falls back to info", config.LoggingConfig{Level: "loud", Format: "json"}, zerolog.InfoLevel},
		{"empty level falls back to info", config.LoggingConfig{}, zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			logger := NewWithWriter(tt.cfg, &bytes.Buffer{})

			assert.Equal(t, tt.expectedLevel, logger.GetLevel())
		})
	}
}

func TestNewWithWriter_JSONOutput(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	logger := NewWithWriter(config.LoggingConfig{Level: "info", Format: "json"}, &buf)
	logger.Info().Str("queue", "billing").Msg("connected")
	logger.Debug().Msg("filtered")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))

	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "billing", entry["queue"])
	assert.Equal(t, "connected", entry["message"])
	assert.Contains(t, entry, "time")
}

func TestNewWithWriter_ConsoleOutput(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	logger := NewWithWriter(config.LoggingConfig{Level: "info", Format: "console"}, &buf)
	logger.Info().Msg("connected")

	assert.Contains(t, buf.String(), "connected")
	assert.False(t, json.Valid(buf.Bytes()))
}

func TestNewTestLogger(t *testing.T) {
	t.Parallel()

	logger := NewTestLogger()

	require.NotNil(t, logger.Logger)
	assert.Equal(t, zerolog.Disabled, logger.GetLevel())
}
