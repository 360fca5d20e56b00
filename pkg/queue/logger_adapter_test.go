package queue

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZerologAdapter_Levels(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		event         func(*ZerologAdapter) LogEvent
		expectedLevel string
	}{
		{
			name:          "info",
			event:         (*ZerologAdapter).Info,
			expectedLevel: "info",
		},
		{
			name:          "error",
			event:         (*ZerologAdapter).Error,
			expectedLevel: "error",
		},
		{
			name:          "debug",
			event:         (*ZerologAdapter).Debug,
			expectedLevel: "debug",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			buf := &bytes.Buffer{}
			adapter := NewZerologAdapter(zerolog.New(buf).Level(zerolog.DebugLevel))

			tt.event(adapter).
				Str("queue", "billing").
				Err(errors.New("test error")).
				Msg("test message")

			var entry map[string]any
			require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))

			assert.Equal(t, tt.expectedLevel, entry["level"])
			assert.Equal(t, "icqueue", entry["component"])
			assert.Equal(t, "billing", entry["queue"])
			assert.Equal(t, "test error", entry["error"])
			assert.Equal(t, "test message", entry["message"])
		})
	}
}

func TestZerologAdapter_DisabledLevel(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	adapter := NewZerologAdapter(zerolog.New(buf).Level(zerolog.InfoLevel))

	assert.NotPanics(t, func() {
		adapter.Debug().Str("key", "value").Err(errors.New("ignored")).Msg("hidden")
	})
	assert.Empty(t, buf.String())
}

func TestNopLogger(t *testing.T) {
	t.Parallel()

	var logger Logger = nopLogger{}

	assert.NotPanics(t, func() {
		logger.Info().Str("key", "value").Msg("info")
		logger.Error().Err(errors.New("boom")).Msg("error")
		logger.Debug().Msg("debug")
	})
}
