package decorator

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"
)

type (
	greetCommand struct{ Name string }
	countQuery   struct{}

	greetHandler struct{ err error }
	countHandler struct{ err error }

	recordingMetrics struct {
		mu   sync.Mutex
		keys []string
	}
)

func (h greetHandler) Handle(_ context.Context, cmd greetCommand) (string, error) {
	if h.err != nil {
		return "", h.err
	}

	return "hello " + cmd.Name, nil
}

func (h countHandler) Execute(_ context.Context, _ countQuery) (int, error) {
	return 3, h.err
}

func (m *recordingMetrics) Inc(key string, _ int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.keys = append(m.keys, key)
}

func newTestLogger(buf *bytes.Buffer) *zerolog.Logger {
	logger := zerolog.New(buf).Level(zerolog.DebugLevel)

	return &logger
}

func TestApplyCommandDecorators(t *testing.T) {
	t.Parallel()

	t.Run("success", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		metrics := &recordingMetrics{}

		handler := ApplyCommandDecorators[greetCommand, string](
			greetHandler{}, newTestLogger(&buf), noop.NewTracerProvider(), metrics,
		)

		result, err := handler.Handle(t.Context(), greetCommand{Name: "queue"})
		require.NoError(t, err)

		assert.Equal(t, "hello queue", result)
		assert.Equal(t, []string{"commands.greetcommand.success"}, metrics.keys)
		assert.Contains(t, buf.String(), `"command":"greetCommand"`)
		assert.Contains(t, buf.String(), "command executed successfully")
	})

	t.Run("failure", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		metrics := &recordingMetrics{}
		errBoom := errors.New("boom")

		handler := ApplyCommandDecorators[greetCommand, string](
			greetHandler{err: errBoom}, newTestLogger(&buf), noop.NewTracerProvider(), metrics,
		)

		_, err := handler.Handle(t.Context(), greetCommand{})

		require.ErrorIs(t, err, errBoom)
		assert.Equal(t, []string{"commands.greetcommand.failure"}, metrics.keys)
		assert.Contains(t, buf.String(), "failed to execute command")
	})
}

func TestApplyQueryDecorators(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	metrics := &recordingMetrics{}

	handler := ApplyQueryDecorators[countQuery, int](
		countHandler{}, newTestLogger(&buf), noop.NewTracerProvider(), metrics,
	)

	count, err := handler.Execute(t.Context(), countQuery{})
	require.NoError(t, err)

	assert.Equal(t, 3, count)
	assert.Equal(t, []string{"queries.countquery.success"}, metrics.keys)
	assert.Contains(t, buf.String(), `"query":"countQuery"`)
}

func TestActionName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "greetCommand", actionName(greetCommand{}))
	assert.Equal(t, "greetCommand", actionName(&greetCommand{}))
	assert.Equal(t, "int", actionName(1))
}
