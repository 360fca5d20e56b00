package queue

import (
	"errors"
	"fmt"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/propagation"
)

func TestShouldRequeue(t *testing.T) {
	t.Parallel()

	cause := errors.New("cause")

	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{name: "plain error", err: cause, expected: true},
		{name: "requeue", err: Requeue(cause), expected: true},
		{name: "discard", err: Discard(cause), expected: false},
		{name: "wrapped discard", err: fmt.Errorf("store: %w", Discard(cause)), expected: false},
		{name: "discard without cause", err: Discard(nil), expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.expected, shouldRequeue(tt.err))
		})
	}
}

func TestHandlerError(t *testing.T) {
	t.Parallel()

	cause := errors.New("cause")

	assert.ErrorIs(t, Requeue(cause), cause)
	assert.EqualError(t, Discard(cause), "cause")
	assert.EqualError(t, Discard(nil), "message discarded")
	assert.EqualError(t, Requeue(nil), "message requeued")
}

func TestHeaderCarrier(t *testing.T) {
	t.Parallel()

	headers := amqp.Table{
		"bytes":  []byte("b"),
		"number": int32(3),
	}
	carrier := headerCarrier(headers)

	carrier.Set("traceparent", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")

	assert.Equal(t, "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01", carrier.Get("traceparent"))
	assert.Equal(t, "b", carrier.Get("bytes"))
	assert.Equal(t, "3", carrier.Get("number"))
	assert.Empty(t, carrier.Get("missing"))
	assert.ElementsMatch(t, []string{"bytes", "number", "traceparent"}, carrier.Keys())
	assert.Equal(t, "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01", headers["traceparent"])
}

func TestHeaderCarrier_RoundTripsTraceContext(t *testing.T) {
	t.Parallel()

	propagator := propagation.TraceContext{}
	incoming := headerCarrier(amqp.Table{
		"traceparent": "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01",
	})

	ctx := propagator.Extract(t.Context(), incoming)

	outgoing := headerCarrier(amqp.Table{})
	propagator.Inject(ctx, outgoing)

	assert.Equal(t, incoming.Get("traceparent"), outgoing.Get("traceparent"))
}

func TestFormatExpiration(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "", formatExpiration(0))
	assert.Equal(t, "", formatExpiration(-time.Second))
	assert.Equal(t, "1500", formatExpiration(1500*time.Millisecond))
	assert.Equal(t, "60000", formatExpiration(time.Minute))
}
