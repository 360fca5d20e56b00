package stdin

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/architeacher/svc-icqueue/internal/config"
	"github.com/architeacher/svc-icqueue/internal/domain"
	"github.com/architeacher/svc-icqueue/internal/infrastructure"
	"github.com/architeacher/svc-icqueue/internal/usecases"
)

type (
	recordingPublisher struct {
		records []domain.PublishRecord
		failKey string
	}

	discardMetrics struct{}
)

func (discardMetrics) Inc(string, int) {}

func (p *recordingPublisher) PublishRecord(_ context.Context, record domain.PublishRecord) error {
	if record.RoutingKey == p.failKey {
		return errors.New("nack")
	}

	p.records = append(p.records, record)

	return nil
}

func (p *recordingPublisher) FetchPendingEvents(context.Context, int) ([]*domain.OutboxEvent, error) {
	return nil, nil
}

func (p *recordingPublisher) FetchRetryableEvents(context.Context, int) ([]*domain.OutboxEvent, error) {
	return nil, nil
}

func (p *recordingPublisher) PublishEvent(context.Context, *domain.OutboxEvent) (*domain.PublishOutboxEventResult, error) {
	return &domain.PublishOutboxEventResult{}, nil
}

func newReader(publisher *recordingPublisher, input string) *Reader {
	logger := infrastructure.NewTestLogger()
	app := usecases.NewPublisherApplication(publisher, logger, noop.NewTracerProvider(), discardMetrics{})

	return NewReader(app, strings.NewReader(input), config.PublisherConfig{
		DefaultRoutingKey: "default.key",
		MaxLineBytes:      1024,
	}, logger)
}

func TestReader_PublishesEveryLine(t *testing.T) {
	t.Parallel()

	publisher := &recordingPublisher{}
	input := "orders.created\t{\"id\":1}\n\nplain text\n\t[1,2]\n"

	require.NoError(t, newReader(publisher, input).Start(t.Context()))

	assert.Equal(t, []domain.PublishRecord{
		{RoutingKey: "orders.created", Payload: json.RawMessage(`{"id":1}`)},
		{RoutingKey: "default.key", Payload: json.RawMessage(`"plain text"`)},
		{RoutingKey: "default.key", Payload: json.RawMessage(`[1,2]`)},
	}, publisher.records)
}

func TestReader_ReportsFailedRecords(t *testing.T) {
	t.Parallel()

	publisher := &recordingPublisher{failKey: "bad"}
	input := "bad\t1\ngood\t2\n"

	err := newReader(publisher, input).Start(t.Context())

	require.ErrorIs(t, err, ErrRecordsFailed)
	assert.ErrorContains(t, err, "1 of 2")
	assert.Len(t, publisher.records, 1)
}

func TestReader_StopsOnCancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	err := newReader(&recordingPublisher{}, "a\t1\n").Start(ctx)

	assert.ErrorIs(t, err, context.Canceled)
}
