package queries

import (
	"context"

	"github.com/architeacher/svc-icqueue/internal/domain"
	"github.com/architeacher/svc-icqueue/internal/infrastructure"
	"github.com/architeacher/svc-icqueue/internal/service"
	"github.com/architeacher/svc-icqueue/internal/shared/decorator"
	otelTrace "go.opentelemetry.io/otel/trace"
)

// DefaultBatchSize is used when a query asks for zero or fewer events.
const DefaultBatchSize = 10

type (
	FetchPendingOutboxEventsQuery struct {
		BatchSize int
	}

	FetchRetryableOutboxEventsQuery struct {
		BatchSize int
	}

	FetchPendingOutboxEventsQueryHandler   decorator.QueryHandler[FetchPendingOutboxEventsQuery, []*domain.OutboxEvent]
	FetchRetryableOutboxEventsQueryHandler decorator.QueryHandler[FetchRetryableOutboxEventsQuery, []*domain.OutboxEvent]

	fetchPendingOutboxEventsQueryHandler struct {
		publisherService service.PublisherService
	}

	fetchRetryableOutboxEventsQueryHandler struct {
		publisherService service.PublisherService
	}
)

func NewFetchPendingOutboxEventsQueryHandler(
	publisherService service.PublisherService,
	logger infrastructure.Logger,
	tracerProvider otelTrace.TracerProvider,
	metricsClient decorator.MetricsClient,
) FetchPendingOutboxEventsQueryHandler {
	return decorator.ApplyQueryDecorators[FetchPendingOutboxEventsQuery, []*domain.OutboxEvent](
		fetchPendingOutboxEventsQueryHandler{publisherService: publisherService},
		logger,
		tracerProvider,
		metricsClient,
	)
}

func NewFetchRetryableOutboxEventsQueryHandler(
	publisherService service.PublisherService,
	logger infrastructure.Logger,
	tracerProvider otelTrace.TracerProvider,
	metricsClient decorator.MetricsClient,
) FetchRetryableOutboxEventsQueryHandler {
	return decorator.ApplyQueryDecorators[FetchRetryableOutboxEventsQuery, []*domain.OutboxEvent](
		fetchRetryableOutboxEventsQueryHandler{publisherService: publisherService},
		logger,
		tracerProvider,
		metricsClient,
	)
}

func (h fetchPendingOutboxEventsQueryHandler) Execute(ctx context.Context, query FetchPendingOutboxEventsQuery) ([]*domain.OutboxEvent, error) {
	return h.publisherService.FetchPendingEvents(ctx, batchSize(query.BatchSize))
}

func (h fetchRetryableOutboxEventsQueryHandler) Execute(ctx context.Context, query FetchRetryableOutboxEventsQuery) ([]*domain.OutboxEvent, error) {
	return h.publisherService.FetchRetryableEvents(ctx, batchSize(query.BatchSize))
}

func batchSize(requested int) int {
	if requested <= 0 {
		return DefaultBatchSize
	}

	return requested
}
