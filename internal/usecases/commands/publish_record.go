package commands

import (
	"context"

	"github.com/architeacher/svc-icqueue/internal/domain"
	"github.com/architeacher/svc-icqueue/internal/infrastructure"
	"github.com/architeacher/svc-icqueue/internal/service"
	"github.com/architeacher/svc-icqueue/internal/shared/decorator"
	otelTrace "go.opentelemetry.io/otel/trace"
)

type (
	// PublishRecordCommand publishes a record that did not go through the outbox.
	PublishRecordCommand struct {
		Record domain.PublishRecord
	}

	PublishRecordHandler decorator.CommandHandler[PublishRecordCommand, struct{}]

	publishRecordHandler struct {
		publisherService service.PublisherService
	}
)

func NewPublishRecordHandler(
	publisherService service.PublisherService,
	logger infrastructure.Logger,
	tracerProvider otelTrace.TracerProvider,
	metricsClient decorator.MetricsClient,
) PublishRecordHandler {
	return decorator.ApplyCommandDecorators[PublishRecordCommand, struct{}](
		publishRecordHandler{publisherService: publisherService},
		logger,
		tracerProvider,
		metricsClient,
	)
}

func (h publishRecordHandler) Handle(ctx context.Context, cmd PublishRecordCommand) (struct{}, error) {
	return struct{}{}, h.publisherService.PublishRecord(ctx, cmd.Record)
}
