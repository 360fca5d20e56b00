package usecases

import (
	"github.com/architeacher/svc-icqueue/internal/infrastructure"
	"github.com/architeacher/svc-icqueue/internal/service"
	"github.com/architeacher/svc-icqueue/internal/shared/decorator"
	"github.com/architeacher/svc-icqueue/internal/usecases/commands"
	"github.com/architeacher/svc-icqueue/internal/usecases/queries"
	otelTrace "go.opentelemetry.io/otel/trace"
)

type (
	PublisherApplication struct {
		Commands PublisherCommands
		Queries  PublisherQueries
	}

	PublisherCommands struct {
		PublishRecordHandler      commands.PublishRecordHandler
		PublishOutboxEventHandler commands.PublishOutboxEventHandler
	}

	PublisherQueries struct {
		FetchPendingOutboxEventsQueryHandler   queries.FetchPendingOutboxEventsQueryHandler
		FetchRetryableOutboxEventsQueryHandler queries.FetchRetryableOutboxEventsQueryHandler
	}
)

func NewPublisherApplication(
	publisherService service.PublisherService,
	logger infrastructure.Logger,
	tracerProvider otelTrace.TracerProvider,
	metricsClient decorator.MetricsClient,
) *PublisherApplication {
	return &PublisherApplication{
		Commands: PublisherCommands{
			PublishRecordHandler: commands.NewPublishRecordHandler(
				publisherService,
				logger,
				tracerProvider,
				metricsClient,
			),
			PublishOutboxEventHandler: commands.NewPublishOutboxEventHandler(
				publisherService,
				logger,
				tracerProvider,
				metricsClient,
			),
		},
		Queries: PublisherQueries{
			FetchPendingOutboxEventsQueryHandler: queries.NewFetchPendingOutboxEventsQueryHandler(
				publisherService,
				logger,
				tracerProvider,
				metricsClient,
			),
			FetchRetryableOutboxEventsQueryHandler: queries.NewFetchRetryableOutboxEventsQueryHandler(
				publisherService,
				logger,
				tracerProvider,
				metricsClient,
			),
		},
	}
}
