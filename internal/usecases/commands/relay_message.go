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
	RelayMessageCommand struct {
		Message domain.RelayedMessage
	}

	RelayMessageHandler decorator.CommandHandler[RelayMessageCommand, *domain.RelayMessageResult]

	relayMessageHandler struct {
		subscriberService service.SubscriberService
	}
)

func NewRelayMessageHandler(
	subscriberService service.SubscriberService,
	logger infrastructure.Logger,
	tracerProvider otelTrace.TracerProvider,
	metricsClient decorator.MetricsClient,
) RelayMessageHandler {
	return decorator.ApplyCommandDecorators[RelayMessageCommand, *domain.RelayMessageResult](
		relayMessageHandler{subscriberService: subscriberService},
		logger,
		tracerProvider,
		metricsClient,
	)
}

func (h relayMessageHandler) Handle(ctx context.Context, cmd RelayMessageCommand) (*domain.RelayMessageResult, error) {
	return h.subscriberService.RelayMessage(ctx, cmd.Message)
}
