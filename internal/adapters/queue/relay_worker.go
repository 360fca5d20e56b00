package queue

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/architeacher/svc-icqueue/internal/domain"
	"github.com/architeacher/svc-icqueue/internal/infrastructure"
	"github.com/architeacher/svc-icqueue/internal/ports"
	"github.com/architeacher/svc-icqueue/internal/usecases"
	"github.com/architeacher/svc-icqueue/internal/usecases/commands"
	"github.com/architeacher/svc-icqueue/pkg/queue"
)

var _ ports.MessageHandler = (*RelayWorker)(nil)

// RelayWorker hands consumed messages to the relay use case and turns its
// outcome into an ack, a requeue or a discard.
type RelayWorker struct {
	app    *usecases.SubscriberApplication
	logger infrastructure.Logger
	now    func() time.Time
}

func NewRelayWorker(
	app *usecases.SubscriberApplication,
	logger infrastructure.Logger,
) *RelayWorker {
	return &RelayWorker{
		app:    app,
		logger: logger,
		now:    time.Now,
	}
}

// Handler adapts the worker to the facade's consume callback.
func (w *RelayWorker) Handler() queue.Handler {
	return w.ProcessMessage
}

func (w *RelayWorker) ProcessMessage(ctx context.Context, msg queue.Message) error {
	result, err := w.app.Commands.RelayMessageHandler.Handle(ctx, commands.RelayMessageCommand{
		Message: domain.RelayedMessage{
			RoutingKey:    msg.RoutingKey,
			MessageID:     msg.MessageID,
			CorrelationID: msg.CorrelationID,
			Redelivered:   msg.Redelivered,
			ReceivedAt:    w.now().UTC(),
			Body:          json.RawMessage(msg.Raw),
		},
	})

	if errors.Is(err, domain.ErrEmptyBody) {
		w.logger.Warn().
			Str("routing_key", msg.RoutingKey).
			Str("message_id", msg.MessageID).
			Msg("discarding message without body")

		return queue.Discard(err)
	}

	if err != nil {
		w.logger.Error().
			Err(err).
			Str("routing_key", msg.RoutingKey).
			Str("message_id", msg.MessageID).
			Msg("failed to relay message")

		return queue.Requeue(err)
	}

	if result.Duplicate {
		w.logger.Debug().Str("message_id", msg.MessageID).Msg("acknowledging duplicate message")
	}

	return nil
}
