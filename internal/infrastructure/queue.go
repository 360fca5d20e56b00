package infrastructure

import (
	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel"

	"github.com/architeacher/svc-icqueue/internal/config"
	"github.com/architeacher/svc-icqueue/pkg/queue"
)

// Queue is the facade used by the services.
type Queue = queue.Queue

// NewQueue builds a disconnected facade that declares the topic exchange on Connect.
func NewQueue(cfg config.QueueConfig, logger Logger) (*queue.ICQueue, error) {
	return queue.New(cfg.ICQueueConfig(),
		queue.WithLogger(queue.NewZerologAdapter(logger.With().Str("component", "icqueue").Logger())),
		queue.WithConnectionTimeout(cfg.ConnectTimeout),
		queue.WithHeartbeat(cfg.Heartbeat),
		queue.WithPrefetch(cfg.PrefetchCount),
		queue.WithExchangeDeclaration(amqp.ExchangeTopic),
		queue.WithTracerProvider(otel.GetTracerProvider()),
		queue.WithPropagator(otel.GetTextMapPropagator()),
	)
}
