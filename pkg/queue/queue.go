package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// Queue represents the facade interface for publishing and consuming messages
type Queue interface {
	Connect(ctx context.Context) error
	Publish(ctx context.Context, routingKey string, payload any, opts ...PublishOption) error
	Consume(ctx context.Context, handler Handler, opts ...ConsumeOption) error
	StartConsumer(ctx context.Context, handler Handler, opts ...ConsumeOption) (<-chan error, error)
	QueueName() string
	IsConnected() bool
	Close() error
}

// Handler processes a consumed message. Returning nil acknowledges the message; returning an error
// negatively acknowledges it, requeueing unless the error was built with Discard.
type Handler func(ctx context.Context, msg Message) error

var _ Queue = (*ICQueue)(nil)

// ICQueue owns one connection and one channel to a RabbitMQ broker.
type ICQueue struct {
	config     Config
	options    options
	tracer     trace.Tracer
	propagator propagation.TextMapPropagator

	mutex     sync.RWMutex
	conn      amqpConnection
	channel   *channelWrapper
	queueName string
	closed    bool
}

// New validates the configuration and creates a disconnected ICQueue.
func New(cfg Config, opts ...Option) (*ICQueue, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	options := defaultOptions()
	for _, opt := range opts {
		opt(&options)
	}

	return &ICQueue{
		config:     cfg,
		options:    options,
		tracer:     options.tracer(),
		propagator: options.textMapPropagator(),
	}, nil
}

// Connect dials the broker, opens a channel and declares the queues and bindings of the configuration.
// Transport errors are wrapped, not replaced, and are never retried.
func (q *ICQueue) Connect(ctx context.Context) error {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	if q.conn != nil && !q.closed {
		return ErrAlreadyConnected
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	conn, err := q.options.dial(q.config.URL, q.options.amqpConfig())
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	amqpCh, err := conn.Channel()
	if err != nil {
		_ = conn.Close()

		return fmt.Errorf("failed to open channel: %w", err)
	}

	ch := newChannelWrapper(amqpCh)

	if q.options.prefetchCount > 0 {
		if err := ch.qos(q.options.prefetchCount); err != nil {
			_ = conn.Close()

			return fmt.Errorf("failed to set prefetch count: %w", err)
		}
	}

	plan := planTopology(q.config)
	plan.exchangeKind = q.options.exchangeKind

	queueName, err := plan.declare(ch)
	if err != nil {
		_ = conn.Close()

		return err
	}

	q.conn = conn
	q.channel = ch
	q.queueName = queueName
	q.closed = false

	q.options.logger.Info().
		Str("exchange", q.config.Exchange).
		Str("queue", queueName).
		Msg("successfully connected to RabbitMQ")

	return nil
}

// Close closes the channel and then the connection. Only the first call after Connect does any work.
func (q *ICQueue) Close() error {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	if q.conn == nil || q.closed {
		return nil
	}

	q.closed = true

	var errs []error

	if err := q.channel.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
		errs = append(errs, fmt.Errorf("failed to close channel: %w", err))
	}

	if !q.conn.IsClosed() {
		if err := q.conn.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			errs = append(errs, fmt.Errorf("failed to close connection: %w", err))
		}
	}

	q.options.logger.Info().Msg("RabbitMQ connection closed")

	return errors.Join(errs...)
}

// IsConnected returns true while the connection is open.
func (q *ICQueue) IsConnected() bool {
	q.mutex.RLock()
	defer q.mutex.RUnlock()

	return q.conn != nil && !q.closed && !q.conn.IsClosed()
}

// QueueName returns the name of the primary queue as declared by the broker.
func (q *ICQueue) QueueName() string {
	q.mutex.RLock()
	defer q.mutex.RUnlock()

	return q.queueName
}

func (q *ICQueue) activeChannel() (*channelWrapper, string, error) {
	q.mutex.RLock()
	defer q.mutex.RUnlock()

	if q.conn == nil || q.closed || q.conn.IsClosed() {
		return nil, "", ErrNotConnected
	}

	return q.channel, q.queueName, nil
}

// Publish sends payload to the configured exchange with the given routing key. It returns once the
// channel has accepted the message; broker confirmation is not awaited.
func (q *ICQueue) Publish(ctx context.Context, routingKey string, payload any, opts ...PublishOption) error {
	ch, _, err := q.activeChannel()
	if err != nil {
		return err
	}

	options := defaultPublishOptions()
	for _, opt := range opts {
		opt(&options)
	}

	body, contentType, err := encodePayload(payload)
	if err != nil {
		return fmt.Errorf("failed to encode payload: %w", err)
	}

	if options.contentType != "" {
		contentType = options.contentType
	}

	messageID := options.messageID
	if messageID == "" {
		messageID = uuid.NewString()
	}

	ctx, span := q.tracer.Start(ctx, q.config.Exchange+" publish",
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(messagingAttributes(q.config.Exchange, routingKey)...),
	)
	defer span.End()

	headers := amqp.Table{}
	for k, v := range options.headers {
		headers[k] = v
	}

	q.propagator.Inject(ctx, headerCarrier(headers))

	deliveryMode := amqp.Persistent
	if options.transient {
		deliveryMode = amqp.Transient
	}

	publishing := amqp.Publishing{
		Headers:       headers,
		ContentType:   contentType,
		DeliveryMode:  deliveryMode,
		Priority:      options.priority,
		CorrelationId: options.correlationID,
		Expiration:    options.expiration,
		MessageId:     messageID,
		Timestamp:     time.Now(),
		Body:          body,
	}

	ctx, cancel := context.WithTimeout(ctx, options.timeout)
	defer cancel()

	if err := ch.publish(ctx, q.config.Exchange, routingKey, options.mandatory, false, publishing); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "publish failed")

		return fmt.Errorf("failed to publish message: %w", err)
	}

	q.options.logger.Debug().
		Str("routing_key", routingKey).
		Str("message_id", messageID).
		Msg("message published")

	return nil
}

// Consume consumes messages from the primary queue until ctx is done or the delivery channel closes (blocking).
func (q *ICQueue) Consume(ctx context.Context, handler Handler, opts ...ConsumeOption) error {
	errChan, err := q.StartConsumer(ctx, handler, opts...)
	if err != nil {
		return err
	}

	return <-errChan
}

// StartConsumer starts consuming messages from the primary queue (non-blocking). Deliveries are handled
// one at a time. The returned channel yields the reason the consumer stopped and is then closed; it is
// closed without a value when the queue itself was closed.
func (q *ICQueue) StartConsumer(ctx context.Context, handler Handler, opts ...ConsumeOption) (<-chan error, error) {
	if handler == nil {
		return nil, errors.New("handler must not be nil")
	}

	ch, queueName, err := q.activeChannel()
	if err != nil {
		return nil, err
	}

	options := defaultConsumeOptions(q.options.logger)
	for _, opt := range opts {
		opt(&options)
	}

	if options.consumerTag == "" {
		options.consumerTag = "icqueue-" + uuid.NewString()
	}

	deliveries, err := ch.consume(queueName, options.consumerTag, false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to start consumer on %q: %w", queueName, err)
	}

	options.logger.Info().
		Str("queue", queueName).
		Str("consumer", options.consumerTag).
		Msg("consumer started")

	errChan := make(chan error, 1)

	go func() {
		defer close(errChan)

		for {
			select {
			case <-ctx.Done():
				if err := ch.cancel(options.consumerTag); err != nil {
					options.logger.Error().Err(err).Msg("failed to cancel consumer")
				}

				errChan <- ctx.Err()

				return
			case delivery, ok := <-deliveries:
				if !ok {
					if !q.isClosed() {
						errChan <- ErrDeliveryChannelClosed
					}

					return
				}

				q.handleDelivery(ctx, delivery, handler, options)
			}
		}
	}()

	return errChan, nil
}

func (q *ICQueue) isClosed() bool {
	q.mutex.RLock()
	defer q.mutex.RUnlock()

	return q.closed
}

// handleDelivery applies the acknowledgement policy: unparsable bodies are dropped without requeue,
// handler success acks, handler failure nacks with the requeue decision carried by the error.
func (q *ICQueue) handleDelivery(ctx context.Context, delivery amqp.Delivery, handler Handler, options consumeOptions) {
	msg, err := newMessage(delivery)
	if err != nil {
		options.logger.Error().Err(err).
			Str("routing_key", delivery.RoutingKey).
			Str("message_id", delivery.MessageId).
			Msg("failed to parse message, dropping it")
		options.errHandler(err)

		if nackErr := delivery.Nack(false, false); nackErr != nil {
			options.errHandler(fmt.Errorf("failed to nack unparsable message: %w", nackErr))
		}

		options.observer(OutcomeUnparsable, 0)

		return
	}

	ctx = q.propagator.Extract(ctx, headerCarrier(delivery.Headers))
	ctx, span := q.tracer.Start(ctx, q.queueNameOrExchange()+" process",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(messagingAttributes(delivery.Exchange, delivery.RoutingKey)...),
	)
	defer span.End()

	startedAt := time.Now()
	handlerErr := handler(ctx, msg)
	elapsed := time.Since(startedAt)

	if handlerErr == nil {
		if err := delivery.Ack(false); err != nil {
			options.errHandler(fmt.Errorf("failed to ack message: %w", err))
		}

		options.observer(OutcomeAcked, elapsed)

		return
	}

	span.RecordError(handlerErr)
	span.SetStatus(codes.Error, "handler failed")

	requeue := shouldRequeue(handlerErr)

	options.logger.Error().Err(handlerErr).
		Str("routing_key", msg.RoutingKey).
		Str("message_id", msg.MessageID).
		Str("requeue", fmt.Sprint(requeue)).
		Msg("message handler failed")
	options.errHandler(handlerErr)

	if err := delivery.Nack(false, requeue); err != nil {
		options.errHandler(fmt.Errorf("failed to nack message: %w", err))
	}

	if requeue {
		options.observer(OutcomeRequeued, elapsed)
	} else {
		options.observer(OutcomeDiscarded, elapsed)
	}
}

func (q *ICQueue) queueNameOrExchange() string {
	if name := q.QueueName(); name != "" {
		return name
	}

	return q.config.Exchange
}
