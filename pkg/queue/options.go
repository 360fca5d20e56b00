package queue

import (
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultConnectionTimeout = 30 * time.Second
	defaultHeartbeat         = 10 * time.Second
	publishingTimeout        = 3 * time.Second
	instrumentationName      = "github.com/architeacher/svc-icqueue/pkg/queue"
)

type options struct {
	timeout        time.Duration
	heartbeat      time.Duration
	prefetchCount  int
	exchangeKind   string
	logger         Logger
	tracerProvider trace.TracerProvider
	propagator     propagation.TextMapPropagator
	dial           dialFunc
}

// Option configures an ICQueue when it is created.
type Option func(*options)

func defaultOptions() options {
	return options{
		timeout:   defaultConnectionTimeout,
		heartbeat: defaultHeartbeat,
		logger:    nopLogger{},
		dial:      dialAMQP,
	}
}

// WithLogger returns an Option which sets the logger used by the connection and its consumers.
func WithLogger(l Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithConnectionTimeout returns an Option which sets the timeout used when establishing a connection.
func WithConnectionTimeout(timeout time.Duration) Option {
	return func(o *options) {
		o.timeout = timeout
	}
}

// WithHeartbeat returns an Option which sets the heartbeat interval negotiated with the broker.
func WithHeartbeat(interval time.Duration) Option {
	return func(o *options) {
		o.heartbeat = interval
	}
}

// WithPrefetch returns an Option which limits the number of unacknowledged deliveries on the channel.
// Zero leaves the broker default in place.
func WithPrefetch(count int) Option {
	return func(o *options) {
		o.prefetchCount = count
	}
}

// WithTracerProvider returns an Option which sets the provider of publish and consume spans.
// The global provider is used otherwise.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) {
		o.tracerProvider = tp
	}
}

// WithPropagator returns an Option which sets how trace context travels in message headers.
// The global propagator is used otherwise.
func WithPropagator(p propagation.TextMapPropagator) Option {
	return func(o *options) {
		o.propagator = p
	}
}

// WithExchangeDeclaration returns an Option which makes Connect declare the configured exchange as a durable
// exchange of the given kind before binding to it. The exchange is expected to exist otherwise.
func WithExchangeDeclaration(kind string) Option {
	return func(o *options) {
		o.exchangeKind = kind
	}
}

func withDialer(dial dialFunc) Option {
	return func(o *options) {
		o.dial = dial
	}
}

func (o options) amqpConfig() amqp.Config {
	return amqp.Config{
		Heartbeat: o.heartbeat,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(o.timeout),
	}
}

func (o options) tracer() trace.Tracer {
	tp := o.tracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}

	return tp.Tracer(instrumentationName)
}

func (o options) textMapPropagator() propagation.TextMapPropagator {
	if o.propagator != nil {
		return o.propagator
	}

	return otel.GetTextMapPropagator()
}

// publishOptions configure a Publish call. publishOptions are set by the PublishOption
// values passed to Publish.
type publishOptions struct {
	timeout       time.Duration
	contentType   string
	messageID     string
	correlationID string
	expiration    string
	priority      uint8
	transient     bool
	mandatory     bool
	headers       amqp.Table
}

// PublishOption configures a single Publish call.
type PublishOption func(*publishOptions)

func defaultPublishOptions() publishOptions {
	return publishOptions{
		timeout: publishingTimeout,
	}
}

// WithPublishingTimeout returns a PublishOption which sets the timeout used when
// publishing the message.
func WithPublishingTimeout(d time.Duration) PublishOption {
	return func(o *publishOptions) {
		o.timeout = d
	}
}

// WithHeaders returns a PublishOption which adds application headers to the message.
func WithHeaders(headers amqp.Table) PublishOption {
	return func(o *publishOptions) {
		if o.headers == nil {
			o.headers = amqp.Table{}
		}

		for k, v := range headers {
			o.headers[k] = v
		}
	}
}

// WithContentType returns a PublishOption which overrides the content type derived from the payload.
func WithContentType(contentType string) PublishOption {
	return func(o *publishOptions) {
		o.contentType = contentType
	}
}

// WithMessageID returns a PublishOption which sets the message id. A random id is used otherwise.
func WithMessageID(id string) PublishOption {
	return func(o *publishOptions) {
		o.messageID = id
	}
}

// WithCorrelationID returns a PublishOption which sets the correlation id.
func WithCorrelationID(id string) PublishOption {
	return func(o *publishOptions) {
		o.correlationID = id
	}
}

// WithPriority returns a PublishOption which sets the message priority (0-9).
func WithPriority(priority uint8) PublishOption {
	return func(o *publishOptions) {
		o.priority = priority
	}
}

// WithExpiration returns a PublishOption which sets the per-message TTL.
func WithExpiration(ttl time.Duration) PublishOption {
	return func(o *publishOptions) {
		o.expiration = formatExpiration(ttl)
	}
}

// WithTransient returns a PublishOption which publishes the message without persisting it.
func WithTransient() PublishOption {
	return func(o *publishOptions) {
		o.transient = true
	}
}

// WithMandatory returns a PublishOption which asks the broker to return unroutable messages.
func WithMandatory() PublishOption {
	return func(o *publishOptions) {
		o.mandatory = true
	}
}

// Outcome is the acknowledgement applied to a consumed delivery.
type Outcome string

const (
	OutcomeAcked      Outcome = "acked"
	OutcomeRequeued   Outcome = "requeued"
	OutcomeDiscarded  Outcome = "discarded"
	OutcomeUnparsable Outcome = "unparsable"
)

type consumeOptions struct {
	consumerTag string
	errHandler  func(error)
	observer    func(Outcome, time.Duration)
	logger      Logger
}

// ConsumeOption configures a consumer.
type ConsumeOption func(*consumeOptions)

func defaultConsumeOptions(logger Logger) consumeOptions {
	return consumeOptions{
		errHandler: func(_ error) {},
		observer:   func(_ Outcome, _ time.Duration) {},
		logger:     logger,
	}
}

// WithConsumerTag returns a ConsumeOption which sets the consumer tag. A random tag is used otherwise.
func WithConsumerTag(tag string) ConsumeOption {
	return func(o *consumeOptions) {
		o.consumerTag = tag
	}
}

// WithErrorHandler returns a ConsumeOption which sets a handler for errors that occur when consuming messages.
func WithErrorHandler(handler func(error)) ConsumeOption {
	return func(o *consumeOptions) {
		if handler != nil {
			o.errHandler = handler
		}
	}
}

// WithOutcomeObserver returns a ConsumeOption which is told how every delivery was acknowledged
// and how long the handler took.
func WithOutcomeObserver(observer func(Outcome, time.Duration)) ConsumeOption {
	return func(o *consumeOptions) {
		if observer != nil {
			o.observer = observer
		}
	}
}

// WithConsumingLogger returns a ConsumeOption which sets the logger when consuming messages.
func WithConsumingLogger(logger Logger) ConsumeOption {
	return func(o *consumeOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}
