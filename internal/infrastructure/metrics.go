package infrastructure

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/architeacher/svc-icqueue/internal/config"
)

const (
	metricsNamespace = "icqueue"
)

type (
	Metrics interface {
		RecordHTTPRequest(ctx context.Context, method, path string, statusCode int, duration time.Duration, requestSize, responseSize int64)
		RecordPublish(ctx context.Context, routingKey string, success bool, duration time.Duration)
		RecordConsume(ctx context.Context, outcome string, duration time.Duration)
		RecordOutboxEvent(ctx context.Context, success bool, routingKey string)
		RecordRelay(ctx context.Context, result string)
		RecordUseCase(ctx context.Context, name string, success bool)
		Handler() http.Handler
		Shutdown(ctx context.Context) error
	}

	OTELMetrics struct {
		meterProvider *sdkmetric.MeterProvider
		meter         metric.Meter
		logger        Logger

		httpRequestTotal     metric.Int64Counter
		httpRequestDuration  metric.Float64Histogram
		httpRequestSize      metric.Int64Histogram
		httpResponseSize     metric.Int64Histogram
		publishedTotal       metric.Int64Counter
		publishDuration      metric.Float64Histogram
		consumedTotal        metric.Int64Counter
		handlerDuration      metric.Float64Histogram
		outboxProcessedTotal metric.Int64Counter
		outboxErrorTotal     metric.Int64Counter
		relayedTotal         metric.Int64Counter
		useCaseTotal         metric.Int64Counter
	}
)

func NewMetrics(ctx context.Context, cfg config.ServiceConfig, logger Logger) (Metrics, error) {
	if !cfg.Telemetry.Metrics.Enabled {
		logger.Info().Msg("metrics disabled, using NoOp implementation")

		return &NoOpMetrics{}, nil
	}

	return NewOTELMetrics(ctx, cfg, logger)
}

func NewOTELMetrics(ctx context.Context, cfg config.ServiceConfig, logger Logger) (*OTELMetrics, error) {
	endpoint := net.JoinHostPort(cfg.Telemetry.OtelGRPCHost, cfg.Telemetry.OtelGRPCPort)

	conn, err := grpc.NewClient(
		endpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC connection to OTEL collector: %w", err)
	}

	exporter, err := otlpmetricgrpc.New(ctx, otlpmetricgrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP metric exporter: %w", err)
	}

	res, err := newResource(ctx, cfg.AppConfig)
	if err != nil {
		return nil, err
	}

	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter)),
		sdkmetric.WithResource(res),
	)

	otel.SetMeterProvider(meterProvider)

	provider, err := newOTELMetrics(meterProvider, cfg.AppConfig.ServiceVersion, logger)
	if err != nil {
		return nil, err
	}

	logger.Info().
		Str("otel_endpoint", endpoint).
		Msg("OTEL metrics provider initialized successfully")

	return provider, nil
}

func newOTELMetrics(meterProvider *sdkmetric.MeterProvider, version string, logger Logger) (*OTELMetrics, error) {
	provider := &OTELMetrics{
		meterProvider: meterProvider,
		meter:         meterProvider.Meter(metricsNamespace, metric.WithInstrumentationVersion(version)),
		logger:        logger,
	}

	if err := provider.initializeMetrics(); err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}

	return provider, nil
}

func newResource(ctx context.Context, app config.AppConfig) (*resource.Resource, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(app.ServiceName),
			semconv.ServiceVersionKey.String(app.ServiceVersion),
			semconv.ServiceInstanceIDKey.String(app.CommitSHA),
			semconv.DeploymentEnvironmentKey.String(app.Env),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	return res, nil
}

func (om *OTELMetrics) initializeMetrics() error {
	var err error

	om.httpRequestTotal, err = om.meter.Int64Counter(
		"http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return fmt.Errorf("failed to create http_requests_total counter: %w", err)
	}

	om.httpRequestDuration, err = om.meter.Float64Histogram(
		"http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return fmt.Errorf("failed to create http_request_duration_seconds histogram: %w", err)
	}

	om.httpRequestSize, err = om.meter.Int64Histogram(
		"http_request_size_bytes",
		metric.WithDescription("HTTP request size in bytes"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return fmt.Errorf("failed to create http_request_size_bytes histogram: %w", err)
	}

	om.httpResponseSize, err = om.meter.Int64Histogram(
		"http_response_size_bytes",
		metric.WithDescription("HTTP response size in bytes"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return fmt.Errorf("failed to create http_response_size_bytes histogram: %w", err)
	}

	om.publishedTotal, err = om.meter.Int64Counter(
		"messages_published_total",
		metric.WithDescription("Total number of publish attempts"),
		metric.WithUnit("{message}"),
	)
	if err != nil {
		return fmt.Errorf("failed to create messages_published_total counter: %w", err)
	}

	om.publishDuration, err = om.meter.Float64Histogram(
		"publish_duration_seconds",
		metric.WithDescription("Time spent handing a message to the broker in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return fmt.Errorf("failed to create publish_duration_seconds histogram: %w", err)
	}

	om.consumedTotal, err = om.meter.Int64Counter(
		"messages_consumed_total",
		metric.WithDescription("Total number of consumed messages by acknowledgement outcome"),
		metric.WithUnit("{message}"),
	)
	if err != nil {
		return fmt.Errorf("failed to create messages_consumed_total counter: %w", err)
	}

	om.handlerDuration, err = om.meter.Float64Histogram(
		"handler_duration_seconds",
		metric.WithDescription("Message handler duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return fmt.Errorf("failed to create handler_duration_seconds histogram: %w", err)
	}

	om.outboxProcessedTotal, err = om.meter.Int64Counter(
		"outbox_processed_total",
		metric.WithDescription("Total number of outbox events processed"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return fmt.Errorf("failed to create outbox_processed_total counter: %w", err)
	}

	om.outboxErrorTotal, err = om.meter.Int64Counter(
		"outbox_errors_total",
		metric.WithDescription("Total number of outbox processing errors"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return fmt.Errorf("failed to create outbox_errors_total counter: %w", err)
	}

	om.relayedTotal, err = om.meter.Int64Counter(
		"messages_relayed_total",
		metric.WithDescription("Total number of consumed messages written by the relay"),
		metric.WithUnit("{message}"),
	)
	if err != nil {
		return fmt.Errorf("failed to create messages_relayed_total counter: %w", err)
	}

	om.useCaseTotal, err = om.meter.Int64Counter(
		"usecase_executions_total",
		metric.WithDescription("Total number of command and query executions"),
		metric.WithUnit("{execution}"),
	)
	if err != nil {
		return fmt.Errorf("failed to create usecase_executions_total counter: %w", err)
	}

	return nil
}

func (om *OTELMetrics) RecordHTTPRequest(ctx context.Context, method, path string, statusCode int, duration time.Duration, requestSize, responseSize int64) {
	attrs := metric.WithAttributes(
		HTTPMethodAttr(method),
		HTTPPathAttr(path),
		HTTPStatusCodeAttr(statusCode),
	)

	om.httpRequestTotal.Add(ctx, 1, attrs)
	om.httpRequestDuration.Record(ctx, duration.Seconds(), attrs)
	om.httpRequestSize.Record(ctx, requestSize,
		metric.WithAttributes(
			HTTPMethodAttr(method),
			HTTPPathAttr(path),
		),
	)
	om.httpResponseSize.Record(ctx, responseSize, attrs)
}

func (om *OTELMetrics) RecordPublish(ctx context.Context, routingKey string, success bool, duration time.Duration) {
	attrs := metric.WithAttributes(
		RoutingKeyAttr(routingKey),
		StatusAttr(success),
	)

	om.publishedTotal.Add(ctx, 1, attrs)
	om.publishDuration.Record(ctx, duration.Seconds(), attrs)
}

func (om *OTELMetrics) RecordConsume(ctx context.Context, outcome string, duration time.Duration) {
	attrs := metric.WithAttributes(OutcomeAttr(outcome))

	om.consumedTotal.Add(ctx, 1, attrs)
	om.handlerDuration.Record(ctx, duration.Seconds(), attrs)
}

func (om *OTELMetrics) RecordOutboxEvent(ctx context.Context, success bool, routingKey string) {
	if success {
		om.outboxProcessedTotal.Add(ctx, 1,
			metric.WithAttributes(
				RoutingKeyAttr(routingKey),
			),
		)

		return
	}

	om.outboxErrorTotal.Add(ctx, 1,
		metric.WithAttributes(
			RoutingKeyAttr(routingKey),
		),
	)
}

func (om *OTELMetrics) RecordRelay(ctx context.Context, result string) {
	om.relayedTotal.Add(ctx, 1,
		metric.WithAttributes(
			OutcomeAttr(result),
		),
	)
}

func (om *OTELMetrics) RecordUseCase(ctx context.Context, name string, success bool) {
	om.useCaseTotal.Add(ctx, 1,
		metric.WithAttributes(
			UseCaseAttr(name),
			StatusAttr(success),
		),
	)
}

func (om *OTELMetrics) Handler() http.Handler {
	return promhttp.Handler()
}

func (om *OTELMetrics) Shutdown(ctx context.Context) error {
	if err := om.meterProvider.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown meter provider: %w", err)
	}

	return nil
}
