package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sony/gobreaker"

	"github.com/architeacher/svc-icqueue/internal/config"
	"github.com/architeacher/svc-icqueue/internal/domain"
	"github.com/architeacher/svc-icqueue/internal/infrastructure"
	"github.com/architeacher/svc-icqueue/internal/ports"
	"github.com/architeacher/svc-icqueue/internal/shared/backoff"
	"github.com/architeacher/svc-icqueue/pkg/queue"
)

// bookkeepingTimeout bounds the outbox status update that follows a publish.
// The update is detached from the caller's context, so an event interrupted by
// shutdown still leaves the processing state.
const bookkeepingTimeout = 5 * time.Second

type (
	PublisherService interface {
		PublishRecord(ctx context.Context, record domain.PublishRecord) error
		FetchPendingEvents(ctx context.Context, batchSize int) ([]*domain.OutboxEvent, error)
		FetchRetryableEvents(ctx context.Context, batchSize int) ([]*domain.OutboxEvent, error)
		PublishEvent(ctx context.Context, event *domain.OutboxEvent) (*domain.PublishOutboxEventResult, error)
	}

	// RateLimiter paces publishing.
	RateLimiter interface {
		Wait(ctx context.Context) error
	}

	publisherService struct {
		outboxRepo      ports.OutboxRepository
		queue           infrastructure.Queue
		publisherConfig config.PublisherConfig
		backoffStrategy backoff.Strategy
		circuitBreaker  *gobreaker.CircuitBreaker
		rateLimiter     RateLimiter
		logger          infrastructure.Logger
		metrics         infrastructure.Metrics
	}
)

func NewPublisherService(
	outboxRepo ports.OutboxRepository,
	queue infrastructure.Queue,
	publisherConfig config.PublisherConfig,
	circuitBreakerConfig config.CircuitBreakerConfig,
	backoffStrategy backoff.Strategy,
	rateLimiter RateLimiter,
	logger infrastructure.Logger,
	metrics infrastructure.Metrics,
) PublisherService {
	return publisherService{
		outboxRepo:      outboxRepo,
		queue:           queue,
		publisherConfig: publisherConfig,
		backoffStrategy: backoffStrategy,
		circuitBreaker:  newCircuitBreaker("publisher", circuitBreakerConfig, logger),
		rateLimiter:     rateLimiter,
		logger:          logger,
		metrics:         metrics,
	}
}

func newCircuitBreaker(name string, cfg config.CircuitBreakerConfig, logger infrastructure.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return cfg.MaxFailures > 0 && counts.ConsecutiveFailures >= cfg.MaxFailures
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Info().
				Str("name", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state changed")
		},
	})
}

// PublishRecord publishes one record read from a line oriented source.
func (s publisherService) PublishRecord(ctx context.Context, record domain.PublishRecord) error {
	return s.publish(ctx, record.RoutingKey, record.Payload)
}

func (s publisherService) FetchPendingEvents(ctx context.Context, batchSize int) ([]*domain.OutboxEvent, error) {
	return s.outboxRepo.FindPending(ctx, batchSize)
}

func (s publisherService) FetchRetryableEvents(ctx context.Context, batchSize int) ([]*domain.OutboxEvent, error) {
	return s.outboxRepo.FindRetryable(ctx, batchSize)
}

func (s publisherService) PublishEvent(ctx context.Context, event *domain.OutboxEvent) (*domain.PublishOutboxEventResult, error) {
	claimedEvent, err := s.outboxRepo.ClaimForProcessing(ctx, event.ID.String())
	if err != nil {
		s.logger.Debug().
			Str("event_id", event.ID.String()).
			Msg("failed to claim event for processing")

		return &domain.PublishOutboxEventResult{
			Published: false,
			Error:     fmt.Sprintf("failed to claim event: %v", err),
		}, nil
	}

	opts := []queue.PublishOption{queue.WithMessageID(claimedEvent.ID.String())}
	if len(claimedEvent.Headers) != 0 {
		headers := make(amqp.Table, len(claimedEvent.Headers))
		for k, v := range claimedEvent.Headers {
			headers[k] = v
		}

		opts = append(opts, queue.WithHeaders(headers))
	}

	publishErr := s.publish(ctx, claimedEvent.RoutingKey, claimedEvent.Payload, opts...)

	markCtx, cancel := bookkeepingContext(ctx)
	defer cancel()

	if publishErr != nil {
		if handleErr := s.handlePublishFailure(markCtx, claimedEvent, publishErr); handleErr != nil {
			s.logger.Error().
				Err(handleErr).
				Str("event_id", claimedEvent.ID.String()).
				Msg("failed to handle publish failure")
		}

		s.logger.Debug().
			Str("event_id", claimedEvent.ID.String()).
			Msg("failed to publish event to queue")

		return &domain.PublishOutboxEventResult{
			Published: false,
			Error:     fmt.Sprintf("failed to publish to queue: %v", publishErr),
		}, nil
	}

	if err := s.outboxRepo.MarkPublished(markCtx, claimedEvent.ID.String()); err != nil {
		s.logger.Error().
			Err(err).
			Str("event_id", claimedEvent.ID.String()).
			Msg("failed to mark event as published")

		return &domain.PublishOutboxEventResult{
			Published: false,
			Error:     fmt.Sprintf("failed to mark as published: %v", err),
		}, nil
	}

	s.metrics.RecordOutboxEvent(ctx, true, claimedEvent.RoutingKey)

	s.logger.Debug().
		Str("event_id", claimedEvent.ID.String()).
		Str("routing_key", claimedEvent.RoutingKey).
		Msg("successfully published outbox event")

	return &domain.PublishOutboxEventResult{Published: true}, nil
}

func (s publisherService) publish(ctx context.Context, routingKey string, payload any, opts ...queue.PublishOption) error {
	if err := s.rateLimiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrRateLimitExceeded, err)
	}

	if s.publisherConfig.Transient {
		opts = append(opts, queue.WithTransient())
	}

	startedAt := time.Now()

	_, err := s.circuitBreaker.Execute(func() (any, error) {
		return nil, s.queue.Publish(ctx, routingKey, payload, opts...)
	})

	s.metrics.RecordPublish(ctx, routingKey, err == nil, time.Since(startedAt))

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		s.logger.Warn().Str("routing_key", routingKey).Msg("circuit breaker is open")

		return fmt.Errorf("%w: %w", domain.ErrCircuitBreakerOpen, err)
	}

	return err
}

func bookkeepingContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), bookkeepingTimeout)
}

func (s publisherService) handlePublishFailure(ctx context.Context, event *domain.OutboxEvent, publishErr error) error {
	errorDetails := publishErr.Error()

	s.metrics.RecordOutboxEvent(ctx, false, event.RoutingKey)

	if !event.CanRetry() {
		if err := s.outboxRepo.MarkPermanentlyFailed(ctx, event.ID.String(), errorDetails); err != nil {
			return fmt.Errorf("failed to mark event as permanently failed: %w", err)
		}

		s.logger.Warn().
			Str("event_id", event.ID.String()).
			Int("retry_count", event.RetryCount).
			Msg("event permanently failed after max retries")

		return nil
	}

	backoffDuration := s.backoffStrategy.Backoff(event.RetryCount)
	nextRetryAt := time.Now().Add(backoffDuration)

	if err := s.outboxRepo.MarkFailed(ctx, event.ID.String(), errorDetails, &nextRetryAt); err != nil {
		return fmt.Errorf("failed to mark event as failed: %w", err)
	}

	s.logger.Debug().
		Str("event_id", event.ID.String()).
		Int("retry_count", event.RetryCount+1).
		Time("next_retry_at", nextRetryAt).
		Msg("event scheduled for retry")

	return nil
}
