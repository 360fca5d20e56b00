package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/architeacher/svc-icqueue/internal/config"
	"github.com/architeacher/svc-icqueue/internal/domain"
	"github.com/architeacher/svc-icqueue/internal/infrastructure"
	"github.com/architeacher/svc-icqueue/internal/usecases"
)

type (
	stubPublisherService struct {
		mu           sync.Mutex
		pending      []*domain.OutboxEvent
		retryable    []*domain.OutboxEvent
		pendingErr   error
		retryableErr error
		rejected     map[string]string
		onPublish    func(event *domain.OutboxEvent)
		published    []string
		attempted    []string
	}

	discardMetrics struct{}
)

func (discardMetrics) Inc(string, int) {}

func (s *stubPublisherService) PublishRecord(context.Context, domain.PublishRecord) error {
	return nil
}

func (s *stubPublisherService) FetchPendingEvents(context.Context, int) ([]*domain.OutboxEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pendingErr != nil {
		return nil, s.pendingErr
	}

	events := s.pending
	s.pending = nil

	return events, nil
}

func (s *stubPublisherService) FetchRetryableEvents(context.Context, int) ([]*domain.OutboxEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.retryableErr != nil {
		return nil, s.retryableErr
	}

	events := s.retryable
	s.retryable = nil

	return events, nil
}

func (s *stubPublisherService) PublishEvent(_ context.Context, event *domain.OutboxEvent) (*domain.PublishOutboxEventResult, error) {
	if s.onPublish != nil {
		s.onPublish(event)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.attempted = append(s.attempted, event.RoutingKey)

	if reason, ok := s.rejected[event.RoutingKey]; ok {
		return &domain.PublishOutboxEventResult{Published: false, Error: reason}, nil
	}

	s.published = append(s.published, event.RoutingKey)

	return &domain.PublishOutboxEventResult{Published: true}, nil
}

func (s *stubPublisherService) publishedKeys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]string(nil), s.published...)
}

func (s *stubPublisherService) attemptedKeys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]string(nil), s.attempted...)
}

func (s *stubPublisherService) queuePending(events ...*domain.OutboxEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pending = append(s.pending, events...)
}

func newTestProcessor(svc *stubPublisherService, concurrency int) *Processor {
	logger := infrastructure.NewTestLogger()
	app := usecases.NewPublisherApplication(svc, logger, noop.NewTracerProvider(), discardMetrics{})

	return NewProcessor(app, config.OutboxConfig{
		PollInterval: 5 * time.Millisecond,
		BatchSize:    10,
		Concurrency:  concurrency,
	}, logger)
}

func outboxEvent(routingKey string) *domain.OutboxEvent {
	return domain.NewOutboxEvent(routingKey, json.RawMessage(`{}`), time.Now())
}

func TestProcessor_PublishesPendingAndRetryable(t *testing.T) {
	t.Parallel()

	svc := &stubPublisherService{
		pending: []*domain.OutboxEvent{
			domain.NewOutboxEvent("a", json.RawMessage(`1`), time.Now()),
			domain.NewOutboxEvent("b", json.RawMessage(`2`), time.Now()),
		},
		retryable: []*domain.OutboxEvent{
			domain.NewOutboxEvent("c", json.RawMessage(`3`), time.Now()),
		},
	}

	processor := newTestProcessor(svc, 2)

	ctx, cancel := context.WithCancel(t.Context())

	done := make(chan error, 1)
	go func() { done <- processor.Start(ctx) }()

	require.Eventually(t, func() bool {
		return len(svc.publishedKeys()) == 3
	}, time.Second, 5*time.Millisecond)

	cancel()

	require.ErrorIs(t, <-done, context.Canceled)
	assert.ElementsMatch(t, []string{"a", "b", "c"}, svc.publishedKeys())
}

func TestProcessor_FetchErrorDoesNotBlockOtherBatch(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		svc          *stubPublisherService
		expectedKeys []string
	}{
		{
			name: "pending fetch fails",
			svc: &stubPublisherService{
				pendingErr: errors.New("connection reset"),
				retryable:  []*domain.OutboxEvent{outboxEvent("retry")},
			},
			expectedKeys: []string{"retry"},
		},
		{
			name: "retryable fetch fails",
			svc: &stubPublisherService{
				pending:      []*domain.OutboxEvent{outboxEvent("fresh")},
				retryableErr: errors.New("connection reset"),
			},
			expectedKeys: []string{"fresh"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			processor := newTestProcessor(tt.svc, 1)

			processor.poll(t.Context())

			assert.Equal(t, tt.expectedKeys, tt.svc.publishedKeys())
		})
	}
}

func TestProcessor_KeepsPollingAfterUnpublishedEvent(t *testing.T) {
	t.Parallel()

	svc := &stubPublisherService{
		pending:  []*domain.OutboxEvent{outboxEvent("broken")},
		rejected: map[string]string{"broken": "failed to publish to queue: nack"},
	}

	processor := newTestProcessor(svc, 1)

	ctx, cancel := context.WithCancel(t.Context())

	done := make(chan error, 1)
	go func() { done <- processor.Start(ctx) }()

	require.Eventually(t, func() bool {
		return len(svc.attemptedKeys()) == 1
	}, time.Second, 5*time.Millisecond)

	svc.queuePending(outboxEvent("next"))

	require.Eventually(t, func() bool {
		return len(svc.publishedKeys()) == 1
	}, time.Second, 5*time.Millisecond)

	cancel()

	require.ErrorIs(t, <-done, context.Canceled)
	assert.Equal(t, []string{"broken", "next"}, svc.attemptedKeys())
	assert.Equal(t, []string{"next"}, svc.publishedKeys())
}

func TestProcessor_StopsDispatchingOnCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	svc := &stubPublisherService{
		pending: []*domain.OutboxEvent{outboxEvent("a"), outboxEvent("b"), outboxEvent("c")},
		onPublish: func(*domain.OutboxEvent) {
			cancel()
		},
	}

	processor := newTestProcessor(svc, 1)

	processor.poll(ctx)

	assert.Equal(t, []string{"a"}, svc.attemptedKeys())
}
