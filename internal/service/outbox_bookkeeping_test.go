package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/architeacher/svc-icqueue/internal/config"
	"github.com/architeacher/svc-icqueue/internal/domain"
	"github.com/architeacher/svc-icqueue/internal/infrastructure"
	"github.com/architeacher/svc-icqueue/internal/mocks"
)

// memoryOutboxRepository keeps events in memory and refuses work on a done
// context, the way a database driver does.
type memoryOutboxRepository struct {
	mu     sync.Mutex
	events map[string]*domain.OutboxEvent
}

func newMemoryOutboxRepository(events ...*domain.OutboxEvent) *memoryOutboxRepository {
	repo := &memoryOutboxRepository{events: make(map[string]*domain.OutboxEvent, len(events))}
	for _, event := range events {
		repo.events[event.ID.String()] = event
	}

	return repo
}

func (r *memoryOutboxRepository) Save(ctx context.Context, event *domain.OutboxEvent) error {
	return r.with(ctx, event.ID.String(), func(*domain.OutboxEvent) {})
}

func (r *memoryOutboxRepository) FindPending(context.Context, int) ([]*domain.OutboxEvent, error) {
	return nil, nil
}

func (r *memoryOutboxRepository) FindRetryable(context.Context, int) ([]*domain.OutboxEvent, error) {
	return nil, nil
}

func (r *memoryOutboxRepository) ClaimForProcessing(ctx context.Context, eventID string) (*domain.OutboxEvent, error) {
	var claimed domain.OutboxEvent

	err := r.with(ctx, eventID, func(event *domain.OutboxEvent) {
		event.Status = domain.OutboxStatusProcessing
		claimed = *event
	})
	if err != nil {
		return nil, err
	}

	return &claimed, nil
}

func (r *memoryOutboxRepository) MarkPublished(ctx context.Context, eventID string) error {
	return r.with(ctx, eventID, func(event *domain.OutboxEvent) {
		event.Status = domain.OutboxStatusPublished
	})
}

func (r *memoryOutboxRepository) MarkFailed(ctx context.Context, eventID, errorDetails string, nextRetryAt *time.Time) error {
	return r.with(ctx, eventID, func(event *domain.OutboxEvent) {
		event.Status = domain.OutboxStatusFailed
		event.RetryCount++
		event.ErrorDetails = &errorDetails
		event.NextRetryAt = nextRetryAt
	})
}

func (r *memoryOutboxRepository) MarkPermanentlyFailed(ctx context.Context, eventID, errorDetails string) error {
	return r.with(ctx, eventID, func(event *domain.OutboxEvent) {
		event.Status = domain.OutboxStatusFailed
		event.RetryCount++
		event.ErrorDetails = &errorDetails
		event.NextRetryAt = nil
	})
}

func (r *memoryOutboxRepository) with(ctx context.Context, eventID string, fn func(*domain.OutboxEvent)) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	event, ok := r.events[eventID]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrEventNotFound, eventID)
	}

	fn(event)

	return nil
}

func (r *memoryOutboxRepository) get(eventID string) domain.OutboxEvent {
	r.mu.Lock()
	defer r.mu.Unlock()

	return *r.events[eventID]
}

func TestPublishEvent_CancelledDuringPublish(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name              string
		publishErr        error
		expectedStatus    domain.OutboxStatus
		expectedPublished bool
		expectRetryAt     bool
	}{
		{
			name:           "publish interrupted",
			publishErr:     context.Canceled,
			expectedStatus: domain.OutboxStatusFailed,
			expectRetryAt:  true,
		},
		{
			name:              "cancelled after the broker accepted the message",
			expectedStatus:    domain.OutboxStatusPublished,
			expectedPublished: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			event := domain.NewOutboxEvent("orders.created", json.RawMessage(`{"id":1}`), time.Now())
			repo := newMemoryOutboxRepository(event)

			ctx, cancel := context.WithCancel(t.Context())
			defer cancel()

			queueMock := &mocks.Queue{}
			queueMock.On("Publish", mock.Anything, "orders.created", event.Payload, 1).
				Run(func(mock.Arguments) { cancel() }).
				Return(tt.publishErr).Once()

			metrics := &mocks.Metrics{}
			metrics.On("RecordPublish", mock.Anything, "orders.created", tt.publishErr == nil).Once()
			metrics.On("RecordOutboxEvent", mock.Anything, tt.expectedPublished, "orders.created").Once()

			svc := NewPublisherService(
				repo,
				queueMock,
				config.PublisherConfig{},
				config.CircuitBreakerConfig{},
				fixedBackoff(time.Minute),
				&stubRateLimiter{},
				infrastructure.NewTestLogger(),
				metrics,
			)

			result, err := svc.PublishEvent(ctx, event)
			require.NoError(t, err)
			assert.Equal(t, tt.expectedPublished, result.Published)

			stored := repo.get(event.ID.String())
			assert.Equal(t, tt.expectedStatus, stored.Status)
			assert.Equal(t, tt.expectRetryAt, stored.NextRetryAt != nil)

			queueMock.AssertExpectations(t)
			metrics.AssertExpectations(t)
		})
	}
}
