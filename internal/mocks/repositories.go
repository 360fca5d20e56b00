package mocks

import (
	"context"
	"time"

	"github.com/hashicorp/vault/api"
	"github.com/stretchr/testify/mock"

	"github.com/architeacher/svc-icqueue/internal/domain"
	"github.com/architeacher/svc-icqueue/internal/ports"
)

var (
	_ ports.OutboxRepository  = (*OutboxRepository)(nil)
	_ ports.DedupRepository   = (*DedupRepository)(nil)
	_ ports.SecretsRepository = (*SecretsRepository)(nil)
)

type (
	OutboxRepository  struct{ mock.Mock }
	DedupRepository   struct{ mock.Mock }
	SecretsRepository struct{ mock.Mock }
)

func (m *OutboxRepository) Save(ctx context.Context, event *domain.OutboxEvent) error {
	return m.Called(ctx, event).Error(0)
}

func (m *OutboxRepository) FindPending(ctx context.Context, limit int) ([]*domain.OutboxEvent, error) {
	args := m.Called(ctx, limit)

	return eventsArg(args, 0), args.Error(1)
}

func (m *OutboxRepository) FindRetryable(ctx context.Context, limit int) ([]*domain.OutboxEvent, error) {
	args := m.Called(ctx, limit)

	return eventsArg(args, 0), args.Error(1)
}

func (m *OutboxRepository) ClaimForProcessing(ctx context.Context, eventID string) (*domain.OutboxEvent, error) {
	args := m.Called(ctx, eventID)

	event, _ := args.Get(0).(*domain.OutboxEvent)

	return event, args.Error(1)
}

func (m *OutboxRepository) MarkPublished(ctx context.Context, eventID string) error {
	return m.Called(ctx, eventID).Error(0)
}

func (m *OutboxRepository) MarkFailed(ctx context.Context, eventID string, errorDetails string, nextRetryAt *time.Time) error {
	return m.Called(ctx, eventID, errorDetails, nextRetryAt).Error(0)
}

func (m *OutboxRepository) MarkPermanentlyFailed(ctx context.Context, eventID string, errorDetails string) error {
	return m.Called(ctx, eventID, errorDetails).Error(0)
}

func (m *DedupRepository) MarkSeen(ctx context.Context, id string) (bool, error) {
	args := m.Called(ctx, id)

	return args.Bool(0), args.Error(1)
}

func (m *DedupRepository) Forget(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *SecretsRepository) SetToken(v string) {
	m.Called(v)
}

func (m *SecretsRepository) GetSecrets(ctx context.Context, path string) (*api.Secret, error) {
	args := m.Called(ctx, path)

	secret, _ := args.Get(0).(*api.Secret)

	return secret, args.Error(1)
}

func (m *SecretsRepository) WriteWithContext(ctx context.Context, path string, data map[string]any) (*api.Secret, error) {
	args := m.Called(ctx, path, data)

	secret, _ := args.Get(0).(*api.Secret)

	return secret, args.Error(1)
}

func eventsArg(args mock.Arguments, idx int) []*domain.OutboxEvent {
	events, _ := args.Get(idx).([]*domain.OutboxEvent)

	return events
}
