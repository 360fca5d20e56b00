package mocks

import (
	"context"
	"net/http"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/architeacher/svc-icqueue/internal/infrastructure"
)

var _ infrastructure.Metrics = (*Metrics)(nil)

// Metrics is a testify mock; durations are not passed to Called so expectations stay stable.
type Metrics struct{ mock.Mock }

func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, path string, statusCode int, _ time.Duration, requestSize, responseSize int64) {
	m.Called(ctx, method, path, statusCode, requestSize, responseSize)
}

func (m *Metrics) RecordPublish(ctx context.Context, routingKey string, success bool, _ time.Duration) {
	m.Called(ctx, routingKey, success)
}

func (m *Metrics) RecordConsume(ctx context.Context, outcome string, _ time.Duration) {
	m.Called(ctx, outcome)
}

func (m *Metrics) RecordOutboxEvent(ctx context.Context, success bool, routingKey string) {
	m.Called(ctx, success, routingKey)
}

func (m *Metrics) RecordRelay(ctx context.Context, result string) {
	m.Called(ctx, result)
}

func (m *Metrics) RecordUseCase(ctx context.Context, name string, success bool) {
	m.Called(ctx, name, success)
}

func (m *Metrics) Handler() http.Handler {
	handler, _ := m.Called().Get(0).(http.Handler)

	return handler
}

func (m *Metrics) Shutdown(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}
