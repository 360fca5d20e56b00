package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/architeacher/svc-icqueue/pkg/queue"
)

var _ queue.Queue = (*Queue)(nil)

type Queue struct{ mock.Mock }

func (m *Queue) Connect(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

// Publish records the payload and the number of publish options.
func (m *Queue) Publish(ctx context.Context, routingKey string, payload any, opts ...queue.PublishOption) error {
	return m.Called(ctx, routingKey, payload, len(opts)).Error(0)
}

func (m *Queue) Consume(ctx context.Context, handler queue.Handler, opts ...queue.ConsumeOption) error {
	return m.Called(ctx, handler, len(opts)).Error(0)
}

func (m *Queue) StartConsumer(ctx context.Context, handler queue.Handler, opts ...queue.ConsumeOption) (<-chan error, error) {
	args := m.Called(ctx, handler, len(opts))

	errChan, _ := args.Get(0).(<-chan error)

	return errChan, args.Error(1)
}

func (m *Queue) QueueName() string {
	return m.Called().String(0)
}

func (m *Queue) IsConnected() bool {
	return m.Called().Bool(0)
}

func (m *Queue) Close() error {
	return m.Called().Error(0)
}
