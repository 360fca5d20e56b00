package infrastructure

import (
	"context"
	"net/http"
	"time"
)

type (
	NoOp struct{}

	NoOpMetrics struct{}
)

var _ Metrics = (*NoOpMetrics)(nil)

func (d NoOp) Inc(_ string, _ int) {
}

func (n *NoOpMetrics) RecordHTTPRequest(_ context.Context, _, _ string, _ int, _ time.Duration, _, _ int64) {
}

func (n *NoOpMetrics) RecordPublish(_ context.Context, _ string, _ bool, _ time.Duration) {
}

func (n *NoOpMetrics) RecordConsume(_ context.Context, _ string, _ time.Duration) {
}

func (n *NoOpMetrics) RecordOutboxEvent(_ context.Context, _ bool, _ string) {
}

func (n *NoOpMetrics) RecordRelay(_ context.Context, _ string) {
}

func (n *NoOpMetrics) RecordUseCase(_ context.Context, _ string, _ bool) {
}

func (n *NoOpMetrics) Handler() http.Handler {
	return http.NotFoundHandler()
}

func (n *NoOpMetrics) Shutdown(_ context.Context) error {
	return nil
}
