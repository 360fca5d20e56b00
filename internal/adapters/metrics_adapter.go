package adapters

import (
	"context"
	"strings"

	"github.com/architeacher/svc-icqueue/internal/infrastructure"
	"github.com/architeacher/svc-icqueue/internal/shared/decorator"
)

type MetricsAdapter struct {
	metrics infrastructure.Metrics
}

func NewMetricsAdapter(metrics infrastructure.Metrics) decorator.MetricsClient {
	return &MetricsAdapter{
		metrics: metrics,
	}
}

// Inc maps "<kind>.<action>.<outcome>" keys onto the use case counter.
func (m *MetricsAdapter) Inc(key string, value int) {
	name, outcome, found := cutLast(key, '.')
	if !found {
		name = key
	}

	for range value {
		m.metrics.RecordUseCase(context.Background(), name, outcome != "failure")
	}
}

func cutLast(s string, sep byte) (string, string, bool) {
	idx := strings.LastIndexByte(s, sep)
	if idx < 0 {
		return s, "", false
	}

	return s[:idx], s[idx+1:], true
}
