package infrastructure

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/architeacher/svc-icqueue/internal/config"
)

func newTestOTELMetrics(t *testing.T) (*OTELMetrics, *sdkmetric.ManualReader) {
	t.Helper()

	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	metrics, err := newOTELMetrics(provider, "test", NewTestLogger())
	require.NoError(t, err)

	return metrics, reader
}

func collectSum(t *testing.T, reader *sdkmetric.ManualReader, name string) int64 {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(t.Context(), &rm))

	var total int64

	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			if m.Name != name {
				continue
			}

			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok, "metric %s is not an int64 sum", name)

			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
		}
	}

	return total
}

func TestNewMetrics_Disabled(t *testing.T) {
	t.Parallel()

	metrics, err := NewMetrics(t.Context(), config.ServiceConfig{}, NewTestLogger())
	require.NoError(t, err)

	assert.IsType(t, &NoOpMetrics{}, metrics)

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.NoError(t, metrics.Shutdown(t.Context()))
}

func TestOTELMetrics_Record(t *testing.T) {
	t.Parallel()

	metrics, reader := newTestOTELMetrics(t)
	ctx := t.Context()

	metrics.RecordPublish(ctx, "invoice.created", true, 2*time.Millisecond)
	metrics.RecordPublish(ctx, "invoice.created", false, time.Millisecond)
	metrics.RecordConsume(ctx, "acked", time.Millisecond)
	metrics.RecordOutboxEvent(ctx, true, "invoice.created")
	metrics.RecordOutboxEvent(ctx, false, "invoice.created")
	metrics.RecordOutboxEvent(ctx, false, "invoice.created")
	metrics.RecordRelay(ctx, "relayed")
	metrics.RecordUseCase(ctx, "RelayMessageCommand", true)
	metrics.RecordHTTPRequest(ctx, http.MethodGet, "/health", http.StatusOK, time.Millisecond, 0, 42)

	assert.Equal(t, int64(2), collectSum(t, reader, "messages_published_total"))
	assert.Equal(t, int64(1), collectSum(t, reader, "messages_consumed_total"))
	assert.Equal(t, int64(1), collectSum(t, reader, "outbox_processed_total"))
	assert.Equal(t, int64(2), collectSum(t, reader, "outbox_errors_total"))
	assert.Equal(t, int64(1), collectSum(t, reader, "messages_relayed_total"))
	assert.Equal(t, int64(1), collectSum(t, reader, "usecase_executions_total"))
	assert.Equal(t, int64(1), collectSum(t, reader, "http_requests_total"))

	require.NoError(t, metrics.Shutdown(ctx))
}

func TestStatusAttr(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "success", StatusAttr(true).Value.AsString())
	assert.Equal(t, "error", StatusAttr(false).Value.AsString())
	assert.Equal(t, "503", HTTPStatusCodeAttr(http.StatusServiceUnavailable).Value.AsString())
}
