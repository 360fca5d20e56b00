package mappers

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/architeacher/svc-icqueue/internal/domain"
)

func TestHealthStatusToHTTP(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status   domain.HealthResponseStatus
		expected int
	}{
		{status: domain.HealthResponseStatusHealthy, expected: http.StatusOK},
		{status: domain.HealthResponseStatusDegraded, expected: http.StatusOK},
		{status: domain.HealthResponseStatusUnhealthy, expected: http.StatusServiceUnavailable},
		{status: "", expected: http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.expected, HealthStatusToHTTP(tt.status))
		})
	}
}

func TestReadinessToHTTP(t *testing.T) {
	t.Parallel()

	assert.Equal(t, http.StatusOK, ReadinessToHTTP(domain.DependencyStatus{Status: domain.DependencyCheckStatusHealthy}))
	assert.Equal(t, http.StatusOK, ReadinessToHTTP(domain.DependencyStatus{Status: domain.DependencyCheckStatusDisabled}))
	assert.Equal(t, http.StatusServiceUnavailable, ReadinessToHTTP(domain.DependencyStatus{Status: domain.DependencyCheckStatusUnhealthy}))
}
