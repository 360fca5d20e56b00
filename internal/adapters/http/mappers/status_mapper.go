package mappers

import (
	"net/http"

	"github.com/architeacher/svc-icqueue/internal/domain"
)

// HealthStatusToHTTP keeps degraded processes in rotation and takes unhealthy ones out.
func HealthStatusToHTTP(status domain.HealthResponseStatus) int {
	switch status {
	case domain.HealthResponseStatusHealthy, domain.HealthResponseStatusDegraded:
		return http.StatusOK
	default:
		return http.StatusServiceUnavailable
	}
}

// ReadinessToHTTP reports ready only while the broker connection is up.
func ReadinessToHTTP(queue domain.DependencyStatus) int {
	if queue.Status == domain.DependencyCheckStatusUnhealthy {
		return http.StatusServiceUnavailable
	}

	return http.StatusOK
}
