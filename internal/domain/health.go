package domain

import "time"

const (
	DependencyCheckStatusHealthy   DependencyCheckStatus = "healthy"
	DependencyCheckStatusUnhealthy DependencyCheckStatus = "unhealthy"
	DependencyCheckStatusDisabled  DependencyCheckStatus = "disabled"

	HealthResponseStatusHealthy   HealthResponseStatus = "healthy"
	HealthResponseStatusDegraded  HealthResponseStatus = "degraded"
	HealthResponseStatusUnhealthy HealthResponseStatus = "unhealthy"
)

type (
	DependencyCheckStatus string
	HealthResponseStatus  string

	// DependencyStatus represents the health status of a dependency
	DependencyStatus struct {
		Status       DependencyCheckStatus `json:"status"`
		ResponseTime float32               `json:"response_time_ms"`
		LastChecked  time.Time             `json:"last_checked"`
		Error        string                `json:"error,omitempty"`
	}

	// HealthResult contains comprehensive health check results
	HealthResult struct {
		OverallStatus HealthResponseStatus `json:"status"`
		Queue         DependencyStatus     `json:"queue"`
		Storage       DependencyStatus     `json:"storage"`
		Cache         DependencyStatus     `json:"cache"`
		Uptime        float32              `json:"uptime_seconds"`
	}
)

// OverallHealth derives the service status: the broker and the database are critical, the cache is not.
func OverallHealth(queue, storage, cache DependencyStatus) HealthResponseStatus {
	if queue.Status == DependencyCheckStatusUnhealthy || storage.Status == DependencyCheckStatusUnhealthy {
		return HealthResponseStatusUnhealthy
	}

	if cache.Status == DependencyCheckStatusUnhealthy {
		return HealthResponseStatusDegraded
	}

	return HealthResponseStatusHealthy
}
