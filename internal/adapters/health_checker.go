package adapters

import (
	"context"
	"time"

	"github.com/architeacher/svc-icqueue/internal/domain"
	"github.com/architeacher/svc-icqueue/internal/ports"
)

type (
	// ConnectionProbe reports whether the broker connection is open.
	ConnectionProbe interface {
		IsConnected() bool
	}

	StorageProbe interface {
		Ping(ctx context.Context) error
	}

	CacheProbe interface {
		Check(ctx context.Context) error
	}

	// HealthChecker checks the dependencies a process was started with.
	// A nil probe is reported as disabled.
	HealthChecker struct {
		queue     ConnectionProbe
		storage   StorageProbe
		cache     CacheProbe
		startTime time.Time
	}
)

func NewHealthChecker(queue ConnectionProbe, storage StorageProbe, cache CacheProbe) ports.HealthChecker {
	return &HealthChecker{
		queue:     queue,
		storage:   storage,
		cache:     cache,
		startTime: time.Now(),
	}
}

func (h *HealthChecker) CheckHealth(ctx context.Context) *domain.HealthResult {
	queueStatus := h.checkQueueHealth()
	storageStatus := h.check(ctx, h.storage != nil, func(ctx context.Context) error {
		return h.storage.Ping(ctx)
	})
	cacheStatus := h.check(ctx, h.cache != nil, func(ctx context.Context) error {
		return h.cache.Check(ctx)
	})

	return &domain.HealthResult{
		OverallStatus: domain.OverallHealth(queueStatus, storageStatus, cacheStatus),
		Queue:         queueStatus,
		Storage:       storageStatus,
		Cache:         cacheStatus,
		Uptime:        float32(time.Since(h.startTime).Seconds()),
	}
}

func (h *HealthChecker) checkQueueHealth() domain.DependencyStatus {
	if h.queue == nil {
		return disabledStatus()
	}

	status := domain.DependencyStatus{
		Status:      domain.DependencyCheckStatusHealthy,
		LastChecked: time.Now(),
	}

	if !h.queue.IsConnected() {
		status.Status = domain.DependencyCheckStatusUnhealthy
		status.Error = "not connected to broker"
	}

	return status
}

func (h *HealthChecker) check(ctx context.Context, enabled bool, probe func(ctx context.Context) error) domain.DependencyStatus {
	if !enabled {
		return disabledStatus()
	}

	start := time.Now()
	err := probe(ctx)

	status := domain.DependencyStatus{
		Status:       domain.DependencyCheckStatusHealthy,
		ResponseTime: float32(time.Since(start).Milliseconds()),
		LastChecked:  time.Now(),
	}

	if err != nil {
		status.Status = domain.DependencyCheckStatusUnhealthy
		status.Error = err.Error()
	}

	return status
}

func disabledStatus() domain.DependencyStatus {
	return domain.DependencyStatus{
		Status:      domain.DependencyCheckStatusDisabled,
		LastChecked: time.Now(),
	}
}
