package ports

import (
	"context"

	"github.com/architeacher/svc-icqueue/internal/domain"
)

// HealthChecker reports the state of the dependencies the service was started with.
type HealthChecker interface {
	CheckHealth(ctx context.Context) *domain.HealthResult
}
