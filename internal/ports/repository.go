package ports

import (
	"context"
	"time"

	"github.com/architeacher/svc-icqueue/internal/domain"
)

type (
	// OutboxRepository handles outbox events for reliable message delivery.
	OutboxRepository interface {
		// Save stores a new pending outbox event.
		Save(ctx context.Context, event *domain.OutboxEvent) error

		// FindPending finds pending outbox events ordered by creation time.
		FindPending(ctx context.Context, limit int) ([]*domain.OutboxEvent, error)

		// FindRetryable finds failed events that are ready for retry.
		FindRetryable(ctx context.Context, limit int) ([]*domain.OutboxEvent, error)

		// ClaimForProcessing atomically claims an event for processing.
		ClaimForProcessing(ctx context.Context, eventID string) (*domain.OutboxEvent, error)

		// MarkPublished marks an event as successfully published.
		MarkPublished(ctx context.Context, eventID string) error

		// MarkFailed marks an event as failed with error details and retry timing.
		MarkFailed(ctx context.Context, eventID string, errorDetails string, nextRetryAt *time.Time) error

		// MarkPermanentlyFailed marks an event as permanently failed after max retries.
		MarkPermanentlyFailed(ctx context.Context, eventID string, errorDetails string) error
	}

	// DedupRepository remembers which message ids were already handled.
	DedupRepository interface {
		// MarkSeen records id and reports whether it was recorded before.
		MarkSeen(ctx context.Context, id string) (bool, error)

		// Forget removes id so that a redelivery is handled again.
		Forget(ctx context.Context, id string) error
	}
)
