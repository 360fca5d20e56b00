package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	OutboxStatusPending    OutboxStatus = "pending"
	OutboxStatusProcessing OutboxStatus = "processing"
	OutboxStatusPublished  OutboxStatus = "published"
	OutboxStatusFailed     OutboxStatus = "failed"

	DefaultOutboxMaxRetries = 3
)

type (
	OutboxStatus string

	// OutboxEvent is a message staged in the database and relayed to the broker by the outbox processor.
	OutboxEvent struct {
		ID           uuid.UUID         `json:"id"`
		RoutingKey   string            `json:"routing_key"`
		Payload      json.RawMessage   `json:"payload"`
		Headers      map[string]string `json:"headers,omitempty"`
		RetryCount   int               `json:"retry_count"`
		MaxRetries   int               `json:"max_retries"`
		Status       OutboxStatus      `json:"status"`
		ErrorDetails *string           `json:"error_details,omitempty"`
		CreatedAt    time.Time         `json:"created_at"`
		StartedAt    *time.Time        `json:"started_at,omitempty"`
		PublishedAt  *time.Time        `json:"published_at,omitempty"`
		NextRetryAt  *time.Time        `json:"next_retry_at,omitempty"`
	}

	// PublishOutboxEventResult represents the result of publishing an outbox event
	PublishOutboxEventResult struct {
		Published bool
		Error     string
	}
)

// NewOutboxEvent creates a pending event for the given routing key and JSON payload.
func NewOutboxEvent(routingKey string, payload json.RawMessage, createdAt time.Time) *OutboxEvent {
	return &OutboxEvent{
		ID:         uuid.New(),
		RoutingKey: routingKey,
		Payload:    payload,
		MaxRetries: DefaultOutboxMaxRetries,
		Status:     OutboxStatusPending,
		CreatedAt:  createdAt,
	}
}

func (e *OutboxEvent) MarkProcessing(startedAt time.Time) error {
	if e.Status != OutboxStatusPending && e.Status != OutboxStatusFailed {
		return &InvalidStateTransitionError{
			From: string(e.Status),
			To:   string(OutboxStatusProcessing),
		}
	}

	e.Status = OutboxStatusProcessing
	e.StartedAt = &startedAt

	return nil
}

func (e *OutboxEvent) MarkPublished(publishedAt time.Time) error {
	if e.Status != OutboxStatusProcessing {
		return &InvalidStateTransitionError{
			From: string(e.Status),
			To:   string(OutboxStatusPublished),
		}
	}

	e.Status = OutboxStatusPublished
	e.PublishedAt = &publishedAt

	return nil
}

func (e *OutboxEvent) MarkFailed(errorDetails string, nextRetryAt *time.Time) error {
	if e.RetryCount >= e.MaxRetries {
		return &MaxRetriesExceededError{
			EventID:    e.ID.String(),
			RetryCount: e.RetryCount,
			MaxRetries: e.MaxRetries,
		}
	}

	e.Status = OutboxStatusFailed
	e.ErrorDetails = &errorDetails
	e.NextRetryAt = nextRetryAt
	e.RetryCount++

	return nil
}

// CanRetry reports whether the attempt that just failed may be followed by
// another. MaxRetries counts attempts, so the last one is never rescheduled.
func (e *OutboxEvent) CanRetry() bool {
	return e.RetryCount+1 < e.MaxRetries
}
