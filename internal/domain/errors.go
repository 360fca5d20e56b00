package domain

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyRecord        = errors.New("empty record")
	ErrEventNotFound      = errors.New("outbox event not found")
	ErrEventAlreadyTaken  = errors.New("outbox event not found or already claimed")
	ErrRateLimitExceeded  = errors.New("rate limit exceeded")
	ErrCircuitBreakerOpen = errors.New("circuit breaker open")
	ErrDuplicateMessage   = errors.New("message already relayed")
	ErrEmptyBody          = errors.New("message body is null")
)

type (
	InvalidStateTransitionError struct {
		From string
		To   string
	}

	MaxRetriesExceededError struct {
		EventID    string
		RetryCount int
		MaxRetries int
	}
)

func (e *InvalidStateTransitionError) Error() string {
	return fmt.Sprintf("invalid state transition from %s to %s", e.From, e.To)
}

func (e *MaxRetriesExceededError) Error() string {
	return fmt.Sprintf("max retries exceeded for event %s: %d/%d", e.EventID, e.RetryCount, e.MaxRetries)
}
