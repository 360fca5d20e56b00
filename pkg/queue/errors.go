package queue

import (
	"errors"
)

var (
	// ErrInvalidConfig is returned by New when the URL or the exchange is missing.
	ErrInvalidConfig = errors.New("icqueue: invalid config")

	// ErrNotConnected is returned by operations that need an open channel.
	ErrNotConnected = errors.New("icqueue: not connected")

	// ErrAlreadyConnected is returned by Connect when the instance already holds a connection.
	ErrAlreadyConnected = errors.New("icqueue: already connected")

	// ErrDeliveryChannelClosed is reported by a consumer whose delivery channel was closed by the broker.
	ErrDeliveryChannelClosed = errors.New("icqueue: delivery channel closed")
)

// HandlerError carries the requeue decision of a failed message handler.
type HandlerError struct {
	Err     error
	Requeue bool
}

func (e *HandlerError) Error() string {
	if e.Err == nil {
		if e.Requeue {
			return "message requeued"
		}

		return "message discarded"
	}

	return e.Err.Error()
}

func (e *HandlerError) Unwrap() error {
	return e.Err
}

// Requeue marks a handler failure whose message should be redelivered.
func Requeue(err error) error {
	return &HandlerError{Err: err, Requeue: true}
}

// Discard marks a handler failure whose message should not be redelivered. It is dead-lettered
// when the queue has a dead-letter exchange.
func Discard(err error) error {
	return &HandlerError{Err: err, Requeue: false}
}

// shouldRequeue follows the AMQP client default and requeues plain errors.
func shouldRequeue(err error) bool {
	var handlerErr *HandlerError
	if errors.As(err, &handlerErr) {
		return handlerErr.Requeue
	}

	return true
}
