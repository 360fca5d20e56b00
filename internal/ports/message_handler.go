package ports

import (
	"context"

	"github.com/architeacher/svc-icqueue/pkg/queue"
)

// MessageHandler defines the interface for processing queue messages
type MessageHandler interface {
	ProcessMessage(ctx context.Context, msg queue.Message) error
}
