package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/architeacher/svc-icqueue/internal/domain"
	"github.com/architeacher/svc-icqueue/internal/infrastructure"
	"github.com/architeacher/svc-icqueue/internal/ports"
)

const (
	relayResultRelayed   = "relayed"
	relayResultDuplicate = "duplicate"
	relayResultFailed    = "failed"
)

type (
	SubscriberService interface {
		RelayMessage(ctx context.Context, msg domain.RelayedMessage) (*domain.RelayMessageResult, error)
	}

	subscriberService struct {
		dedupRepo ports.DedupRepository
		out       io.Writer
		mu        *sync.Mutex
		logger    infrastructure.Logger
		metrics   infrastructure.Metrics
	}
)

// NewSubscriberService writes every relayed message as one JSON line to out.
// dedupRepo may be nil, in which case redeliveries are written again.
func NewSubscriberService(
	dedupRepo ports.DedupRepository,
	out io.Writer,
	logger infrastructure.Logger,
	metrics infrastructure.Metrics,
) SubscriberService {
	return subscriberService{
		dedupRepo: dedupRepo,
		out:       out,
		mu:        &sync.Mutex{},
		logger:    logger,
		metrics:   metrics,
	}
}

func (s subscriberService) RelayMessage(ctx context.Context, msg domain.RelayedMessage) (*domain.RelayMessageResult, error) {
	if !msg.HasBody() {
		s.metrics.RecordRelay(ctx, relayResultFailed)

		return nil, domain.ErrEmptyBody
	}

	deduplicated := false

	if s.dedupRepo != nil && msg.MessageID != "" {
		seen, err := s.dedupRepo.MarkSeen(ctx, msg.MessageID)

		switch {
		case err != nil:
			s.logger.Warn().
				Err(err).
				Str("message_id", msg.MessageID).
				Msg("dedup lookup failed, relaying anyway")

		case seen:
			s.metrics.RecordRelay(ctx, relayResultDuplicate)

			s.logger.Debug().
				Str("message_id", msg.MessageID).
				Msg("skipping duplicate message")

			return &domain.RelayMessageResult{Duplicate: true}, nil

		default:
			deduplicated = true
		}
	}

	if err := s.write(msg); err != nil {
		if deduplicated {
			if forgetErr := s.dedupRepo.Forget(ctx, msg.MessageID); forgetErr != nil {
				s.logger.Error().
					Err(forgetErr).
					Str("message_id", msg.MessageID).
					Msg("failed to forget message id")
			}
		}

		s.metrics.RecordRelay(ctx, relayResultFailed)

		return nil, fmt.Errorf("failed to relay message: %w", err)
	}

	s.metrics.RecordRelay(ctx, relayResultRelayed)

	return &domain.RelayMessageResult{Relayed: true}, nil
}

func (s subscriberService) write(msg domain.RelayedMessage) error {
	line, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	line = append(line, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.out.Write(line)

	return err
}
