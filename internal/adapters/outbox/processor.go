package outbox

import (
	"context"
	"sync"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/architeacher/svc-icqueue/internal/config"
	"github.com/architeacher/svc-icqueue/internal/domain"
	"github.com/architeacher/svc-icqueue/internal/infrastructure"
	"github.com/architeacher/svc-icqueue/internal/ports"
	"github.com/architeacher/svc-icqueue/internal/usecases"
	"github.com/architeacher/svc-icqueue/internal/usecases/commands"
	"github.com/architeacher/svc-icqueue/internal/usecases/queries"
)

var _ ports.BackgroundProcessor = (*Processor)(nil)

// Processor polls the outbox table and publishes pending and retryable events.
type Processor struct {
	app    *usecases.PublisherApplication
	cfg    config.OutboxConfig
	logger infrastructure.Logger
}

func NewProcessor(
	app *usecases.PublisherApplication,
	cfg config.OutboxConfig,
	logger infrastructure.Logger,
) *Processor {
	return &Processor{
		app:    app,
		cfg:    cfg,
		logger: logger,
	}
}

func (p *Processor) Start(ctx context.Context) error {
	p.logger.Info().
		Dur("poll_interval", p.cfg.PollInterval).
		Int("batch_size", p.cfg.BatchSize).
		Msg("starting outbox processor")

	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info().Msg("outbox processor shutting down")

			return ctx.Err()

		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

func (p *Processor) poll(ctx context.Context) {
	var wg sync.WaitGroup

	wg.Go(func() {
		events, err := p.app.Queries.FetchPendingOutboxEventsQueryHandler.Execute(ctx, queries.FetchPendingOutboxEventsQuery{
			BatchSize: p.cfg.BatchSize,
		})
		if err != nil {
			p.logger.Error().Err(err).Msg("failed to fetch pending events")

			return
		}

		p.publishAll(ctx, events, "pending")
	})

	wg.Go(func() {
		events, err := p.app.Queries.FetchRetryableOutboxEventsQueryHandler.Execute(ctx, queries.FetchRetryableOutboxEventsQuery{
			BatchSize: p.cfg.BatchSize,
		})
		if err != nil {
			p.logger.Error().Err(err).Msg("failed to fetch retryable events")

			return
		}

		p.publishAll(ctx, events, "retryable")
	})

	wg.Wait()
}

func (p *Processor) publishAll(ctx context.Context, events []*domain.OutboxEvent, kind string) {
	if len(events) == 0 {
		return
	}

	p.logger.Debug().Int("count", len(events)).Str("kind", kind).Msg("processing outbox events")

	workers := pool.New().WithMaxGoroutines(max(p.cfg.Concurrency, 1))

	for _, event := range events {
		if ctx.Err() != nil {
			break
		}

		workers.Go(func() {
			if ctx.Err() != nil {
				return
			}

			result, err := p.app.Commands.PublishOutboxEventHandler.Handle(ctx, commands.PublishOutboxEventCommand{
				Event: event,
			})
			if err != nil {
				p.logger.Error().
					Err(err).
					Str("event_id", event.ID.String()).
					Str("kind", kind).
					Msg("failed to process outbox event")

				return
			}

			if !result.Published {
				p.logger.Warn().
					Str("event_id", event.ID.String()).
					Str("reason", result.Error).
					Msg("outbox event not published")
			}
		})
	}

	workers.Wait()
}
