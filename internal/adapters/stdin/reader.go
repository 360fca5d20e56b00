package stdin

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/architeacher/svc-icqueue/internal/config"
	"github.com/architeacher/svc-icqueue/internal/domain"
	"github.com/architeacher/svc-icqueue/internal/infrastructure"
	"github.com/architeacher/svc-icqueue/internal/ports"
	"github.com/architeacher/svc-icqueue/internal/usecases"
	"github.com/architeacher/svc-icqueue/internal/usecases/commands"
)

var _ ports.BackgroundProcessor = (*Reader)(nil)

// ErrRecordsFailed is returned at end of input when at least one record was not published.
var ErrRecordsFailed = errors.New("some records were not published")

// Reader publishes one record per input line until the input ends.
//
// A line is either "<routing key>\t<payload>" or a bare payload that goes
// to the default routing key. Blank lines are skipped.
type Reader struct {
	app    *usecases.PublisherApplication
	input  io.Reader
	cfg    config.PublisherConfig
	logger infrastructure.Logger
}

func NewReader(
	app *usecases.PublisherApplication,
	input io.Reader,
	cfg config.PublisherConfig,
	logger infrastructure.Logger,
) *Reader {
	return &Reader{
		app:    app,
		input:  input,
		cfg:    cfg,
		logger: logger,
	}
}

func (r *Reader) Start(ctx context.Context) error {
	scanner := bufio.NewScanner(r.input)
	scanner.Buffer(make([]byte, 0, 64*1024), max(r.cfg.MaxLineBytes, 64*1024))

	var (
		lineNo    int
		published int
		failed    int
	)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}

		lineNo++

		record, err := domain.ParseRecord(scanner.Text(), r.cfg.DefaultRoutingKey)
		if errors.Is(err, domain.ErrEmptyRecord) {
			continue
		}

		if err != nil {
			failed++

			r.logger.Warn().Err(err).Int("line", lineNo).Msg("skipping malformed record")

			continue
		}

		if _, err := r.app.Commands.PublishRecordHandler.Handle(ctx, commands.PublishRecordCommand{Record: record}); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}

			failed++

			r.logger.Error().
				Err(err).
				Int("line", lineNo).
				Str("routing_key", record.RoutingKey).
				Msg("failed to publish record")

			continue
		}

		published++
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read input at line %d: %w", lineNo+1, err)
	}

	r.logger.Info().
		Int("published", published).
		Int("failed", failed).
		Msg("input exhausted")

	if failed > 0 {
		return fmt.Errorf("%w: %d of %d", ErrRecordsFailed, failed, published+failed)
	}

	return nil
}
