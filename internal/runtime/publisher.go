package runtime

import (
	"context"
	"errors"
	"fmt"
	"os"
)

// PublisherCtx publishes records read from stdin, or events polled from the outbox table.
type PublisherCtx struct {
	*processCtx
}

func NewPublisher(opt ...ProcessOption) *PublisherCtx {
	return &PublisherCtx{
		processCtx: newProcessCtx("publisher", opt...),
	}
}

// Run blocks until the record source is drained, fails, or a shutdown signal arrives,
// and returns the process exit code.
func (c *PublisherCtx) Run() int {
	err := c.build(func(ctx context.Context) []DependencyOption {
		return []DependencyOption{
			WithPublisher(ctx, c.input),
			WithOpsServer(),
		}
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: failed to initialize dependencies: %v\n", err)

		return 1
	}

	c.startOpsServer()
	c.start()
	c.monitorConfigChanges()
	c.shutdownHook()
	c.shutdown()

	return c.exitCode()
}

func (c *PublisherCtx) start() {
	go func() {
		c.deps.logger.Info().
			Str("source", c.deps.cfg.Publisher.Source).
			Str("exchange", c.deps.cfg.Queue.ExchangeName).
			Msg("starting publisher")

		err := c.deps.Workers.RecordSource.Start(c.runCtx)

		switch {
		case err == nil:
			c.deps.logger.Info().Msg("record source drained")
		case errors.Is(err, context.Canceled):
		default:
			c.fail(err, "record source failed")
		}

		c.runStopFunc()
	}()
}
