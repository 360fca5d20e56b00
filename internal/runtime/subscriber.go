package runtime

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/architeacher/svc-icqueue/pkg/queue"
)

// SubscriberCtx consumes the configured queue and relays every message to the relay output.
type SubscriberCtx struct {
	*processCtx
}

func NewSubscriber(opt ...ProcessOption) *SubscriberCtx {
	return &SubscriberCtx{
		processCtx: newProcessCtx("subscriber", opt...),
	}
}

// Run blocks until the consumer stops or a shutdown signal arrives, and returns the process exit code.
func (c *SubscriberCtx) Run() int {
	err := c.build(func(ctx context.Context) []DependencyOption {
		return []DependencyOption{
			WithSubscriber(ctx),
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

func (c *SubscriberCtx) start() {
	consumerLogger := queue.NewZerologAdapter(c.deps.logger.With().Str("component", "relay").Logger())

	errChan, err := c.deps.Infra.QueueClient.StartConsumer(c.runCtx, c.deps.Workers.RelayWorker.Handler(),
		queue.WithConsumerTag(fmt.Sprintf("%s-%d", c.deps.cfg.AppConfig.ServiceName, os.Getpid())),
		queue.WithConsumingLogger(consumerLogger),
		queue.WithErrorHandler(func(err error) {
			c.deps.logger.Error().Err(err).Msg("consumer error")
		}),
		queue.WithOutcomeObserver(func(outcome queue.Outcome, duration time.Duration) {
			c.deps.Infra.Metrics.RecordConsume(c.runCtx, string(outcome), duration)
		}),
	)
	if err != nil {
		c.fail(err, "failed to start consumer")

		return
	}

	c.deps.logger.Info().
		Str("queue", c.deps.Infra.QueueClient.QueueName()).
		Strs("routing_keys", c.deps.cfg.Queue.RoutingKeys).
		Msg("relaying messages")

	go func() {
		for err := range errChan {
			if errors.Is(err, context.Canceled) {
				continue
			}

			c.fail(err, "consumer stopped")
		}

		c.runStopFunc()
	}()
}
