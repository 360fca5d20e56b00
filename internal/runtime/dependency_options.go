package runtime

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel"

	"github.com/architeacher/svc-icqueue/internal/adapters"
	"github.com/architeacher/svc-icqueue/internal/adapters/outbox"
	queueadapter "github.com/architeacher/svc-icqueue/internal/adapters/queue"
	"github.com/architeacher/svc-icqueue/internal/adapters/repos"
	"github.com/architeacher/svc-icqueue/internal/adapters/stdin"
	"github.com/architeacher/svc-icqueue/internal/config"
	"github.com/architeacher/svc-icqueue/internal/infrastructure"
	"github.com/architeacher/svc-icqueue/internal/service"
	"github.com/architeacher/svc-icqueue/internal/shared/backoff"
	"github.com/architeacher/svc-icqueue/internal/usecases"
)

const relayOutputStdout = "stdout"

type (
	DependencyOption func(*Dependencies) error
)

func defaultOptions(ctx context.Context) []DependencyOption {
	return []DependencyOption{
		WithSecretStorage(),
		WithSecretStorageRepo(),
		WithConfigLoader(ctx),
		WithMetrics(ctx),
		WithTracing(ctx),
	}
}

// WithSecretStorage initializes the Vault client using ENV config.
func WithSecretStorage() DependencyOption {
	return func(d *Dependencies) error {
		client, err := repos.NewVaultClient(d.cfg.SecretStorage)
		if err != nil {
			return err
		}

		d.Infra.SecretStorageClient = client

		return nil
	}
}

func WithSecretStorageRepo() DependencyOption {
	return func(d *Dependencies) error {
		d.Repos.SecretStorageRepo = repos.NewVaultRepository(d.Infra.SecretStorageClient)

		return nil
	}
}

func WithConfigLoader(ctx context.Context) DependencyOption {
	return func(d *Dependencies) error {
		d.configLoader = config.NewLoader(d.cfg, d.Repos.SecretStorageRepo, d.secretVersion)

		if !d.cfg.SecretStorage.Enabled {
			d.logger.Info().Msg("secret storage is disabled, skipping vault configuration loading")

			return nil
		}

		version, err := d.configLoader.Load(ctx)
		if err != nil {
			return fmt.Errorf("unable to load service configuration: %w", err)
		}

		d.secretVersion = version

		return nil
	}
}

func WithMetrics(ctx context.Context) DependencyOption {
	return func(d *Dependencies) error {
		metrics, err := infrastructure.NewMetrics(ctx, *d.cfg, d.logger)
		if err != nil {
			return fmt.Errorf("failed to initialize metrics: %w", err)
		}

		d.Infra.Metrics = metrics

		return nil
	}
}

func WithTracing(ctx context.Context) DependencyOption {
	return func(d *Dependencies) error {
		if !d.cfg.Telemetry.Traces.Enabled {
			d.tracerShutdownFunc = func(_ context.Context) error {
				return nil
			}

			return nil
		}

		tracerShutdownFunc, err := infrastructure.InitGlobalTracer(ctx, d.cfg.Telemetry, d.cfg.AppConfig)
		if err != nil {
			d.logger.Error().Err(err).Msg("failed to initialize global tracer")

			return err
		}

		d.tracerShutdownFunc = tracerShutdownFunc

		return nil
	}
}

// WithQueue connects to the broker, retrying with the configured backoff,
// and declares the exchange, the queue and its bindings.
func WithQueue(ctx context.Context) DependencyOption {
	return func(d *Dependencies) error {
		queueClient, err := infrastructure.NewQueue(d.cfg.Queue, d.logger)
		if err != nil {
			return fmt.Errorf("failed to initialize queue: %w", err)
		}

		strategy := backoff.NewExponentialStrategy(d.cfg.Backoff)

		err = backoff.Retry(ctx, strategy, d.cfg.Queue.ConnectRetries, func(ctx context.Context) error {
			if err := queueClient.Connect(ctx); err != nil {
				d.logger.Warn().Err(err).Msg("queue connection attempt failed")

				return err
			}

			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to connect to queue: %w", err)
		}

		d.logger.Info().
			Str("exchange", d.cfg.Queue.ExchangeName).
			Str("queue", queueClient.QueueName()).
			Msg("queue connection established")

		d.Infra.QueueClient = queueClient

		return nil
	}
}

// WithStorage opens the Postgres pool and makes sure the outbox table exists.
func WithStorage(ctx context.Context) DependencyOption {
	return func(d *Dependencies) error {
		storage, err := infrastructure.NewStorage(d.cfg.Storage)
		if err != nil {
			return fmt.Errorf("failed to initialize storage: %w", err)
		}

		pingCtx, cancel := context.WithTimeout(ctx, d.cfg.Storage.ConnectTimeout)
		defer cancel()

		if err := storage.Ping(pingCtx); err != nil {
			_ = storage.Close()

			return fmt.Errorf("failed to reach database: %w", err)
		}

		db, err := storage.GetDB()
		if err != nil {
			_ = storage.Close()

			return fmt.Errorf("failed to get database connection: %w", err)
		}

		outboxRepo := repos.NewOutboxRepository(db, d.cfg.Outbox.ClaimLease)
		if err := outboxRepo.Migrate(ctx); err != nil {
			_ = storage.Close()

			return err
		}

		d.Infra.StorageClient = storage
		d.Repos.OutboxRepo = outboxRepo

		return nil
	}
}

// WithCache connects to Redis when it is enabled. An unreachable cache only
// disables deduplication.
func WithCache(ctx context.Context) DependencyOption {
	return func(d *Dependencies) error {
		if !d.cfg.Cache.Enabled {
			d.logger.Info().Msg("cache is disabled, redelivered messages are relayed again")

			return nil
		}

		cacheClient := infrastructure.NewCacheClient(d.cfg.Cache)

		cacheCtx, cancel := context.WithTimeout(ctx, d.cfg.Cache.DialTimeout)
		defer cancel()

		if err := cacheClient.Check(cacheCtx); err != nil {
			d.logger.Error().Err(err).Msg("failed to connect to cache, continuing without deduplication")
			_ = cacheClient.Close()

			return nil
		}

		d.logger.Info().Msg("cache connection established")

		d.Infra.CacheClient = cacheClient
		d.Repos.DedupRepo = repos.NewDedupRepository(cacheClient, d.cfg.Cache.DedupTTL)

		return nil
	}
}

// WithPublisher wires the publishing side: the broker connection, the optional
// outbox storage, the publisher application and the record source feeding it.
func WithPublisher(ctx context.Context, input io.Reader) DependencyOption {
	return func(d *Dependencies) error {
		source := d.cfg.Publisher.Source
		if source != config.PublisherSourceStdin && source != config.PublisherSourceOutbox {
			return fmt.Errorf("unsupported publisher source %q", source)
		}

		if err := WithQueue(ctx)(d); err != nil {
			return err
		}

		if source == config.PublisherSourceOutbox {
			if err := WithStorage(ctx)(d); err != nil {
				return err
			}
		}

		rateLimiter, err := infrastructure.NewRateLimiter(d.cfg.Publisher.RatePerSecond, d.cfg.Publisher.RateBurst)
		if err != nil {
			return err
		}

		publisherService := service.NewPublisherService(
			d.Repos.OutboxRepo,
			d.Infra.QueueClient,
			d.cfg.Publisher,
			d.cfg.CircuitBreaker,
			backoff.NewExponentialStrategy(d.cfg.Backoff),
			rateLimiter,
			d.logger,
			d.Infra.Metrics,
		)

		d.Apps.Publisher = usecases.NewPublisherApplication(
			publisherService,
			d.logger,
			otel.GetTracerProvider(),
			adapters.NewMetricsAdapter(d.Infra.Metrics),
		)

		switch source {
		case config.PublisherSourceOutbox:
			d.Workers.RecordSource = outbox.NewProcessor(d.Apps.Publisher, d.cfg.Outbox, d.logger)
		default:
			if input == nil {
				input = os.Stdin
			}

			d.input = input
			d.Workers.RecordSource = stdin.NewReader(d.Apps.Publisher, d.input, d.cfg.Publisher, d.logger)
		}

		return nil
	}
}

// WithSubscriber wires the consuming side: the broker connection, the optional
// deduplication cache, the relay output and the relay worker.
func WithSubscriber(ctx context.Context) DependencyOption {
	return func(d *Dependencies) error {
		if err := WithQueue(ctx)(d); err != nil {
			return err
		}

		if err := WithCache(ctx)(d); err != nil {
			return err
		}

		output, err := openRelayOutput(d.cfg.Relay.Output)
		if err != nil {
			return err
		}

		d.relayOutput = output

		subscriberService := service.NewSubscriberService(
			d.Repos.DedupRepo,
			output,
			d.logger,
			d.Infra.Metrics,
		)

		d.Apps.Subscriber = usecases.NewSubscriberApplication(
			subscriberService,
			d.logger,
			otel.GetTracerProvider(),
			adapters.NewMetricsAdapter(d.Infra.Metrics),
		)

		d.Workers.RelayWorker = queueadapter.NewRelayWorker(d.Apps.Subscriber, d.logger)

		return nil
	}
}

// WithOpsServer builds the health and metrics server. It must come after the
// options that start the dependencies it reports on.
func WithOpsServer() DependencyOption {
	return func(d *Dependencies) error {
		if !d.cfg.HTTPServer.Enabled {
			d.logger.Info().Msg("ops server is disabled")

			return nil
		}

		d.Infra.OpsServer = initOpsServer(d.cfg, d.logger, d.Infra.Metrics, d.healthChecker())

		return nil
	}
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error {
	return nil
}

// openRelayOutput returns stdout, or the named file opened for appending.
func openRelayOutput(output string) (io.WriteCloser, error) {
	if output == "" || output == relayOutputStdout || output == "-" {
		return nopWriteCloser{Writer: os.Stdout}, nil
	}

	file, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open relay output %s: %w", output, err)
	}

	return file, nil
}
