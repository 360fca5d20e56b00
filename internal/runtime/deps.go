package runtime

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"

	"github.com/hashicorp/vault/api"

	"github.com/architeacher/svc-icqueue/internal/adapters"
	"github.com/architeacher/svc-icqueue/internal/adapters/http/handlers"
	queueadapter "github.com/architeacher/svc-icqueue/internal/adapters/queue"
	"github.com/architeacher/svc-icqueue/internal/config"
	"github.com/architeacher/svc-icqueue/internal/infrastructure"
	"github.com/architeacher/svc-icqueue/internal/ports"
	"github.com/architeacher/svc-icqueue/internal/usecases"
)

type (
	Applications struct {
		Publisher  *usecases.PublisherApplication
		Subscriber *usecases.SubscriberApplication
	}

	ApplicationWorkers struct {
		// RecordSource feeds the publisher, either from stdin or from the outbox table.
		RecordSource ports.BackgroundProcessor
		RelayWorker  *queueadapter.RelayWorker
	}

	TracerShutdownFunc func(ctx context.Context) error

	InfrastructureDeps struct {
		OpsServer           *http.Server
		SecretStorageClient *api.Client
		StorageClient       *infrastructure.Storage
		QueueClient         infrastructure.Queue
		CacheClient         *infrastructure.CacheClient
		Metrics             infrastructure.Metrics
	}

	Repos struct {
		SecretStorageRepo ports.SecretsRepository
		OutboxRepo        ports.OutboxRepository
		DedupRepo         ports.DedupRepository
	}

	Dependencies struct {
		Apps    Applications
		Workers ApplicationWorkers

		cfg          *config.ServiceConfig
		configLoader *config.Loader

		logger infrastructure.Logger

		Infra InfrastructureDeps
		Repos Repos

		input       io.Reader
		relayOutput io.WriteCloser

		tracerShutdownFunc TracerShutdownFunc
		secretVersion      uint
	}
)

func initializeDependencies(ctx context.Context, opts ...DependencyOption) (*Dependencies, error) {
	cfg, err := config.Init()
	if err != nil {
		return nil, fmt.Errorf("unable to load service configuration: %w", err)
	}

	appLogger := infrastructure.New(config.LoggingConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})

	appLogger.Info().Msg("initializing dependencies...")

	deps := &Dependencies{
		cfg:    cfg,
		logger: appLogger,
	}

	// Start with default options and append any additional options.
	if err := deps.apply(append(defaultOptions(ctx), opts...)...); err != nil {
		return nil, err
	}

	deps.logger.Info().Msg("dependencies initialized successfully")

	return deps, nil
}

// apply runs the options in order. When one fails, whatever the earlier ones
// opened is released before the error is returned.
func (d *Dependencies) apply(opts ...DependencyOption) error {
	for _, opt := range opts {
		if err := opt(d); err != nil {
			releaseCtx, cancel := context.WithTimeout(context.Background(), d.cfg.HTTPServer.ShutdownTimeout)
			defer cancel()

			d.release(releaseCtx)

			return fmt.Errorf("failed to apply dependency option: %w", err)
		}
	}

	return nil
}

// release closes connections, files and telemetry exporters that were opened.
func (d *Dependencies) release(ctx context.Context) {
	if d.Infra.QueueClient != nil {
		if err := d.Infra.QueueClient.Close(); err != nil {
			d.logger.Error().Err(err).Msg("failed to close queue")
		}
	}

	if d.Infra.CacheClient != nil {
		if err := d.Infra.CacheClient.Close(); err != nil {
			d.logger.Error().Err(err).Msg("failed to close cache connection")
		}
	}

	if d.Infra.StorageClient != nil {
		if err := d.Infra.StorageClient.Close(); err != nil {
			d.logger.Error().Err(err).Msg("failed to close storage")
		}
	}

	if d.relayOutput != nil {
		if err := d.relayOutput.Close(); err != nil {
			d.logger.Error().Err(err).Msg("failed to close relay output")
		}
	}

	if d.Infra.Metrics != nil {
		if err := d.Infra.Metrics.Shutdown(ctx); err != nil {
			d.logger.Error().Err(err).Msg("failed to shutdown metrics")
		}
	}

	if d.tracerShutdownFunc != nil {
		if err := d.tracerShutdownFunc(ctx); err != nil {
			d.logger.Error().Err(err).Msg("failed to shutdown tracer")
		}
	}
}

// healthChecker only hands probes for dependencies that were actually started,
// so that missing ones are reported as disabled rather than down.
func (d *Dependencies) healthChecker() ports.HealthChecker {
	var (
		queueProbe   adapters.ConnectionProbe
		storageProbe adapters.StorageProbe
		cacheProbe   adapters.CacheProbe
	)

	if d.Infra.QueueClient != nil {
		queueProbe = d.Infra.QueueClient
	}

	if d.Infra.StorageClient != nil {
		storageProbe = d.Infra.StorageClient
	}

	if d.Infra.CacheClient != nil {
		cacheProbe = d.Infra.CacheClient
	}

	return adapters.NewHealthChecker(queueProbe, storageProbe, cacheProbe)
}

func initOpsServer(
	cfg *config.ServiceConfig,
	logger infrastructure.Logger,
	metrics infrastructure.Metrics,
	healthChecker ports.HealthChecker,
) *http.Server {
	logger.Info().Msg("creating ops server...")

	router := handlers.NewOpsRouter(cfg, handlers.NewOpsHandler(healthChecker, logger), metrics, logger)

	server := &http.Server{
		Addr:         net.JoinHostPort(cfg.HTTPServer.Host, strconv.Itoa(cfg.HTTPServer.Port)),
		Handler:      router,
		ReadTimeout:  cfg.HTTPServer.ReadTimeout,
		WriteTimeout: cfg.HTTPServer.WriteTimeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	logger.Info().Str("addr", server.Addr).Msg("ops server created")

	return server
}
