package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
)

// processCtx carries what the publisher and the subscriber processes share:
// dependency wiring, the ops server, signal handling and teardown.
type processCtx struct {
	name string
	deps *Dependencies

	input io.Reader

	shutdownChannel chan os.Signal

	runCtx      context.Context
	runStopFunc context.CancelFunc

	serverReady chan struct{}
	failed      atomic.Bool
}

func newProcessCtx(name string, opt ...ProcessOption) *processCtx {
	pCtx := &processCtx{name: name}

	for i := range opt {
		opt[i](pCtx)
	}

	if pCtx.shutdownChannel == nil {
		pCtx.shutdownChannel = make(chan os.Signal, 1)
	}

	return pCtx
}

// build initializes the process components.
func (c *processCtx) build(options func(ctx context.Context) []DependencyOption) error {
	c.runCtx, c.runStopFunc = context.WithCancel(context.Background())

	deps, err := initializeDependencies(c.runCtx, options(c.runCtx)...)
	if err != nil {
		c.runStopFunc()
		c.signalServerReady()

		return err
	}

	c.deps = deps

	return nil
}

// startOpsServer starts the health and metrics endpoints when they are enabled.
func (c *processCtx) startOpsServer() {
	server := c.deps.Infra.OpsServer
	if server == nil {
		c.signalServerReady()

		return
	}

	listener, err := net.Listen("tcp", server.Addr)
	if err != nil {
		c.fail(err, "unable to start ops server")
		c.signalServerReady()

		return
	}

	c.deps.logger.Info().
		Str("address", listener.Addr().String()).
		Msg("ops server starting up")

	c.signalServerReady()

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			c.fail(err, "ops server stopped unexpectedly")
		}
	}()
}

func (c *processCtx) shutdownHook() {
	signal.Notify(c.shutdownChannel, syscall.SIGINT, syscall.SIGTERM)
}

func (c *processCtx) monitorConfigChanges() {
	reloadErrors := c.deps.configLoader.WatchConfigSignals(c.runCtx)

	go func() {
		for err := range reloadErrors {
			if err != nil {
				c.deps.logger.Error().Err(err).Msg("failed to reload config")
				continue
			}

			c.deps.logger.Info().Msg("config reloaded, connected clients keep their credentials until restart")
		}

		c.deps.logger.Info().Msg("stopping config monitor")
	}()
}

func (c *processCtx) shutdown() {
	// Waits for one of the following shutdown conditions to happen.
	select {
	case <-c.runCtx.Done():
	case <-c.shutdownChannel:
		c.deps.logger.Info().Msg("received shutdown signal")
	}

	signal.Stop(c.shutdownChannel)

	// Cancel context that underlying processes would start cleanup.
	c.runStopFunc()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), c.deps.cfg.HTTPServer.ShutdownTimeout)
	defer cancel()

	done := make(chan struct{})

	go func() {
		defer close(done)

		c.cleanup(shutdownCtx)
	}()

	select {
	case <-done:
		c.deps.logger.Info().Str("process", c.name).Msg("shutdown completed")
	case <-shutdownCtx.Done():
		c.fail(shutdownCtx.Err(), "graceful shutdown timed out")
	}
}

// WaitForServer blocks until the ops server is listening, or the process gave up starting it.
// Instantiate the process with WithWaitingForServer to use it.
//
// Example:
//
//	subscriber := runtime.NewSubscriber(runtime.WithWaitingForServer())
//	go subscriber.Run()
//
//	subscriber.WaitForServer()
func (c *processCtx) WaitForServer() {
	if c.serverReady != nil {
		<-c.serverReady
	}
}

func (c *processCtx) signalServerReady() {
	if c.serverReady == nil {
		return
	}

	select {
	case <-c.serverReady:
	default:
		close(c.serverReady)
	}
}

// fail records that the process must exit non-zero and stops it.
func (c *processCtx) fail(err error, msg string) {
	c.failed.Store(true)

	if c.deps != nil {
		c.deps.logger.Error().Err(err).Str("process", c.name).Msg(msg)
	} else {
		fmt.Fprintf(os.Stderr, "%s: %s: %v\n", c.name, msg, err)
	}

	if c.runStopFunc != nil {
		c.runStopFunc()
	}
}

func (c *processCtx) exitCode() int {
	if c.failed.Load() {
		return 1
	}

	return 0
}

func (c *processCtx) cleanup(shutdownCtx context.Context) {
	c.deps.logger.Info().Msg("cleaning up resources...")

	if c.deps.Infra.OpsServer != nil {
		if err := c.deps.Infra.OpsServer.Shutdown(shutdownCtx); err != nil {
			c.deps.logger.Error().Err(err).Msg("unable to gracefully shutdown ops server")
		}
	}

	c.deps.release(shutdownCtx)

	c.deps.logger.Info().Msg("cleanup completed")
}
