package decorator

import (
	"context"
	"fmt"
	"strings"
)

type (
	// CommandHandler changes state and may return a result describing the change.
	CommandHandler[C any, R any] interface {
		Handle(ctx context.Context, cmd C) (R, error)
	}

	// QueryHandler reads state without changing it.
	QueryHandler[Q any, R any] interface {
		Execute(ctx context.Context, query Q) (R, error)
	}

	MetricsClient interface {
		Inc(key string, value int)
	}
)

func ApplyCommandDecorators[C any, R any](
	handler CommandHandler[C, R],
	logger Logger,
	tracerProvider TracerProvider,
	metricsClient MetricsClient,
) CommandHandler[C, R] {
	return commandLoggingDecorator[C, R]{
		base: commandMetricsDecorator[C, R]{
			base: commandTracingDecorator[C, R]{
				base:   handler,
				tracer: tracerProvider.Tracer(instrumentationName),
			},
			client: metricsClient,
		},
		logger: logger,
	}
}

func ApplyQueryDecorators[Q any, R any](
	handler QueryHandler[Q, R],
	logger Logger,
	tracerProvider TracerProvider,
	metricsClient MetricsClient,
) QueryHandler[Q, R] {
	return queryLoggingDecorator[Q, R]{
		base: queryMetricsDecorator[Q, R]{
			base: queryTracingDecorator[Q, R]{
				base:   handler,
				tracer: tracerProvider.Tracer(instrumentationName),
			},
			client: metricsClient,
		},
		logger: logger,
	}
}

// actionName turns "commands.RelayMessageCommand" into "RelayMessageCommand".
func actionName(action any) string {
	name := fmt.Sprintf("%T", action)
	if idx := strings.LastIndexByte(name, '.'); idx >= 0 {
		return name[idx+1:]
	}

	return name
}
