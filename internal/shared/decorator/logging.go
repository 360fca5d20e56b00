package decorator

import (
	"context"

	"github.com/rs/zerolog"
)

// Logger is satisfied by infrastructure.Logger.
type Logger interface {
	Debug() *zerolog.Event
	Error() *zerolog.Event
}

type (
	commandLoggingDecorator[C any, R any] struct {
		base   CommandHandler[C, R]
		logger Logger
	}

	queryLoggingDecorator[Q any, R any] struct {
		base   QueryHandler[Q, R]
		logger Logger
	}
)

func (d commandLoggingDecorator[C, R]) Handle(ctx context.Context, cmd C) (result R, err error) {
	name := actionName(cmd)

	d.logger.Debug().Str("command", name).Msg("executing command")

	defer func() {
		if err != nil {
			d.logger.Error().Err(err).Str("command", name).Msg("failed to execute command")

			return
		}

		d.logger.Debug().Str("command", name).Msg("command executed successfully")
	}()

	return d.base.Handle(ctx, cmd)
}

func (d queryLoggingDecorator[Q, R]) Execute(ctx context.Context, query Q) (result R, err error) {
	name := actionName(query)

	d.logger.Debug().Str("query", name).Msg("executing query")

	defer func() {
		if err != nil {
			d.logger.Error().Err(err).Str("query", name).Msg("failed to execute query")
		}
	}()

	return d.base.Execute(ctx, query)
}
