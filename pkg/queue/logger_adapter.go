package queue

import (
	"github.com/rs/zerolog"
)

// ZerologAdapter adapts a zerolog.Logger to the queue logger interface.
type ZerologAdapter struct {
	logger zerolog.Logger
}

// NewZerologAdapter creates a new logger adapter tagged with the queue component.
func NewZerologAdapter(logger zerolog.Logger) *ZerologAdapter {
	return &ZerologAdapter{
		logger: logger.With().Str("component", "icqueue").Logger(),
	}
}

// Info returns an info log event
func (l *ZerologAdapter) Info() LogEvent {
	return zerologEvent{event: l.logger.Info()}
}

// Error returns an error log event
func (l *ZerologAdapter) Error() LogEvent {
	return zerologEvent{event: l.logger.Error()}
}

// Debug returns a debug log event
func (l *ZerologAdapter) Debug() LogEvent {
	return zerologEvent{event: l.logger.Debug()}
}

// zerologEvent relies on zerolog accepting a nil *Event for disabled levels.
type zerologEvent struct {
	event *zerolog.Event
}

func (e zerologEvent) Msg(msg string) {
	e.event.Msg(msg)
}

func (e zerologEvent) Err(err error) LogEvent {
	return zerologEvent{event: e.event.Err(err)}
}

func (e zerologEvent) Str(key, value string) LogEvent {
	return zerologEvent{event: e.event.Str(key, value)}
}
