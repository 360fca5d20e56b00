package queue

// Logger defines a simple logging interface to avoid depending on an application logger
type Logger interface {
	Info() LogEvent
	Error() LogEvent
	Debug() LogEvent
}

// LogEvent defines a simple log event interface
type LogEvent interface {
	Msg(string)
	Err(error) LogEvent
	Str(string, string) LogEvent
}

type nopLogger struct{}

func (nopLogger) Info() LogEvent  { return nopEvent{} }
func (nopLogger) Error() LogEvent { return nopEvent{} }
func (nopLogger) Debug() LogEvent { return nopEvent{} }

type nopEvent struct{}

func (nopEvent) Msg(string)                    {}
func (e nopEvent) Err(error) LogEvent          { return e }
func (e nopEvent) Str(string, string) LogEvent { return e }
