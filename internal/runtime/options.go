package runtime

import (
	"io"
	"os"
)

type ProcessOption func(*processCtx)

func WithTermination(ch chan os.Signal) ProcessOption {
	return func(ctx *processCtx) {
		ctx.shutdownChannel = ch
	}
}

func WithWaitingForServer() ProcessOption {
	return func(ctx *processCtx) {
		ctx.serverReady = make(chan struct{})
	}
}

// WithInput replaces stdin as the publisher's record source.
func WithInput(r io.Reader) ProcessOption {
	return func(ctx *processCtx) {
		ctx.input = r
	}
}
