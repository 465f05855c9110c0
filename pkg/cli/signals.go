package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// ShutdownSignals are the signals that cancel a SignalContext.
var ShutdownSignals = []os.Signal{os.Interrupt, syscall.SIGTERM}

// SignalContext returns a context that is canceled on SIGINT or SIGTERM,
// or when stop is called. A second signal after the first is delivered with
// the default behavior, so a stuck shutdown can still be interrupted.
func SignalContext(parent context.Context) (ctx context.Context, stop context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, ShutdownSignals...)

	go func() {
		select {
		case <-sigChan:
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigChan)
	}()

	return ctx, cancel
}

// Interrupted reports whether ctx was canceled, for mapping to ExitAborted.
func Interrupted(ctx context.Context) bool {
	return ctx.Err() != nil
}
