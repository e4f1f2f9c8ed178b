package signal

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// ExitInterrupted is the conventional exit status after SIGINT.
const ExitInterrupted = 130

// NotifyContext returns a child of parent that is cancelled on the first
// SIGINT or SIGTERM, letting an in-flight chat end with its terminating
// events. A second signal calls exit. The returned stop function releases
// the handler.
func NotifyContext(parent context.Context, exit func(code int)) (context.Context, context.CancelFunc) {
	if exit == nil {
		exit = os.Exit
	}
	ctx, cancel := context.WithCancel(parent)
	sigs := make(chan os.Signal, 2)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		select {
		case sig := <-sigs:
			slog.Debug("signal received, cancelling", "signal", sig.String())
			cancel()
		case <-done:
			return
		}
		select {
		case <-sigs:
			exit(ExitInterrupted)
		case <-done:
		}
	}()

	var once sync.Once
	stop := func() {
		once.Do(func() {
			signal.Stop(sigs)
			close(done)
			cancel()
		})
	}
	return ctx, stop
}
