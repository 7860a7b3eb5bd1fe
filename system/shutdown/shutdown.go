package shutdown

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
)

// ExitFunc ends the process; tests replace it.
var ExitFunc = os.Exit

// Flusher persists whatever must survive the process.
type Flusher interface {
	Flush() error
}

type closingFlusher struct {
	f       Flusher
	closers []func() error
}

// WithClosers returns a Flusher that flushes f and then runs every closer in
// order. All closers run even when an earlier step fails; the errors are joined.
// Shutdown exits the process, so resources that deferred closes would miss
// belong here.
func WithClosers(f Flusher, closers ...func() error) Flusher {
	return &closingFlusher{f: f, closers: closers}
}

func (c *closingFlusher) Flush() error {
	errs := []error{c.f.Flush()}
	for _, closeFn := range c.closers {
		errs = append(errs, closeFn())
	}
	return errors.Join(errs...)
}

// Shutdown flushes state and exits 0, or 1 when the flush fails.
func Shutdown(f Flusher) {
	if err := f.Flush(); err != nil {
		log.Error().Err(err).Msg("Failed to flush state on shutdown")
		ExitFunc(1)
		return
	}
	log.Info().Msg("State flushed, exiting")
	ExitFunc(0)
}

func ShutdownWithError(f Flusher, err error, msg string) {
	log.Error().Err(err).Msg(msg)
	Shutdown(f)
}

// OnSignal cancels ctx's work via cancel and shuts down when SIGINT or SIGTERM
// arrives. It returns without shutting down if ctx ends first.
func OnSignal(ctx context.Context, cancel context.CancelFunc, f Flusher) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)

	select {
	case sig := <-sigs:
		log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
		Shutdown(f)
	case <-ctx.Done():
	}
}
