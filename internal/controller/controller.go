package controller

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/plug-monitor/internal/clock"
	"github.com/thatsimonsguy/plug-monitor/internal/metrics"
	"github.com/thatsimonsguy/plug-monitor/internal/plug"
)

// Invalidator drops cached status so the next read reflects a command.
type Invalidator interface {
	Invalidate()
}

// Controller issues switch commands to the plug.
type Controller struct {
	switcher plug.Switcher
	cache    Invalidator
	clock    clock.Clock
	timeout  time.Duration

	mu          sync.Mutex
	lastOn      bool
	lastChanged time.Time
}

func New(switcher plug.Switcher, cache Invalidator, clk clock.Clock, timeout time.Duration) *Controller {
	return &Controller{switcher: switcher, cache: cache, clock: clk, timeout: timeout}
}

// SetSwitch commands the plug on or off. Failures come back as
// *plug.CommandError and are never retried.
func (c *Controller) SetSwitch(ctx context.Context, on bool) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	err := c.switcher.SetSwitch(ctx, on)
	if err != nil {
		var cerr *plug.CommandError
		if !errors.As(err, &cerr) {
			err = &plug.CommandError{On: on, Err: err}
		}
		metrics.CommandFailed()
		log.Error().Err(err).Str("switch", plug.OnOff(on)).Msg("Switch command failed")
		return err
	}

	if c.cache != nil {
		c.cache.Invalidate()
	}

	c.mu.Lock()
	c.lastOn = on
	c.lastChanged = c.clock.Now()
	c.mu.Unlock()

	log.Info().Str("switch", plug.OnOff(on)).Msg("Turned " + strings.ToUpper(plug.OnOff(on)))
	return nil
}

// LastCommand reports the last successful command and when it was sent.
func (c *Controller) LastCommand() (on bool, at time.Time, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastOn, c.lastChanged, !c.lastChanged.IsZero()
}
