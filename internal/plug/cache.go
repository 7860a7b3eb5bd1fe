package plug

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/plug-monitor/internal/clock"
	"github.com/thatsimonsguy/plug-monitor/internal/model"
)

// CachedProvider serves the last successful sample until it is older than
// ttl, and bounds every upstream fetch by timeout. Failed fetches are not cached.
type CachedProvider struct {
	upstream Provider
	clock    clock.Clock
	ttl      time.Duration
	timeout  time.Duration

	mu        sync.Mutex
	sample    model.Sample
	fetchedAt time.Time
	valid     bool
}

func NewCachedProvider(upstream Provider, clk clock.Clock, ttl, timeout time.Duration) *CachedProvider {
	return &CachedProvider{
		upstream: upstream,
		clock:    clk,
		ttl:      ttl,
		timeout:  timeout,
	}
}

func (c *CachedProvider) FetchStatus(ctx context.Context) (model.Sample, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	if c.valid && now.Sub(c.fetchedAt) < c.ttl {
		log.Debug().Dur("age", now.Sub(c.fetchedAt)).Msg("Serving cached plug status")
		return c.sample, nil
	}

	fetchCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	sample, err := c.upstream.FetchStatus(fetchCtx)
	if err != nil {
		return model.Sample{}, err
	}

	c.sample = sample
	c.fetchedAt = now
	c.valid = true
	return sample, nil
}

// Invalidate forces the next fetch to go upstream.
func (c *CachedProvider) Invalidate() {
	c.mu.Lock()
	c.valid = false
	c.mu.Unlock()
}
