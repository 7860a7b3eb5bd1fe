package plug

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thatsimonsguy/plug-monitor/internal/clock"
	"github.com/thatsimonsguy/plug-monitor/internal/model"
)

type countingProvider struct {
	calls    int
	err      error
	power    float64
	deadline bool
}

func (p *countingProvider) FetchStatus(ctx context.Context) (model.Sample, error) {
	p.calls++
	_, p.deadline = ctx.Deadline()
	if p.err != nil {
		return model.Sample{}, &TransportError{Op: "status", Err: p.err}
	}
	return model.Sample{PowerW: p.power}, nil
}

func TestCachedProvider_TTL(t *testing.T) {
	clk := clock.NewMockClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	up := &countingProvider{power: 10}
	c := NewCachedProvider(up, clk, 10*time.Second, 5*time.Second)

	s, err := c.FetchStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 10.0, s.PowerW)
	assert.True(t, up.deadline, "upstream fetch runs under a timeout")

	up.power = 20
	clk.Advance(9 * time.Second)
	s, err = c.FetchStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 10.0, s.PowerW)
	assert.Equal(t, 1, up.calls)

	clk.Advance(time.Second)
	s, err = c.FetchStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 20.0, s.PowerW)
	assert.Equal(t, 2, up.calls)
}

func TestCachedProvider_Invalidate(t *testing.T) {
	clk := clock.NewMockClock(time.Now())
	up := &countingProvider{}
	c := NewCachedProvider(up, clk, time.Minute, time.Second)

	_, _ = c.FetchStatus(context.Background())
	c.Invalidate()
	_, _ = c.FetchStatus(context.Background())
	assert.Equal(t, 2, up.calls)
}

func TestCachedProvider_ErrorsAreNotCached(t *testing.T) {
	clk := clock.NewMockClock(time.Now())
	up := &countingProvider{err: errors.New("401 unauthorized")}
	c := NewCachedProvider(up, clk, time.Minute, time.Second)

	_, err := c.FetchStatus(context.Background())
	var terr *TransportError
	require.True(t, errors.As(err, &terr))

	up.err = nil
	up.power = 5
	s, err := c.FetchStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5.0, s.PowerW)
	assert.Equal(t, 2, up.calls)
}

func TestSimulated(t *testing.T) {
	sim := NewSimulated(1150, 230)
	ctx := context.Background()

	s, err := sim.FetchStatus(ctx)
	require.NoError(t, err)
	assert.False(t, s.SwitchOn)
	assert.Equal(t, 0.0, s.PowerW)

	require.NoError(t, sim.SetSwitch(ctx, true))
	s, err = sim.FetchStatus(ctx)
	require.NoError(t, err)
	assert.True(t, s.SwitchOn)
	assert.Equal(t, 1150.0, s.PowerW)
	assert.InDelta(t, 5000.0, s.CurrentMA, 1e-9)

	sim.FailCommands(errors.New("device offline"))
	err = sim.SetSwitch(ctx, false)
	var cerr *CommandError
	require.True(t, errors.As(err, &cerr))
	assert.False(t, cerr.On)
	assert.True(t, sim.IsOn())
	assert.Equal(t, []bool{true, false}, sim.Commands())
}

func TestErrorMessages(t *testing.T) {
	assert.Equal(t, "plug transport status: boom", (&TransportError{Op: "status", Err: errors.New("boom")}).Error())
	assert.Equal(t, "plug command switch=off: boom", (&CommandError{On: false, Err: errors.New("boom")}).Error())
}
