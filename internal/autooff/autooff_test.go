package autooff

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thatsimonsguy/plug-monitor/internal/plug"
)

type recordingNotifier struct {
	titles []string
	err    error
}

func (n *recordingNotifier) Send(title, message string) error {
	n.titles = append(n.titles, title)
	return n.err
}

var t0 = time.Date(2025, 6, 1, 20, 0, 0, 0, time.UTC)

func TestSchedule_LastWriterWins(t *testing.T) {
	sim := plug.NewSimulated(100, 230)
	s := New(sim, nil)

	s.Schedule(time.Hour, t0)
	second := t0.Add(10 * time.Minute)
	deadline := s.Schedule(2*time.Hour, second)
	assert.Equal(t, second.Add(2*time.Hour), deadline)

	fired, err := s.Tick(context.Background(), t0.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, fired, "first deadline was superseded")

	fired, err = s.Tick(context.Background(), deadline)
	require.NoError(t, err)
	assert.True(t, fired)

	fired, err = s.Tick(context.Background(), deadline.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, fired)
	assert.Equal(t, []bool{false}, sim.Commands())
}

func TestTick_FiresOnceOnCommandError(t *testing.T) {
	sim := plug.NewSimulated(100, 230)
	sim.FailCommands(errors.New("device offline"))
	n := &recordingNotifier{}
	s := New(sim, n)

	s.Schedule(time.Hour, t0)
	fired, err := s.Tick(context.Background(), t0.Add(time.Hour))
	assert.True(t, fired)
	var cerr *plug.CommandError
	require.True(t, errors.As(err, &cerr))

	_, armed := s.Pending()
	assert.False(t, armed)

	fired, err = s.Tick(context.Background(), t0.Add(2*time.Hour))
	assert.False(t, fired)
	assert.NoError(t, err)
	assert.Len(t, sim.Commands(), 1)
	assert.Equal(t, []string{"Auto-off failed"}, n.titles)
}

func TestTick_BeforeDeadline(t *testing.T) {
	sim := plug.NewSimulated(100, 230)
	s := New(sim, nil)

	fired, err := s.Tick(context.Background(), t0)
	assert.False(t, fired)
	assert.NoError(t, err)

	s.Schedule(time.Hour, t0)
	fired, _ = s.Tick(context.Background(), t0.Add(59*time.Minute))
	assert.False(t, fired)
	assert.Empty(t, sim.Commands())

	state := s.State()
	assert.True(t, state.Armed)
	assert.Equal(t, t0.Add(time.Hour), state.Deadline)
}

func TestCancel(t *testing.T) {
	sim := plug.NewSimulated(100, 230)
	n := &recordingNotifier{}
	s := New(sim, n)

	assert.False(t, s.Cancel())
	s.Schedule(time.Hour, t0)
	assert.True(t, s.Cancel())

	fired, err := s.Tick(context.Background(), t0.Add(2*time.Hour))
	assert.False(t, fired)
	assert.NoError(t, err)
	assert.Empty(t, sim.Commands())
	assert.Empty(t, n.titles)
}

func TestTick_NotifierFailureIsIgnored(t *testing.T) {
	sim := plug.NewSimulated(100, 230)
	n := &recordingNotifier{err: errors.New("ntfy down")}
	s := New(sim, n)

	s.Schedule(time.Minute, t0)
	fired, err := s.Tick(context.Background(), t0.Add(time.Minute))
	assert.True(t, fired)
	assert.NoError(t, err)
	assert.Equal(t, []string{"Auto-off"}, n.titles)
}
