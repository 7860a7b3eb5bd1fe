package plug

import (
	"context"
	"sync"
	"time"

	"github.com/thatsimonsguy/plug-monitor/internal/model"
)

// Simulated is an in-process plug drawing a constant load while switched on.
// It backs safe mode and tests.
type Simulated struct {
	mu        sync.Mutex
	on        bool
	loadW     float64
	voltageV  float64
	fetchErr  error
	switchErr error
	commands  []bool
}

func NewSimulated(loadW, voltageV float64) *Simulated {
	return &Simulated{loadW: loadW, voltageV: voltageV}
}

func (s *Simulated) FetchStatus(ctx context.Context) (model.Sample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return model.Sample{}, &TransportError{Op: "status", Err: err}
	}
	if s.fetchErr != nil {
		return model.Sample{}, &TransportError{Op: "status", Err: s.fetchErr}
	}

	sample := model.Sample{
		Timestamp: time.Now(),
		VoltageV:  s.voltageV,
		SwitchOn:  s.on,
	}
	if s.on {
		sample.PowerW = s.loadW
		if s.voltageV > 0 {
			sample.CurrentMA = s.loadW / s.voltageV * 1000
		}
	}
	return sample, nil
}

func (s *Simulated) SetSwitch(ctx context.Context, on bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.commands = append(s.commands, on)
	if s.switchErr != nil {
		return &CommandError{On: on, Err: s.switchErr}
	}
	s.on = on
	return nil
}

// FailFetches makes subsequent fetches fail with err; nil restores them.
func (s *Simulated) FailFetches(err error) {
	s.mu.Lock()
	s.fetchErr = err
	s.mu.Unlock()
}

// FailCommands makes subsequent switch commands fail with err; nil restores them.
func (s *Simulated) FailCommands(err error) {
	s.mu.Lock()
	s.switchErr = err
	s.mu.Unlock()
}

// Commands returns every switch command received, in order.
func (s *Simulated) Commands() []bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]bool(nil), s.commands...)
}

func (s *Simulated) IsOn() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.on
}
