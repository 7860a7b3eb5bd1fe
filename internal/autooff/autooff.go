// Package autooff holds the single pending auto-off commitment for the plug.
package autooff

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Switcher turns the plug off when the deadline passes.
type Switcher interface {
	SetSwitch(ctx context.Context, on bool) error
}

// Notifier is told about every firing, successful or not.
type Notifier interface {
	Send(title, message string) error
}

// State is a point-in-time view of the commitment.
type State struct {
	Armed    bool      `json:"armed"`
	Deadline time.Time `json:"deadline,omitempty"`
}

// Scheduler is INACTIVE until Schedule arms it with a deadline. A later
// Schedule replaces the deadline; Cancel or a firing Tick disarms it.
type Scheduler struct {
	switcher Switcher
	notifier Notifier

	mu       sync.Mutex
	armed    bool
	deadline time.Time
}

func New(switcher Switcher, notifier Notifier) *Scheduler {
	return &Scheduler{switcher: switcher, notifier: notifier}
}

// Schedule arms the scheduler to fire at now+d and returns the deadline.
func (s *Scheduler) Schedule(d time.Duration, now time.Time) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	replaced := s.armed
	s.armed = true
	s.deadline = now.Add(d)

	log.Info().
		Time("deadline", s.deadline).
		Dur("after", d).
		Bool("replaced", replaced).
		Msg("Auto-off scheduled")
	return s.deadline
}

// Cancel disarms the scheduler and reports whether a deadline was pending.
func (s *Scheduler) Cancel() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.armed {
		return false
	}
	log.Info().Time("deadline", s.deadline).Msg("Auto-off cancelled")
	s.armed = false
	s.deadline = time.Time{}
	return true
}

func (s *Scheduler) Pending() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deadline, s.armed
}

func (s *Scheduler) State() State {
	deadline, armed := s.Pending()
	return State{Armed: armed, Deadline: deadline}
}

// Tick fires the off command once when armed and now has reached the
// deadline. The scheduler is disarmed before the command is sent, so a
// failed command is reported but never retried.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) (bool, error) {
	s.mu.Lock()
	if !s.armed || now.Before(s.deadline) {
		s.mu.Unlock()
		return false, nil
	}
	deadline := s.deadline
	s.armed = false
	s.deadline = time.Time{}
	s.mu.Unlock()

	err := s.switcher.SetSwitch(ctx, false)
	if err != nil {
		log.Error().Err(err).Time("deadline", deadline).Msg("Auto-off command failed")
		s.notify("Auto-off failed", fmt.Sprintf("Could not switch the plug off at %s: %v", deadline.Format(time.RFC3339), err))
		return true, err
	}

	log.Info().Time("deadline", deadline).Msg("Auto-off fired")
	s.notify("Auto-off", fmt.Sprintf("Plug switched off at %s", now.Format(time.RFC3339)))
	return true, nil
}

func (s *Scheduler) notify(title, message string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Send(title, message); err != nil {
		log.Warn().Err(err).Msg("Failed to send auto-off notification")
	}
}
