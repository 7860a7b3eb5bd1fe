// Package session owns the mutable monitoring state of one plug and runs the
// poll-and-update tick over it.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/plug-monitor/internal/accumulator"
	"github.com/thatsimonsguy/plug-monitor/internal/autooff"
	"github.com/thatsimonsguy/plug-monitor/internal/clock"
	"github.com/thatsimonsguy/plug-monitor/internal/controller"
	"github.com/thatsimonsguy/plug-monitor/internal/history"
	"github.com/thatsimonsguy/plug-monitor/internal/metrics"
	"github.com/thatsimonsguy/plug-monitor/internal/model"
	"github.com/thatsimonsguy/plug-monitor/internal/ontime"
	"github.com/thatsimonsguy/plug-monitor/internal/plug"
)

const (
	MinAutoOffHours = 1
	MaxAutoOffHours = 24
)

var ErrInvalidAutoOff = fmt.Errorf("auto-off hours must be between %d and %d", MinAutoOffHours, MaxAutoOffHours)

// Deps are the collaborators a Context ties together.
type Deps struct {
	Clock       clock.Clock
	Provider    plug.Provider
	Cache       controller.Invalidator
	Accumulator *accumulator.Accumulator
	Tracker     *ontime.Tracker
	History     *history.Log
	AutoOff     *autooff.Scheduler
	Controller  *controller.Controller

	AutoOffDefault time.Duration
}

// Result is the outcome of one tick. Warnings carry every degraded step;
// none of them stop the tick.
type Result struct {
	TickID       uuid.UUID    `json:"tick_id"`
	Status       model.Status `json:"status"`
	Appended     bool         `json:"appended"`
	AutoOffFired bool         `json:"auto_off_fired"`
	Warnings     []string     `json:"warnings,omitempty"`
}

// Snapshot is a read-only view for callers outside the tick.
type Snapshot struct {
	Status      model.Status  `json:"status"`
	AutoOff     autooff.State `json:"auto_off"`
	OnSince     *time.Time    `json:"on_since,omitempty"`
	LastTick    time.Time     `json:"last_tick"`
	LastLogged  time.Time     `json:"last_logged"`
	HistoryRows int           `json:"history_rows"`
	Warnings    []string      `json:"warnings,omitempty"`
}

// Context serializes ticks, commands and flushes behind one mutex.
type Context struct {
	mu   sync.Mutex
	deps Deps

	last     Result
	lastTick time.Time
	knownOn  bool
}

func New(deps Deps) *Context {
	return &Context{deps: deps}
}

// Tick polls the plug and feeds the reading through energy, on-time, history
// and auto-off in that order. Effects committed by an earlier step stay in
// place when a later one fails.
func (c *Context) Tick(ctx context.Context) Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tick(ctx)
}

// Refresh drops the cached status and ticks immediately.
func (c *Context) Refresh(ctx context.Context) Result {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.deps.Cache != nil {
		c.deps.Cache.Invalidate()
	}
	return c.tick(ctx)
}

func (c *Context) tick(ctx context.Context) Result {
	now := c.deps.Clock.Now()
	res := Result{TickID: uuid.New()}
	logger := log.With().Str("tick", res.TickID.String()).Logger()

	sample, err := c.deps.Provider.FetchStatus(ctx)
	if err != nil {
		metrics.FetchFailed()
		logger.Warn().Err(err).Msg("Status fetch failed, using zero sample")
		res.Warnings = append(res.Warnings, err.Error())
		sample = model.Sample{Timestamp: now, SwitchOn: c.knownOn}
	} else {
		c.knownOn = sample.SwitchOn
	}

	kwh, cost, err := c.deps.Accumulator.Update(sample.PowerW, now)
	if err != nil {
		metrics.PersistFailed()
		res.Warnings = append(res.Warnings, err.Error())
	}

	status := model.Status{
		Sample:      sample,
		EnergyKWh:   kwh,
		Cost:        cost,
		DurationMin: c.deps.Tracker.Update(sample.SwitchOn, now),
	}
	res.Status = status

	_, appended, err := c.deps.History.MaybeAppend(now, func(t time.Time) model.HistoryRecord {
		return model.RecordFromStatus(t, status)
	})
	res.Appended = appended
	if err != nil {
		metrics.PersistFailed()
		res.Warnings = append(res.Warnings, err.Error())
	}

	fired, err := c.deps.AutoOff.Tick(ctx, now)
	res.AutoOffFired = fired
	if fired && err == nil {
		metrics.AutoOffFired()
		c.knownOn = false
	}
	if err != nil {
		res.Warnings = append(res.Warnings, err.Error())
	}

	metrics.RecordStatus(status)
	metrics.RecordHistoryRows(c.deps.History.Len())

	logger.Debug().
		Float64("power_w", status.PowerW).
		Float64("energy_kwh", status.EnergyKWh).
		Int("duration_min", status.DurationMin).
		Bool("appended", res.Appended).
		Bool("auto_off_fired", res.AutoOffFired).
		Int("warnings", len(res.Warnings)).
		Msg("Tick complete")

	c.last = res
	c.lastTick = now
	return res
}

func (c *Context) SwitchOn(ctx context.Context) error {
	return c.setSwitch(ctx, true)
}

func (c *Context) SwitchOff(ctx context.Context) error {
	return c.setSwitch(ctx, false)
}

func (c *Context) setSwitch(ctx context.Context, on bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.deps.Controller.SetSwitch(ctx, on); err != nil {
		return err
	}
	c.knownOn = on
	return nil
}

// ScheduleAutoOff arms auto-off hours from now, replacing any pending
// deadline. Zero hours selects the configured default.
func (c *Context) ScheduleAutoOff(hours int) (time.Time, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	d := time.Duration(hours) * time.Hour
	if hours == 0 {
		d = c.deps.AutoOffDefault
	} else if hours < MinAutoOffHours || hours > MaxAutoOffHours {
		return time.Time{}, ErrInvalidAutoOff
	}
	return c.deps.AutoOff.Schedule(d, c.deps.Clock.Now()), nil
}

func (c *Context) CancelAutoOff() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.deps.AutoOff.Cancel()
}

func (c *Context) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Snapshot{
		Status:      c.last.Status,
		AutoOff:     c.deps.AutoOff.State(),
		LastTick:    c.lastTick,
		LastLogged:  c.deps.History.LastLogTime(),
		HistoryRows: c.deps.History.Len(),
		Warnings:    append([]string(nil), c.last.Warnings...),
	}
	if since, on := c.deps.Tracker.OnSince(); on {
		s.OnSince = &since
	}
	return s
}

// History returns the rows in [from, to]; zero bounds are open.
func (c *Context) History(from, to time.Time) []model.HistoryRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	return history.Filter(c.deps.History.Records(), from, to)
}

func (c *Context) Summary(from, to time.Time) history.Summary {
	c.mu.Lock()
	defer c.mu.Unlock()
	return history.Summarize(c.deps.History.Records(), from, to)
}

// Flush persists the checkpoint and the full history table.
func (c *Context) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return errors.Join(c.deps.Accumulator.Checkpoint(), c.deps.History.Flush())
}

// Run ticks once immediately and then every interval until ctx is done.
func (c *Context) Run(ctx context.Context, interval time.Duration) {
	log.Info().Dur("interval", interval).Msg("Starting plug poller")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	c.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Plug poller stopped")
			return
		case <-ticker.C:
			c.Tick(ctx)
		}
	}
}
