// Package accumulator integrates instantaneous power into a monotonic energy
// total and keeps that total checkpointed so it survives restarts.
package accumulator

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/plug-monitor/internal/model"
	"github.com/thatsimonsguy/plug-monitor/internal/store"
)

type Accumulator struct {
	store    store.CheckpointStore
	unitCost float64
	state    model.AccumulatorState
}

// New restores the accumulator from the checkpoint store. Without a
// checkpoint, integration starts at now, so downtime before the first run
// counts as zero consumption.
func New(checkpoints store.CheckpointStore, unitCostPerKWh float64, now time.Time) *Accumulator {
	a := &Accumulator{
		store:    checkpoints,
		unitCost: unitCostPerKWh,
		state:    model.AccumulatorState{LastUpdateTime: now},
	}

	saved, ok, err := checkpoints.LoadCheckpoint()
	switch {
	case err != nil:
		log.Warn().Err(err).Msg("Failed to load energy checkpoint, starting from zero")
	case ok:
		if saved.AccumulatedKWh < 0 {
			saved.AccumulatedKWh = 0
		}
		a.state = saved
		log.Info().
			Float64("accumulated_kwh", saved.AccumulatedKWh).
			Time("last_update_time", saved.LastUpdateTime).
			Msg("Restored energy checkpoint")
	default:
		log.Info().Msg("No energy checkpoint found, starting from zero")
	}

	return a
}

// Update adds the energy of powerW held since the last update (left-endpoint
// rule), moves the update time to now and checkpoints. After a backwards
// clock jump the interval counts as zero and integration restarts from now. A failed checkpoint is
// logged and returned; the in-memory total stays authoritative either way.
func (a *Accumulator) Update(powerW float64, now time.Time) (kwh, cost float64, err error) {
	elapsed := now.Sub(a.state.LastUpdateTime)
	if elapsed < 0 {
		log.Warn().
			Dur("skew", -elapsed).
			Msg("Clock moved backwards, restarting integration from now")
		elapsed = 0
	}
	if powerW < 0 {
		powerW = 0
	}

	a.state.AccumulatedKWh += (powerW / 1000.0) * elapsed.Hours()
	a.state.LastUpdateTime = now

	err = a.Checkpoint()
	return a.state.AccumulatedKWh, a.Cost(), err
}

// Checkpoint persists the current state.
func (a *Accumulator) Checkpoint() error {
	if err := a.store.SaveCheckpoint(a.state); err != nil {
		log.Error().Err(err).Msg("Failed to persist energy checkpoint")
		return err
	}
	return nil
}

func (a *Accumulator) KWh() float64 {
	return a.state.AccumulatedKWh
}

func (a *Accumulator) Cost() float64 {
	return a.state.AccumulatedKWh * a.unitCost
}

func (a *Accumulator) State() model.AccumulatorState {
	return a.state
}
