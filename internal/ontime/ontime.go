// Package ontime tracks how long the plug has been switched on.
//
// The on-window lives in memory only: after a restart the duration counts
// from the first tick that sees the plug on, even if it was on before.
package ontime

import "time"

type Tracker struct {
	onTime time.Time
	on     bool
}

func NewTracker() *Tracker {
	return &Tracker{}
}

// Update feeds the current switch state and returns whole minutes since the
// plug was last seen turning on, or 0 while it is off.
func (t *Tracker) Update(switchOn bool, now time.Time) int {
	if !switchOn {
		t.on = false
		t.onTime = time.Time{}
		return 0
	}

	if !t.on {
		t.on = true
		t.onTime = now
		return 0
	}

	elapsed := now.Sub(t.onTime)
	if elapsed < 0 {
		return 0
	}
	return int(elapsed / time.Minute)
}

// OnSince reports when the current on-window started.
func (t *Tracker) OnSince() (time.Time, bool) {
	return t.onTime, t.on
}
