package model

import "time"

// Sample is one instantaneous reading from the plug.
type Sample struct {
	Timestamp time.Time `json:"timestamp"`
	PowerW    float64   `json:"power_w"`
	VoltageV  float64   `json:"voltage_v"`
	CurrentMA float64   `json:"current_ma"`
	SwitchOn  bool      `json:"switch_on"`
}

// AccumulatorState is the checkpointed energy total.
type AccumulatorState struct {
	AccumulatedKWh float64
	LastUpdateTime time.Time
}

// Status is what one tick reports: the sample plus the derived totals.
type Status struct {
	Sample
	EnergyKWh   float64 `json:"energy_kwh"`
	Cost        float64 `json:"cost"`
	DurationMin int     `json:"duration_min"`
}

type HistoryRecord struct {
	Time        time.Time `json:"time"`
	CurrentMA   float64   `json:"current_ma"`
	VoltageV    float64   `json:"voltage_v"`
	PowerW      float64   `json:"power_w"`
	EnergyKWh   float64   `json:"energy_kwh"`
	Cost        float64   `json:"cost"`
	DurationMin int       `json:"duration_min"`
}

// RecordFromStatus builds the history row logged at t.
func RecordFromStatus(t time.Time, s Status) HistoryRecord {
	return HistoryRecord{
		Time:        t,
		CurrentMA:   s.CurrentMA,
		VoltageV:    s.VoltageV,
		PowerW:      s.PowerW,
		EnergyKWh:   s.EnergyKWh,
		Cost:        s.Cost,
		DurationMin: s.DurationMin,
	}
}
