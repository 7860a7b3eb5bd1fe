package history

import (
	"time"

	"github.com/thatsimonsguy/plug-monitor/internal/model"
)

type Summary struct {
	From             time.Time `json:"from"`
	To               time.Time `json:"to"`
	Rows             int       `json:"rows"`
	MaxPowerW        float64   `json:"max_power_w"`
	MeanPowerW       float64   `json:"mean_power_w"`
	EnergyKWh        float64   `json:"energy_kwh"`
	Cost             float64   `json:"cost"`
	LongestOnMinutes int       `json:"longest_on_minutes"`
}

// Filter returns the records with from <= Time <= to. A zero bound is open.
func Filter(records []model.HistoryRecord, from, to time.Time) []model.HistoryRecord {
	out := []model.HistoryRecord{}
	for _, r := range records {
		if !from.IsZero() && r.Time.Before(from) {
			continue
		}
		if !to.IsZero() && r.Time.After(to) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// Summarize reports usage over the records in [from, to]. Energy and cost are
// the difference between the last and first cumulative values in range, so
// at least two rows are needed for them to be non-zero.
func Summarize(records []model.HistoryRecord, from, to time.Time) Summary {
	rows := Filter(records, from, to)
	s := Summary{From: from, To: to, Rows: len(rows)}
	if len(rows) == 0 {
		return s
	}

	var total float64
	for _, r := range rows {
		if r.PowerW > s.MaxPowerW {
			s.MaxPowerW = r.PowerW
		}
		if r.DurationMin > s.LongestOnMinutes {
			s.LongestOnMinutes = r.DurationMin
		}
		total += r.PowerW
	}
	s.MeanPowerW = total / float64(len(rows))

	if len(rows) >= 2 {
		first, last := rows[0], rows[len(rows)-1]
		s.EnergyKWh = last.EnergyKWh - first.EnergyKWh
		s.Cost = last.Cost - first.Cost
	}
	return s
}

// DayRange returns the local-day bounds for the dates from and to, inclusive
// of the whole last day.
func DayRange(from, to time.Time) (time.Time, time.Time) {
	start := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, from.Location())
	end := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, to.Location()).Add(24*time.Hour - time.Second)
	return start, end
}
