package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/thatsimonsguy/plug-monitor/internal/model"
)

// GetCheckpoint retrieves the accumulator checkpoint. ok is false when none has been written.
func GetCheckpoint(dbConn *sql.DB) (state model.AccumulatorState, ok bool, err error) {
	var lastUpdate string
	err = dbConn.QueryRow(`SELECT accumulated_kwh, last_update_time FROM checkpoint WHERE id = 1`).Scan(&state.AccumulatedKWh, &lastUpdate)
	if errors.Is(err, sql.ErrNoRows) {
		return model.AccumulatorState{}, false, nil
	}
	if err != nil {
		return model.AccumulatorState{}, false, fmt.Errorf("failed to get checkpoint: %w", err)
	}

	state.LastUpdateTime, err = time.Parse(time.RFC3339Nano, lastUpdate)
	if err != nil {
		return model.AccumulatorState{}, false, fmt.Errorf("failed to parse checkpoint time: %w", err)
	}
	return state, true, nil
}

// GetHistory retrieves all history rows in insertion order.
func GetHistory(dbConn *sql.DB) ([]model.HistoryRecord, error) {
	rows, err := dbConn.Query(`SELECT time, current_ma, voltage_v, power_w, energy_kwh, cost, duration_min FROM history ORDER BY seq ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	records := []model.HistoryRecord{}
	for rows.Next() {
		var r model.HistoryRecord
		var ts string
		err = rows.Scan(&ts, &r.CurrentMA, &r.VoltageV, &r.PowerW, &r.EnergyKWh, &r.Cost, &r.DurationMin)
		if err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		r.Time, err = time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("failed to parse history time %q: %w", ts, err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate history: %w", err)
	}
	return records, nil
}

// CountHistory returns the number of stored history rows.
func CountHistory(dbConn *sql.DB) (int, error) {
	var n int
	if err := dbConn.QueryRow(`SELECT COUNT(*) FROM history`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count history: %w", err)
	}
	return n, nil
}
