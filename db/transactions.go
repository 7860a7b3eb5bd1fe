package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/thatsimonsguy/plug-monitor/internal/model"
)

// StartTransaction starts a new database transaction.
func StartTransaction(db *sql.DB) (*sql.Tx, error) {
	tx, err := db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	return tx, nil
}

// CommitTransaction commits the given transaction.
func CommitTransaction(tx *sql.Tx) error {
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// RollbackTransaction rolls back the given transaction.
func RollbackTransaction(tx *sql.Tx) {
	tx.Rollback()
}

func SaveCheckpoint(db *sql.DB, state model.AccumulatorState) error {
	tx, err := StartTransaction(db)
	if err != nil {
		return err
	}
	_, err = tx.Exec(`INSERT OR REPLACE INTO checkpoint (id, accumulated_kwh, last_update_time) VALUES (1, ?, ?)`,
		state.AccumulatedKWh, state.LastUpdateTime.Format(time.RFC3339Nano))
	if err != nil {
		RollbackTransaction(tx)
		return fmt.Errorf("update checkpoint: %w", err)
	}
	return CommitTransaction(tx)
}

// ReplaceHistory rewrites the whole history table in one transaction.
func ReplaceHistory(db *sql.DB, records []model.HistoryRecord) error {
	tx, err := StartTransaction(db)
	if err != nil {
		return err
	}

	if _, err = tx.Exec(`DELETE FROM history`); err != nil {
		RollbackTransaction(tx)
		return fmt.Errorf("clear history: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO history (seq, time, current_ma, voltage_v, power_w, energy_kwh, cost, duration_min) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		RollbackTransaction(tx)
		return fmt.Errorf("prepare history insert: %w", err)
	}
	defer stmt.Close()

	for i, r := range records {
		_, err = stmt.Exec(i+1, r.Time.Format(time.RFC3339Nano), r.CurrentMA, r.VoltageV, r.PowerW, r.EnergyKWh, r.Cost, r.DurationMin)
		if err != nil {
			RollbackTransaction(tx)
			return fmt.Errorf("insert history row %d: %w", i+1, err)
		}
	}

	return CommitTransaction(tx)
}
