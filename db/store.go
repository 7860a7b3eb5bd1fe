package db

import (
	"database/sql"

	"github.com/thatsimonsguy/plug-monitor/internal/model"
	"github.com/thatsimonsguy/plug-monitor/internal/store"
)

// Store adapts the database to the checkpoint and history store interfaces.
type Store struct {
	dbConn *sql.DB
	path   string
}

func NewStore(dbConn *sql.DB, path string) *Store {
	return &Store{dbConn: dbConn, path: path}
}

func (s *Store) LoadCheckpoint() (model.AccumulatorState, bool, error) {
	return GetCheckpoint(s.dbConn)
}

func (s *Store) SaveCheckpoint(state model.AccumulatorState) error {
	if err := SaveCheckpoint(s.dbConn, state); err != nil {
		return &store.PersistenceError{Op: "checkpoint", Path: s.path, Err: err}
	}
	return nil
}

func (s *Store) LoadHistory() ([]model.HistoryRecord, error) {
	return GetHistory(s.dbConn)
}

func (s *Store) SaveHistory(records []model.HistoryRecord) error {
	if err := ReplaceHistory(s.dbConn, records); err != nil {
		return &store.PersistenceError{Op: "history", Path: s.path, Err: err}
	}
	return nil
}

// MigrateCLI copies a file-backed checkpoint and history into the database at dbPath.
func MigrateCLI(dbPath string, checkpoints store.CheckpointStore, history store.HistoryStore) (int, error) {
	dbConn, err := Open(dbPath)
	if err != nil {
		return 0, err
	}
	defer dbConn.Close()

	state, ok, err := checkpoints.LoadCheckpoint()
	if err != nil {
		return 0, err
	}
	if ok {
		if err := SaveCheckpoint(dbConn, state); err != nil {
			return 0, err
		}
	}

	records, err := history.LoadHistory()
	if err != nil {
		return 0, err
	}
	if err := ReplaceHistory(dbConn, records); err != nil {
		return 0, err
	}
	return CountHistory(dbConn)
}
