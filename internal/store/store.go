package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/thatsimonsguy/plug-monitor/internal/model"
)

// PersistenceError reports a failed checkpoint or history write.
type PersistenceError struct {
	Op   string
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// CheckpointStore persists the accumulator state. Load reports ok=false when
// nothing has been saved yet.
type CheckpointStore interface {
	LoadCheckpoint() (state model.AccumulatorState, ok bool, err error)
	SaveCheckpoint(state model.AccumulatorState) error
}

// HistoryStore persists the full history table. A store with nothing saved
// yet loads as an empty table.
type HistoryStore interface {
	LoadHistory() ([]model.HistoryRecord, error)
	SaveHistory(records []model.HistoryRecord) error
}

type checkpointFile struct {
	AccumulatedKWh float64 `json:"accumulated_kwh"`
	LastUpdateTime float64 `json:"last_update_time"`
}

// CheckpointFile keeps the checkpoint as a small JSON document.
type CheckpointFile struct {
	path string
}

func NewCheckpointFile(path string) *CheckpointFile {
	return &CheckpointFile{path: path}
}

func (s *CheckpointFile) LoadCheckpoint() (model.AccumulatorState, bool, error) {
	file, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return model.AccumulatorState{}, false, nil
	}
	if err != nil {
		return model.AccumulatorState{}, false, err
	}
	defer file.Close()

	var saved checkpointFile
	if err := json.NewDecoder(file).Decode(&saved); err != nil {
		return model.AccumulatorState{}, false, fmt.Errorf("decode checkpoint %s: %w", s.path, err)
	}
	return model.AccumulatorState{
		AccumulatedKWh: saved.AccumulatedKWh,
		LastUpdateTime: FromUnixSeconds(saved.LastUpdateTime),
	}, true, nil
}

func (s *CheckpointFile) SaveCheckpoint(state model.AccumulatorState) error {
	err := writeAtomic(s.path, func(file *os.File) error {
		encoder := json.NewEncoder(file)
		encoder.SetIndent("", "  ")
		return encoder.Encode(checkpointFile{
			AccumulatedKWh: state.AccumulatedKWh,
			LastUpdateTime: UnixSeconds(state.LastUpdateTime),
		})
	})
	if err != nil {
		return &PersistenceError{Op: "checkpoint", Path: s.path, Err: err}
	}
	return nil
}

// writeAtomic writes to a sibling .tmp file and renames it over path, so a
// crash mid-write leaves the previous file intact.
func writeAtomic(path string, write func(*os.File) error) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	tmpPath := path + ".tmp"

	file, err := os.Create(tmpPath)
	if err != nil {
		return err
	}
	if err := write(file); err != nil {
		file.Close()
		return err
	}
	if err := file.Sync(); err != nil {
		file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return err
	}

	return os.Rename(tmpPath, path)
}

// UnixSeconds encodes t as fractional unix seconds.
func UnixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

func FromUnixSeconds(sec float64) time.Time {
	whole, frac := math.Modf(sec)
	return time.Unix(int64(whole), int64(math.Round(frac*1e6))*int64(time.Microsecond))
}
