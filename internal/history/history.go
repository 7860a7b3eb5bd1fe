package history

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/plug-monitor/internal/model"
	"github.com/thatsimonsguy/plug-monitor/internal/store"
)

// Checkpointer re-persists the energy checkpoint alongside each appended row.
type Checkpointer interface {
	Checkpoint() error
}

// Log is the in-memory, append-only history table backed by a store that is
// rewritten in full on every append.
type Log struct {
	store       store.HistoryStore
	checkpoint  Checkpointer
	minInterval time.Duration

	records     []model.HistoryRecord
	lastLogTime time.Time
}

// Load reads the full table from the store. A store that fails to load
// leaves the log empty and the error is returned for the caller to report.
func Load(historyStore store.HistoryStore, checkpoint Checkpointer, minInterval time.Duration) (*Log, error) {
	l := &Log{
		store:       historyStore,
		checkpoint:  checkpoint,
		minInterval: minInterval,
		records:     []model.HistoryRecord{},
	}

	records, err := historyStore.LoadHistory()
	if err != nil {
		return l, err
	}
	l.records = records

	log.Info().Int("rows", len(records)).Msg("Loaded energy history")
	return l, nil
}

// Due reports whether a row may be appended at now. The first call after
// startup is always due.
func (l *Log) Due(now time.Time) bool {
	if l.lastLogTime.IsZero() {
		return true
	}
	return now.Sub(l.lastLogTime) >= l.minInterval
}

// MaybeAppend appends build(now) when at least the minimum interval has passed
// since the last append, then rewrites the store and the checkpoint. The
// appended row stays in memory even if either write fails; the first write
// error is returned.
func (l *Log) MaybeAppend(now time.Time, build func(time.Time) model.HistoryRecord) ([]model.HistoryRecord, bool, error) {
	if !l.Due(now) {
		return l.records, false, nil
	}

	l.records = append(l.records, build(now))
	l.lastLogTime = now

	var firstErr error
	if err := l.store.SaveHistory(l.records); err != nil {
		log.Error().Err(err).Int("rows", len(l.records)).Msg("Failed to persist energy history")
		firstErr = err
	}
	if l.checkpoint != nil {
		if err := l.checkpoint.Checkpoint(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	log.Debug().Int("rows", len(l.records)).Msg("Appended history row")
	return l.records, true, firstErr
}

// Flush rewrites the store with the current table.
func (l *Log) Flush() error {
	return l.store.SaveHistory(l.records)
}

// Records returns a copy of the table.
func (l *Log) Records() []model.HistoryRecord {
	out := make([]model.HistoryRecord, len(l.records))
	copy(out, l.records)
	return out
}

func (l *Log) Len() int {
	return len(l.records)
}

func (l *Log) LastLogTime() time.Time {
	return l.lastLogTime
}
