package history

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thatsimonsguy/plug-monitor/internal/model"
)

type memHistory struct {
	records []model.HistoryRecord
	saves   int
	saveErr error
	loadErr error
}

func (m *memHistory) LoadHistory() ([]model.HistoryRecord, error) {
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	return append([]model.HistoryRecord{}, m.records...), nil
}

func (m *memHistory) SaveHistory(records []model.HistoryRecord) error {
	m.saves++
	if m.saveErr != nil {
		return m.saveErr
	}
	m.records = append([]model.HistoryRecord{}, records...)
	return nil
}

type countingCheckpointer struct {
	calls int
	err   error
}

func (c *countingCheckpointer) Checkpoint() error {
	c.calls++
	return c.err
}

var t0 = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func row(now time.Time) model.HistoryRecord {
	return model.HistoryRecord{Time: now, PowerW: 100}
}

func TestMaybeAppend_WithinIntervalAppendsOnce(t *testing.T) {
	st := &memHistory{}
	cp := &countingCheckpointer{}
	l, err := Load(st, cp, time.Minute)
	require.NoError(t, err)

	_, appended, err := l.MaybeAppend(t0, row)
	require.NoError(t, err)
	assert.True(t, appended)

	records, appended, err := l.MaybeAppend(t0.Add(59*time.Second), row)
	require.NoError(t, err)
	assert.False(t, appended)
	assert.Len(t, records, 1)
	assert.Equal(t, 1, st.saves)
	assert.Equal(t, 1, cp.calls)
}

func TestMaybeAppend_AtIntervalAppendsTwice(t *testing.T) {
	st := &memHistory{}
	l, err := Load(st, nil, time.Minute)
	require.NoError(t, err)

	_, _, _ = l.MaybeAppend(t0, row)
	records, appended, err := l.MaybeAppend(t0.Add(time.Minute), row)
	require.NoError(t, err)
	assert.True(t, appended)
	assert.Len(t, records, 2)
	assert.Len(t, st.records, 2, "store holds the full table")
}

func TestLoad_ExistingRowsAndFirstAppend(t *testing.T) {
	st := &memHistory{records: []model.HistoryRecord{row(t0.Add(-time.Hour)), row(t0.Add(-59 * time.Minute))}}
	l, err := Load(st, nil, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 2, l.Len())
	assert.True(t, l.Due(t0), "first call after startup always logs")

	records, appended, err := l.MaybeAppend(t0, row)
	require.NoError(t, err)
	assert.True(t, appended)
	assert.Len(t, records, 3)
	assert.Equal(t, t0, records[2].Time)
}

func TestLoad_Failure(t *testing.T) {
	l, err := Load(&memHistory{loadErr: errors.New("bad csv")}, nil, time.Minute)
	assert.Error(t, err)
	assert.Equal(t, 0, l.Len())
}

func TestMaybeAppend_SaveFailureKeepsRow(t *testing.T) {
	st := &memHistory{saveErr: errors.New("read-only fs")}
	cp := &countingCheckpointer{}
	l, err := Load(st, cp, time.Minute)
	require.NoError(t, err)

	records, appended, err := l.MaybeAppend(t0, row)
	assert.Error(t, err)
	assert.True(t, appended)
	assert.Len(t, records, 1)
	assert.Equal(t, 1, cp.calls, "checkpoint still attempted")
	assert.False(t, l.Due(t0.Add(30*time.Second)))
}

func TestRecordsIsACopy(t *testing.T) {
	l, _ := Load(&memHistory{}, nil, time.Minute)
	_, _, _ = l.MaybeAppend(t0, row)

	out := l.Records()
	out[0].PowerW = 999
	assert.Equal(t, 100.0, l.Records()[0].PowerW)
}

func TestSummarize(t *testing.T) {
	records := []model.HistoryRecord{
		{Time: t0, PowerW: 50, EnergyKWh: 1.0, Cost: 6.0, DurationMin: 0},
		{Time: t0.Add(time.Hour), PowerW: 150, EnergyKWh: 1.1, Cost: 6.6, DurationMin: 60},
		{Time: t0.Add(2 * time.Hour), PowerW: 100, EnergyKWh: 1.3, Cost: 7.8, DurationMin: 120},
		{Time: t0.Add(48 * time.Hour), PowerW: 900, EnergyKWh: 4.0, Cost: 24.0, DurationMin: 5},
	}

	t.Run("range", func(t *testing.T) {
		s := Summarize(records, t0, t0.Add(3*time.Hour))
		assert.Equal(t, 3, s.Rows)
		assert.Equal(t, 150.0, s.MaxPowerW)
		assert.InDelta(t, 100.0, s.MeanPowerW, 1e-9)
		assert.InDelta(t, 0.3, s.EnergyKWh, 1e-9)
		assert.InDelta(t, 1.8, s.Cost, 1e-9)
		assert.Equal(t, 120, s.LongestOnMinutes)
	})

	t.Run("open bounds", func(t *testing.T) {
		s := Summarize(records, time.Time{}, time.Time{})
		assert.Equal(t, 4, s.Rows)
		assert.InDelta(t, 3.0, s.EnergyKWh, 1e-9)
	})

	t.Run("single row has no consumption", func(t *testing.T) {
		s := Summarize(records, t0.Add(47*time.Hour), time.Time{})
		assert.Equal(t, 1, s.Rows)
		assert.Equal(t, 0.0, s.EnergyKWh)
		assert.Equal(t, 900.0, s.MaxPowerW)
	})

	t.Run("empty", func(t *testing.T) {
		s := Summarize(nil, t0, t0)
		assert.Equal(t, 0, s.Rows)
	})
}

func TestDayRange(t *testing.T) {
	from, to := DayRange(time.Date(2025, 6, 1, 15, 0, 0, 0, time.UTC), time.Date(2025, 6, 2, 1, 0, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), from)
	assert.Equal(t, time.Date(2025, 6, 2, 23, 59, 59, 0, time.UTC), to)
}
