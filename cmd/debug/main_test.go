package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thatsimonsguy/plug-monitor/internal/model"
	"github.com/thatsimonsguy/plug-monitor/internal/store"
)

func seedFiles(t *testing.T) options {
	dir := t.TempDir()
	o := options{
		backend:        "file",
		dbPath:         filepath.Join(dir, "plug.db"),
		checkpointPath: filepath.Join(dir, "session_backup.json"),
		historyPath:    filepath.Join(dir, "energy_history.csv"),
		currency:       "BDT",
	}

	t0 := time.Date(2025, 6, 1, 18, 0, 0, 0, time.Local)
	require.NoError(t, store.NewCheckpointFile(o.checkpointPath).SaveCheckpoint(model.AccumulatorState{
		AccumulatedKWh: 2.5,
		LastUpdateTime: t0.Add(2 * time.Hour),
	}))
	require.NoError(t, store.NewHistoryCSV(o.historyPath, "BDT").SaveHistory([]model.HistoryRecord{
		{Time: t0, PowerW: 1000, EnergyKWh: 0.5, Cost: 3},
		{Time: t0.Add(time.Hour), PowerW: 1000, EnergyKWh: 1.5, Cost: 9, DurationMin: 60},
		{Time: t0.Add(24 * time.Hour), PowerW: 40, EnergyKWh: 2.5, Cost: 15},
	}))
	return o
}

func TestShowCheckpoint(t *testing.T) {
	o := seedFiles(t)
	o.command = "show-checkpoint"

	var out bytes.Buffer
	require.NoError(t, run(o, &out))
	assert.Contains(t, out.String(), "accumulated_kwh:  2.500000")
}

func TestSummary_DayRange(t *testing.T) {
	o := seedFiles(t)
	o.command = "summary"
	o.from, o.to = "2025-06-01", "2025-06-01"

	var out bytes.Buffer
	require.NoError(t, run(o, &out))
	assert.Contains(t, out.String(), "rows:           2\n")
	assert.Contains(t, out.String(), "energy_kwh:     1.0000\n")
	assert.Contains(t, out.String(), "cost:           6.00 BDT\n")
	assert.Contains(t, out.String(), "longest_on_min: 60\n")
}

func TestMigrateThenReadSQLite(t *testing.T) {
	o := seedFiles(t)
	o.command = "migrate"

	var out bytes.Buffer
	require.NoError(t, run(o, &out))
	assert.Contains(t, out.String(), "3 history rows")

	o.backend = "sqlite"
	o.command = "export-csv"
	out.Reset()
	require.NoError(t, run(o, &out))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, strings.Join(store.HistoryHeader("BDT"), ","), lines[0])

	o.command = "show-checkpoint"
	out.Reset()
	require.NoError(t, run(o, &out))
	assert.Contains(t, out.String(), "accumulated_kwh:  2.500000")
}

func TestExportCSV_ToFile(t *testing.T) {
	o := seedFiles(t)
	o.command = "export-csv"
	o.from = "2025-06-02"
	o.out = filepath.Join(t.TempDir(), "export.csv")

	require.NoError(t, run(o, &bytes.Buffer{}))
	rows, err := store.NewHistoryCSV(o.out, "BDT").LoadHistory()
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 40.0, rows[0].PowerW)
}

func TestInstallService(t *testing.T) {
	o := seedFiles(t)
	o.command = "install-service"
	o.servicePath = filepath.Join(t.TempDir(), "plug-monitor.service")
	o.unit.ExecPath = "/usr/local/bin/plug-monitor"
	o.unit.WorkingDir = "/var/lib/plug-monitor"
	o.unit.ConfigFile = "/etc/plug-monitor/config.json"

	require.NoError(t, run(o, &bytes.Buffer{}))
	data, err := os.ReadFile(o.servicePath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "ExecStart=/usr/local/bin/plug-monitor -config-file /etc/plug-monitor/config.json")
}

func TestRun_Errors(t *testing.T) {
	o := seedFiles(t)

	o.command = "reset-everything"
	assert.EqualError(t, run(o, &bytes.Buffer{}), `invalid command "reset-everything"`)

	o.command = "summary"
	o.backend = "postgres"
	assert.EqualError(t, run(o, &bytes.Buffer{}), `unknown backend "postgres"`)

	o.backend = "file"
	o.from = "June 1st"
	assert.Error(t, run(o, &bytes.Buffer{}))
}
