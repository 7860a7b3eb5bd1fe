package store

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/thatsimonsguy/plug-monitor/internal/model"
)

const historyColumns = 7

// legacy layouts written by the earlier dashboard's pandas export
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// HistoryCSV keeps the history table as a CSV file that doubles as the
// downloadable export.
type HistoryCSV struct {
	path     string
	currency string
}

func NewHistoryCSV(path, currency string) *HistoryCSV {
	return &HistoryCSV{path: path, currency: currency}
}

func HistoryHeader(currency string) []string {
	return []string{
		"Time",
		"Current (mA)",
		"Voltage (V)",
		"Power (W)",
		"Energy (kWh)",
		fmt.Sprintf("Cost (%s)", currency),
		"Duration (min)",
	}
}

func (s *HistoryCSV) LoadHistory() ([]model.HistoryRecord, error) {
	file, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return []model.HistoryRecord{}, nil
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read history %s: %w", s.path, err)
	}

	records := make([]model.HistoryRecord, 0, len(rows))
	for i, row := range rows {
		if i == 0 && len(row) > 0 && row[0] == "Time" {
			continue
		}
		rec, err := parseRow(row)
		if err != nil {
			return nil, fmt.Errorf("history %s line %d: %w", s.path, i+1, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func (s *HistoryCSV) SaveHistory(records []model.HistoryRecord) error {
	err := writeAtomic(s.path, func(file *os.File) error {
		return WriteHistoryCSV(csv.NewWriter(file), s.currency, records)
	})
	if err != nil {
		return &PersistenceError{Op: "history", Path: s.path, Err: err}
	}
	return nil
}

// WriteHistoryCSV writes the header and every record, then flushes.
func WriteHistoryCSV(w *csv.Writer, currency string, records []model.HistoryRecord) error {
	if err := w.Write(HistoryHeader(currency)); err != nil {
		return err
	}
	for _, r := range records {
		row := []string{
			r.Time.Format(time.RFC3339Nano),
			formatFloat(r.CurrentMA),
			formatFloat(r.VoltageV),
			formatFloat(r.PowerW),
			formatFloat(r.EnergyKWh),
			formatFloat(r.Cost),
			strconv.Itoa(r.DurationMin),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func parseRow(row []string) (model.HistoryRecord, error) {
	if len(row) < historyColumns {
		return model.HistoryRecord{}, fmt.Errorf("expected %d columns, got %d", historyColumns, len(row))
	}

	t, err := ParseTime(row[0])
	if err != nil {
		return model.HistoryRecord{}, err
	}

	var floats [5]float64
	for i := range floats {
		v, err := parseFloat(row[i+1])
		if err != nil {
			return model.HistoryRecord{}, fmt.Errorf("column %d: %w", i+2, err)
		}
		floats[i] = v
	}

	duration, err := parseFloat(row[6])
	if err != nil {
		return model.HistoryRecord{}, fmt.Errorf("column 7: %w", err)
	}

	return model.HistoryRecord{
		Time:        t,
		CurrentMA:   floats[0],
		VoltageV:    floats[1],
		PowerW:      floats[2],
		EnergyKWh:   floats[3],
		Cost:        floats[4],
		DurationMin: int(duration),
	}, nil
}

// ParseTime accepts RFC 3339 as well as the space-separated layout of older exports.
func ParseTime(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised time %q", s)
}

func parseFloat(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
