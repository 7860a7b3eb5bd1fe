package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/thatsimonsguy/plug-monitor/db"
	"github.com/thatsimonsguy/plug-monitor/internal/history"
	"github.com/thatsimonsguy/plug-monitor/internal/store"
	"github.com/thatsimonsguy/plug-monitor/system/startup"
)

type options struct {
	command        string
	backend        string
	dbPath         string
	checkpointPath string
	historyPath    string
	currency       string
	from, to       string
	out            string
	servicePath    string
	unit           startup.ServiceUnit
}

func main() {
	DebugCLI()
}

func DebugCLI() {
	var o options
	flag.StringVar(&o.command, "cmd", "", "Command to run: show-checkpoint, summary, export-csv, migrate, install-service")
	flag.StringVar(&o.backend, "backend", "file", "Storage backend to read: file or sqlite")
	flag.StringVar(&o.dbPath, "db", "data/plug.db", "Path to the SQLite database file")
	flag.StringVar(&o.checkpointPath, "checkpoint", "data/session_backup.json", "Path to the checkpoint file")
	flag.StringVar(&o.historyPath, "history", "data/energy_history.csv", "Path to the history CSV file")
	flag.StringVar(&o.currency, "currency", "BDT", "Currency label used in the history CSV header")
	flag.StringVar(&o.from, "from", "", "First day (YYYY-MM-DD) for summary and export-csv")
	flag.StringVar(&o.to, "to", "", "Last day (YYYY-MM-DD) for summary and export-csv")
	flag.StringVar(&o.out, "out", "", "Output file for export-csv (default stdout)")
	flag.StringVar(&o.servicePath, "service-path", "/etc/systemd/system/plug-monitor.service", "Where install-service writes the unit")
	flag.StringVar(&o.unit.ExecPath, "exec", "/usr/local/bin/plug-monitor", "Daemon binary for install-service")
	flag.StringVar(&o.unit.WorkingDir, "workdir", "/var/lib/plug-monitor", "Working directory for install-service")
	flag.StringVar(&o.unit.ConfigFile, "config", "/etc/plug-monitor/config.json", "Config file for install-service")
	flag.StringVar(&o.unit.User, "user", "", "User the service runs as")
	help := flag.Bool("help", false, "Show help")
	flag.Parse()

	if *help || o.command == "" {
		fmt.Println("\nUsage of plug-debug:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	if err := run(o, os.Stdout); err != nil {
		fmt.Printf("Command %s failed: %v\n", o.command, err)
		os.Exit(1)
	}
}

func run(o options, stdout io.Writer) error {
	switch o.command {
	case "show-checkpoint":
		return showCheckpoint(o, stdout)
	case "summary":
		return summary(o, stdout)
	case "export-csv":
		return exportCSV(o, stdout)
	case "migrate":
		n, err := db.MigrateCLI(o.dbPath, store.NewCheckpointFile(o.checkpointPath), store.NewHistoryCSV(o.historyPath, o.currency))
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Migrated checkpoint and %d history rows into %s\n", n, o.dbPath)
		return nil
	case "install-service":
		if err := startup.InstallService(o.servicePath, o.unit); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Wrote %s\n", o.servicePath)
		return nil
	default:
		return fmt.Errorf("invalid command %q", o.command)
	}
}

func openStores(o options) (store.CheckpointStore, store.HistoryStore, func(), error) {
	switch o.backend {
	case "file":
		return store.NewCheckpointFile(o.checkpointPath), store.NewHistoryCSV(o.historyPath, o.currency), func() {}, nil
	case "sqlite":
		dbConn, err := db.Open(o.dbPath)
		if err != nil {
			return nil, nil, nil, err
		}
		s := db.NewStore(dbConn, o.dbPath)
		return s, s, func() { dbConn.Close() }, nil
	default:
		return nil, nil, nil, fmt.Errorf("unknown backend %q", o.backend)
	}
}

func showCheckpoint(o options, stdout io.Writer) error {
	checkpoints, _, closeFn, err := openStores(o)
	if err != nil {
		return err
	}
	defer closeFn()

	state, ok, err := checkpoints.LoadCheckpoint()
	if err != nil {
		return err
	}
	if !ok {
		fmt.Fprintln(stdout, "No checkpoint saved")
		return nil
	}
	fmt.Fprintf(stdout, "accumulated_kwh:  %.6f\n", state.AccumulatedKWh)
	fmt.Fprintf(stdout, "last_update_time: %s\n", state.LastUpdateTime.Format(time.RFC3339))
	return nil
}

func summary(o options, stdout io.Writer) error {
	_, historyStore, closeFn, err := openStores(o)
	if err != nil {
		return err
	}
	defer closeFn()

	records, err := historyStore.LoadHistory()
	if err != nil {
		return err
	}
	from, to, err := dayBounds(o.from, o.to)
	if err != nil {
		return err
	}

	s := history.Summarize(records, from, to)
	fmt.Fprintf(stdout, "rows:           %d\n", s.Rows)
	fmt.Fprintf(stdout, "max_power_w:    %.1f\n", s.MaxPowerW)
	fmt.Fprintf(stdout, "mean_power_w:   %.1f\n", s.MeanPowerW)
	fmt.Fprintf(stdout, "energy_kwh:     %.4f\n", s.EnergyKWh)
	fmt.Fprintf(stdout, "cost:           %.2f %s\n", s.Cost, o.currency)
	fmt.Fprintf(stdout, "longest_on_min: %d\n", s.LongestOnMinutes)
	return nil
}

func exportCSV(o options, stdout io.Writer) error {
	_, historyStore, closeFn, err := openStores(o)
	if err != nil {
		return err
	}
	defer closeFn()

	records, err := historyStore.LoadHistory()
	if err != nil {
		return err
	}
	from, to, err := dayBounds(o.from, o.to)
	if err != nil {
		return err
	}

	w := stdout
	if o.out != "" {
		f, err := os.Create(o.out)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	return store.WriteHistoryCSV(csv.NewWriter(w), o.currency, history.Filter(records, from, to))
}

// dayBounds turns optional YYYY-MM-DD values into whole-day bounds.
func dayBounds(from, to string) (time.Time, time.Time, error) {
	var start, end time.Time
	if from != "" {
		d, err := time.ParseInLocation("2006-01-02", from, time.Local)
		if err != nil {
			return start, end, fmt.Errorf("invalid -from: %w", err)
		}
		start, _ = history.DayRange(d, d)
	}
	if to != "" {
		d, err := time.ParseInLocation("2006-01-02", to, time.Local)
		if err != nil {
			return start, end, fmt.Errorf("invalid -to: %w", err)
		}
		_, end = history.DayRange(d, d)
	}
	return start, end, nil
}
