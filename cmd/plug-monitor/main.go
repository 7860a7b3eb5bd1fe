package main

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/plug-monitor/db"
	"github.com/thatsimonsguy/plug-monitor/internal/accumulator"
	"github.com/thatsimonsguy/plug-monitor/internal/api"
	"github.com/thatsimonsguy/plug-monitor/internal/autooff"
	"github.com/thatsimonsguy/plug-monitor/internal/clock"
	"github.com/thatsimonsguy/plug-monitor/internal/config"
	"github.com/thatsimonsguy/plug-monitor/internal/controller"
	"github.com/thatsimonsguy/plug-monitor/internal/datadog"
	"github.com/thatsimonsguy/plug-monitor/internal/history"
	"github.com/thatsimonsguy/plug-monitor/internal/logging"
	"github.com/thatsimonsguy/plug-monitor/internal/notifications"
	"github.com/thatsimonsguy/plug-monitor/internal/ontime"
	"github.com/thatsimonsguy/plug-monitor/internal/plug"
	"github.com/thatsimonsguy/plug-monitor/internal/session"
	"github.com/thatsimonsguy/plug-monitor/internal/store"
	"github.com/thatsimonsguy/plug-monitor/internal/tuya"
	"github.com/thatsimonsguy/plug-monitor/system/shutdown"
)

const (
	simulatedLoadW    = 60
	simulatedVoltageV = 230
)

func main() {
	cfg := config.Load()
	logging.Init(cfg.LogLevel, cfg.LogFile)

	log.Info().
		Str("config_file", cfg.ConfigFile).
		Str("storage_backend", cfg.StorageBackend).
		Float64("unit_cost_per_kwh", cfg.UnitCostPerKWh).
		Str("currency", cfg.Currency).
		Msg("Starting plug monitor")

	var closers []func() error
	if cfg.EnableDatadog {
		datadog.InitMetrics(cfg.DDAgentAddr, cfg.DDNamespace, cfg.DDTags)
		closers = append(closers, datadog.Close)
	}

	checkpoints, historyStore, closer := openStores(cfg)
	closers = append(closers, closer.Close)

	device := openDevice(cfg)
	clk := clock.RealClock{}
	cache := plug.NewCachedProvider(device, clk, cfg.StatusCacheTTL(), cfg.FetchTimeout())

	acc := accumulator.New(checkpoints, cfg.UnitCostPerKWh, clk.Now())
	hist, err := history.Load(historyStore, acc, cfg.MinLogInterval())
	if err != nil {
		log.Warn().Err(err).Msg("Failed to load energy history, starting with an empty table")
	}

	ctrl := controller.New(device, cache, clk, cfg.FetchTimeout())
	sess := session.New(session.Deps{
		Clock:          clk,
		Provider:       cache,
		Cache:          cache,
		Accumulator:    acc,
		Tracker:        ontime.NewTracker(),
		History:        hist,
		AutoOff:        autooff.New(ctrl, notifications.New(cfg.NtfyTopic)),
		Controller:     ctrl,
		AutoOffDefault: cfg.AutoOffDefault(),
	})

	flusher := shutdown.WithClosers(sess, closers...)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go sess.Run(ctx, cfg.PollInterval())

	server := api.NewServer(sess, cfg.Currency)
	go func() {
		if err := server.Start(cfg.APIPort); err != nil && !errors.Is(err, http.ErrServerClosed) {
			cancel()
			shutdown.ShutdownWithError(flusher, err, "REST API server stopped")
		}
	}()

	shutdown.OnSignal(ctx, cancel, flusher)
}

func openStores(cfg config.Config) (store.CheckpointStore, store.HistoryStore, io.Closer) {
	if cfg.StorageBackend == config.BackendSQLite {
		dbConn, err := db.Open(cfg.DBFile)
		if err != nil {
			log.Fatal().Err(err).Str("db_file", cfg.DBFile).Msg("Failed to open database")
		}
		s := db.NewStore(dbConn, cfg.DBFile)
		return s, s, dbConn
	}

	return store.NewCheckpointFile(cfg.CheckpointFile), store.NewHistoryCSV(cfg.HistoryFile, cfg.Currency), io.NopCloser(nil)
}

func openDevice(cfg config.Config) plug.Device {
	if cfg.SafeMode {
		log.Warn().Msg("SAFE MODE ENABLED - using a simulated plug, no cloud calls are made")
		return plug.NewSimulated(simulatedLoadW, simulatedVoltageV)
	}

	baseURL := cfg.Tuya.BaseURL
	if baseURL == "" {
		var err error
		baseURL, err = tuya.RegionURL(cfg.Tuya.APIRegion)
		if err != nil {
			log.Fatal().Err(err).Msg("Invalid Tuya region")
		}
	}

	log.Info().
		Str("base_url", baseURL).
		Str("device_id", cfg.Tuya.DeviceID).
		Msg("Using Tuya cloud plug")

	client := tuya.NewClient(baseURL, cfg.Tuya.AccessID, cfg.Tuya.AccessSecret)
	return tuya.NewPlug(client, cfg.Tuya.DeviceID, tuya.Codes{
		Switch:  cfg.Tuya.SwitchCode,
		Power:   cfg.Tuya.PowerCode,
		Voltage: cfg.Tuya.VoltageCode,
		Current: cfg.Tuya.CurrentCode,
	})
}
