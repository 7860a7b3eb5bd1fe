package config

import (
	"encoding/json"
	"flag"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

type Tuya struct {
	BaseURL      string `json:"base_url"`
	APIRegion    string `json:"api_region"`
	AccessID     string `json:"access_id"`
	AccessSecret string `json:"access_secret"`
	DeviceID     string `json:"device_id"`

	// data point codes; scaling is fixed by the device firmware
	SwitchCode  string `json:"switch_code"`
	PowerCode   string `json:"power_code"`
	VoltageCode string `json:"voltage_code"`
	CurrentCode string `json:"current_code"`
}

type Config struct {
	ConfigFile string
	LogFile    string
	LogLevel   zerolog.Level

	UnitCostPerKWh      float64 `json:"unit_cost_per_kwh"`
	Currency            string  `json:"currency"`
	AutoOffDefaultHours float64 `json:"auto_off_default_hours"`

	MinLogIntervalSeconds int `json:"min_log_interval_seconds"`
	PollIntervalSeconds   int `json:"poll_interval_seconds"`
	FetchTimeoutSeconds   int `json:"fetch_timeout_seconds"`
	StatusCacheTTLSeconds int `json:"status_cache_ttl_seconds"`

	StorageBackend string `json:"storage_backend"`
	CheckpointFile string `json:"checkpoint_file"`
	HistoryFile    string `json:"history_file"`
	DBFile         string `json:"db_file"`

	APIPort  int  `json:"api_port"`
	SafeMode bool `json:"safe_mode"`

	Tuya Tuya `json:"tuya"`

	EnableDatadog bool     `json:"enable_datadog"`
	DDAgentAddr   string   `json:"dd_agent_addr"`
	DDNamespace   string   `json:"dd_namespace"`
	DDTags        []string `json:"dd_tags"`

	NtfyTopic string `json:"ntfy_topic"`
}

func Load() Config {
	var cfg Config
	var logLevel string

	flag.StringVar(&cfg.ConfigFile, "config-file", "config.json", "Path to plug monitor config file")
	flag.StringVar(&cfg.LogFile, "log-file", "", "Append logs to this file instead of stderr")
	flag.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flag.Parse()

	cfg.LogLevel = parseLogLevel(logLevel)

	file, err := os.Open(cfg.ConfigFile)
	if err != nil {
		panic("Failed to load config file: " + err.Error())
	}
	defer file.Close()

	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		panic("Failed to parse config file: " + err.Error())
	}

	cfg.applyDefaults()
	cfg.validate()
	return cfg
}

func parseLogLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

func (cfg *Config) applyDefaults() {
	if cfg.UnitCostPerKWh == 0 {
		cfg.UnitCostPerKWh = 6
	}
	if cfg.Currency == "" {
		cfg.Currency = "BDT"
	}
	if cfg.AutoOffDefaultHours == 0 {
		cfg.AutoOffDefaultHours = 6
	}
	if cfg.MinLogIntervalSeconds == 0 {
		cfg.MinLogIntervalSeconds = 60
	}
	if cfg.PollIntervalSeconds == 0 {
		cfg.PollIntervalSeconds = 60
	}
	if cfg.FetchTimeoutSeconds == 0 {
		cfg.FetchTimeoutSeconds = 5
	}
	if cfg.StatusCacheTTLSeconds == 0 {
		cfg.StatusCacheTTLSeconds = 10
	}
	if cfg.StorageBackend == "" {
		cfg.StorageBackend = BackendFile
	}
	if cfg.CheckpointFile == "" {
		cfg.CheckpointFile = "data/session_backup.json"
	}
	if cfg.HistoryFile == "" {
		cfg.HistoryFile = "data/energy_history.csv"
	}
	if cfg.DBFile == "" {
		cfg.DBFile = "data/plug.db"
	}
	if cfg.APIPort == 0 {
		cfg.APIPort = 8080
	}
	if cfg.Tuya.SwitchCode == "" {
		cfg.Tuya.SwitchCode = "switch_1"
	}
	if cfg.Tuya.PowerCode == "" {
		cfg.Tuya.PowerCode = "cur_power"
	}
	if cfg.Tuya.VoltageCode == "" {
		cfg.Tuya.VoltageCode = "cur_voltage"
	}
	if cfg.Tuya.CurrentCode == "" {
		cfg.Tuya.CurrentCode = "cur_current"
	}
}

func (cfg *Config) validate() {
	var problems []string

	if cfg.UnitCostPerKWh < 0 {
		problems = append(problems, "unit_cost_per_kwh must not be negative")
	}
	if cfg.AutoOffDefaultHours < 0 {
		problems = append(problems, "auto_off_default_hours must not be negative")
	}
	if cfg.PollIntervalSeconds < 0 || cfg.MinLogIntervalSeconds < 0 || cfg.StatusCacheTTLSeconds < 0 {
		problems = append(problems, "intervals must not be negative")
	}
	if cfg.FetchTimeoutSeconds <= 0 || cfg.FetchTimeoutSeconds >= cfg.PollIntervalSeconds {
		problems = append(problems, "fetch_timeout_seconds must be positive and shorter than poll_interval_seconds")
	}
	if cfg.StorageBackend != BackendFile && cfg.StorageBackend != BackendSQLite {
		problems = append(problems, "storage_backend must be \"file\" or \"sqlite\"")
	}

	// the simulated plug needs no credentials
	if !cfg.SafeMode {
		var missing []string
		if cfg.Tuya.AccessID == "" {
			missing = append(missing, "tuya.access_id")
		}
		if cfg.Tuya.AccessSecret == "" {
			missing = append(missing, "tuya.access_secret")
		}
		if cfg.Tuya.DeviceID == "" {
			missing = append(missing, "tuya.device_id")
		}
		if cfg.Tuya.BaseURL == "" && cfg.Tuya.APIRegion == "" {
			missing = append(missing, "tuya.base_url or tuya.api_region")
		}
		if len(missing) > 0 {
			problems = append(problems, "missing required fields: "+strings.Join(missing, ", "))
		}
	}

	if len(problems) > 0 {
		panic("Invalid config: " + strings.Join(problems, "; "))
	}
}

func (cfg *Config) PollInterval() time.Duration {
	return time.Duration(cfg.PollIntervalSeconds) * time.Second
}

func (cfg *Config) MinLogInterval() time.Duration {
	return time.Duration(cfg.MinLogIntervalSeconds) * time.Second
}

func (cfg *Config) FetchTimeout() time.Duration {
	return time.Duration(cfg.FetchTimeoutSeconds) * time.Second
}

func (cfg *Config) StatusCacheTTL() time.Duration {
	return time.Duration(cfg.StatusCacheTTLSeconds) * time.Second
}

func (cfg *Config) AutoOffDefault() time.Duration {
	return time.Duration(cfg.AutoOffDefaultHours * float64(time.Hour))
}
