package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/micro-ha/ble-scanner/internal/model"
)

const (
	defaultHTTPAddr          = ":5000"
	defaultDBPath            = "/data/ble_scanner.db"
	defaultFrontendDist      = "/app/frontend/dist"
	defaultScanMode          = "auto"
	defaultTargetPrefix      = "00:25:DF"
	defaultSimulatedInterval = 2 * time.Second
	defaultBroadcastInterval = time.Second
	defaultNATSSubject       = "ble.devices.target"
)

// Config stores runtime settings. Values come from defaults, then the optional
// YAML file named by CONFIG_PATH, then environment variables.
type Config struct {
	HTTPAddr     string           `yaml:"http_addr"`
	DBPath       string           `yaml:"db_path"`
	DatabaseURL  string           `yaml:"database_url"`
	FrontendDist string           `yaml:"frontend_dist"`
	LogLevel     slog.Level       `yaml:"-"`
	RawLogLevel  string           `yaml:"log_level"`
	Scan         model.ScanConfig `yaml:"scan"`
	NATS         NATSConfig       `yaml:"nats"`
}

type NATSConfig struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

func defaults() Config {
	return Config{
		HTTPAddr:     defaultHTTPAddr,
		DBPath:       defaultDBPath,
		FrontendDist: defaultFrontendDist,
		RawLogLevel:  "info",
		Scan: model.ScanConfig{
			Mode:              defaultScanMode,
			TargetPrefix:      defaultTargetPrefix,
			SimulatedInterval: defaultSimulatedInterval,
			Thresholds:        model.DefaultStatusThresholds(),
			BroadcastInterval: defaultBroadcastInterval,
		},
		NATS: NATSConfig{Subject: defaultNATSSubject},
	}
}

// Load builds Config from defaults, CONFIG_PATH and environment variables.
func Load() (Config, error) {
	cfg := defaults()
	if path := getenv("CONFIG_PATH", ""); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	applyEnv(&cfg)
	cfg.LogLevel = parseLogLevel(cfg.RawLogLevel)
	cfg.Scan.Thresholds = cfg.Scan.Thresholds.Normalize()
	if cfg.Scan.SimulatedInterval <= 0 {
		cfg.Scan.SimulatedInterval = defaultSimulatedInterval
	}
	if cfg.Scan.BroadcastInterval <= 0 {
		cfg.Scan.BroadcastInterval = defaultBroadcastInterval
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.HTTPAddr = getenv("HTTP_ADDR", cfg.HTTPAddr)
	cfg.DBPath = getenv("DB_PATH", cfg.DBPath)
	cfg.DatabaseURL = getenv("DATABASE_URL", cfg.DatabaseURL)
	cfg.FrontendDist = getenv("FRONTEND_DIST", cfg.FrontendDist)
	cfg.RawLogLevel = getenv("LOG_LEVEL", cfg.RawLogLevel)

	cfg.Scan.Mode = getenv("SCAN_MODE", cfg.Scan.Mode)
	cfg.Scan.TargetPrefix = getenv("TARGET_PREFIX", cfg.Scan.TargetPrefix)
	cfg.Scan.SimulatedInterval = parseDuration("SIMULATED_INTERVAL", cfg.Scan.SimulatedInterval)
	cfg.Scan.Thresholds.ConnectedWithin = parseDuration("CONNECTED_WITHIN", cfg.Scan.Thresholds.ConnectedWithin)
	cfg.Scan.Thresholds.ScanningWithin = parseDuration("SCANNING_WITHIN", cfg.Scan.Thresholds.ScanningWithin)
	cfg.Scan.BroadcastInterval = parseDuration("STATUS_BROADCAST_INTERVAL", cfg.Scan.BroadcastInterval)

	cfg.NATS.URL = getenv("NATS_URL", cfg.NATS.URL)
	cfg.NATS.Subject = getenv("NATS_SUBJECT", cfg.NATS.Subject)
}

// DBDir returns the target directory for DBPath.
func (c Config) DBDir() string {
	return filepath.Dir(c.DBPath)
}

// UsePostgres reports whether DATABASE_URL selects the postgres store.
func (c Config) UsePostgres() bool {
	return c.DatabaseURL != ""
}

func getenv(key string, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func parseDuration(key string, fallback time.Duration) time.Duration {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	value, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}

func parseLogLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
