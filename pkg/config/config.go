// Copyright 2025 Certen Protocol

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the off-chain cranker service.
type Config struct {
	// RPC / chain connectivity
	RPCURL string

	// Signing identity
	KeypairPath string

	// Order book this cranker instance drives
	OrderBookAddress string

	// Epoch sizing
	MaxOrdersPerEpoch uint32

	// Loop cadence
	EpochRotationIntervalSec int
	MatchIntervalMs          int
	SettlementIntervalMs     int

	// Cleanup worker
	CleanupGracePeriodSec int
	CleanupIntervalSec    int

	// Server configuration
	ListenAddr  string
	MetricsAddr string

	// AdminToken gates the admin-only HTTP surface (rotate-epoch,
	// finalize-epoch, cleanup-sweep) per spec.md §4.G's "caller =
	// authority" / "caller = authorized cranker" guards. Validate()
	// refuses an empty token, and the admin handlers answer 503 when it
	// is empty.
	AdminToken string

	// Durable state
	DataDir     string
	DatabaseURL string // optional: pkg/auditstore Postgres DSN

	LogLevel string
}

// fileConfig mirrors Config for YAML file loading. Field names follow the
// enumerated option names from spec.md §6 rather than the Go-idiomatic
// Config field names, since the on-disk file is the operator-facing
// surface.
type fileConfig struct {
	RPCURL                   string `yaml:"rpc_url"`
	KeypairPath              string `yaml:"keypair_path"`
	OrderBookAddress         string `yaml:"order_book_address"`
	MaxOrdersPerEpoch        uint32 `yaml:"max_orders_per_epoch"`
	EpochRotationIntervalSec int    `yaml:"epoch_rotation_interval_sec"`
	MatchIntervalMs          int    `yaml:"match_interval_ms"`
	SettlementIntervalMs     int    `yaml:"settlement_interval_ms"`
	CleanupGracePeriodSec    int    `yaml:"cleanup_grace_period_sec"`
	CleanupIntervalSec       int    `yaml:"cleanup_interval_sec"`
	ListenAddr               string `yaml:"listen_addr"`
	MetricsAddr              string `yaml:"metrics_addr"`
	AdminToken               string `yaml:"admin_token"`
	DataDir                  string `yaml:"data_dir"`
	DatabaseURL              string `yaml:"database_url"`
	LogLevel                 string `yaml:"log_level"`
}

// Load reads configuration from environment variables.
//
// CRITICAL: required variables (RPC_URL, KEYPAIR_PATH, ORDER_BOOK_ADDRESS)
// have no defaults and must be explicitly set. Call Validate() after Load()
// to ensure all required configuration is present before starting the
// cranker loops.
func Load() (*Config, error) {
	cfg := &Config{
		RPCURL:           getEnv("RPC_URL", ""),
		KeypairPath:      getEnv("KEYPAIR_PATH", ""),
		OrderBookAddress: getEnv("ORDER_BOOK_ADDRESS", ""),

		MaxOrdersPerEpoch: uint32(getEnvInt("MAX_ORDERS_PER_EPOCH", 2048)),

		EpochRotationIntervalSec: getEnvInt("EPOCH_ROTATION_INTERVAL_SEC", 60),
		MatchIntervalMs:          getEnvInt("MATCH_INTERVAL_MS", 1000),
		SettlementIntervalMs:     getEnvInt("SETTLEMENT_INTERVAL_MS", 5000),

		CleanupGracePeriodSec: getEnvInt("CLEANUP_GRACE_PERIOD_SEC", 3600),
		CleanupIntervalSec:    getEnvInt("CLEANUP_INTERVAL_SEC", 300),

		ListenAddr:  getEnv("API_HOST", "0.0.0.0") + ":" + getEnv("API_PORT", "8080"),
		MetricsAddr: getEnv("API_HOST", "0.0.0.0") + ":" + getEnv("METRICS_PORT", "9090"),
		AdminToken:  getEnv("ADMIN_TOKEN", ""),

		DataDir:     getEnv("DATA_DIR", "./data"),
		DatabaseURL: getEnv("DATABASE_URL", ""),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	return cfg, nil
}

// LoadFile loads configuration from a YAML file, falling back to the
// environment-derived defaults in Load() for any field left zero-valued
// in the file. An explicit --config flag in cmd/cranker points at path.
func LoadFile(path string) (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	overlay(&cfg.RPCURL, fc.RPCURL)
	overlay(&cfg.KeypairPath, fc.KeypairPath)
	overlay(&cfg.OrderBookAddress, fc.OrderBookAddress)
	if fc.MaxOrdersPerEpoch != 0 {
		cfg.MaxOrdersPerEpoch = fc.MaxOrdersPerEpoch
	}
	overlayInt(&cfg.EpochRotationIntervalSec, fc.EpochRotationIntervalSec)
	overlayInt(&cfg.MatchIntervalMs, fc.MatchIntervalMs)
	overlayInt(&cfg.SettlementIntervalMs, fc.SettlementIntervalMs)
	overlayInt(&cfg.CleanupGracePeriodSec, fc.CleanupGracePeriodSec)
	overlayInt(&cfg.CleanupIntervalSec, fc.CleanupIntervalSec)
	overlay(&cfg.ListenAddr, fc.ListenAddr)
	overlay(&cfg.MetricsAddr, fc.MetricsAddr)
	overlay(&cfg.AdminToken, fc.AdminToken)
	overlay(&cfg.DataDir, fc.DataDir)
	overlay(&cfg.DatabaseURL, fc.DatabaseURL)
	overlay(&cfg.LogLevel, fc.LogLevel)

	return cfg, nil
}

func overlay(dst *string, fileValue string) {
	if fileValue != "" {
		*dst = fileValue
	}
}

func overlayInt(dst *int, fileValue int) {
	if fileValue != 0 {
		*dst = fileValue
	}
}

// Validate checks that all required configuration is present.
// This must be called after Load()/LoadFile() before starting the cranker.
func (c *Config) Validate() error {
	var errs []string

	if c.RPCURL == "" {
		errs = append(errs, "RPC_URL is required but not set")
	}
	if c.KeypairPath == "" {
		errs = append(errs, "KEYPAIR_PATH is required but not set")
	}
	if c.OrderBookAddress == "" {
		errs = append(errs, "ORDER_BOOK_ADDRESS is required but not set")
	}
	if c.MaxOrdersPerEpoch == 0 {
		errs = append(errs, "MAX_ORDERS_PER_EPOCH must be non-zero")
	}
	if c.EpochRotationIntervalSec <= 0 {
		errs = append(errs, "EPOCH_ROTATION_INTERVAL_SEC must be positive")
	}
	if c.MatchIntervalMs <= 0 {
		errs = append(errs, "MATCH_INTERVAL_MS must be positive")
	}
	if c.SettlementIntervalMs <= 0 {
		errs = append(errs, "SETTLEMENT_INTERVAL_MS must be positive")
	}
	if c.AdminToken == "" {
		errs = append(errs, "ADMIN_TOKEN is required but not set (gates /api/admin/* per spec.md §4.G)")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// MatchInterval returns MatchIntervalMs as a time.Duration.
func (c *Config) MatchInterval() time.Duration {
	return time.Duration(c.MatchIntervalMs) * time.Millisecond
}

// SettlementInterval returns SettlementIntervalMs as a time.Duration.
func (c *Config) SettlementInterval() time.Duration {
	return time.Duration(c.SettlementIntervalMs) * time.Millisecond
}

// EpochRotationInterval returns EpochRotationIntervalSec as a time.Duration.
func (c *Config) EpochRotationInterval() time.Duration {
	return time.Duration(c.EpochRotationIntervalSec) * time.Second
}

// CleanupInterval returns CleanupIntervalSec as a time.Duration.
func (c *Config) CleanupInterval() time.Duration {
	return time.Duration(c.CleanupIntervalSec) * time.Second
}

// Helper functions for environment variable parsing.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
