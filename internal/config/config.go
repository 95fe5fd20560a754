// Package config loads the worker and backfill configuration from a YAML
// file with environment variable fallback.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Qdigital/rippled-database-stargate/pkg/archive"
)

// StopValidated is the stopIndex sentinel meaning "continue until the
// historical source reports no further validated ledgers".
const StopValidated = "validated"

// Config holds the application configuration.
type Config struct {
	// NATS configuration
	NatsURL string `yaml:"nats_url"`
	// Subject the live feed delivers transaction records on
	TransactionSubject string `yaml:"transaction_subject"`

	// Storage configuration
	DatabasePath string `yaml:"database_path"`

	// Rippled websocket endpoint used by backfill
	RippledURL string `yaml:"rippled_url"`

	// Backfill range; StopIndex is a ledger index or "validated"
	StartIndex uint32 `yaml:"start_index"`
	StopIndex  string `yaml:"stop_index"`

	// Raw-transaction archival channel
	ArchiveRawTransactions bool           `yaml:"archive_raw_transactions"`
	Minio                  archive.Config `yaml:"minio"`

	// Logging
	LogLevel string `yaml:"log_level"`
	LogFile  string `yaml:"log_file"`
}

// LoadFromEnv loads configuration from environment variables.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		NatsURL:            getEnvWithDefault("NATS_URL", "nats://localhost:4222"),
		TransactionSubject: getEnvWithDefault("TRANSACTION_SUBJECT", "transactions.validated"),
		DatabasePath:       getEnvWithDefault("DATABASE_PATH", "stargate.duckdb"),
		RippledURL:         getEnvWithDefault("RIPPLED_URL", "wss://s2.ripple.com:443"),
		StopIndex:          getEnvWithDefault("STOP_INDEX", StopValidated),
		LogLevel:           getEnvWithDefault("LOG_LEVEL", "info"),
		LogFile:            os.Getenv("LOG_FILE"),

		ArchiveRawTransactions: getEnvAsBool("ARCHIVE_RAW_TRANSACTIONS", false),
		Minio: archive.Config{
			Endpoint:  getEnvWithDefault("MINIO_ENDPOINT", "localhost:9000"),
			AccessKey: os.Getenv("MINIO_ACCESS_KEY"),
			SecretKey: os.Getenv("MINIO_SECRET_KEY"),
			UseSSL:    getEnvAsBool("MINIO_USE_SSL", false),
			Bucket:    getEnvWithDefault("MINIO_BUCKET", "transactions"),
			BasePath:  os.Getenv("MINIO_BASE_PATH"),
		},
	}

	if start := os.Getenv("START_INDEX"); start != "" {
		v, err := strconv.ParseUint(start, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid START_INDEX %q: %w", start, err)
		}
		cfg.StartIndex = uint32(v)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load reads a YAML config file (path), falls back to the environment
// loader when the file does not exist. Environment variables fill any
// fields the file leaves unset.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return LoadFromEnv()
	}

	cfg, err := LoadFromEnv()
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.StopIndex != StopValidated {
		stop, err := strconv.ParseUint(c.StopIndex, 10, 32)
		if err != nil {
			return fmt.Errorf("stop index must be a ledger index or %q, got %q", StopValidated, c.StopIndex)
		}
		if uint32(stop) < c.StartIndex {
			return fmt.Errorf("stop index %d precedes start index %d", stop, c.StartIndex)
		}
	}
	return nil
}

// StopIndexValue returns the explicit stop index and whether one was set;
// ok is false when the validated sentinel is in effect.
func (c *Config) StopIndexValue() (uint32, bool) {
	if c.StopIndex == StopValidated {
		return 0, false
	}
	v, err := strconv.ParseUint(c.StopIndex, 10, 32)
	if err != nil {
		return 0, false
	}
	return uint32(v), true
}

// getEnvWithDefault returns environment variable value or default if not set
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsBool parses a boolean environment variable
func getEnvAsBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	switch strings.ToLower(value) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return defaultValue
}
