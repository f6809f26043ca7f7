/*
Package config loads server and CLI settings from the environment.

PURPOSE:
  One Config for both binaries. Values come from environment variables,
  optionally seeded from a .env file in the working directory. Load applies
  defaults; Validate reports every problem at once.

ENVIRONMENT:
  PORT              HTTP port (default 8080)
  DATA_BACKEND      memory | json | sqlite | redis (default json)
  JSON_PATH         document path for the json backend (default database.json)
  SQLITE_DB_PATH    database path for the sqlite backend (default loanledger.db)
  REDIS_ADDR        host:port for the redis backend (default localhost:6379)
  REDIS_KEY         key holding the book (default loanledger:book)
  KAFKA_BROKERS     comma-separated brokers; empty disables event publishing
  KAFKA_TOPIC       topic for ledger events (default loan-ledger-events)
  CURRENCY          ISO 4217 display currency (default MXN)
  LOG_LEVEL         debug | info | warn | error (default info)
  LOG_FORMAT        text | json (default text)
  SUMMARY_INTERVAL  daily summary job interval, 0 disables (default 1h)
  CORS_ORIGINS      comma-separated allowed origins
*/
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/Rhymond/go-money"
	"github.com/joho/godotenv"

	"github.com/warp/loan-ledger/logging"
)

// Backends accepted by DATA_BACKEND.
const (
	BackendMemory = "memory"
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

var validBackends = []string{BackendMemory, BackendJSON, BackendSQLite, BackendRedis}

type Config struct {
	// HTTP server
	Port        string
	CORSOrigins []string

	// Storage
	DataBackend  string
	JSONPath     string
	SQLiteDBPath string
	RedisAddr    string
	RedisKey     string

	// Events
	KafkaBrokers []string
	KafkaTopic   string

	// Display
	Currency string

	// Logging
	LogLevel  string
	LogFormat string

	// Scheduler
	SummaryInterval time.Duration
}

// Load reads .env (if present) and the environment.
func Load() *Config {
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv reads the environment only.
func FromEnv() *Config {
	return &Config{
		Port:        getEnv("PORT", "8080"),
		CORSOrigins: getEnvList("CORS_ORIGINS", []string{"http://localhost:5173", "http://localhost:8080"}),

		DataBackend:  strings.ToLower(getEnv("DATA_BACKEND", BackendJSON)),
		JSONPath:     getEnv("JSON_PATH", "database.json"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "loanledger.db"),
		RedisAddr:    getEnv("REDIS_ADDR", "localhost:6379"),
		RedisKey:     getEnv("REDIS_KEY", "loanledger:book"),

		KafkaBrokers: getEnvList("KAFKA_BROKERS", nil),
		KafkaTopic:   getEnv("KAFKA_TOPIC", "loan-ledger-events"),

		Currency: strings.ToUpper(getEnv("CURRENCY", "MXN")),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: strings.ToLower(getEnv("LOG_FORMAT", "text")),

		SummaryInterval: getEnvDuration("SUMMARY_INTERVAL", time.Hour),
	}
}

// Validate returns one error listing every invalid setting.
func (c *Config) Validate() error {
	var errs []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errs = append(errs, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errs = append(errs, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if !slices.Contains(validBackends, c.DataBackend) {
		errs = append(errs, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	switch c.DataBackend {
	case BackendJSON:
		if c.JSONPath == "" {
			errs = append(errs, "JSON_PATH cannot be empty when using json backend")
		} else if err := ensureDir(c.JSONPath); err != nil {
			errs = append(errs, err.Error())
		}
	case BackendSQLite:
		if c.SQLiteDBPath == "" {
			errs = append(errs, "SQLITE_DB_PATH cannot be empty when using sqlite backend")
		} else if c.SQLiteDBPath != ":memory:" {
			if err := ensureDir(c.SQLiteDBPath); err != nil {
				errs = append(errs, err.Error())
			}
		}
	case BackendRedis:
		if c.RedisAddr == "" {
			errs = append(errs, "REDIS_ADDR cannot be empty when using redis backend")
		}
		if c.RedisKey == "" {
			errs = append(errs, "REDIS_KEY cannot be empty when using redis backend")
		}
	}

	if len(c.KafkaBrokers) > 0 && c.KafkaTopic == "" {
		errs = append(errs, "KAFKA_TOPIC cannot be empty when KAFKA_BROKERS is set")
	}

	if money.GetCurrency(c.Currency) == nil {
		errs = append(errs, fmt.Sprintf("unknown currency '%s'", c.Currency))
	}

	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err.Error())
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		errs = append(errs, fmt.Sprintf("invalid log format '%s': must be text or json", c.LogFormat))
	}

	if c.SummaryInterval < 0 {
		errs = append(errs, fmt.Sprintf("invalid summary interval %v: must not be negative", c.SummaryInterval))
	} else if c.SummaryInterval > 0 && c.SummaryInterval < time.Second {
		errs = append(errs, fmt.Sprintf("invalid summary interval %v: must be at least 1 second", c.SummaryInterval))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errs, "\n- "))
	}
	return nil
}

// Logging returns the logger configuration. LogLevel must have passed Validate.
func (c *Config) Logging() logging.Config {
	cfg := logging.DefaultConfig()
	if level, err := logging.ParseLevel(c.LogLevel); err == nil {
		cfg.Level = level
	}
	cfg.Format = c.LogFormat
	return cfg
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("cannot create directory '%s': %v", dir, err)
		}
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
