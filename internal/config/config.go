package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"
)

// Storage backends.
const (
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
	BackendMemory   = "memory"
)

type Config struct {
	Port     string
	LogLevel string
	AppEnv   string

	StorageBackend string
	DatabaseURL    string
	SQLitePath     string
	QueryTimeout   time.Duration

	// Circuit breaker around the durable backend
	BreakerMaxFailures  int
	BreakerResetTimeout time.Duration

	GameConfigPath string
	JournalDir     string
}

// Load reads the process configuration from the environment. DATABASE_URL
// is required when STORAGE_BACKEND is postgres.
func Load() Config {
	cfg := Config{
		Port:                getEnv("PORT", "8080"),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		AppEnv:              getEnv("APP_ENV", "development"),
		StorageBackend:      getEnv("STORAGE_BACKEND", BackendSQLite),
		SQLitePath:          getEnv("SQLITE_PATH", "data/placebot.db"),
		QueryTimeout:        getEnvDuration("QUERY_TIMEOUT", 5*time.Second),
		BreakerMaxFailures:  getEnvInt("BREAKER_MAX_FAILURES", 5),
		BreakerResetTimeout: getEnvDuration("BREAKER_RESET_TIMEOUT", 30*time.Second),
		GameConfigPath:      getEnv("GAME_CONFIG_PATH", ""),
		JournalDir:          getEnv("JOURNAL_DIR", ""),
	}
	switch cfg.StorageBackend {
	case BackendPostgres:
		cfg.DatabaseURL = getEnvRequired("DATABASE_URL")
	case BackendSQLite, BackendMemory:
	default:
		panic("unknown STORAGE_BACKEND " + strconv.Quote(cfg.StorageBackend))
	}
	return cfg
}

// SlogLevel maps LogLevel to a slog level; unknown values mean info.
func (c Config) SlogLevel() slog.Level {
	switch c.LogLevel {
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

func getEnvRequired(key string) string {
	v := os.Getenv(key)
	if v == "" {
		panic("required environment variable " + key + " is not set")
	}
	return v
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			slog.Warn("invalid integer env var, using default", "key", key, "value", v, "error", err)
			return fallback
		}
		return n
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			slog.Warn("invalid duration env var, using default", "key", key, "value", v, "error", err)
			return fallback
		}
		return d
	}
	return fallback
}
