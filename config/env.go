package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Load reads path (Default when empty), loads a .env file if one is present,
// applies PAPERTRADE_* overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		var err error
		if cfg, err = LoadFromFile(path); err != nil {
			return nil, err
		}
	}

	// Missing .env is fine.
	_ = godotenv.Load()

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	setStr(&cfg.Simulation.TickInterval, "PAPERTRADE_TICK_INTERVAL")
	setUint64(&cfg.Simulation.Seed, "PAPERTRADE_SEED")
	setUint64(&cfg.Simulation.MaxTicks, "PAPERTRADE_MAX_TICKS")

	setStr(&cfg.Store.Backend, "PAPERTRADE_STORE_BACKEND")
	setStr(&cfg.Store.Path, "PAPERTRADE_STORE_PATH")
	setStr(&cfg.Store.Key, "PAPERTRADE_STORE_KEY")
	setStr(&cfg.Store.Redis.Addr, "PAPERTRADE_REDIS_ADDR")
	setStr(&cfg.Store.Redis.Password, "PAPERTRADE_REDIS_PASSWORD")
	setInt(&cfg.Store.Redis.DB, "PAPERTRADE_REDIS_DB")

	setStr(&cfg.Journal.Type, "PAPERTRADE_JOURNAL_TYPE")
	setStr(&cfg.Journal.TradesFile, "PAPERTRADE_JOURNAL_TRADES_FILE")
	setStr(&cfg.Journal.DBPath, "PAPERTRADE_JOURNAL_DB_PATH")

	setStr(&cfg.Notify.RedisChannel, "PAPERTRADE_NOTIFY_REDIS_CHANNEL")

	setStr(&cfg.Server.Addr, "PAPERTRADE_SERVER_ADDR")
	setFloat64(&cfg.Server.RateLimit, "PAPERTRADE_SERVER_RATE_LIMIT")

	setStr(&cfg.Log.Level, "PAPERTRADE_LOG_LEVEL")
	setStr(&cfg.Log.Format, "PAPERTRADE_LOG_FORMAT")
}

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setUint64(dst *uint64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}
