package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Config represents the complete simulator configuration
type Config struct {
	Simulation SimulationConfig `json:"simulation" yaml:"simulation" toml:"simulation"`
	Store      StoreConfig      `json:"store" yaml:"store" toml:"store"`
	Journal    JournalConfig    `json:"journal" yaml:"journal" toml:"journal"`
	Notify     NotifyConfig     `json:"notify" yaml:"notify" toml:"notify"`
	Server     ServerConfig     `json:"server" yaml:"server" toml:"server"`
	Log        LogConfig        `json:"log" yaml:"log" toml:"log"`
}

// SimulationConfig controls the tick clock and the random source
type SimulationConfig struct {
	// TickInterval is a duration string, e.g. "3s" or "500ms"
	TickInterval string `json:"tick_interval" yaml:"tick_interval" toml:"tick_interval"`
	// Seed 0 seeds from the clock
	Seed         uint64 `json:"seed,omitempty" yaml:"seed,omitempty" toml:"seed,omitempty"`
	MaxTicks     uint64 `json:"max_ticks,omitempty" yaml:"max_ticks,omitempty" toml:"max_ticks,omitempty"`
	MaxRetries   int    `json:"max_retries,omitempty" yaml:"max_retries,omitempty" toml:"max_retries,omitempty"`
}

// Interval parses TickInterval.
func (s SimulationConfig) Interval() (time.Duration, error) {
	if s.TickInterval == "" {
		return 0, nil
	}
	return time.ParseDuration(s.TickInterval)
}

// StoreConfig selects where the position snapshot lives
type StoreConfig struct {
	Backend string      `json:"backend" yaml:"backend" toml:"backend"` // memory, file, sqlite or redis
	Path    string      `json:"path,omitempty" yaml:"path,omitempty" toml:"path,omitempty"`
	Key     string      `json:"key,omitempty" yaml:"key,omitempty" toml:"key,omitempty"`
	Redis   RedisConfig `json:"redis,omitempty" yaml:"redis,omitempty" toml:"redis,omitempty"`
}

type RedisConfig struct {
	Addr     string `json:"addr" yaml:"addr" toml:"addr"`
	Password string `json:"password,omitempty" yaml:"password,omitempty" toml:"password,omitempty"`
	DB       int    `json:"db,omitempty" yaml:"db,omitempty" toml:"db,omitempty"`
	Prefix   string `json:"prefix,omitempty" yaml:"prefix,omitempty" toml:"prefix,omitempty"`
}

// JournalConfig contains journaling parameters
type JournalConfig struct {
	Type       string `json:"type" yaml:"type" toml:"type"` // "none", "csv" or "sqlite"
	TradesFile string `json:"trades_file,omitempty" yaml:"trades_file,omitempty" toml:"trades_file,omitempty"`
	DBPath     string `json:"db_path,omitempty" yaml:"db_path,omitempty" toml:"db_path,omitempty"`
}

// NotifyConfig picks the notification sinks besides the in-memory feed
type NotifyConfig struct {
	Log          bool   `json:"log" yaml:"log" toml:"log"`
	FeedSize     int    `json:"feed_size" yaml:"feed_size" toml:"feed_size"`
	RedisChannel string `json:"redis_channel,omitempty" yaml:"redis_channel,omitempty" toml:"redis_channel,omitempty"` // needs store.redis
}

type ServerConfig struct {
	Addr      string  `json:"addr" yaml:"addr" toml:"addr"`
	RateLimit float64 `json:"rate_limit" yaml:"rate_limit" toml:"rate_limit"` // mutating requests per second
	Burst     int     `json:"burst" yaml:"burst" toml:"burst"`
}

type LogConfig struct {
	Level  string `json:"level" yaml:"level" toml:"level"`
	Format string `json:"format" yaml:"format" toml:"format"` // text or json
}

// LoadFromFile loads configuration from a file (TOML by extension,
// otherwise YAML with a JSON fallback) on top of Default.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()

	if isTOML(path) {
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("parse config (TOML): %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		cfg = Default()
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// SaveToFile saves configuration to a file, format chosen by extension
func (c *Config) SaveToFile(path string) error {
	var (
		data []byte
		err  error
	)

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(c)
	case ".toml":
		var b strings.Builder
		err = toml.NewEncoder(&b).Encode(c)
		data = []byte(b.String())
	default:
		data, err = json.MarshalIndent(c, "", "  ")
	}

	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	d, err := c.Simulation.Interval()
	if err != nil {
		return fmt.Errorf("simulation.tick_interval: %w", err)
	}
	if d < 0 {
		return fmt.Errorf("simulation.tick_interval must not be negative")
	}

	switch c.Store.Backend {
	case "memory":
	case "file", "sqlite":
		if c.Store.Path == "" {
			return fmt.Errorf("store.path required for %s backend", c.Store.Backend)
		}
	case "redis":
		if c.Store.Redis.Addr == "" {
			return fmt.Errorf("store.redis.addr required for redis backend")
		}
	default:
		return fmt.Errorf("store.backend must be 'memory', 'file', 'sqlite' or 'redis'")
	}

	switch c.Journal.Type {
	case "none":
	case "csv":
		if c.Journal.TradesFile == "" {
			return fmt.Errorf("journal trades_file required for CSV type")
		}
	case "sqlite":
		if c.Journal.DBPath == "" {
			return fmt.Errorf("journal db_path required for SQLite type")
		}
	default:
		return fmt.Errorf("journal.type must be 'none', 'csv' or 'sqlite'")
	}

	if c.Notify.FeedSize <= 0 {
		return fmt.Errorf("notify.feed_size must be positive")
	}
	if c.Notify.RedisChannel != "" && c.Store.Backend != "redis" {
		return fmt.Errorf("notify.redis_channel requires the redis store backend")
	}

	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if c.Server.RateLimit < 0 || c.Server.Burst < 0 {
		return fmt.Errorf("server rate_limit and burst must not be negative")
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be debug, info, warn or error")
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("log.format must be 'text' or 'json'")
	}
	return nil
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	return &Config{
		Simulation: SimulationConfig{
			TickInterval: "3s",
		},
		Store: StoreConfig{
			Backend: "file",
			Path:    "./data",
		},
		Journal: JournalConfig{
			Type:       "csv",
			TradesFile: "./trades.csv",
		},
		Notify: NotifyConfig{
			Log:      true,
			FeedSize: 100,
		},
		Server: ServerConfig{
			Addr:      ":8080",
			RateLimit: 10,
			Burst:     20,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}
