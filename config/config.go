// Package config loads server settings from an optional yaml file, then
// SNEK_* environment variables. Command-line flags are applied by the mains.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/brensch/snekstep/search"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid config")

type Config struct {
	Listen           string `yaml:"listen"`
	ValidateRequests bool   `yaml:"validate_requests"`

	Log    LogConfig    `yaml:"log"`
	Search SearchConfig `yaml:"search"`
	Snake  SnakeConfig  `yaml:"snake"`
	Store  StoreConfig  `yaml:"store"`
}

type LogConfig struct {
	Format string `yaml:"format"`
	Level  string `yaml:"level"`
}

type SearchConfig struct {
	WorkersPerGame int           `yaml:"workers_per_game"`
	ExploreDepth   int           `yaml:"explore_depth"`
	ThinkTime      time.Duration `yaml:"think_time"`
	MinThinkTime   time.Duration `yaml:"min_think_time"`
	LatencyBuffer  time.Duration `yaml:"latency_buffer"`
	Seed           int64         `yaml:"seed"`
	// Policy names the opponent model: "uniform" or "safe".
	Policy string `yaml:"policy"`
}

// SnakeConfig is the cosmetic identity reported to the game server.
type SnakeConfig struct {
	Author  string `yaml:"author"`
	Color   string `yaml:"color"`
	Head    string `yaml:"head"`
	Tail    string `yaml:"tail"`
	Version string `yaml:"version"`
}

// StoreConfig enables the optional recorders. Empty paths disable them.
type StoreConfig struct {
	ArchiveDir    string        `yaml:"archive_dir"`
	FlushRows     int           `yaml:"flush_rows"`
	FlushEvery    time.Duration `yaml:"flush_every"`
	RequestLogDir string        `yaml:"request_log_dir"`
	IndexPath     string        `yaml:"index_path"`
}

func Default() Config {
	sc := search.DefaultConfig()
	return Config{
		Listen: ":8080",
		Log:    LogConfig{Format: "json", Level: "info"},
		Search: SearchConfig{
			WorkersPerGame: sc.WorkersPerGame,
			ExploreDepth:   sc.ExploreDepth,
			ThinkTime:      sc.ThinkTime,
			MinThinkTime:   sc.MinThinkTime,
			LatencyBuffer:  sc.LatencyBuffer,
			Policy:         "uniform",
		},
		Snake: SnakeConfig{
			Author:  "brensch",
			Color:   "#FF0080",
			Head:    "safe",
			Tail:    "block-bum",
			Version: "1.0.0",
		},
		Store: StoreConfig{
			FlushRows:  5000,
			FlushEvery: 10 * time.Minute,
		},
	}
}

// Load reads path over the defaults (an empty path skips the file), applies
// the environment and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("%s: %w", path, err)
		}
	}
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from SNEK_* variables that are set.
func (c *Config) ApplyEnv() {
	c.Listen = getEnvOrDefault("SNEK_LISTEN", c.Listen)
	c.ValidateRequests = getEnvBoolOrDefault("SNEK_VALIDATE_REQUESTS", c.ValidateRequests)

	c.Log.Format = getEnvOrDefault("SNEK_LOG_FORMAT", c.Log.Format)
	c.Log.Level = getEnvOrDefault("SNEK_LOG_LEVEL", c.Log.Level)

	c.Search.WorkersPerGame = getEnvIntOrDefault("SNEK_WORKERS", c.Search.WorkersPerGame)
	c.Search.ExploreDepth = getEnvIntOrDefault("SNEK_EXPLORE_DEPTH", c.Search.ExploreDepth)
	c.Search.ThinkTime = getEnvDurationOrDefault("SNEK_THINK_TIME", c.Search.ThinkTime)
	c.Search.MinThinkTime = getEnvDurationOrDefault("SNEK_MIN_THINK_TIME", c.Search.MinThinkTime)
	c.Search.LatencyBuffer = getEnvDurationOrDefault("SNEK_LATENCY_BUFFER", c.Search.LatencyBuffer)
	c.Search.Policy = getEnvOrDefault("SNEK_POLICY", c.Search.Policy)

	c.Snake.Color = getEnvOrDefault("SNEK_COLOR", c.Snake.Color)

	c.Store.ArchiveDir = getEnvOrDefault("SNEK_ARCHIVE_DIR", c.Store.ArchiveDir)
	c.Store.RequestLogDir = getEnvOrDefault("SNEK_REQUEST_LOG_DIR", c.Store.RequestLogDir)
	c.Store.IndexPath = getEnvOrDefault("SNEK_INDEX_PATH", c.Store.IndexPath)
}

func (c Config) Validate() error {
	var errs []error
	if c.Search.WorkersPerGame <= 0 {
		errs = append(errs, fmt.Errorf("%w: workers_per_game must be positive, got %d", ErrInvalid, c.Search.WorkersPerGame))
	}
	if c.Search.ExploreDepth <= 0 {
		errs = append(errs, fmt.Errorf("%w: explore_depth must be positive, got %d", ErrInvalid, c.Search.ExploreDepth))
	}
	for name, d := range map[string]time.Duration{
		"think_time":     c.Search.ThinkTime,
		"min_think_time": c.Search.MinThinkTime,
		"latency_buffer": c.Search.LatencyBuffer,
		"flush_every":    c.Store.FlushEvery,
	} {
		if d < 0 {
			errs = append(errs, fmt.Errorf("%w: %s must not be negative, got %s", ErrInvalid, name, d))
		}
	}
	if c.Store.FlushRows < 0 {
		errs = append(errs, fmt.Errorf("%w: flush_rows must not be negative", ErrInvalid))
	}
	switch c.Search.Policy {
	case "", "uniform", "safe":
	default:
		errs = append(errs, fmt.Errorf("%w: unknown policy %q", ErrInvalid, c.Search.Policy))
	}
	return errors.Join(errs...)
}

// Engine converts the search section into engine settings.
func (c SearchConfig) Engine() search.Config {
	return search.Config{
		WorkersPerGame: c.WorkersPerGame,
		ExploreDepth:   c.ExploreDepth,
		ThinkTime:      c.ThinkTime,
		MinThinkTime:   c.MinThinkTime,
		LatencyBuffer:  c.LatencyBuffer,
		Seed:           c.Seed,
	}
}
