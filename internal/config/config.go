package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/danielpatrickdp/adaptive-state/lanequiz/internal/convergence"
	"github.com/danielpatrickdp/adaptive-state/lanequiz/internal/selector"
	"github.com/danielpatrickdp/adaptive-state/lanequiz/internal/state"
)

// Storage drivers.
const (
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
	DriverMemory = "memory"
)

// #region types
// Config is the full application configuration.
type Config struct {
	Engine      EngineConfig      `yaml:"engine"`
	Convergence ConvergenceConfig `yaml:"convergence"`
	Session     SessionConfig     `yaml:"session"`
	Storage     StorageConfig     `yaml:"storage"`
	Analytics   AnalyticsConfig   `yaml:"analytics"`
	Log         LogConfig         `yaml:"log"`
	Catalog     CatalogConfig     `yaml:"catalog"`
}

type EngineConfig struct {
	MaxRounds          int     `yaml:"max_rounds"`
	MinLaneCoverage    int     `yaml:"min_lane_coverage"`
	ExploreProbability float64 `yaml:"explore_probability"`
	Seed               uint64  `yaml:"seed"` // 0 seeds from the clock
}

type ConvergenceConfig struct {
	MinSwipes           int     `yaml:"min_swipes"`
	MaxSkipRate         float64 `yaml:"max_skip_rate"`
	FinishGap           float64 `yaml:"finish_gap"`
	StrongGap           float64 `yaml:"strong_gap"`
	WeakGap             float64 `yaml:"weak_gap"`
	ExploratorySkipRate float64 `yaml:"exploratory_skip_rate"`
}

type SessionConfig struct {
	SettleDelay time.Duration `yaml:"settle_delay"`
}

type StorageConfig struct {
	Driver         string `yaml:"driver"`
	SQLitePath     string `yaml:"sqlite_path"`
	RedisAddr      string `yaml:"redis_addr"`
	RedisKey       string `yaml:"redis_key"`
	RedisLegacyKey string `yaml:"redis_legacy_key"`
}

type AnalyticsConfig struct {
	Enabled bool `yaml:"enabled"`
	Buffer  int  `yaml:"buffer"`
}

type LogConfig struct {
	Mode string `yaml:"mode"`
}

type CatalogConfig struct {
	Path string `yaml:"path"` // empty uses the embedded catalog
}

// #endregion types

// #region defaults
// Default returns the production configuration.
func Default() Config {
	sel := selector.DefaultConfig()
	conv := convergence.DefaultConfig()
	return Config{
		Engine: EngineConfig{
			MaxRounds:          state.DefaultMaxRounds,
			MinLaneCoverage:    sel.MinLaneCoverage,
			ExploreProbability: sel.ExploreProbability,
		},
		Convergence: ConvergenceConfig{
			MinSwipes:           conv.MinSwipes,
			MaxSkipRate:         conv.MaxSkipRate,
			FinishGap:           conv.FinishGap,
			StrongGap:           conv.StrongGap,
			WeakGap:             conv.WeakGap,
			ExploratorySkipRate: conv.ExploratorySkipRate,
		},
		Session: SessionConfig{SettleDelay: 300 * time.Millisecond},
		Storage: StorageConfig{
			Driver:         DriverSQLite,
			SQLitePath:     "lanequiz.db",
			RedisAddr:      "localhost:6379",
			RedisKey:       "lanequiz:run_state",
			RedisLegacyKey: state.LegacyKey,
		},
		Analytics: AnalyticsConfig{Enabled: true, Buffer: 64},
		Log:       LogConfig{Mode: "dev"},
	}
}

// #endregion defaults

// #region load
// Load reads a YAML file over the defaults, then applies environment
// overrides and validates. A missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return Config{}, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from LANEQUIZ_* variables.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("LANEQUIZ_STORE"); ok && v != "" {
		c.Storage.Driver = strings.ToLower(v)
	}
	if v, ok := lookup("LANEQUIZ_DB"); ok && v != "" {
		c.Storage.SQLitePath = v
	}
	if v, ok := lookup("LANEQUIZ_REDIS_ADDR"); ok && v != "" {
		c.Storage.RedisAddr = v
	}
	if v, ok := lookup("LANEQUIZ_LOG_MODE"); ok && v != "" {
		c.Log.Mode = v
	}
	if v, ok := lookup("LANEQUIZ_SEED"); ok && v != "" {
		seed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("LANEQUIZ_SEED: %w", err)
		}
		c.Engine.Seed = seed
	}
	return nil
}

// #endregion load

// #region validate
// Validate rejects values the engine cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.Engine.MaxRounds < 1 {
		errs = append(errs, fmt.Errorf("engine.max_rounds %d must be at least 1", c.Engine.MaxRounds))
	}
	if c.Engine.MinLaneCoverage < 0 {
		errs = append(errs, fmt.Errorf("engine.min_lane_coverage %d must not be negative", c.Engine.MinLaneCoverage))
	}
	errs = append(errs, probability("engine.explore_probability", c.Engine.ExploreProbability))
	errs = append(errs, probability("convergence.max_skip_rate", c.Convergence.MaxSkipRate))
	errs = append(errs, probability("convergence.exploratory_skip_rate", c.Convergence.ExploratorySkipRate))
	if c.Convergence.MinSwipes < 0 {
		errs = append(errs, fmt.Errorf("convergence.min_swipes %d must not be negative", c.Convergence.MinSwipes))
	}
	if c.Convergence.WeakGap > c.Convergence.StrongGap {
		errs = append(errs, fmt.Errorf("convergence.weak_gap %v exceeds strong_gap %v", c.Convergence.WeakGap, c.Convergence.StrongGap))
	}
	if c.Session.SettleDelay < 0 {
		errs = append(errs, fmt.Errorf("session.settle_delay %s must not be negative", c.Session.SettleDelay))
	}
	switch c.Storage.Driver {
	case DriverSQLite:
		if c.Storage.SQLitePath == "" {
			errs = append(errs, errors.New("storage.sqlite_path is required for the sqlite driver"))
		}
	case DriverRedis:
		if c.Storage.RedisAddr == "" || c.Storage.RedisKey == "" {
			errs = append(errs, errors.New("storage.redis_addr and storage.redis_key are required for the redis driver"))
		}
	case DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("storage.driver %q must be sqlite, redis or memory", c.Storage.Driver))
	}
	if c.Analytics.Buffer < 1 {
		errs = append(errs, fmt.Errorf("analytics.buffer %d must be at least 1", c.Analytics.Buffer))
	}
	return errors.Join(errs...)
}

func probability(name string, v float64) error {
	if v < 0 || v > 1 {
		return fmt.Errorf("%s %v must be within [0, 1]", name, v)
	}
	return nil
}

// #endregion validate

// #region conversions
// SelectorConfig returns the selection policy.
func (c Config) SelectorConfig() selector.Config {
	sel := selector.DefaultConfig()
	sel.MinLaneCoverage = c.Engine.MinLaneCoverage
	sel.ExploreProbability = c.Engine.ExploreProbability
	return sel
}

// ConvergenceConfig returns the stopping thresholds.
func (c Config) ConvergenceConfig() convergence.Config {
	return convergence.Config{
		MinSwipes:           c.Convergence.MinSwipes,
		MaxSkipRate:         c.Convergence.MaxSkipRate,
		FinishGap:           c.Convergence.FinishGap,
		StrongGap:           c.Convergence.StrongGap,
		WeakGap:             c.Convergence.WeakGap,
		ExploratorySkipRate: c.Convergence.ExploratorySkipRate,
	}
}

// #endregion conversions
