package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielpatrickdp/adaptive-state/lanequiz/internal/convergence"
	"github.com/danielpatrickdp/adaptive-state/lanequiz/internal/selector"
)

func env(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 32, cfg.Engine.MaxRounds)
	assert.Equal(t, convergence.DefaultConfig(), cfg.ConvergenceConfig())
	assert.Equal(t, selector.DefaultConfig(), cfg.SelectorConfig())
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	for _, k := range []string{"LANEQUIZ_STORE", "LANEQUIZ_DB", "LANEQUIZ_REDIS_ADDR", "LANEQUIZ_LOG_MODE", "LANEQUIZ_SEED"} {
		t.Setenv(k, "")
	}
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadOverlaysFile(t *testing.T) {
	t.Setenv("LANEQUIZ_STORE", "")
	t.Setenv("LANEQUIZ_SEED", "")
	path := filepath.Join(t.TempDir(), "lanequiz.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
engine:
  max_rounds: 24
  seed: 7
convergence:
  finish_gap: 60
session:
  settle_delay: 500ms
storage:
  driver: memory
log:
  mode: prod
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 24, cfg.Engine.MaxRounds)
	assert.Equal(t, uint64(7), cfg.Engine.Seed)
	assert.Equal(t, 60.0, cfg.Convergence.FinishGap)
	assert.Equal(t, 80.0, cfg.Convergence.StrongGap, "unset keys keep defaults")
	assert.Equal(t, 500*time.Millisecond, cfg.Session.SettleDelay)
	assert.Equal(t, DriverMemory, cfg.Storage.Driver)
	assert.Equal(t, "prod", cfg.Log.Mode)
}

func TestLoadRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("engine: [unclosed"), 0o644))
	_, err := Load(path)
	assert.ErrorContains(t, err, "parse config")
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	err := cfg.ApplyEnv(env(map[string]string{
		"LANEQUIZ_STORE":      "REDIS",
		"LANEQUIZ_REDIS_ADDR": "cache:6380",
		"LANEQUIZ_DB":         "/tmp/x.db",
		"LANEQUIZ_LOG_MODE":   "quiet",
		"LANEQUIZ_SEED":       "42",
	}))
	require.NoError(t, err)
	assert.Equal(t, DriverRedis, cfg.Storage.Driver)
	assert.Equal(t, "cache:6380", cfg.Storage.RedisAddr)
	assert.Equal(t, "/tmp/x.db", cfg.Storage.SQLitePath)
	assert.Equal(t, "quiet", cfg.Log.Mode)
	assert.Equal(t, uint64(42), cfg.Engine.Seed)

	err = cfg.ApplyEnv(env(map[string]string{"LANEQUIZ_SEED": "minus-one"}))
	assert.ErrorContains(t, err, "LANEQUIZ_SEED")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"max rounds", func(c *Config) { c.Engine.MaxRounds = 0 }, "engine.max_rounds"},
		{"explore probability", func(c *Config) { c.Engine.ExploreProbability = 1.5 }, "engine.explore_probability"},
		{"skip rate", func(c *Config) { c.Convergence.MaxSkipRate = -0.1 }, "convergence.max_skip_rate"},
		{"gap order", func(c *Config) { c.Convergence.WeakGap = 100 }, "weak_gap"},
		{"driver", func(c *Config) { c.Storage.Driver = "postgres" }, "storage.driver"},
		{"sqlite path", func(c *Config) { c.Storage.SQLitePath = "" }, "sqlite_path"},
		{"settle delay", func(c *Config) { c.Session.SettleDelay = -time.Second }, "settle_delay"},
		{"buffer", func(c *Config) { c.Analytics.Buffer = 0 }, "analytics.buffer"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			assert.ErrorContains(t, cfg.Validate(), tc.want)
		})
	}
}
