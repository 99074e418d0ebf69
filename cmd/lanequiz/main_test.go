package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootFlags.configPath, rootFlags.logMode, rootFlags.driver = "lanequiz.yaml", "", ""
		replayFlags.check, replayFlags.verbose = false, false
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func noConfig(t *testing.T) string {
	return filepath.Join(t.TempDir(), "absent.yaml")
}

func TestReplayCommand_Check(t *testing.T) {
	fixture := filepath.Join("..", "..", "internal", "replay", "testdata", "converged_session.json")
	out, err := execute(t, "", "replay", "--config", noConfig(t), "--log", "quiet", "--fixture", fixture, "--check")
	require.NoError(t, err, out)
	assert.Contains(t, out, "All expectations met.")
	assert.Contains(t, out, "Finished: true converged")
}

func TestPlayCommand_MemoryDriver(t *testing.T) {
	out, err := execute(t, "y\nhuh\nu\nq\n", "play", "--config", noConfig(t), "--log", "quiet", "--driver", "memory")
	require.NoError(t, err, out)
	assert.Contains(t, out, "[1/32]")
	assert.Contains(t, out, "[2/32]")
	assert.Contains(t, out, "Answer y, n, s or m")
	assert.Contains(t, out, "Undid ")
	assert.Contains(t, out, "Progress saved.")
}

func TestSnapshotsCommand_SQLite(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("LANEQUIZ_DB", filepath.Join(dir, "quiz.db"))
	cfg := filepath.Join(dir, "absent.yaml")

	_, err := execute(t, "n\nq\n", "play", "--config", cfg, "--log", "quiet", "--driver", "sqlite")
	require.NoError(t, err)

	out, err := execute(t, "", "snapshots", "--config", cfg, "--log", "quiet", "--driver", "sqlite")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Version")
	assert.Contains(t, out, "*")

	out, err = execute(t, "", "snapshots", "--config", cfg, "--log", "quiet", "--driver", "memory")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "sqlite driver")
	_ = out
}
