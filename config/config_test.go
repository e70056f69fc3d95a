package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("TRAINEDML_CONFIG", "")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 16, cfg.Cache.MemoryEntries)
	assert.Equal(t, 60*time.Second, cfg.HTTP.Timeout)
	assert.Equal(t, "warn", cfg.Logger.Level)
	assert.Equal(t, "console", cfg.Logger.Format)
	assert.Equal(t, "figures", cfg.Output.Dir)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 64, cfg.Server.MaxTrainers)
	assert.Equal(t, int64(42), cfg.Seed)
	assert.InDelta(t, 0.3, cfg.TestSize, 1e-12)
	assert.True(t, cfg.Progress)
	assert.Equal(t, "trainedml", filepath.Base(cfg.Cache.Dir))
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("TRAINEDML_CONFIG", "")
	t.Setenv("TRAINEDML_LOG_LEVEL", "debug")
	t.Setenv("TRAINEDML_SEED", "7")
	t.Setenv("TRAINEDML_HTTP_TIMEOUT", "5s")
	t.Setenv("TRAINEDML_PROGRESS", "false")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logger.Level)
	assert.Equal(t, int64(7), cfg.Seed)
	assert.Equal(t, 5*time.Second, cfg.HTTP.Timeout)
	assert.False(t, cfg.Progress)
}

func TestLoadFile(t *testing.T) {
	t.Setenv("TRAINEDML_CONFIG", "")
	path := filepath.Join(t.TempDir(), "trainedml.yaml")
	content := "output:\n  dir: plots\nserver:\n  max_trainers: 3\ntest_size: 0.25\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "plots", cfg.Output.Dir)
	assert.Equal(t, 3, cfg.Server.MaxTrainers)
	assert.InDelta(t, 0.25, cfg.TestSize, 1e-12)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		env  string
		val  string
	}{
		{"test size too large", "TRAINEDML_TEST_SIZE", "1.5"},
		{"no memory entries", "TRAINEDML_CACHE_MEMORY_ENTRIES", "0"},
		{"no trainers", "TRAINEDML_SERVER_MAX_TRAINERS", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TRAINEDML_CONFIG", "")
			t.Setenv(tt.env, tt.val)
			_, err := Load("")
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
