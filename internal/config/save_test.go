package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveCreatesParentDirs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b", "config.yaml")

	require.NoError(t, Save(DefaultConfig(), path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "db_path: .pipetask/state.db")
	assert.Contains(t, string(data), "initial_interval: 1s")
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg := DefaultConfig()
	cfg.DataRoot = "/data"
	cfg.ProcsPerNode = 16
	cfg.Launcher = "srun -n {size}"
	cfg.Layout["frame"] = "frames/{{ .camera }}.fits"
	cfg.Entries["extract"] = "my_extract"
	cfg.Options["extract"] = map[string]any{"nwavestep": 30}
	cfg.Retry.MaxInterval = 2 * time.Minute

	require.NoError(t, Save(cfg, path))

	loaded, err := Load("", path)
	require.NoError(t, err)
	assert.Equal(t, cfg.DataRoot, loaded.DataRoot)
	assert.Equal(t, cfg.ProcsPerNode, loaded.ProcsPerNode)
	assert.Equal(t, cfg.Launcher, loaded.Launcher)
	assert.Equal(t, cfg.Layout, loaded.Layout)
	assert.Equal(t, cfg.Entries, loaded.Entries)
	assert.EqualValues(t, 30, loaded.Options["extract"]["nwavestep"])
	assert.Equal(t, cfg.Retry, loaded.Retry)
	assert.Equal(t, cfg.Breaker, loaded.Breaker)
}
