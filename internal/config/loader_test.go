package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		global  string // YAML, empty for no file
		project string // YAML, empty for no file
		check   func(t *testing.T, cfg *Config)
	}{
		{
			name: "No config files - returns defaults",
			check: func(t *testing.T, cfg *Config) {
				def := DefaultConfig()
				assert.Equal(t, def.DBPath, cfg.DBPath)
				assert.Equal(t, def.Concurrency, cfg.Concurrency)
				assert.Equal(t, def.Retry, cfg.Retry)
				assert.Equal(t, def.Breaker, cfg.Breaker)
				assert.Empty(t, cfg.Options)
			},
		},
		{
			name:   "Global only - overrides scalars",
			global: "data_root: /data/spectro\nprocs_per_node: 32\n",
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "/data/spectro", cfg.DataRoot)
				assert.Equal(t, 32, cfg.ProcsPerNode)
				assert.Equal(t, 4, cfg.Concurrency)
			},
		},
		{
			name:    "Project overrides global",
			global:  "concurrency: 8\nlog:\n  level: debug\n",
			project: "concurrency: 2\n",
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 2, cfg.Concurrency)
				assert.Equal(t, "debug", cfg.Log.Level)
			},
		},
		{
			name: "Per-type options and entries",
			project: `
options:
  extract:
    nwavestep: 25
    wavelength_r: "5700.0,7700.0,1.0"
entries:
  pix: "python -m preproc"
retry:
  initial_interval: 250ms
`,
			check: func(t *testing.T, cfg *Config) {
				require.Contains(t, cfg.Options, "extract")
				assert.EqualValues(t, 25, cfg.Options["extract"]["nwavestep"])
				assert.Equal(t, "5700.0,7700.0,1.0", cfg.Options["extract"]["wavelength_r"])
				assert.Equal(t, "python -m preproc", cfg.Entries["pix"])
				assert.Equal(t, 250*time.Millisecond, cfg.Retry.InitialInterval)
				assert.Equal(t, 3, cfg.Retry.MaxAttempts)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			globalPath := filepath.Join(dir, "global", "config.yaml")
			projectPath := filepath.Join(dir, "project", "config.yaml")
			if tt.global != "" {
				writeFile(t, globalPath, tt.global)
			}
			if tt.project != "" {
				writeFile(t, projectPath, tt.project)
			}

			cfg, err := Load(globalPath, projectPath)
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}

func TestLoadJSON(t *testing.T) {
	path := writeFile(t, filepath.Join(t.TempDir(), "config.json"), `{"db_path": "/tmp/x.db", "concurrency": 6}`)

	cfg, err := Load("", path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/x.db", cfg.DBPath)
	assert.Equal(t, 6, cfg.Concurrency)
}

func TestLoadEnvOverride(t *testing.T) {
	path := writeFile(t, filepath.Join(t.TempDir(), "config.yaml"), "concurrency: 2\n")
	t.Setenv("PIPETASK_CONCURRENCY", "9")
	t.Setenv("PIPETASK_LOG_LEVEL", "warn")

	cfg, err := Load("", path)
	require.NoError(t, err)
	assert.Equal(t, 9, cfg.Concurrency)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadMalformed(t *testing.T) {
	path := writeFile(t, filepath.Join(t.TempDir(), "config.yaml"), "concurrency: [unterminated\n")

	_, err := Load(path, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loading global config")
}

func TestLoadInvalidValues(t *testing.T) {
	path := writeFile(t, filepath.Join(t.TempDir(), "config.yaml"), "procs_per_node: 0\nlog:\n  level: loud\n")

	_, err := Load("", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "procs_per_node")
	assert.Contains(t, err.Error(), "log.level")
}
