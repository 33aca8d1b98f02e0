package config

// #region imports
import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// #endregion

// #region defaults

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "driftwatch.db", cfg.Store.Path)
	assert.Equal(t, 30*time.Second, cfg.Monitor.Interval)
	assert.Equal(t, 5, cfg.Monitor.MinLabeled)
	assert.Equal(t, 10, cfg.Monitor.MinRetrainLabeled)
	assert.Equal(t, time.Hour, cfg.Decision.Cooldown)
	assert.Equal(t, 168*time.Hour, cfg.Decision.MaxModelAge)
	assert.Equal(t, 0.5, cfg.Decision.Threshold)
	assert.Equal(t, 12, cfg.Anomaly.MinHistory)
	assert.Equal(t, 0.95, cfg.Anomaly.Confidence)
}

// #endregion defaults

// #region file

func TestLoadFileOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	raw := `
server:
  addr: ":9090"
monitor:
  interval: 5s
  min_labeled: 8
decision:
  cooldown: 2h
`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 5*time.Second, cfg.Monitor.Interval)
	assert.Equal(t, 8, cfg.Monitor.MinLabeled)
	assert.Equal(t, 2*time.Hour, cfg.Decision.Cooldown)
	assert.Equal(t, 0.5, cfg.Decision.Threshold, "untouched keys keep their defaults")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

// #endregion file

// #region env

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("DRIFTWATCH_SERVER_ADDR", ":7070")
	t.Setenv("DRIFTWATCH_DECISION_THRESHOLD", "0.7")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.Server.Addr)
	assert.Equal(t, 0.7, cfg.Decision.Threshold)
}

// #endregion env

// #region validation

func TestLoadRejectsBadValues(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"zero interval", "monitor:\n  interval: 0s\n"},
		{"threshold above one", "decision:\n  threshold: 1.5\n"},
		{"confidence at one", "anomaly:\n  confidence: 1.0\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tc.yaml), 0o644))

			_, err := Load(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid config")
		})
	}
}

// #endregion validation
