package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultRelayConfigHasSaneSessionTimers(t *testing.T) {
	cfg := DefaultRelayConfig()
	require.Equal(t, 30*time.Second, cfg.Session.IntervalDuration())
	require.Equal(t, 300*time.Second, cfg.Session.TimeoutDuration())
	require.NotEmpty(t, cfg.KeypairPEM)
}

func TestLoadRelayConfigOverlaysDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "relay.yaml")
	require.NoError(t, os.WriteFile(path, []byte("bind: 127.0.0.1:9000\nsession:\n  interval: 5\n  timeout: 60\n"), 0o600))

	cfg, err := LoadRelayConfig(path)
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:9000", cfg.Bind)
	require.Equal(t, 5, cfg.Session.Interval)
	require.Equal(t, 60, cfg.Session.Timeout)
	require.Equal(t, "info", cfg.LogLevel) // untouched default survives the overlay
}

func TestLoadRelayConfigMissingFileErrors(t *testing.T) {
	_, err := LoadRelayConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestLoadMeetingConfigOverlaysDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "meeting.yaml")
	require.NoError(t, os.WriteFile(path, []byte("bind: 0.0.0.0:8080\n"), 0o600))

	cfg, err := LoadMeetingConfig(path)
	require.NoError(t, err)
	require.Equal(t, "0.0.0.0:8080", cfg.Bind)
	require.Equal(t, 30, cfg.Session.Interval)
}
