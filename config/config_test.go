package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadServerConfigDefaultsWhenFileMissing(t *testing.T) {
	cfg, err := LoadServerConfig(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	assert.Equal(t, defaultServerConfig(), *cfg)
}

func TestLoadServerConfigOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen_addr: 0.0.0.0:9999\ndebug: true\n"), 0o644))

	cfg, err := LoadServerConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9999", cfg.ListenAddr)
	assert.True(t, cfg.Debug)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadClientConfigOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server_addr: 10.0.0.1:7777\ndelay_frames: 4\n"), 0o644))

	cfg, err := LoadClientConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1:7777", cfg.ServerAddr)
	assert.Equal(t, int32(4), cfg.DelayFrames)
	assert.Equal(t, 500, cfg.DialRetryMinMillis)
}
