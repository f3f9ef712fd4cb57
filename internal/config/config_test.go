package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestValidateCollectsProblems(t *testing.T) {
	cfg := Default()
	cfg.Server.Port = 70000
	cfg.Log.Level = "loud"
	cfg.WebSocket.PingPeriod = cfg.WebSocket.PongWait

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.port")
	assert.Contains(t, err.Error(), "log.level")
	assert.Contains(t, err.Error(), "ping_period")
}

func TestLoadMissingDefaultFileUsesDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, path, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, defaultConfigName, filepath.Base(path))
}

func TestLoadMissingExplicitFileFails(t *testing.T) {
	_, _, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chessmatch.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9000
log:
  level: debug
websocket:
  pong_wait: 90s
`), 0o600))
	t.Setenv("CHESSMATCH_LOG_FORMAT", "text")
	t.Setenv("CHESSMATCH_SERVER_PORT", "9100")

	cfg, _, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, 90*time.Second, cfg.WebSocket.PongWait)
	assert.Equal(t, Default().WebSocket.WriteWait, cfg.WebSocket.WriteWait)
}

func TestLoadRejectsInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chessmatch.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  format: xml\n"), 0o600))

	_, _, err := Load(path)
	assert.ErrorContains(t, err, "log.format")
}

func TestWriteDefaultRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "chessmatch.yaml")

	require.NoError(t, WriteDefault(path, false))
	cfg, _, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	assert.Error(t, WriteDefault(path, false))
	assert.NoError(t, WriteDefault(path, true))
}

func TestServerAddr(t *testing.T) {
	assert.Equal(t, ":8080", Default().Server.Addr())
	assert.Equal(t, "127.0.0.1:9000", ServerConfig{Host: "127.0.0.1", Port: 9000}.Addr())
}
