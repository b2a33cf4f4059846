package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.Equal(t, "0.0.0.0", cfg.Server.Host)
	require.Equal(t, 3000, cfg.Server.Port)
	require.Equal(t, "public", cfg.Server.StaticDir)
	require.Equal(t, 30*time.Second, cfg.Game.ReadyTimeout())
	require.Equal(t, time.Hour, cfg.Game.GraceWindow())
	require.Equal(t, 10, cfg.Battle.Rounds)
	require.Equal(t, 20*time.Second, cfg.Battle.RoundDuration())
	require.Equal(t, 5*time.Second, cfg.Battle.Countdown())
}

func TestLoadOverridesAndBackfills(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
server:
  port: 8080
game:
  ready_seconds: 15
battle:
  rounds: 3
`)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 8080, cfg.Server.Port)
	require.Equal(t, 15*time.Second, cfg.Game.ReadyTimeout())
	require.Equal(t, 3, cfg.Battle.Rounds)

	// Unset fields fall back to defaults.
	require.Equal(t, "0.0.0.0", cfg.Server.Host)
	require.Equal(t, 20, cfg.Battle.RoundSeconds)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoadBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: ["), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("HOST", "127.0.0.1")
	t.Setenv("PORT", "9090")

	cfg := Default()
	cfg.ApplyEnv()
	require.Equal(t, "127.0.0.1", cfg.Server.Host)
	require.Equal(t, 9090, cfg.Server.Port)
}

func TestApplyEnvIgnoresJunkPort(t *testing.T) {
	t.Setenv("PORT", "not-a-port")

	cfg := Default()
	cfg.ApplyEnv()
	require.Equal(t, 3000, cfg.Server.Port)
}
