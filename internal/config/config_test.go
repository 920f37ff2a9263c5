package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcliao/team-memory/internal/model"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaults(t *testing.T) {
	t.Setenv("TEAM_MEMORY_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "127.0.0.1:8000", cfg.Addr())
	assert.False(t, cfg.Auth.Require)
	assert.True(t, cfg.Auth.OwnerlessSupersedable)
	assert.False(t, cfg.Auth.OwnerlessModifiable)
	assert.Equal(t, 2000, cfg.Context.DefaultMaxTokens)
	assert.Equal(t, 20, cfg.Context.CandidateWindow)
	assert.Equal(t, 365*24*time.Hour, cfg.TTL(model.TypeDecision))
	assert.Equal(t, 30*24*time.Hour, cfg.TTL(model.TypeWork))
	assert.Equal(t, 365*24*time.Hour, cfg.TTL(model.TypeKnowledge))
	assert.Equal(t, 30*24*time.Hour, cfg.TTL(model.TypeTodo))
}

func TestLoadYAML(t *testing.T) {
	path := writeConfig(t, `
database:
  driver: postgres
  dsn: postgres://localhost/memory?sslmode=disable
server:
  port: 9000
auth:
  require: true
  ownerless_supersedable: false
ttl_days:
  work: 7
rate_limit:
  requests: 10
  window: 30s
log:
  level: debug
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "127.0.0.1:9000", cfg.Addr())
	assert.True(t, cfg.Auth.Require)
	assert.False(t, cfg.Auth.OwnerlessSupersedable)
	assert.Equal(t, 7*24*time.Hour, cfg.TTL(model.TypeWork))
	assert.Equal(t, 365*24*time.Hour, cfg.TTL(model.TypeDecision), "unset keys keep defaults")
	assert.Equal(t, 30*time.Second, cfg.RateLimit.Window)

	level, err := cfg.LogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)

	policy := cfg.AuthPolicy()
	assert.True(t, policy.Required)
	assert.False(t, policy.OwnerlessSupersedable)
}

func TestEnvOverrides(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 9000\n")
	t.Setenv("TEAM_MEMORY_PORT", "9100")
	t.Setenv("TEAM_MEMORY_DB", "/tmp/other.db")
	t.Setenv("TEAM_MEMORY_REQUIRE_AUTH", "yes")
	t.Setenv("TEAM_MEMORY_ADMIN_KEY", "root")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, "/tmp/other.db", cfg.Database.DSN)
	assert.True(t, cfg.Auth.Require)
	assert.Equal(t, "root", cfg.Auth.AdminKey)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err, "explicit missing path is an error")

	tests := []string{
		"database:\n  driver: oracle\n",
		"ttl_days:\n  meeting: 3\n",
		"ttl_days:\n  work: 0\n",
		"context:\n  candidate_window: 0\n",
		"log:\n  level: chatty\n",
		"server: [",
	}
	for _, body := range tests {
		_, err := Load(writeConfig(t, body))
		assert.Error(t, err, body)
	}
}
