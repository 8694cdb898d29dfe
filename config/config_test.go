package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsAreValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 20, cfg.Broadcast.MaxBufferedEvents)
	assert.Equal(t, time.Hour, cfg.Broadcast.Retention)
	assert.Equal(t, 3*time.Minute, cfg.Presence.StaleAfter)
	assert.Equal(t, 2, cfg.Presence.DriftThreshold)
	assert.Empty(t, cfg.Admin.Key)
}

func TestLoadWithoutFileUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 1000, cfg.Socket.MaxConnections)
	assert.Equal(t, 15*time.Second, cfg.Stream.HeartbeatInterval)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("PRESENCE_ADMIN_KEY", "s3cret")
	t.Setenv("PRESENCE_BROADCAST_MAX_BUFFERED_EVENTS", "50")
	t.Setenv("PRESENCE_PRESENCE_STALE_AFTER", "90s")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "s3cret", cfg.Admin.Key)
	assert.Equal(t, 50, cfg.Broadcast.MaxBufferedEvents)
	assert.Equal(t, 90*time.Second, cfg.Presence.StaleAfter)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "presence.yaml")
	body := "server:\n  addr: \":9090\"\nredis:\n  enabled: true\n  addr: \"redis:6379\"\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.Equal(t, "presence:", cfg.Redis.Prefix)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]func(*Config){
		"empty addr":       func(c *Config) { c.Server.Addr = "" },
		"zero buffer":      func(c *Config) { c.Broadcast.MaxBufferedEvents = 0 },
		"zero retention":   func(c *Config) { c.Broadcast.Retention = 0 },
		"zero drift":       func(c *Config) { c.Presence.DriftThreshold = 0 },
		"zero stale":       func(c *Config) { c.Presence.StaleAfter = 0 },
		"zero send buffer": func(c *Config) { c.Socket.SendBuffer = 0 },
		"redis no addr": func(c *Config) {
			c.Redis.Enabled = true
			c.Redis.Addr = ""
		},
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
