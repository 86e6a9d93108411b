package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 6, cfg.Room.MaxMembers)
	assert.Equal(t, 5, cfg.Room.TargetPicksPerMember)
	assert.Equal(t, 10, cfg.Room.TurnDurationSeconds)
	assert.Equal(t, 3600, cfg.Room.RoomTTLSeconds)
	assert.Equal(t, "room.events", cfg.NATS.SubjectPrefix)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: "9090"
room:
  max_members: 4
  turn_duration_seconds: 30
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, 4, cfg.Room.MaxMembers)
	assert.Equal(t, 30, cfg.Room.TurnDurationSeconds)
	// Untouched keys keep their defaults.
	assert.Equal(t, 5, cfg.Room.TargetPicksPerMember)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: "9090"
`), 0o644))

	t.Setenv("PORT", "7070")
	t.Setenv("MAX_MEMBERS", "3")
	t.Setenv("NATS_URL", "nats://localhost:4222")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "7070", cfg.Server.Port)
	assert.Equal(t, 3, cfg.Room.MaxMembers)
	assert.Equal(t, "nats://localhost:4222", cfg.NATS.URL)
}

func TestLoad_BadEnvIntIgnored(t *testing.T) {
	t.Setenv("MAX_MEMBERS", "lots")
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 6, cfg.Room.MaxMembers)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [not: valid"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}
