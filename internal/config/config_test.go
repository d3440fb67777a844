package config_test

import (
	"os"
	"testing"

	"github.com/XavierBriggs/fortuna/services/livescore/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	// Clear environment variables
	os.Clearenv()

	cfg, err := config.LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 8, cfg.Server.MaxWriters)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)
	assert.Equal(t, config.ModePrimary, cfg.Server.Mode)

	assert.Equal(t, config.BackendFile, cfg.Store.Backend)
	assert.Equal(t, "db.json", cfg.Store.Path)
	assert.Equal(t, "livescore:state", cfg.Store.StateKey)

	assert.Equal(t, "localhost:6380", cfg.Redis.URL)
	assert.Empty(t, cfg.Redis.Password)

	assert.False(t, cfg.Stream.Enabled)
	assert.Equal(t, "match.events", cfg.Stream.Name)
	assert.NotEmpty(t, cfg.Stream.ConsumerID)
	assert.Equal(t, "livescore-relay-"+cfg.Stream.ConsumerID, cfg.Stream.ConsumerGroup)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Empty(t, cfg.RosterFile)
	assert.False(t, cfg.NeedsRedis())
}

func TestLoadConfig_CustomValues(t *testing.T) {
	t.Setenv("SERVER_ADDR", ":9090")
	t.Setenv("MAX_WRITERS", "2")
	t.Setenv("CORS_ORIGINS", "http://localhost:3000, http://localhost:3001")
	t.Setenv("STORE_BACKEND", "Redis")
	t.Setenv("REDIS_URL", "redis.example.com:6379")
	t.Setenv("REDIS_PASSWORD", "secretpass")
	t.Setenv("STREAM_ENABLED", "true")
	t.Setenv("STREAM_NAME", "cricket.events")
	t.Setenv("CONSUMER_GROUP", "custom-group")
	t.Setenv("CONSUMER_ID", "custom-id")
	t.Setenv("ROSTER_FILE", "roster.yml")

	cfg, err := config.LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 2, cfg.Server.MaxWriters)
	assert.Equal(t, []string{"http://localhost:3000", "http://localhost:3001"}, cfg.Server.CORSOrigins)
	assert.Equal(t, config.BackendRedis, cfg.Store.Backend)
	assert.Equal(t, "redis.example.com:6379", cfg.Redis.URL)
	assert.Equal(t, "secretpass", cfg.Redis.Password)
	assert.True(t, cfg.Stream.Enabled)
	assert.Equal(t, "cricket.events", cfg.Stream.Name)
	assert.Equal(t, "custom-group", cfg.Stream.ConsumerGroup)
	assert.Equal(t, "custom-id", cfg.Stream.ConsumerID)
	assert.Equal(t, "roster.yml", cfg.RosterFile)
	assert.True(t, cfg.NeedsRedis())
}

func TestLoadConfig_InvalidValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{name: "non-numeric max writers", key: "MAX_WRITERS", val: "lots"},
		{name: "zero max writers", key: "MAX_WRITERS", val: "0"},
		{name: "bad boolean", key: "STREAM_ENABLED", val: "maybe"},
		{name: "unknown backend", key: "STORE_BACKEND", val: "mongo"},
		{name: "unknown mode", key: "MODE", val: "secondary"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Clearenv()
			t.Setenv(tt.key, tt.val)

			_, err := config.LoadConfig()
			assert.Error(t, err)
		})
	}
}

func TestLoadConfig_RelayRequiresStream(t *testing.T) {
	os.Clearenv()
	t.Setenv("MODE", "relay")
	t.Setenv("STORE_BACKEND", "redis")

	_, err := config.LoadConfig()
	require.Error(t, err)

	t.Setenv("STREAM_ENABLED", "1")
	cfg, err := config.LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, config.ModeRelay, cfg.Server.Mode)
}

func TestLoadConfig_RelayRequiresSharedStore(t *testing.T) {
	tests := []struct {
		backend string
		wantErr bool
	}{
		{backend: "file", wantErr: true},
		{backend: "memory", wantErr: true},
		{backend: "redis"},
		{backend: "postgres"},
		{backend: "sqlite"},
	}

	for _, tt := range tests {
		t.Run(tt.backend, func(t *testing.T) {
			os.Clearenv()
			t.Setenv("MODE", "relay")
			t.Setenv("STREAM_ENABLED", "true")
			t.Setenv("STORE_BACKEND", tt.backend)

			_, err := config.LoadConfig()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestLoadConfig_ReplicasGetDistinctGroups(t *testing.T) {
	groups := make(map[string]bool)
	for _, id := range []string{"relay-a", "relay-b"} {
		os.Clearenv()
		t.Setenv("CONSUMER_ID", id)

		cfg, err := config.LoadConfig()
		require.NoError(t, err)
		assert.Equal(t, "livescore-relay-"+id, cfg.Stream.ConsumerGroup)
		groups[cfg.Stream.ConsumerGroup] = true
	}
	assert.Len(t, groups, 2)
}
