package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	os.Setenv("REMOTE_BASE_URL", "http://localhost:3000/api")
	defer os.Unsetenv("REMOTE_BASE_URL")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.ServerHost)
	assert.Equal(t, "8090", cfg.ServerPort)
	assert.Equal(t, "gymfuel-mirror.db", cfg.DatabasePath)
	assert.Equal(t, "http://localhost:3000/api", cfg.RemoteBaseURL)
	assert.Equal(t, 30*time.Second, cfg.RemoteTimeout)
	assert.Equal(t, 3, cfg.SyncMaxAttempts)
	assert.Equal(t, time.Second, cfg.SyncBackoffMin)
	assert.Equal(t, time.Minute, cfg.SyncBackoffMax)
}

func TestLoadConfigMissingRemoteURL(t *testing.T) {
	os.Unsetenv("REMOTE_BASE_URL")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "remote.base_url")
}

func TestValidateConfig(t *testing.T) {
	valid := &Config{
		ServerPort:      "8090",
		DatabasePath:    "mirror.db",
		RemoteBaseURL:   "http://localhost:3000/api",
		SyncMaxAttempts: 3,
		SyncBackoffMin:  time.Second,
		SyncBackoffMax:  time.Minute,
	}
	assert.NoError(t, ValidateConfig(valid))

	broken := *valid
	broken.SyncBackoffMax = time.Millisecond
	err := ValidateConfig(&broken)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sync.backoff_max")

	broken = *valid
	broken.SyncMaxAttempts = 0
	assert.Error(t, ValidateConfig(&broken))
}
