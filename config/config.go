package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the sync daemon
type Config struct {
	// Server configuration
	ServerHost string
	ServerPort string

	// Local mirror database
	DatabasePath string

	// Remote GymFuel API
	RemoteBaseURL string
	RemoteToken   string
	RemoteTimeout time.Duration

	// Sync drain behaviour
	SyncMaxAttempts int
	SyncBackoffMin  time.Duration
	SyncBackoffMax  time.Duration

	// Logging
	LogLevel string
}

// LoadConfig creates a new Config instance from config.yml if present,
// falling back to environment variables
func LoadConfig() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yml")
	v.AddConfigPath(".")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// No config.yml, environment variables only
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	cfg := &Config{
		ServerHost:      v.GetString("server.host"),
		ServerPort:      v.GetString("server.port"),
		DatabasePath:    v.GetString("database.path"),
		RemoteBaseURL:   v.GetString("remote.base_url"),
		RemoteToken:     v.GetString("remote.token"),
		RemoteTimeout:   v.GetDuration("remote.timeout"),
		SyncMaxAttempts: v.GetInt("sync.max_attempts"),
		SyncBackoffMin:  v.GetDuration("sync.backoff_min"),
		SyncBackoffMax:  v.GetDuration("sync.backoff_max"),
		LogLevel:        v.GetString("log.level"),
	}

	if err := ValidateConfig(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", "8090")
	v.SetDefault("database.path", "gymfuel-mirror.db")
	v.SetDefault("remote.timeout", 30*time.Second)
	v.SetDefault("sync.max_attempts", 3)
	v.SetDefault("sync.backoff_min", time.Second)
	v.SetDefault("sync.backoff_max", time.Minute)
	v.SetDefault("log.level", "info")
}
