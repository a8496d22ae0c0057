package config

import "fmt"

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateConfig checks that the loaded configuration is usable
func ValidateConfig(cfg *Config) error {
	if cfg.ServerPort == "" {
		return ValidationError{Field: "server.port", Message: "must not be empty"}
	}
	if cfg.DatabasePath == "" {
		return ValidationError{Field: "database.path", Message: "must not be empty"}
	}
	if cfg.RemoteBaseURL == "" {
		return ValidationError{Field: "remote.base_url", Message: "remote API base URL is required"}
	}
	if cfg.SyncMaxAttempts < 1 {
		return ValidationError{Field: "sync.max_attempts", Message: "must be at least 1"}
	}
	if cfg.SyncBackoffMin <= 0 {
		return ValidationError{Field: "sync.backoff_min", Message: "must be positive"}
	}
	if cfg.SyncBackoffMax < cfg.SyncBackoffMin {
		return ValidationError{Field: "sync.backoff_max", Message: "must not be smaller than sync.backoff_min"}
	}
	return nil
}
