package config

import (
	"fmt"
	"strings"
)

// Validate checks the fields the runtime cannot start without.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config is nil")
	}
	switch c.Provider.Name {
	case ProviderOpenAI, ProviderAnthropic:
	default:
		return fmt.Errorf("provider.name must be one of: openai, anthropic (got %q)", c.Provider.Name)
	}
	if strings.TrimSpace(c.Provider.Model) == "" {
		return fmt.Errorf("provider.model is required")
	}
	if strings.TrimSpace(c.Provider.APIKeyEnv) == "" {
		return fmt.Errorf("provider.api_key_env is required")
	}
	if strings.TrimSpace(c.Database.Path) == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Schema.Watch && strings.TrimSpace(c.Schema.Path) == "" {
		return fmt.Errorf("schema.watch needs schema.path to point at an override file")
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry.max_attempts must be at least 1")
	}
	if c.Retry.MultiplierSeconds < 0 || c.Retry.MaxWaitSeconds < 0 {
		return fmt.Errorf("retry wait settings must not be negative")
	}
	switch strings.ToLower(c.Log.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of: debug, info, warn, error")
	}
	return nil
}

// RedactKey masks a credential for display.
func RedactKey(key string) string {
	key = strings.TrimSpace(key)
	if key == "" {
		return "(not set)"
	}
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
