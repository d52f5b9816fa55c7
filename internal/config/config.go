package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

type Config struct {
	Provider struct {
		Name      string `toml:"name"`
		Model     string `toml:"model"`
		BaseURL   string `toml:"base_url"`
		APIKeyEnv string `toml:"api_key_env"`
	} `toml:"provider"`
	Database struct {
		Path     string `toml:"path"`
		ReadOnly bool   `toml:"read_only"`
	} `toml:"database"`
	Schema struct {
		Path  string `toml:"path"`
		Watch bool   `toml:"watch"`
	} `toml:"schema"`
	Retry struct {
		MaxAttempts       int `toml:"max_attempts"`
		MultiplierSeconds int `toml:"multiplier_seconds"`
		MaxWaitSeconds    int `toml:"max_wait_seconds"`
	} `toml:"retry"`
	Log struct {
		Path  string `toml:"path"`
		Level string `toml:"level"`
	} `toml:"log"`
	Metrics struct {
		Addr string `toml:"addr"`
	} `toml:"metrics"`
}

func configDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "ballpark")
}

func GetConfigPath() string {
	return filepath.Join(configDir(), "config.toml")
}

// DefaultLogPath is used when log.path is left empty.
func DefaultLogPath() string {
	return filepath.Join(configDir(), "ballpark.log")
}

func Default() *Config {
	var cfg Config
	cfg.Provider.Name = ProviderOpenAI
	cfg.Provider.Model = "gpt-4o"
	cfg.Provider.BaseURL = "https://api.openai.com/v1"
	cfg.Provider.APIKeyEnv = "OPENAI_API_KEY"
	cfg.Database.Path = "baseball_db.db"
	cfg.Database.ReadOnly = true
	cfg.Retry.MaxAttempts = 3
	cfg.Retry.MultiplierSeconds = 1
	cfg.Retry.MaxWaitSeconds = 40
	cfg.Log.Level = "info"
	return &cfg
}

// LoadFrom decodes path over the defaults. A missing file is not an error.
func LoadFrom(path string) (*Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("decode config %q: %w", path, err)
	}
	cfg.applyProviderDefaults()
	return cfg, nil
}

// applyProviderDefaults fills provider fields that only make sense per provider,
// so a config that just says name = "anthropic" still works.
func (c *Config) applyProviderDefaults() {
	c.Provider.Name = strings.ToLower(strings.TrimSpace(c.Provider.Name))
	if c.Provider.Name != ProviderAnthropic {
		return
	}
	if c.Provider.APIKeyEnv == "" || c.Provider.APIKeyEnv == "OPENAI_API_KEY" {
		c.Provider.APIKeyEnv = "ANTHROPIC_API_KEY"
	}
	if c.Provider.BaseURL == "https://api.openai.com/v1" {
		c.Provider.BaseURL = "https://api.anthropic.com"
	}
	if strings.HasPrefix(c.Provider.Model, "gpt-") {
		c.Provider.Model = "claude-3-5-sonnet-latest"
	}
}

// Save writes c as TOML, creating the parent directory.
func (c *Config) Save(path string) error {
	if strings.TrimSpace(path) == "" {
		path = GetConfigPath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(c)
}
