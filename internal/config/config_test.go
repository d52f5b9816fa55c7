package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromMissingFileReturnsDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	assert.Equal(t, ProviderOpenAI, cfg.Provider.Name)
	assert.Equal(t, "gpt-4o", cfg.Provider.Model)
	assert.Equal(t, "OPENAI_API_KEY", cfg.Provider.APIKeyEnv)
	assert.Equal(t, "baseball_db.db", cfg.Database.Path)
	assert.True(t, cfg.Database.ReadOnly)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, 1, cfg.Retry.MultiplierSeconds)
	assert.Equal(t, 40, cfg.Retry.MaxWaitSeconds)
	require.NoError(t, cfg.Validate())
}

func TestLoadFromOverridesDefaults(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.toml")
	body := `
[provider]
model = "gpt-4o-mini"

[database]
path = "/data/lahman.db"
read_only = false

[metrics]
addr = "127.0.0.1:9464"
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", cfg.Provider.Model)
	assert.Equal(t, ProviderOpenAI, cfg.Provider.Name)
	assert.Equal(t, "/data/lahman.db", cfg.Database.Path)
	assert.False(t, cfg.Database.ReadOnly)
	assert.Equal(t, "127.0.0.1:9464", cfg.Metrics.Addr)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
}

func TestLoadFromAnthropicFillsProviderDefaults(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[provider]\nname = \"Anthropic\"\n"), 0o600))

	cfg, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, ProviderAnthropic, cfg.Provider.Name)
	assert.Equal(t, "ANTHROPIC_API_KEY", cfg.Provider.APIKeyEnv)
	assert.Equal(t, "https://api.anthropic.com", cfg.Provider.BaseURL)
	assert.False(t, strings.HasPrefix(cfg.Provider.Model, "gpt-"))
}

func TestLoadFromRejectsMalformedFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[provider\nname = "), 0o600))

	_, err := LoadFrom(path)
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "unknown provider", mutate: func(c *Config) { c.Provider.Name = "ollama" }, wantErr: "provider.name"},
		{name: "empty model", mutate: func(c *Config) { c.Provider.Model = " " }, wantErr: "provider.model"},
		{name: "empty database", mutate: func(c *Config) { c.Database.Path = "" }, wantErr: "database.path"},
		{name: "watch without path", mutate: func(c *Config) { c.Schema.Watch = true }, wantErr: "schema.watch"},
		{name: "zero attempts", mutate: func(c *Config) { c.Retry.MaxAttempts = 0 }, wantErr: "retry.max_attempts"},
		{name: "negative wait", mutate: func(c *Config) { c.Retry.MaxWaitSeconds = -1 }, wantErr: "negative"},
		{name: "bad level", mutate: func(c *Config) { c.Log.Level = "trace" }, wantErr: "log.level"},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := Default()
			tc.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestSaveRoundTripsThroughLoad(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	cfg := Default()
	cfg.Provider.Model = "gpt-4.1-mini"
	require.NoError(t, cfg.Save(path))

	loaded, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, "gpt-4.1-mini", loaded.Provider.Model)
}

func TestSummaryRedactsCredential(t *testing.T) {
	t.Parallel()

	out := Default().Summary("/tmp/config.toml", "sk-abcdefghijklmnop")
	assert.Contains(t, out, "sk-a...mnop")
	assert.NotContains(t, out, "sk-abcdefghijklmnop")
	assert.Contains(t, out, "embedded")
}
