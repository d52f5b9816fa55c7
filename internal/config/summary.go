package config

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	itemStyle  = lipgloss.NewStyle().PaddingLeft(2)
)

// Summary renders the effective configuration for `ballpark config`.
// credential is shown redacted.
func (c *Config) Summary(path, credential string) string {
	s := titleStyle.Render("Ballpark Configuration") + "\n\n"
	s += itemStyle.Render(fmt.Sprintf("Config file: %s", path)) + "\n"
	s += itemStyle.Render(fmt.Sprintf("Provider: %s", c.Provider.Name)) + "\n"
	s += itemStyle.Render(fmt.Sprintf("Model: %s", c.Provider.Model)) + "\n"
	s += itemStyle.Render(fmt.Sprintf("Base URL: %s", c.Provider.BaseURL)) + "\n"
	s += itemStyle.Render(fmt.Sprintf("API key (%s): %s", c.Provider.APIKeyEnv, RedactKey(credential))) + "\n"
	s += itemStyle.Render(fmt.Sprintf("Database: %s (read-only: %t)", c.Database.Path, c.Database.ReadOnly)) + "\n"
	schema := c.Schema.Path
	if schema == "" {
		schema = "embedded"
	}
	s += itemStyle.Render(fmt.Sprintf("Tool schema: %s (watch: %t)", schema, c.Schema.Watch)) + "\n"
	s += itemStyle.Render(fmt.Sprintf("Retry: %d attempts, x%ds backoff, %ds cap", c.Retry.MaxAttempts, c.Retry.MultiplierSeconds, c.Retry.MaxWaitSeconds)) + "\n"
	logPath := c.Log.Path
	if logPath == "" {
		logPath = DefaultLogPath()
	}
	s += itemStyle.Render(fmt.Sprintf("Log: %s (%s)", logPath, c.Log.Level)) + "\n"
	if c.Metrics.Addr != "" {
		s += itemStyle.Render(fmt.Sprintf("Metrics: http://%s/metrics", c.Metrics.Addr)) + "\n"
	}
	return lipgloss.NewStyle().Padding(1, 2).Render(s)
}
