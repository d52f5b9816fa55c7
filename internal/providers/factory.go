package providers

import (
	"fmt"
	"strings"
)

// New builds the provider named in config with an already resolved key.
func New(name, baseURL, apiKey string) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "openai":
		return NewOpenAI(baseURL, apiKey), nil
	case "anthropic":
		return NewAnthropic(baseURL, apiKey), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", name)
	}
}
