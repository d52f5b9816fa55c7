package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const (
	defaultAnthropicBaseURL = "https://api.anthropic.com"
	anthropicVersion        = "2023-06-01"
)

type Anthropic struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
}

func NewAnthropic(baseURL, apiKey string) *Anthropic {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = defaultAnthropicBaseURL
	}
	return &Anthropic{
		BaseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		APIKey:  strings.TrimSpace(apiKey),
		Client:  &http.Client{},
	}
}

func (p *Anthropic) Name() string {
	return "anthropic"
}

func (p *Anthropic) getKey() (string, error) {
	if p.APIKey == "" {
		return "", &ProviderAuthError{ProviderName: "anthropic", Msg: "Anthropic API key is not configured"}
	}
	return p.APIKey, nil
}

func (p *Anthropic) Ping(ctx context.Context) error {
	_, err := p.getKey()
	return err // Basic ping by checking key presence
}

func (p *Anthropic) client() *http.Client {
	if p.Client != nil {
		return p.Client
	}
	return http.DefaultClient
}

func buildAnthropicPayload(model string, messages []Message, tools []Tool) map[string]interface{} {
	var systemStr string
	reqMessages := make([]map[string]interface{}, 0, len(messages))
	for _, m := range messages {
		if m.Role == "system" {
			systemStr += m.Content + "\n"
			continue
		}
		reqMessages = append(reqMessages, map[string]interface{}{
			"role":    m.Role,
			"content": m.Content,
		})
	}

	payload := map[string]interface{}{
		"model":      model,
		"max_tokens": 4096,
		"messages":   reqMessages,
	}
	if systemStr != "" {
		payload["system"] = strings.TrimSpace(systemStr)
	}
	if len(tools) > 0 {
		anthropicTools := make([]map[string]interface{}, 0, len(tools))
		for _, t := range tools {
			anthropicTools = append(anthropicTools, map[string]interface{}{
				"name":         t.Name,
				"description":  t.Description,
				"input_schema": t.InputSchema,
			})
		}
		payload["tools"] = anthropicTools
		payload["tool_choice"] = map[string]string{"type": "auto"}
	}
	return payload
}

func (p *Anthropic) Complete(ctx context.Context, model string, messages []Message, tools []Tool) (CompletionResponse, error) {
	key, err := p.getKey()
	if err != nil {
		return CompletionResponse{}, err
	}

	bodyBytes, err := json.Marshal(buildAnthropicPayload(model, messages, tools))
	if err != nil {
		return CompletionResponse{}, fmt.Errorf("marshal messages payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.BaseURL+"/v1/messages", bytes.NewReader(bodyBytes))
	if err != nil {
		return CompletionResponse{}, fmt.Errorf("build messages request: %w", err)
	}
	req.Header.Set("x-api-key", key)
	req.Header.Set("anthropic-version", anthropicVersion)
	req.Header.Set("content-type", "application/json")

	resp, err := p.client().Do(req)
	if err != nil {
		return CompletionResponse{}, fmt.Errorf("request messages completion: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return CompletionResponse{}, fmt.Errorf("read messages response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return CompletionResponse{}, &ProviderAuthError{ProviderName: "anthropic", Msg: "Unauthorized: Invalid API key"}
		}
		return CompletionResponse{}, &StatusError{ProviderName: "anthropic", Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	return decodeAnthropicResponse(body)
}

// decodeAnthropicResponse parses a non-streaming response extracting both
// text and tool_use content blocks.
func decodeAnthropicResponse(body []byte) (CompletionResponse, error) {
	var result struct {
		Content []struct {
			Type  string          `json:"type"`
			Text  string          `json:"text"`
			ID    string          `json:"id"`
			Name  string          `json:"name"`
			Input json.RawMessage `json:"input"`
		} `json:"content"`
		StopReason string `json:"stop_reason"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return CompletionResponse{}, &DecodeError{ProviderName: "anthropic", Err: err}
	}

	resp := CompletionResponse{StopReason: result.StopReason}
	var textParts []string

	for _, block := range result.Content {
		switch block.Type {
		case "text":
			if text := strings.TrimSpace(block.Text); text != "" {
				textParts = append(textParts, text)
			}
		case "tool_use":
			resp.ToolCalls = append(resp.ToolCalls, ToolCall{
				ID:        block.ID,
				Name:      block.Name,
				Arguments: block.Input,
			})
		}
	}

	resp.Text = strings.Join(textParts, "\n")
	return resp, nil
}
