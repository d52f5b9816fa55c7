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

const defaultOpenAIBaseURL = "https://api.openai.com/v1"

// OpenAI speaks the chat completions API of OpenAI and compatible gateways.
type OpenAI struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
}

func NewOpenAI(baseURL, apiKey string) *OpenAI {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = defaultOpenAIBaseURL
	}
	return &OpenAI{
		BaseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		APIKey:  strings.TrimSpace(apiKey),
		Client:  &http.Client{},
	}
}

func (p *OpenAI) Name() string {
	return "openai"
}

func (p *OpenAI) getKey() (string, error) {
	if p.APIKey == "" {
		return "", &ProviderAuthError{ProviderName: "openai", Msg: "OpenAI API key is not configured"}
	}
	return p.APIKey, nil
}

func (p *OpenAI) Ping(ctx context.Context) error {
	_, err := p.getKey()
	return err
}

func (p *OpenAI) client() *http.Client {
	if p.Client != nil {
		return p.Client
	}
	return http.DefaultClient
}

func buildOpenAIPayload(model string, messages []Message, tools []Tool) map[string]interface{} {
	reqMessages := make([]map[string]string, 0, len(messages))
	for _, m := range messages {
		reqMessages = append(reqMessages, map[string]string{
			"role":    m.Role,
			"content": m.Content,
		})
	}

	payload := map[string]interface{}{
		"model":    model,
		"messages": reqMessages,
	}

	if len(tools) > 0 {
		openaiTools := make([]map[string]interface{}, 0, len(tools))
		for _, t := range tools {
			openaiTools = append(openaiTools, map[string]interface{}{
				"type": "function",
				"function": map[string]interface{}{
					"name":        t.Name,
					"description": t.Description,
					"parameters":  t.InputSchema,
				},
			})
		}
		payload["tools"] = openaiTools
		payload["tool_choice"] = "auto"
	}
	return payload
}

func (p *OpenAI) Complete(ctx context.Context, model string, messages []Message, tools []Tool) (CompletionResponse, error) {
	key, err := p.getKey()
	if err != nil {
		return CompletionResponse{}, err
	}

	bodyBytes, err := json.Marshal(buildOpenAIPayload(model, messages, tools))
	if err != nil {
		return CompletionResponse{}, fmt.Errorf("marshal chat payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.BaseURL+"/chat/completions", bytes.NewReader(bodyBytes))
	if err != nil {
		return CompletionResponse{}, fmt.Errorf("build chat request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+key)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client().Do(req)
	if err != nil {
		return CompletionResponse{}, fmt.Errorf("request chat completion: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return CompletionResponse{}, fmt.Errorf("read chat response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return CompletionResponse{}, &ProviderAuthError{ProviderName: "openai", Msg: "Unauthorized: Invalid API key"}
		}
		return CompletionResponse{}, &StatusError{ProviderName: "openai", Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	return decodeOpenAIResponse(body)
}

// decodeOpenAIResponse keeps the first choice only, with its tool calls in the
// order the model returned them.
func decodeOpenAIResponse(body []byte) (CompletionResponse, error) {
	var result struct {
		Choices []struct {
			Message struct {
				Content   *string `json:"content"`
				ToolCalls []struct {
					ID       string `json:"id"`
					Type     string `json:"type"`
					Function struct {
						Name      string `json:"name"`
						Arguments string `json:"arguments"`
					} `json:"function"`
				} `json:"tool_calls"`
			} `json:"message"`
			FinishReason string `json:"finish_reason"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return CompletionResponse{}, &DecodeError{ProviderName: "openai", Err: err}
	}
	if len(result.Choices) == 0 {
		return CompletionResponse{}, &DecodeError{ProviderName: "openai", Err: fmt.Errorf("empty choices")}
	}

	choice := result.Choices[0]
	out := CompletionResponse{StopReason: choice.FinishReason}
	if choice.Message.Content != nil {
		out.Text = strings.TrimSpace(*choice.Message.Content)
	}
	for _, tc := range choice.Message.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: json.RawMessage(tc.Function.Arguments),
		})
	}
	return out, nil
}
