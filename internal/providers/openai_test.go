package providers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var askTool = Tool{
	Name:        "ask_database",
	Description: "Use this function to answer user questions about baseball statistics.",
	InputSchema: map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"query": map[string]interface{}{"type": "string"},
		},
		"required": []string{"query"},
	},
}

func TestOpenAICompleteSendsAutoToolChoice(t *testing.T) {
	t.Parallel()

	var captured map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &captured))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":null,"tool_calls":[
			{"id":"call_1","type":"function","function":{"name":"ask_database","arguments":"{\"query\":\"SELECT 1\"}"}},
			{"id":"call_2","type":"function","function":{"name":"ask_database","arguments":"{\"query\":\"SELECT 2\"}"}}
		]},"finish_reason":"tool_calls"}]}`))
	}))
	defer srv.Close()

	p := NewOpenAI(srv.URL, "sk-test")
	resp, err := p.Complete(context.Background(), "gpt-4o", []Message{{Role: "user", Content: "hi"}}, []Tool{askTool})
	require.NoError(t, err)

	assert.Equal(t, "auto", captured["tool_choice"])
	assert.Equal(t, "gpt-4o", captured["model"])
	tools, ok := captured["tools"].([]interface{})
	require.True(t, ok)
	require.Len(t, tools, 1)

	require.Len(t, resp.ToolCalls, 2)
	assert.Equal(t, "call_1", resp.ToolCalls[0].ID)
	assert.JSONEq(t, `{"query":"SELECT 2"}`, string(resp.ToolCalls[1].Arguments))
	assert.Empty(t, resp.Text)
	assert.Equal(t, "tool_calls", resp.StopReason)
}

func TestOpenAICompleteTextAnswer(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":" Hello there. "},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	resp, err := NewOpenAI(srv.URL, "sk-test").Complete(context.Background(), "gpt-4o", []Message{{Role: "user", Content: "hi"}}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Hello there.", resp.Text)
	assert.Empty(t, resp.ToolCalls)
}

func TestOpenAICompleteErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		status    int
		body      string
		transient bool
		check     func(t *testing.T, err error)
	}{
		{
			name:   "unauthorized",
			status: http.StatusUnauthorized,
			body:   `{"error":"bad key"}`,
			check: func(t *testing.T, err error) {
				var authErr *ProviderAuthError
				assert.True(t, errors.As(err, &authErr))
			},
		},
		{
			name:      "server error",
			status:    http.StatusInternalServerError,
			body:      `boom`,
			transient: true,
			check: func(t *testing.T, err error) {
				var statusErr *StatusError
				require.True(t, errors.As(err, &statusErr))
				assert.Equal(t, 500, statusErr.Code)
				assert.Equal(t, "boom", statusErr.Body)
			},
		},
		{
			name:      "rate limited",
			status:    http.StatusTooManyRequests,
			body:      `slow down`,
			transient: true,
		},
		{
			name:   "bad request",
			status: http.StatusBadRequest,
			body:   `nope`,
		},
		{
			name:   "empty choices",
			status: http.StatusOK,
			body:   `{"choices":[]}`,
			check: func(t *testing.T, err error) {
				var decodeErr *DecodeError
				assert.True(t, errors.As(err, &decodeErr))
			},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewOpenAI(srv.URL, "sk-test").Complete(context.Background(), "gpt-4o", []Message{{Role: "user", Content: "hi"}}, nil)
			require.Error(t, err)
			assert.Equal(t, tt.transient, IsTransient(err))
			if tt.check != nil {
				tt.check(t, err)
			}
		})
	}
}

func TestOpenAICompleteWithoutKey(t *testing.T) {
	t.Parallel()

	_, err := NewOpenAI("", "").Complete(context.Background(), "gpt-4o", nil, nil)
	var authErr *ProviderAuthError
	assert.True(t, errors.As(err, &authErr))
}
