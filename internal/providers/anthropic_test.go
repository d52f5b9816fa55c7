package providers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnthropicCompleteMapsToolUse(t *testing.T) {
	t.Parallel()

	var captured map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "sk-ant", r.Header.Get("x-api-key"))
		assert.Equal(t, anthropicVersion, r.Header.Get("anthropic-version"))
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &captured))
		_, _ = w.Write([]byte(`{"content":[
			{"type":"text","text":"Let me look that up."},
			{"type":"tool_use","id":"toolu_1","name":"ask_database","input":{"query":"SELECT 1"}}
		],"stop_reason":"tool_use"}`))
	}))
	defer srv.Close()

	messages := []Message{
		{Role: "system", Content: "be brief"},
		{Role: "user", Content: "How many home runs did Reggie Jackson hit?"},
	}
	resp, err := NewAnthropic(srv.URL, "sk-ant").Complete(context.Background(), "claude-3-5-sonnet-latest", messages, []Tool{askTool})
	require.NoError(t, err)

	assert.Equal(t, map[string]interface{}{"type": "auto"}, captured["tool_choice"])
	assert.Equal(t, "be brief", captured["system"])
	sent, ok := captured["messages"].([]interface{})
	require.True(t, ok)
	assert.Len(t, sent, 1)

	assert.Equal(t, "Let me look that up.", resp.Text)
	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "ask_database", resp.ToolCalls[0].Name)
	assert.JSONEq(t, `{"query":"SELECT 1"}`, string(resp.ToolCalls[0].Arguments))
	assert.Equal(t, "tool_use", resp.StopReason)
}

func TestAnthropicCompleteStatusError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(529)
		_, _ = w.Write([]byte(`overloaded`))
	}))
	defer srv.Close()

	_, err := NewAnthropic(srv.URL, "sk-ant").Complete(context.Background(), "m", []Message{{Role: "user", Content: "hi"}}, nil)
	require.Error(t, err)
	assert.True(t, IsTransient(err))
	assert.Contains(t, err.Error(), "529")
}
