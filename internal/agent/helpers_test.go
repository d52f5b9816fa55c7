package agent

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/yubzen/ballpark/internal/providers"
	"github.com/yubzen/ballpark/internal/toolschema"
)

type scriptedReply struct {
	resp providers.CompletionResponse
	err  error
}

// scriptedProvider replays canned replies in order and records every request.
type scriptedProvider struct {
	mu       sync.Mutex
	replies  []scriptedReply
	requests [][]providers.Message
	tools    [][]providers.Tool
}

func (p *scriptedProvider) Name() string                   { return "scripted" }
func (p *scriptedProvider) Ping(ctx context.Context) error { return nil }

func (p *scriptedProvider) Complete(ctx context.Context, model string, messages []providers.Message, tools []providers.Tool) (providers.CompletionResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requests = append(p.requests, append([]providers.Message(nil), messages...))
	p.tools = append(p.tools, tools)
	if len(p.replies) == 0 {
		return providers.CompletionResponse{}, errors.New("script exhausted")
	}
	next := p.replies[0]
	p.replies = p.replies[1:]
	return next.resp, next.err
}

func (p *scriptedProvider) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.requests)
}

func toolCall(id, name, args string) providers.ToolCall {
	return providers.ToolCall{ID: id, Name: name, Arguments: []byte(args)}
}

func replyWithCalls(calls ...providers.ToolCall) scriptedReply {
	return scriptedReply{resp: providers.CompletionResponse{ToolCalls: calls, StopReason: "tool_calls"}}
}

// recordingExecutor stands in for the statistics database.
type recordingExecutor struct {
	mu      sync.Mutex
	queries []string
	result  string
}

func (e *recordingExecutor) Execute(ctx context.Context, query string) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.queries = append(e.queries, query)
	return e.result
}

// instantCompleter never sleeps between attempts and records the waits it
// would have taken.
func instantCompleter(p providers.Provider, waits *[]time.Duration) *Completer {
	return &Completer{
		Provider: p,
		Model:    "test-model",
		Retry:    DefaultRetryPolicy(),
		sleep: func(ctx context.Context, d time.Duration) error {
			if waits != nil {
				*waits = append(*waits, d)
			}
			return ctx.Err()
		},
		jitter: func(ceiling time.Duration) time.Duration { return ceiling },
	}
}

func defaultSchema(t *testing.T) *toolschema.Schema {
	t.Helper()
	s, err := toolschema.Default()
	if err != nil {
		t.Fatalf("load default schema: %v", err)
	}
	return s
}
