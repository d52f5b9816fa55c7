package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"syscall"
)

type Message struct {
	Role    string // "user" | "assistant" | "system"
	Content string
}

type Tool struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	InputSchema interface{} `json:"input_schema"`
}

// ToolCall is one structured invocation requested by the model.
// Arguments holds the JSON-encoded argument object.
type ToolCall struct {
	ID        string
	Name      string
	Arguments json.RawMessage
}

// CompletionResponse is the model's first choice message.
type CompletionResponse struct {
	Text       string
	ToolCalls  []ToolCall
	StopReason string
}

// Provider sends one completion request. Tool choice is always automatic:
// the model decides between a text answer and a tool call.
type Provider interface {
	Name() string
	Complete(ctx context.Context, model string, messages []Message, tools []Tool) (CompletionResponse, error)
	Ping(ctx context.Context) error
}

type ProviderAuthError struct {
	ProviderName string
	Msg          string
}

func (e *ProviderAuthError) Error() string {
	return e.Msg
}

// StatusError is a non-200 answer from the completion endpoint.
type StatusError struct {
	ProviderName string
	Code         int
	Body         string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s error: %s (status %d)", e.ProviderName, e.Body, e.Code)
}

// IsTransient reports whether a completion failure is worth retrying:
// network failures, rate limits, timeouts and server errors.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var authErr *ProviderAuthError
	if errors.As(err, &authErr) {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.Code == http.StatusRequestTimeout,
			statusErr.Code == http.StatusConflict,
			statusErr.Code == http.StatusTooManyRequests,
			statusErr.Code >= 500:
			return true
		default:
			return false
		}
	}
	var decodeErr *DecodeError
	if errors.As(err, &decodeErr) {
		return false
	}
	// A base_url that does not parse fails the same way on every attempt.
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Op == "parse" {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	// Connections dropped mid-response.
	return errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED)
}

// DecodeError wraps a response body the provider could not parse.
type DecodeError struct {
	ProviderName string
	Err          error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s decode error: %v", e.ProviderName, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }
