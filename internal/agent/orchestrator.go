package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/yubzen/ballpark/internal/metrics"
	"github.com/yubzen/ballpark/internal/providers"
	"github.com/yubzen/ballpark/internal/redact"
	"github.com/yubzen/ballpark/internal/state"
	"github.com/yubzen/ballpark/internal/toolschema"
)

const (
	// FallbackNotice is shown when the model answers without calling the tool.
	FallbackNotice     = "I'm not able to come up with a good database query using your question. Please try again."
	ModelFailureNotice = "The language model request failed: "
	CancelledNotice    = "The request was cancelled before the model answered."
)

type Outcome int

const (
	OutcomeToolInvoked Outcome = iota + 1
	OutcomeNoToolCall
	OutcomeModelError
	OutcomeBadToolCall
)

func (o Outcome) String() string {
	switch o {
	case OutcomeToolInvoked:
		return "tool_invoked"
	case OutcomeNoToolCall:
		return "no_tool_call"
	case OutcomeModelError:
		return "model_error"
	case OutcomeBadToolCall:
		return "bad_tool_call"
	default:
		return "unknown"
	}
}

// Turn describes one question and what came of it. Only Result is stored in
// the transcript; Query and Notice are for display during the current turn.
type Turn struct {
	Question           string
	Outcome            Outcome
	Query              string
	Result             string
	Notice             string
	DiscardedToolCalls int
}

// SchemaSource hands out the tool schema for the next request.
type SchemaSource interface {
	Current() *toolschema.Schema
}

type Executor interface {
	Execute(ctx context.Context, query string) string
}

type Orchestrator struct {
	Completer *Completer
	Schema    SchemaSource
	DB        Executor
	Logger    *zap.Logger
}

var (
	ErrOrchestratorNotReady = errors.New("orchestrator is not initialized")
	ErrEmptyQuestion        = errors.New("question is empty")
)

func (o *Orchestrator) validate() error {
	if o == nil {
		return ErrOrchestratorNotReady
	}
	if o.Schema == nil || o.Schema.Current() == nil {
		return fmt.Errorf("%w: tool schema is not loaded", ErrOrchestratorNotReady)
	}
	if o.DB == nil {
		return fmt.Errorf("%w: database is not open", ErrOrchestratorNotReady)
	}
	return o.Completer.validate()
}

func (o *Orchestrator) logger() *zap.Logger {
	if o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}

// Ask runs one turn: the question is appended to the session, sent to the
// model on its own with the ask_database tool, and the query the model
// produces is executed. The returned error is non-nil only when the model
// could not be reached; the Turn carries the notice to show in that case.
func (o *Orchestrator) Ask(ctx context.Context, session *state.Session, question string) (Turn, error) {
	if err := o.validate(); err != nil {
		return Turn{}, err
	}
	if session == nil {
		return Turn{}, fmt.Errorf("%w: no session", ErrOrchestratorNotReady)
	}
	if strings.TrimSpace(question) == "" {
		return Turn{}, ErrEmptyQuestion
	}

	log := o.logger().With(zap.String("session", session.ID))
	session.Append(state.RoleUser, question)
	turn := Turn{Question: question}

	// The schema is fixed for the whole request even if a reload lands meanwhile.
	schema := o.Schema.Current()
	conversation := []providers.Message{{Role: state.RoleUser, Content: redact.Clean(question)}}

	resp, err := o.Completer.Request(ctx, conversation, schema.ProviderTool())
	if err != nil {
		turn.Outcome = OutcomeModelError
		if IsCancelled(err) {
			turn.Notice = CancelledNotice
		} else {
			turn.Notice = ModelFailureNotice + redact.Error(err)
		}
		log.Error("model request failed", zap.String("error", redact.Error(err)))
		metrics.ObserveTurn(turn.Outcome.String())
		return turn, err
	}

	if len(resp.ToolCalls) == 0 {
		turn.Outcome = OutcomeNoToolCall
		turn.Notice = FallbackNotice
		log.Info("model answered without a tool call",
			zap.String("stop_reason", resp.StopReason),
			zap.Int("text_len", len(resp.Text)))
		metrics.ObserveTurn(turn.Outcome.String())
		return turn, nil
	}

	// Only the last call is honored.
	call := resp.ToolCalls[len(resp.ToolCalls)-1]
	turn.DiscardedToolCalls = len(resp.ToolCalls) - 1
	if turn.DiscardedToolCalls > 0 {
		log.Info("discarding earlier tool calls",
			zap.Int("discarded", turn.DiscardedToolCalls),
			zap.String("honored_id", call.ID))
	}
	metrics.ObserveToolCalls(turn.DiscardedToolCalls)

	query, err := extractArgument(call.Arguments, schema.Parameter.Name)
	if err != nil {
		turn.Outcome = OutcomeBadToolCall
		turn.Notice = fmt.Sprintf("The model's %s call had no usable %s: %v", call.Name, schema.Parameter.Name, err)
		log.Warn("unusable tool arguments", zap.String("tool", call.Name), zap.Error(err))
		metrics.ObserveTurn(turn.Outcome.String())
		return turn, nil
	}
	turn.Query = query

	if call.Name != schema.Name {
		turn.Outcome = OutcomeBadToolCall
		turn.Notice = fmt.Sprintf("The model asked for an unknown tool %q, so nothing was run.", call.Name)
		log.Warn("unknown tool requested", zap.String("tool", call.Name))
		metrics.ObserveTurn(turn.Outcome.String())
		return turn, nil
	}

	log.Info("running generated query", zap.String("query", query))
	turn.Result = o.DB.Execute(ctx, query)
	session.Append(state.RoleAssistant, turn.Result)
	turn.Outcome = OutcomeToolInvoked
	metrics.ObserveTurn(turn.Outcome.String())
	return turn, nil
}

func extractArgument(raw json.RawMessage, name string) (string, error) {
	if len(raw) == 0 {
		return "", errors.New("empty arguments")
	}
	var args map[string]any
	if err := json.Unmarshal(raw, &args); err != nil {
		return "", fmt.Errorf("arguments are not a JSON object: %w", err)
	}
	v, ok := args[name]
	if !ok {
		return "", fmt.Errorf("missing %q", name)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%q is not a string", name)
	}
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("%q is empty", name)
	}
	return s, nil
}
