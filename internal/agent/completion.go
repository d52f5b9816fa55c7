package agent

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/yubzen/ballpark/internal/metrics"
	"github.com/yubzen/ballpark/internal/providers"
	"github.com/yubzen/ballpark/internal/redact"
)

// ErrCompletionFailed wraps the last provider error once every attempt is spent.
var ErrCompletionFailed = errors.New("completion request failed")

var ErrCompleterNotReady = errors.New("completer is not initialized")

// RetryPolicy is randomized exponential backoff: the wait after attempt n is
// drawn uniformly from [0, min(MaxWait, Multiplier*2^(n-1))].
type RetryPolicy struct {
	MaxAttempts int
	Multiplier  time.Duration
	MaxWait     time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		Multiplier:  time.Second,
		MaxWait:     40 * time.Second,
	}
}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	if p.Multiplier < 0 {
		p.Multiplier = 0
	}
	if p.MaxWait < 0 {
		p.MaxWait = 0
	}
	return p
}

// Ceiling is the longest wait allowed after the given 1-based attempt.
func (p RetryPolicy) Ceiling(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := p.Multiplier
	for i := 1; i < attempt && d < p.MaxWait; i++ {
		d *= 2
		if d < 0 {
			return p.MaxWait
		}
	}
	if d > p.MaxWait {
		return p.MaxWait
	}
	return d
}

// Completer sends one conversation and the tool to the model. Transient
// failures are retried per Retry; anything else is returned at once.
type Completer struct {
	Provider providers.Provider
	Model    string
	Retry    RetryPolicy
	Logger   *zap.Logger

	sleep  func(ctx context.Context, d time.Duration) error
	jitter func(ceiling time.Duration) time.Duration
}

func (c *Completer) validate() error {
	if c == nil {
		return ErrCompleterNotReady
	}
	if c.Provider == nil {
		return fmt.Errorf("%w: provider is not configured", ErrCompleterNotReady)
	}
	if strings.TrimSpace(c.Model) == "" {
		return fmt.Errorf("%w: model is empty", ErrCompleterNotReady)
	}
	return nil
}

func (c *Completer) Request(ctx context.Context, conversation []providers.Message, tool providers.Tool) (providers.CompletionResponse, error) {
	if err := c.validate(); err != nil {
		return providers.CompletionResponse{}, err
	}
	logger := c.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	policy := c.Retry.normalized()
	tools := []providers.Tool{tool}

	var lastErr error
	attempts := 0
	for attempts < policy.MaxAttempts {
		if err := stopped(ctx); err != nil {
			return providers.CompletionResponse{}, err
		}
		attempts++
		metrics.IncCompletionAttempt()

		resp, err := c.Provider.Complete(ctx, c.Model, conversation, tools)
		if err == nil {
			if attempts > 1 {
				logger.Info("completion succeeded after retry", zap.Int("attempt", attempts))
			}
			return resp, nil
		}
		if ctxErr := stopped(ctx); ctxErr != nil {
			return providers.CompletionResponse{}, ctxErr
		}

		lastErr = err
		logger.Warn("completion attempt failed",
			zap.String("provider", c.Provider.Name()),
			zap.Int("attempt", attempts),
			zap.Int("max_attempts", policy.MaxAttempts),
			zap.String("error", redact.Error(err)))

		if !providers.IsTransient(err) || attempts == policy.MaxAttempts {
			break
		}

		wait := c.drawWait(policy.Ceiling(attempts))
		metrics.IncCompletionRetry()
		logger.Debug("retrying completion", zap.Duration("wait", wait))
		if err := c.wait(ctx, wait); err != nil {
			if ctxErr := stopped(ctx); ctxErr != nil {
				return providers.CompletionResponse{}, ctxErr
			}
			return providers.CompletionResponse{}, err
		}
	}

	metrics.IncCompletionFailure()
	return providers.CompletionResponse{}, fmt.Errorf("%w after %d attempt(s): %w", ErrCompletionFailed, attempts, lastErr)
}

func (c *Completer) drawWait(ceiling time.Duration) time.Duration {
	if c.jitter != nil {
		return c.jitter(ceiling)
	}
	if ceiling <= 0 {
		return 0
	}
	return rand.N(ceiling + 1)
}

func (c *Completer) wait(ctx context.Context, d time.Duration) error {
	if c.sleep != nil {
		return c.sleep(ctx, d)
	}
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
