package agent

import (
	"context"
	"errors"
	"fmt"
)

// ErrTurnCancelled is returned when the user abandons a question or the
// program shuts down while the model is still being asked.
var ErrTurnCancelled = errors.New("turn cancelled")

// stopped reports why ctx ended the turn early, or nil while it is live.
// An explicit cancel becomes ErrTurnCancelled; a deadline keeps its own error
// so a slow model is not reported as an abandoned question.
func stopped(ctx context.Context) error {
	err := ctx.Err()
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("%w: %w", ErrTurnCancelled, context.Cause(ctx))
	default:
		return err
	}
}

func IsCancelled(err error) bool {
	return errors.Is(err, ErrTurnCancelled)
}
