package htlc

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// CheckFunc reports whether the awaited condition holds. Returning an error aborts the wait.
type CheckFunc func(ctx context.Context) (bool, error)

// PollUntil calls check immediately and then on every tick of interval until it reports done.
// The wait ends with ErrTimeout once deadline passes (a zero deadline means no deadline) and
// with the context error if ctx is cancelled first.
func PollUntil(ctx context.Context, deadline time.Time, interval time.Duration, check CheckFunc) error {
	if interval <= 0 {
		return fmt.Errorf("%w: poll interval must be positive", ErrInvalidArgument)
	}

	waitCtx := ctx
	if !deadline.IsZero() {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithDeadline(ctx, deadline)
		defer cancel()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		done, err := check(waitCtx)
		if err != nil {
			if waitCtx.Err() != nil && ctx.Err() == nil {
				return fmt.Errorf("%w: deadline %s passed: %w", ErrTimeout, deadline.UTC().Format(time.RFC3339), err)
			}

			return err
		}
		if done {
			return nil
		}

		select {
		case <-waitCtx.Done():
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(waitCtx.Err(), context.DeadlineExceeded) {
				return fmt.Errorf("%w: deadline %s passed", ErrTimeout, deadline.UTC().Format(time.RFC3339))
			}

			return waitCtx.Err()
		case <-ticker.C:
		}
	}
}
