// Package retry runs an operation on a fixed back-off schedule.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// DefaultDelays waits 1s, 2s and 4s between attempts, for four attempts total.
var DefaultDelays = []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}

// ExhaustedError is returned once every attempt has failed.
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("operation failed after retries (%d attempts): %v", e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error { return e.Last }

// Do runs op until it succeeds, ctx is cancelled, or len(delays)+1 attempts
// have failed. Cancellation is returned as ctx.Err() and never retried.
func Do[T any](ctx context.Context, op func(context.Context) (T, error), delays []time.Duration) (T, error) {
	var zero T
	attempts := 0
	for {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		attempts++
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return zero, ctxErr
		}
		if errors.Is(err, context.Canceled) {
			return zero, err
		}
		if attempts > len(delays) {
			return zero, &ExhaustedError{Attempts: attempts, Last: err}
		}
		timer := time.NewTimer(delays[attempts-1])
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		case <-timer.C:
		}
	}
}
