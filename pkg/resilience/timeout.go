package resilience

import (
	"context"
	"fmt"
	"time"
)

// TimeoutError reports a call that overran its limit. It matches
// context.DeadlineExceeded.
type TimeoutError struct {
	Op    string
	Limit time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s: timed out after %v", e.Op, e.Limit)
}

func (e *TimeoutError) Is(target error) bool { return target == context.DeadlineExceeded }

// WithTimeout bounds one result-sink call, such as a run insert or a cache
// write, to timeout. An overrun returns a *TimeoutError that Retry may try
// again. If ctx ends first the cancellation comes back Permanent, so an
// enclosing Retry stops at once. An overrunning fn is abandoned rather than
// stopped and must watch its context. A non-positive timeout leaves fn
// unbounded.
func WithTimeout(ctx context.Context, timeout time.Duration, op string, fn func(ctx context.Context) error) error {
	if timeout <= 0 {
		return fn(ctx)
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- fn(callCtx) }()

	select {
	case err := <-done:
		return err
	case <-callCtx.Done():
		if err := ctx.Err(); err != nil {
			return Permanent(fmt.Errorf("%s: %w", op, err))
		}
		return &TimeoutError{Op: op, Limit: timeout}
	}
}
