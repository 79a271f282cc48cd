package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// DefaultTimeout is the time budget given to a single store call.
const DefaultTimeout = 500 * time.Millisecond

// WithTimeout runs op with a context bounded by d. If the budget runs out
// first, op's context is cancelled and ErrTimeout is returned without
// waiting for op to unwind. A result op delivered before the deadline was
// observed always wins over the timeout. A non-positive d disables the budget.
//
// Errors other than ErrNotFound come back wrapped in ErrTimeout or
// ErrUnavailable so callers can tell storage trouble from domain outcomes.
func WithTimeout[T any](ctx context.Context, d time.Duration, op func(context.Context) (T, error)) (T, error) {
	if d <= 0 {
		v, err := op(ctx)
		return v, classify(err, d)
	}

	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	done := make(chan result[T], 1)
	go func() {
		v, err := op(ctx)
		done <- result[T]{v: v, err: err}
	}()
	return await(ctx, d, done)
}

type result[T any] struct {
	v   T
	err error
}

func await[T any](ctx context.Context, d time.Duration, done <-chan result[T]) (T, error) {
	select {
	case r := <-done:
		return r.v, classify(r.err, d)
	case <-ctx.Done():
		// An op that finished as the budget ran out has already had its
		// effect; report what it did rather than a retryable timeout.
		select {
		case r := <-done:
			return r.v, classify(r.err, d)
		default:
		}
		var zero T
		return zero, classify(ctx.Err(), d)
	}
}

// Do is WithTimeout for operations with no result.
func Do(ctx context.Context, d time.Duration, op func(context.Context) error) error {
	_, err := WithTimeout(ctx, d, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

func classify(err error, d time.Duration) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotFound),
		errors.Is(err, ErrTimeout),
		errors.Is(err, ErrUnavailable):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w after %s", ErrTimeout, d)
	case errors.Is(err, context.Canceled):
		return err
	default:
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
}
