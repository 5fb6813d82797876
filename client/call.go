package client

import (
	"context"
	"fmt"
	"time"
)

// Do runs fn with a context bounded by timeout and returns as soon as fn
// returns or the deadline passes, whichever happens first. A client that
// ignores its context therefore cannot hold the caller past the deadline.
// Deadline expiry is reported as ErrTimeout; a panic inside fn is returned
// as an error. A zero timeout only inherits ctx's own deadline.
func Do[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	var cancel context.CancelFunc
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, timeout)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	type outcome struct {
		value T
		err   error
	}
	done := make(chan outcome, 1)
	go func() {
		var out outcome
		defer func() {
			if r := recover(); r != nil {
				out.err = fmt.Errorf("client panic: %v", r)
			}
			done <- out
		}()
		out.value, out.err = fn(ctx)
	}()

	select {
	case out := <-done:
		if out.err != nil && ctx.Err() == context.DeadlineExceeded {
			return out.value, fmt.Errorf("%w: %w", ErrTimeout, out.err)
		}
		return out.value, out.err
	case <-ctx.Done():
		var zero T
		if ctx.Err() == context.DeadlineExceeded {
			return zero, fmt.Errorf("%w: %w", ErrTimeout, ctx.Err())
		}
		return zero, ctx.Err()
	}
}
