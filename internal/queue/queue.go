// Package queue runs units of work with bounded concurrency and per-unit
// timeouts, and gates whole passes over a source.
package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
)

// Defaults used when Options leave a field at zero.
const (
	DefaultConcurrency = 10
	DefaultTimeout     = 5 * time.Second
)

// TimeoutError is returned for a unit that did not finish within its deadline.
type TimeoutError struct {
	Unit  int
	After time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("unit %d timed out after %s", e.Unit, e.After)
}

// Timeout reports true so callers can test for timeouts generically.
func (e *TimeoutError) Timeout() bool { return true }

// Options bounds a Run.
type Options struct {
	Concurrency int
	Timeout     time.Duration
}

func (o Options) withDefaults() Options {
	if o.Concurrency <= 0 {
		o.Concurrency = DefaultConcurrency
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	return o
}

// Result is the outcome of one unit. Done is false for units that failed.
type Result[T any] struct {
	Value T
	Err   error
	Done  bool
}

// Run calls fn for every index in [0, n) with at most opts.Concurrency calls
// in flight and returns the results in index order, whatever order they
// complete in. A failing unit does not stop its siblings; the returned error
// is the first failure observed, with the results of every unit still
// available.
//
// A unit that outlives opts.Timeout fails with a *TimeoutError. Its fn keeps
// its context, which is cancelled at the deadline, and its late result is
// dropped.
func Run[T any](ctx context.Context, n int, opts Options, fn func(ctx context.Context, i int) (T, error)) ([]Result[T], error) {
	opts = opts.withDefaults()
	results := make([]Result[T], n)

	var g errgroup.Group
	g.SetLimit(opts.Concurrency)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			v, err := runUnit(ctx, i, opts.Timeout, fn)
			results[i] = Result[T]{Value: v, Err: err, Done: err == nil}
			return err
		})
	}
	return results, g.Wait()
}

func runUnit[T any](ctx context.Context, i int, timeout time.Duration, fn func(ctx context.Context, i int) (T, error)) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	uctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan Result[T], 1)
	go func() {
		v, err := fn(uctx, i)
		done <- Result[T]{Value: v, Err: err}
	}()

	select {
	case r := <-done:
		if r.Err != nil && errors.Is(r.Err, context.DeadlineExceeded) && ctx.Err() == nil {
			return zero, &TimeoutError{Unit: i, After: timeout}
		}
		return r.Value, r.Err
	case <-uctx.Done():
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		return zero, &TimeoutError{Unit: i, After: timeout}
	}
}
