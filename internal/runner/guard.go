package runner

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/remiblancher/primlab/internal/primitive"
)

// Invoke runs fn under the per-case guard. A returned error, a panic or
// exceeding timeout are all reported as *primitive.ExecutionFault. A
// timed-out fn keeps running in the background; its results are discarded.
//
// ctx is not consulted: cancellation stops a run between cases, never in
// the middle of one.
func Invoke(timeout time.Duration, op string, fn func() error) error {
	done := make(chan error, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- &primitive.ExecutionFault{Op: op, Err: fmt.Errorf("%w: %v", primitive.ErrPanic, p)}
			}
		}()
		if err := fn(); err != nil {
			done <- &primitive.ExecutionFault{Op: op, Err: err}
			return
		}
		done <- nil
	}()

	if timeout <= 0 {
		return <-done
	}
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case err := <-done:
		return err
	case <-t.C:
		return &primitive.ExecutionFault{Op: op, Err: fmt.Errorf("%w after %s", primitive.ErrCaseTimeout, timeout)}
	}
}

// Dispatch runs fn(0..n-1) on at most workers goroutines and returns the
// results of the calls that ran, in index order. Once ctx is cancelled no
// new call starts; calls already running complete and are kept. The
// returned error is ctx.Err().
func Dispatch[T any](ctx context.Context, workers, n int, fn func(i int) T) ([]T, error) {
	if workers < 1 {
		workers = 1
	}
	out := make([]T, n)
	ran := make([]bool, n)

	var g errgroup.Group
	g.SetLimit(workers)
	for i := 0; i < n; i++ {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			out[i] = fn(i)
			ran[i] = true
			return nil
		})
	}
	_ = g.Wait()

	kept := out[:0]
	for i := range out {
		if ran[i] {
			kept = append(kept, out[i])
		}
	}
	return kept, ctx.Err()
}
