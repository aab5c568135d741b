package state

import (
	"context"
	"sync"
)

// Result holds the typed outcome of one fan-out call.
type Result[T any] struct {
	Value T
	Err   error
}

// limiter bounds concurrent calls. A nil limiter is unbounded.
type limiter chan struct{}

func newLimiter(n int) limiter {
	if n <= 0 {
		return nil
	}
	return make(limiter, n)
}

func (l limiter) acquire(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if l == nil {
		return nil
	}
	select {
	case l <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l limiter) release() {
	if l != nil {
		<-l
	}
}

// FanOut runs fn for every item concurrently, at most maxConcurrent at a time
// (0 means unbounded), and waits for all of them. Results are in input order.
func FanOut[I, T any](ctx context.Context, maxConcurrent int, items []I,
	fn func(ctx context.Context, item I) (T, error),
) []Result[T] {
	if len(items) == 0 {
		return nil
	}

	results := make([]Result[T], len(items))
	sem := newLimiter(maxConcurrent)
	var wg sync.WaitGroup

	for i, item := range items {
		wg.Add(1)
		go func(idx int, it I) {
			defer wg.Done()
			if err := sem.acquire(ctx); err != nil {
				results[idx] = Result[T]{Err: err}
				return
			}
			defer sem.release()
			v, err := fn(ctx, it)
			results[idx] = Result[T]{Value: v, Err: err}
		}(i, item)
	}

	wg.Wait()
	return results
}

// FirstError returns the first error in results, in input order.
func FirstError[T any](results []Result[T]) error {
	for _, r := range results {
		if r.Err != nil {
			return r.Err
		}
	}
	return nil
}
