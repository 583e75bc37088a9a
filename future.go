package e3kit

import "context"

// Future is the pending result of an operation started with Go. It
// completes exactly once.
type Future[T any] struct {
	done chan struct{}
	val  T
	err  error
}

// Go runs fn in a new goroutine. Canceling ctx cancels the operation.
//
//	f := e3kit.Go(ctx, ethree.Bootstrap)
//	state, err := f.Await(ctx)
func Go[T any](ctx context.Context, fn func(context.Context) (T, error)) *Future[T] {
	f := &Future[T]{done: make(chan struct{})}
	go func() {
		defer close(f.done)
		f.val, f.err = fn(ctx)
	}()
	return f
}

// Run is Go for operations without a result.
func Run(ctx context.Context, fn func(context.Context) error) *Future[struct{}] {
	return Go(ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
}

// Done is closed when the operation has completed.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Await waits for the result. If ctx ends first it returns ctx.Err(); the
// operation itself keeps running under the context given to Go.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
