package future

import (
	"context"
	"sync"
)

// Value is a single-resolution promise. The first Resolve or Fail wins;
// later calls are ignored. Await blocks until resolution or context
// cancellation.
type Value[T any] struct {
	mu   sync.Mutex
	done chan struct{}
	v    T
	err  error
}

// New returns a pending promise.
func New[T any]() *Value[T] {
	return &Value[T]{done: make(chan struct{})}
}

// Resolved returns a promise already carrying v.
func Resolved[T any](v T) *Value[T] {
	f := New[T]()
	f.Resolve(v)
	return f
}

// Failed returns a promise already carrying err.
func Failed[T any](err error) *Value[T] {
	f := New[T]()
	f.Fail(err)
	return f
}

// Resolve sets the value if the promise is still pending.
func (f *Value[T]) Resolve(v T) {
	f.mu.Lock()
	defer f.mu.Unlock()
	select {
	case <-f.done:
		return
	default:
	}
	f.v = v
	close(f.done)
}

// Fail sets the error if the promise is still pending.
func (f *Value[T]) Fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	select {
	case <-f.done:
		return
	default:
	}
	f.err = err
	close(f.done)
}

// Done is closed once the promise is resolved or failed.
func (f *Value[T]) Done() <-chan struct{} { return f.done }

// Await blocks until the promise resolves, fails, or ctx ends.
func (f *Value[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.v, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
