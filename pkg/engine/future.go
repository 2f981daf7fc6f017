package engine

import (
	"context"
	"fmt"
	"sync"
)

// Future is a single-assignment value: it is set exactly once and may be awaited by
// any number of readers. Setting it twice is a programming error and panics.
type Future[T any] struct {
	name  string
	done  chan struct{}
	mu    sync.RWMutex
	value T
	set   bool
}

// NewFuture creates an unresolved future. The name is used in panic and error messages.
func NewFuture[T any](name string) *Future[T] {
	return &Future[T]{
		name: name,
		done: make(chan struct{}),
	}
}

// Name returns the future's name.
func (f *Future[T]) Name() string {
	return f.name
}

// Set resolves the future. It panics if the future was already resolved.
func (f *Future[T]) Set(value T) {
	f.mu.Lock()
	if f.set {
		f.mu.Unlock()
		panic(fmt.Sprintf("future %q resolved twice", f.name))
	}
	f.value = value
	f.set = true
	close(f.done)
	f.mu.Unlock()
}

// Wait blocks until the future is resolved or ctx is done.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.Get()
	case <-ctx.Done():
		var zero T
		return zero, fmt.Errorf("waiting for %s: %w", f.name, ctx.Err())
	}
}

// Get returns the value without blocking. The error is non-nil while unresolved.
func (f *Future[T]) Get() (T, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if !f.set {
		var zero T
		return zero, fmt.Errorf("%s is not resolved", f.name)
	}
	return f.value, nil
}

// IsSet reports whether the future has been resolved.
func (f *Future[T]) IsSet() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Done returns a channel closed once the future is resolved.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}
