package application

import (
	"context"
	"sync"
)

// Task is a single-resolution future. It is resolved by exactly one of
// Resolve or Cancel; whichever comes first wins and later calls are no-ops.
type Task[T any] struct {
	once  sync.Once
	done  chan struct{}
	stop  context.CancelFunc
	value T
	err   error
}

// NewTask returns an unresolved task. stop, if non-nil, is invoked when
// the task is cancelled so the producer can abandon its work.
func NewTask[T any](stop context.CancelFunc) *Task[T] {
	return &Task[T]{done: make(chan struct{}), stop: stop}
}

// Go runs fn on its own goroutine and resolves the task with its result.
// Cancelling the task cancels the context passed to fn.
func Go[T any](ctx context.Context, fn func(ctx context.Context) (T, error)) *Task[T] {
	ctx, cancel := context.WithCancel(ctx)
	t := NewTask[T](cancel)
	go func() {
		defer cancel()
		v, err := fn(ctx)
		t.Resolve(v, err)
	}()
	return t
}

// Resolve completes the task. It reports whether this call resolved it.
func (t *Task[T]) Resolve(v T, err error) bool {
	resolved := false
	t.once.Do(func() {
		t.value, t.err = v, err
		close(t.done)
		resolved = true
	})
	return resolved
}

// Cancel resolves the task with context.Canceled and stops the producer.
func (t *Task[T]) Cancel() bool {
	var zero T
	resolved := t.Resolve(zero, context.Canceled)
	if resolved && t.stop != nil {
		t.stop()
	}
	return resolved
}

func (t *Task[T]) Done() <-chan struct{} {
	return t.done
}

// Resolved reports whether the task has completed.
func (t *Task[T]) Resolved() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

// Result blocks until the task resolves and returns its value.
func (t *Task[T]) Result() (T, error) {
	<-t.done
	return t.value, t.err
}

// Completed returns an already resolved task.
func Completed[T any](v T, err error) *Task[T] {
	t := NewTask[T](nil)
	t.Resolve(v, err)
	return t
}
