// Package task provides a deferred computation whose result can be abandoned.
package task

import (
	"context"
	"errors"
	"sync/atomic"
	"time"
)

// ErrStale is returned when the waiter gave up before the result arrived
var ErrStale = errors.New("task result is stale")

// Deferred runs a function after a delay in its own goroutine. Marking the
// handle stale does not abort the work; the result is simply ignored.
type Deferred[T any] struct {
	done   chan struct{}
	stale  atomic.Bool
	result T
}

// Start schedules fn to run after delay and returns its handle
func Start[T any](delay time.Duration, fn func() T) *Deferred[T] {
	d := &Deferred[T]{done: make(chan struct{})}

	go func() {
		if delay > 0 {
			timer := time.NewTimer(delay)
			<-timer.C
		}
		d.result = fn()
		close(d.done)
	}()

	return d
}

// MarkStale flags the handle so the result will not be delivered
func (d *Deferred[T]) MarkStale() {
	d.stale.Store(true)
}

// IsStale reports whether the handle was abandoned
func (d *Deferred[T]) IsStale() bool {
	return d.stale.Load()
}

// Done is closed once the work has finished, stale or not
func (d *Deferred[T]) Done() <-chan struct{} {
	return d.done
}

// Result returns the value if the work finished and the handle is still live
func (d *Deferred[T]) Result() (T, bool) {
	var zero T
	select {
	case <-d.done:
	default:
		return zero, false
	}
	if d.IsStale() {
		return zero, false
	}
	return d.result, true
}

// Await blocks until the result is ready or ctx ends. When ctx ends first the
// handle is marked stale and ErrStale is returned.
func (d *Deferred[T]) Await(ctx context.Context) (T, error) {
	var zero T
	select {
	case <-d.done:
		if d.IsStale() {
			return zero, ErrStale
		}
		return d.result, nil
	case <-ctx.Done():
		d.MarkStale()
		return zero, errors.Join(ErrStale, ctx.Err())
	}
}
