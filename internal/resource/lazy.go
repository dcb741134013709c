// Package resource holds lazily constructed, process-wide handles such as the
// caption model and the publish journal.
package resource

import (
	"context"
	"errors"
	"sync"
)

var errNoInit = errors.New("resource: no initializer")

// Lazy builds a value on first Get and caches it. A failed build is not
// cached; the next Get tries again.
type Lazy[T any] struct {
	mu    sync.Mutex
	init  func(context.Context) (T, error)
	value T
	ready bool
}

// NewLazy returns a handle that calls init on first use.
func NewLazy[T any](init func(context.Context) (T, error)) *Lazy[T] {
	return &Lazy[T]{init: init}
}

// Ready returns a handle that already holds value.
func Ready[T any](value T) *Lazy[T] {
	return &Lazy[T]{value: value, ready: true}
}

// Get returns the cached value, building it if necessary.
func (l *Lazy[T]) Get(ctx context.Context) (T, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ready {
		return l.value, nil
	}
	var zero T
	if l.init == nil {
		return zero, errNoInit
	}
	value, err := l.init(ctx)
	if err != nil {
		return zero, err
	}
	l.value = value
	l.ready = true
	return value, nil
}

// Loaded reports whether a value has been built.
func (l *Lazy[T]) Loaded() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ready
}

// Peek returns the value only if it was already built.
func (l *Lazy[T]) Peek() (T, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.value, l.ready
}
