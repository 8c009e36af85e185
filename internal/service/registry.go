package service

import (
	"slices"
	"sync"
)

// Registry is an append-only list with change observers.
// Entries are never removed; lookups that need replacement semantics scan newest first.
type Registry[T any] struct {
	mu        sync.RWMutex
	items     []T
	observers []func(T)
}

// NewRegistry creates an empty registry
func NewRegistry[T any]() *Registry[T] {
	return &Registry[T]{}
}

// Add appends item and notifies observers outside the lock
func (r *Registry[T]) Add(item T) {
	r.mu.Lock()
	r.items = append(r.items, item)
	observers := slices.Clone(r.observers)
	r.mu.Unlock()

	for _, fn := range observers {
		fn(item)
	}
}

// Observe registers fn to be called for every later Add
func (r *Registry[T]) Observe(fn func(T)) {
	r.mu.Lock()
	r.observers = append(r.observers, fn)
	r.mu.Unlock()
}

// Items returns a snapshot in insertion order
func (r *Registry[T]) Items() []T {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]T(nil), r.items...)
}

// Len returns the number of entries
func (r *Registry[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}

// FindLast returns the most recently added entry matching fn
func (r *Registry[T]) FindLast(match func(T) bool) (T, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for i := len(r.items) - 1; i >= 0; i-- {
		if match(r.items[i]) {
			return r.items[i], true
		}
	}
	var zero T
	return zero, false
}
