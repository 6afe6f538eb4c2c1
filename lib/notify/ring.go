// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package notify

// Ring keeps the most recent values up to a fixed capacity. It is not
// safe for concurrent use.
type Ring[T any] struct {
	values []T
	next   int
	full   bool
}

// NewRing returns a Ring holding up to capacity values. A capacity of
// zero keeps nothing.
func NewRing[T any](capacity int) *Ring[T] {
	return &Ring[T]{values: make([]T, capacity)}
}

// Push appends value, evicting the oldest when full.
func (r *Ring[T]) Push(value T) {
	if len(r.values) == 0 {
		return
	}
	r.values[r.next] = value
	r.next = (r.next + 1) % len(r.values)
	if r.next == 0 {
		r.full = true
	}
}

// Len returns the number of stored values.
func (r *Ring[T]) Len() int {
	if r.full {
		return len(r.values)
	}
	return r.next
}

// Snapshot returns the stored values oldest first.
func (r *Ring[T]) Snapshot() []T {
	if !r.full {
		return append([]T(nil), r.values[:r.next]...)
	}
	result := make([]T, 0, len(r.values))
	result = append(result, r.values[r.next:]...)
	return append(result, r.values[:r.next]...)
}
