// Package circular implements a fixed-capacity FIFO ring buffer. It backs the
// audio capture buffer (append in the input callback, peek/discard in the
// frame extractor) and the bounded feature histories.
package circular

import "sync"

// Buffer is a generic ring buffer. All operations are safe for concurrent
// use; the lock is held only for the duration of a copy.
type Buffer[T any] struct {
	mutex  sync.RWMutex
	values []T
	head   int // index of the oldest element
	size   int // number of stored elements
}

// New creates a buffer holding at most capacity elements.
func New[T any](capacity int) *Buffer[T] {
	return &Buffer[T]{values: make([]T, capacity)}
}

// Append adds elements, overwriting the oldest ones when full.
func (b *Buffer[T]) Append(elems ...T) {
	n := len(b.values)
	if n == 0 {
		return
	}

	// More elements than capacity: only the tail survives.
	if len(elems) >= n {
		elems = elems[len(elems)-n:]
	}

	b.mutex.Lock()
	for _, e := range elems {
		tail := (b.head + b.size) % n
		b.values[tail] = e
		if b.size < n {
			b.size++
		} else {
			b.head = (b.head + 1) % n
		}
	}
	b.mutex.Unlock()
}

// Len returns the number of stored elements.
func (b *Buffer[T]) Len() int {
	b.mutex.RLock()
	size := b.size
	b.mutex.RUnlock()
	return size
}

// Cap returns the buffer capacity.
func (b *Buffer[T]) Cap() int {
	return len(b.values)
}

// Peek copies up to len(dst) of the oldest elements into dst without
// consuming them and reports how many were copied.
func (b *Buffer[T]) Peek(dst []T) int {
	n := len(b.values)
	if n == 0 {
		return 0
	}
	b.mutex.RLock()
	count := len(dst)
	if count > b.size {
		count = b.size
	}
	for i := 0; i < count; i++ {
		dst[i] = b.values[(b.head+i)%n]
	}
	b.mutex.RUnlock()
	return count
}

// Discard drops up to count of the oldest elements and reports how many were
// dropped.
func (b *Buffer[T]) Discard(count int) int {
	n := len(b.values)
	if n == 0 {
		return 0
	}
	b.mutex.Lock()
	if count > b.size {
		count = b.size
	}
	b.head = (b.head + count) % n
	b.size -= count
	b.mutex.Unlock()
	return count
}

// Snapshot returns a copy of the contents, oldest first.
func (b *Buffer[T]) Snapshot() []T {
	n := len(b.values)
	b.mutex.RLock()
	out := make([]T, b.size)
	for i := 0; i < b.size; i++ {
		out[i] = b.values[(b.head+i)%n]
	}
	b.mutex.RUnlock()
	return out
}

// Reset empties the buffer without releasing storage.
func (b *Buffer[T]) Reset() {
	b.mutex.Lock()
	b.head = 0
	b.size = 0
	b.mutex.Unlock()
}
