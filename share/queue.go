// Copyright 2018 Brian Starkey <stark3y@gmail.com>
package share

import (
	"fmt"
)

const DefaultQueueSize = 50

// Queue is a fixed size FIFO. When it's full, new values are thrown away
// rather than overwriting old ones, so a producer that cares has to look at
// Full() first (or the result of Put).
type Queue[T any] struct {
	name    string
	buf     []T
	head    int
	n       int
	dropped int
}

func NewQueue[T any](name string, size int) *Queue[T] {
	if size <= 0 {
		panic(fmt.Sprintf("share: queue %s needs a positive size, got %d", name, size))
	}

	return &Queue[T]{
		name: name,
		buf:  make([]T, size),
	}
}

func (q *Queue[T]) Name() string {
	return q.name
}

// Put appends v, returning false (and dropping v) if the queue is full.
func (q *Queue[T]) Put(v T) bool {
	if q.n == len(q.buf) {
		q.dropped++
		return false
	}

	q.buf[(q.head+q.n)%len(q.buf)] = v
	q.n++

	return true
}

func (q *Queue[T]) Get() (T, bool) {
	var zero T
	if q.n == 0 {
		return zero, false
	}

	v := q.buf[q.head]
	q.buf[q.head] = zero
	q.head = (q.head + 1) % len(q.buf)
	q.n--

	return v, true
}

func (q *Queue[T]) Len() int {
	return q.n
}

func (q *Queue[T]) Cap() int {
	return len(q.buf)
}

func (q *Queue[T]) Full() bool {
	return q.n == len(q.buf)
}

func (q *Queue[T]) Empty() bool {
	return q.n == 0
}

// Dropped counts the values Put has refused since the queue was made.
func (q *Queue[T]) Dropped() int {
	return q.dropped
}

func (q *Queue[T]) Clear() {
	for q.n > 0 {
		q.Get()
	}
}
