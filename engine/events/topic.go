// Package events provides typed publish/subscribe channels used by the scene and load session to
// report layer changes, data warnings, compute completion, pick results and configuration updates.
package events

import (
	"sync"
)

// Handler receives a published value of type T.
type Handler[T any] func(T)

// Topic is a typed fan-out channel. Handlers run synchronously on the publishing goroutine
// in subscription order.
type Topic[T any] struct {
	mu       *sync.Mutex
	nextID   uint64
	handlers []subscription[T]
}

type subscription[T any] struct {
	id uint64
	fn Handler[T]
}

// NewTopic creates an empty Topic.
//
// Returns:
//   - *Topic[T]: the new topic
func NewTopic[T any]() *Topic[T] {
	return &Topic[T]{mu: &sync.Mutex{}}
}

// Subscribe registers a handler.
//
// Parameters:
//   - fn: the handler to call on every Publish
//
// Returns:
//   - func(): removes the handler; calling it more than once is a no-op
func (t *Topic[T]) Subscribe(fn Handler[T]) func() {
	t.mu.Lock()
	defer t.mu.Unlock()
	id := t.nextID
	t.nextID++
	t.handlers = append(t.handlers, subscription[T]{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() { t.remove(id) })
	}
}

// Publish delivers v to every current subscriber.
// The subscriber list is snapshotted first, so handlers may subscribe or unsubscribe freely.
//
// Parameters:
//   - v: the value to deliver
func (t *Topic[T]) Publish(v T) {
	t.mu.Lock()
	snapshot := make([]subscription[T], len(t.handlers))
	copy(snapshot, t.handlers)
	t.mu.Unlock()

	for _, s := range snapshot {
		s.fn(v)
	}
}

// Len returns the number of current subscribers.
func (t *Topic[T]) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.handlers)
}

func (t *Topic[T]) remove(id uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, s := range t.handlers {
		if s.id == id {
			t.handlers = append(t.handlers[:i], t.handlers[i+1:]...)
			return
		}
	}
}
