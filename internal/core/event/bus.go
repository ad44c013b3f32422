package event

import (
	"reflect"
	"sync"
)

// Bus is a double-buffered event bus. Events emitted during tick N are
// delivered during tick N+1, after SwapBuffers, so a handler never observes a
// half-applied mutation of the tick that produced the event.
type Bus struct {
	mu       sync.Mutex // guards handler registration only
	front    map[reflect.Type][]any
	back     map[reflect.Type][]any
	handlers map[reflect.Type][]func(any)
	order    []reflect.Type
}

func NewBus() *Bus {
	return &Bus{
		front:    make(map[reflect.Type][]any),
		back:     make(map[reflect.Type][]any),
		handlers: make(map[reflect.Type][]func(any)),
	}
}

func typeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// Emit queues an event for the next dispatch.
func Emit[T any](b *Bus, ev T) {
	t := typeOf[T]()
	b.back[t] = append(b.back[t], ev)
}

// Subscribe registers a handler for events of type T. Handlers of one type run
// in registration order.
func Subscribe[T any](b *Bus, fn func(T)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	t := typeOf[T]()
	if _, ok := b.handlers[t]; !ok {
		b.order = append(b.order, t)
	}
	b.handlers[t] = append(b.handlers[t], func(ev any) { fn(ev.(T)) })
}

// SwapBuffers makes the events emitted since the last swap dispatchable.
func (b *Bus) SwapBuffers() {
	b.front, b.back = b.back, b.front
	for k := range b.back {
		b.back[k] = b.back[k][:0]
	}
}

// DispatchAll delivers the front buffer. Event types are visited in the order
// their first handler was registered.
func (b *Bus) DispatchAll() {
	for _, t := range b.order {
		events := b.front[t]
		for _, ev := range events {
			for _, h := range b.handlers[t] {
				h(ev)
			}
		}
	}
}

// Pending returns the number of events waiting for the next swap.
func (b *Bus) Pending() int {
	n := 0
	for _, evs := range b.back {
		n += len(evs)
	}
	return n
}
