package client

import (
	"reflect"
	"sync"
)

// Bus is a typed publish/subscribe hub. Handlers run synchronously on the
// publishing goroutine, in subscription order.
type Bus struct {
	mu   sync.RWMutex
	next int
	subs map[reflect.Type][]subscription
}

type subscription struct {
	id int
	fn func(any)
}

func NewBus() *Bus {
	return &Bus{subs: make(map[reflect.Type][]subscription)}
}

func keyOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// Subscribe registers fn for events of type T and returns a function that
// removes it.
func Subscribe[T any](b *Bus, fn func(T)) (unsubscribe func()) {
	key := keyOf[T]()

	b.mu.Lock()
	b.next++
	id := b.next
	b.subs[key] = append(b.subs[key], subscription{id: id, fn: func(v any) { fn(v.(T)) }})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		subs := b.subs[key]
		for i, s := range subs {
			if s.id == id {
				b.subs[key] = append(subs[:i:i], subs[i+1:]...)
				return
			}
		}
	}
}

// Publish delivers ev to every subscriber of T.
func Publish[T any](b *Bus, ev T) {
	b.mu.RLock()
	subs := append([]subscription(nil), b.subs[keyOf[T]()]...)
	b.mu.RUnlock()

	for _, s := range subs {
		s.fn(ev)
	}
}
