// Package events provides the enumerated-event dispatcher used by the session channel.
//
// A [Dispatcher] keeps one subscriber list per event key. Emissions are queued and drained by a single goroutine at a
// time, so every subscriber sees events in emission order even when events are produced from several goroutines, and a
// subscriber may emit (or call back into its producer) without deadlocking: nested emissions are queued behind the
// event being delivered.
package events

import (
	"slices"
	"sync"
)

// ListenerID identifies a subscription for removal.
type ListenerID uint64

type listener[E any] struct {
	id ListenerID
	fn func(E)
}

type pending[K comparable, E any] struct {
	key   K
	event E
}

// Dispatcher fans events out to per-key subscriber lists.
type Dispatcher[K comparable, E any] struct {
	mu        sync.Mutex
	nextID    ListenerID
	listeners map[K][]listener[E]
	queue     []pending[K, E]
	draining  bool
}

// NewDispatcher creates an empty [Dispatcher].
func NewDispatcher[K comparable, E any]() *Dispatcher[K, E] {
	return &Dispatcher[K, E]{listeners: make(map[K][]listener[E])}
}

// Subscribe registers fn for key and returns its id.
func (d *Dispatcher[K, E]) Subscribe(key K, fn func(E)) ListenerID {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.nextID++
	d.listeners[key] = append(d.listeners[key], listener[E]{id: d.nextID, fn: fn})
	return d.nextID
}

// Unsubscribe removes the subscription. Reports whether it existed.
func (d *Dispatcher[K, E]) Unsubscribe(key K, id ListenerID) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	ls := d.listeners[key]
	n := len(ls)
	ls = slices.DeleteFunc(ls, func(l listener[E]) bool { return l.id == id })
	d.listeners[key] = ls
	return len(ls) != n
}

// Count returns the number of subscribers for key.
func (d *Dispatcher[K, E]) Count(key K) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.listeners[key])
}

// Enqueue appends an event without delivering it. Safe to call while holding locks that subscribers may need.
func (d *Dispatcher[K, E]) Enqueue(key K, event E) {
	d.mu.Lock()
	d.queue = append(d.queue, pending[K, E]{key: key, event: event})
	d.mu.Unlock()
}

// Drain delivers queued events in order. If another goroutine (or an enclosing Drain) is already delivering, Drain
// returns immediately and that goroutine delivers the events instead.
func (d *Dispatcher[K, E]) Drain() {
	d.mu.Lock()
	if d.draining {
		d.mu.Unlock()
		return
	}
	d.draining = true

	for len(d.queue) > 0 {
		next := d.queue[0]
		d.queue[0] = pending[K, E]{}
		d.queue = d.queue[1:]
		ls := slices.Clone(d.listeners[next.key])

		d.mu.Unlock()
		for _, l := range ls {
			l.fn(next.event)
		}
		d.mu.Lock()
	}

	d.queue = nil
	d.draining = false
	d.mu.Unlock()
}

// Emit enqueues and drains.
func (d *Dispatcher[K, E]) Emit(key K, event E) {
	d.Enqueue(key, event)
	d.Drain()
}
