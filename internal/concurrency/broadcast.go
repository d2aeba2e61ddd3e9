// File: internal/concurrency/broadcast.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Broadcast is an explicit fan-out registry: listeners are mailboxes kept in
// a map under one mutex, and Publish pushes to each of them in turn.

package concurrency

import "sync"

// Broadcast fans values out to every attached listener.
type Broadcast[T any] struct {
	mu      sync.Mutex
	subs    map[*Mailbox[T]]struct{}
	onEmpty func()
	sealed  bool
}

// NewBroadcast creates an empty registry. onEmpty, if set, runs each time
// the last listener detaches.
func NewBroadcast[T any](onEmpty func()) *Broadcast[T] {
	return &Broadcast[T]{
		subs:    make(map[*Mailbox[T]]struct{}),
		onEmpty: onEmpty,
	}
}

// Subscribe attaches a new listener and reports whether it is the only one.
// After Close the listener comes back already closed.
func (b *Broadcast[T]) Subscribe() (*Mailbox[T], bool) {
	var mb *Mailbox[T]
	mb = NewMailbox[T](func() { b.remove(mb) })

	b.mu.Lock()
	if b.sealed {
		b.mu.Unlock()
		_ = mb.Close()
		return mb, false
	}
	b.subs[mb] = struct{}{}
	first := len(b.subs) == 1
	b.mu.Unlock()
	return mb, first
}

// Publish delivers v to all current listeners and returns how many got it.
func (b *Broadcast[T]) Publish(v T) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for mb := range b.subs {
		if mb.Push(v) {
			n++
		}
	}
	return n
}

// Len returns the number of attached listeners.
func (b *Broadcast[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// CloseAll detaches every listener.
func (b *Broadcast[T]) CloseAll() {
	b.mu.Lock()
	subs := make([]*Mailbox[T], 0, len(b.subs))
	for mb := range b.subs {
		subs = append(subs, mb)
	}
	b.mu.Unlock()

	for _, mb := range subs {
		_ = mb.Close()
	}
}

// Close detaches every listener and refuses new ones for good.
func (b *Broadcast[T]) Close() {
	b.mu.Lock()
	b.sealed = true
	b.mu.Unlock()
	b.CloseAll()
}

func (b *Broadcast[T]) remove(mb *Mailbox[T]) {
	b.mu.Lock()
	_, ok := b.subs[mb]
	delete(b.subs, mb)
	empty := ok && len(b.subs) == 0
	b.mu.Unlock()

	if empty && b.onEmpty != nil {
		b.onEmpty()
	}
}
