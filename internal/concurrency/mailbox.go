// File: internal/concurrency/mailbox.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Mailbox decouples a producer from a consumer with an unbounded FIFO, so a
// publisher never blocks on a slow listener.

package concurrency

import (
	"sync"

	"github.com/eapache/queue"

	"github.com/momentics/hioload-stomp/api"
)

var _ api.Stream[int] = (*Mailbox[int])(nil)

// Mailbox is an unbounded single-consumer stream.
// After Close, pending values are still delivered, then C is closed.
type Mailbox[T any] struct {
	mu      sync.Mutex
	pending *queue.Queue
	wake    chan struct{}
	out     chan T
	closed  bool
	onClose func()
}

// NewMailbox starts a mailbox. onClose, if set, runs once on the first Close.
func NewMailbox[T any](onClose func()) *Mailbox[T] {
	m := &Mailbox[T]{
		pending: queue.New(),
		wake:    make(chan struct{}, 1),
		out:     make(chan T),
		onClose: onClose,
	}
	go m.run()
	return m
}

// Push enqueues v. Returns false if the mailbox is closed.
func (m *Mailbox[T]) Push(v T) bool {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return false
	}
	m.pending.Add(v)
	m.mu.Unlock()
	m.signal()
	return true
}

// C returns the delivery channel.
func (m *Mailbox[T]) C() <-chan T {
	return m.out
}

// Len returns the number of values not yet handed to the consumer.
func (m *Mailbox[T]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pending.Length()
}

// Close stops accepting values. Idempotent.
func (m *Mailbox[T]) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	fn := m.onClose
	m.mu.Unlock()

	m.signal()
	if fn != nil {
		fn()
	}
	return nil
}

func (m *Mailbox[T]) signal() {
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

func (m *Mailbox[T]) run() {
	defer close(m.out)
	for {
		m.mu.Lock()
		for m.pending.Length() == 0 {
			if m.closed {
				m.mu.Unlock()
				return
			}
			m.mu.Unlock()
			<-m.wake
			m.mu.Lock()
		}
		v := m.pending.Remove().(T)
		m.mu.Unlock()

		m.out <- v
	}
}
