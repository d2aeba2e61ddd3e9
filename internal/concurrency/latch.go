// File: internal/concurrency/latch.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Latch is a one-shot gate. Every waiter is released together when it opens.

package concurrency

import (
	"context"
	"sync"
)

// Latch opens exactly once and stays open.
type Latch struct {
	once sync.Once
	done chan struct{}
}

// NewLatch returns a closed (not yet opened) latch.
func NewLatch() *Latch {
	return &Latch{done: make(chan struct{})}
}

// Open releases all current and future waiters. Idempotent.
func (l *Latch) Open() {
	l.once.Do(func() {
		close(l.done)
	})
}

// Done returns a channel closed when the latch opens.
func (l *Latch) Done() <-chan struct{} {
	return l.done
}

// IsOpen reports whether Open has been called.
func (l *Latch) IsOpen() bool {
	select {
	case <-l.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the latch opens or ctx ends.
func (l *Latch) Wait(ctx context.Context) error {
	select {
	case <-l.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
