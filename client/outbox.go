// File: client/outbox.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Single-writer FIFO for outbound frames. Nothing leaves the outbox before
// the connect gate opens; after that frames are written in enqueue order.

package client

import (
	"sync"

	"github.com/eapache/queue"

	"github.com/momentics/hioload-stomp/api"
	"github.com/momentics/hioload-stomp/internal/concurrency"
	"github.com/momentics/hioload-stomp/protocol"
)

type outItem struct {
	frame protocol.Frame
	done  func(error)
}

type outbox struct {
	write func(protocol.Frame) error

	mu     sync.Mutex
	items  *queue.Queue
	gate   *concurrency.Latch
	closed bool
	wake   chan struct{}
	stop   chan struct{}
	exited chan struct{}
}

func newOutbox(write func(protocol.Frame) error) *outbox {
	o := &outbox{
		write:  write,
		items:  queue.New(),
		gate:   concurrency.NewLatch(),
		wake:   make(chan struct{}, 1),
		stop:   make(chan struct{}),
		exited: make(chan struct{}),
	}
	go o.run()
	return o
}

// Enqueue appends f. done, if set, receives the write result exactly once.
func (o *outbox) Enqueue(f protocol.Frame, done func(error)) {
	o.push(&outItem{frame: f, done: done})
}

func (o *outbox) push(it *outItem) {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		finish(it, api.ErrClientClosed)
		return
	}
	o.items.Add(it)
	o.mu.Unlock()
	o.signal()
}

// Purge drops queued frames accepted by match and fails them with
// ErrSendCancelled.
func (o *outbox) Purge(match func(protocol.Frame) bool) int {
	dropped := o.remove(func(it *outItem) bool { return match(it.frame) })
	for _, it := range dropped {
		finish(it, api.ErrSendCancelled)
	}
	return len(dropped)
}

// cancel removes one specific item. It reports false if the writer already
// took it.
func (o *outbox) cancel(target *outItem) bool {
	return len(o.remove(func(it *outItem) bool { return it == target })) > 0
}

func (o *outbox) remove(match func(*outItem) bool) []*outItem {
	o.mu.Lock()
	n := o.items.Length()
	var dropped []*outItem
	for i := 0; i < n; i++ {
		it := o.items.Remove().(*outItem)
		if match(it) {
			dropped = append(dropped, it)
			continue
		}
		o.items.Add(it)
	}
	o.mu.Unlock()
	if len(dropped) > 0 {
		o.signal()
	}
	return dropped
}

// openGate releases the writer.
func (o *outbox) openGate() {
	o.mu.Lock()
	gate := o.gate
	o.mu.Unlock()
	gate.Open()
}

// closeGate holds the writer again. A gate that never opened is kept, so
// its waiters are released by the next connection.
func (o *outbox) closeGate() {
	o.mu.Lock()
	if o.gate.IsOpen() {
		o.gate = concurrency.NewLatch()
	}
	o.mu.Unlock()
	o.signal()
}

func (o *outbox) gateOpen() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.gate.IsOpen()
}

// Len returns the number of frames waiting.
func (o *outbox) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.items.Length()
}

// close stops the writer and fails everything still queued.
func (o *outbox) close() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.closed = true
	var rest []*outItem
	for o.items.Length() > 0 {
		rest = append(rest, o.items.Remove().(*outItem))
	}
	o.mu.Unlock()

	close(o.stop)
	<-o.exited
	for _, it := range rest {
		finish(it, api.ErrClientClosed)
	}
}

func (o *outbox) signal() {
	select {
	case o.wake <- struct{}{}:
	default:
	}
}

func (o *outbox) run() {
	defer close(o.exited)
	for {
		o.mu.Lock()
		if o.items.Length() == 0 {
			o.mu.Unlock()
			select {
			case <-o.wake:
				continue
			case <-o.stop:
				return
			}
		}
		head := o.items.Peek().(*outItem)
		gate := o.gate
		o.mu.Unlock()

		select {
		case <-gate.Done():
		case <-o.wake:
			continue
		case <-o.stop:
			return
		}

		o.mu.Lock()
		if o.items.Length() == 0 || o.items.Peek().(*outItem) != head || o.gate != gate {
			o.mu.Unlock()
			continue
		}
		o.items.Remove()
		o.mu.Unlock()

		finish(head, o.write(head.frame))
	}
}

func finish(it *outItem, err error) {
	if it.done != nil {
		it.done(err)
	}
}
