// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package subscription

import (
	"github.com/momentics/hioload-stomp/api"
	"github.com/momentics/hioload-stomp/internal/concurrency"
	"github.com/momentics/hioload-stomp/protocol"
)

var _ api.Stream[protocol.Frame] = (*Listener)(nil)

// Listener receives the MESSAGE frames of one destination. Frames are
// buffered without bound, so a slow listener never stalls dispatch.
type Listener struct {
	m  *Multiplexer
	e  *entry
	mb *concurrency.Mailbox[protocol.Frame]
}

// C yields matching frames. It is closed after Close once the frames
// already delivered to this listener have been drained.
func (l *Listener) C() <-chan protocol.Frame {
	return l.mb.C()
}

// Close detaches the listener. The last listener of a destination
// unsubscribes it. Idempotent.
func (l *Listener) Close() error {
	l.m.detach(l)
	return l.mb.Close()
}

// Destination returns the subscribed destination.
func (l *Listener) Destination() string {
	return l.e.destination
}

// ID returns the broker subscription id.
func (l *Listener) ID() string {
	return l.e.id
}
