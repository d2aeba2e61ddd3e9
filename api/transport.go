// File: api/transport.go
// Author: momentics <momentics@gmail.com>
//
// Defines the transport contract a STOMP client runs over. A provider owns
// one text socket at a time (usually a WebSocket) and exposes it as shared
// streams so the protocol engine never touches socket details.

package api

import "context"

// Stream is a detachable listener handle on a shared sequence of values.
// Values are delivered in publish order on C. Close detaches the listener;
// values already queued are still delivered, after which C is closed.
type Stream[T any] interface {
	C() <-chan T
	Close() error
}

// ConnectionProvider abstracts the byte/text-stream transport under a client.
type ConnectionProvider interface {
	// Messages attaches a listener to inbound raw text. Attaching the first
	// listener opens the underlying socket; detaching the last one closes it.
	// The sequence is restartable: a later Messages call opens a new socket.
	Messages() Stream[string]

	// Send writes one text message. Fails with ErrNotConnected when no
	// socket is open.
	Send(ctx context.Context, text string) error

	// Lifecycle attaches a listener to OPENED, CLOSED and ERROR events.
	// Exactly one OPENED is emitted per established socket; CLOSED follows
	// every terminal condition, including after ERROR. Message listeners
	// are closed before ERROR or CLOSED is emitted.
	Lifecycle() Stream[LifecycleEvent]

	// Disconnect closes the socket if open. Idempotent.
	Disconnect(ctx context.Context) error
}
