// File: api/events.go
// Package api defines lifecycle event types for hioload-stomp.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

import "fmt"

// LifecycleType enumerates connection lifecycle signals.
type LifecycleType int

const (
	Opened LifecycleType = iota
	Closed
	Error
	FailedServerHeartbeat
)

func (t LifecycleType) String() string {
	switch t {
	case Opened:
		return "OPENED"
	case Closed:
		return "CLOSED"
	case Error:
		return "ERROR"
	case FailedServerHeartbeat:
		return "FAILED_SERVER_HEARTBEAT"
	default:
		return fmt.Sprintf("LifecycleType(%d)", int(t))
	}
}

// LifecycleEvent is emitted by transports (OPENED, CLOSED, ERROR) and by the
// heartbeat monitor (FAILED_SERVER_HEARTBEAT), then re-published by the client.
type LifecycleEvent struct {
	Type LifecycleType
	Err  error

	// HandshakeHeaders holds the transport handshake response headers,
	// set on OPENED when the transport has any.
	HandshakeHeaders map[string]string
}

func (e LifecycleEvent) String() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Type, e.Err)
	}
	return e.Type.String()
}
