// Package protocol
// Author: momentics <momentics@gmail.com>
//
// STOMP frame model. A Frame is a value: it is never mutated after it is
// built, and accessors hand out copies.

package protocol

import (
	"fmt"
	"strings"
)

// Heartbeat is the wire text of the heartbeat pseudo-frame.
const Heartbeat = "\n"

// Frame is one STOMP protocol unit.
type Frame struct {
	command   Command
	headers   []Header
	payload   string
	heartbeat bool
}

// NewFrame builds a frame. An empty payload means "no payload".
func NewFrame(cmd Command, headers []Header, payload string) Frame {
	f := Frame{command: cmd, payload: payload}
	if len(headers) > 0 {
		f.headers = make([]Header, len(headers))
		copy(f.headers, headers)
	}
	return f
}

// Command returns the frame command.
func (f Frame) Command() Command {
	return f.command
}

// Headers returns a copy of the headers in wire order.
func (f Frame) Headers() []Header {
	if len(f.headers) == 0 {
		return nil
	}
	out := make([]Header, len(f.headers))
	copy(out, f.headers)
	return out
}

// Header returns the value of the first header named key.
func (f Frame) Header(key string) (string, bool) {
	for _, h := range f.headers {
		if h.Key == key {
			return h.Value, true
		}
	}
	return "", false
}

// Payload returns the frame body, or "" when absent.
func (f Frame) Payload() string {
	return f.payload
}

// IsHeartbeat reports whether f was decoded from blank input, which is how
// a heartbeat ping or pong arrives.
func (f Frame) IsHeartbeat() bool {
	return f.heartbeat
}

func (f Frame) String() string {
	var b strings.Builder
	b.WriteString(string(f.command))
	b.WriteString("{")
	for i, h := range f.headers {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(h.Key)
		b.WriteString("=")
		b.WriteString(h.Value)
	}
	b.WriteString("}")
	if f.payload != "" {
		fmt.Fprintf(&b, " payload=%q", f.payload)
	}
	return b.String()
}
