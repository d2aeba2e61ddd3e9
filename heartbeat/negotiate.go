// File: heartbeat/negotiate.go
// Package heartbeat
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Heart-beat negotiation and liveness tracking for one STOMP connection.
//
// The client proposes (cx, cy): it can send every cx and wants to receive
// every cy. The broker answers (sx, sy) on CONNECTED with the same meaning.
// Zero on either side of a direction disables that direction.

package heartbeat

import (
	"fmt"
	"time"

	"github.com/go-stomp/stomp/v3/frame"
)

// Negotiate computes the effective send and check intervals from the
// client's proposal and the broker's heart-beat header value. A missing or
// malformed header disables both.
func Negotiate(clientProposed, serverProposed time.Duration, header string) (send, check time.Duration) {
	if header == "" {
		return 0, 0
	}
	sx, sy, err := frame.ParseHeartBeat(header)
	if err != nil {
		return 0, 0
	}
	if clientProposed > 0 && sy > 0 {
		send = max(clientProposed, sy)
	}
	if serverProposed > 0 && sx > 0 {
		check = max(serverProposed, sx)
	}
	return send, check
}

// Format renders a heart-beat header value in milliseconds.
func Format(send, receive time.Duration) string {
	return fmt.Sprintf("%d,%d", send.Milliseconds(), receive.Milliseconds())
}
