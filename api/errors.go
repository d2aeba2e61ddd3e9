// Package api
// Author: momentics <momentics@gmail.com>
//
// Common error values used across the library.

package api

import "github.com/pkg/errors"

var (
	ErrNotConnected       = errors.New("transport is not connected")
	ErrTransportClosed    = errors.New("transport is closed")
	ErrClientClosed       = errors.New("client is closed")
	ErrInvalidDestination = errors.New("destination must not be empty")
	ErrSendCancelled      = errors.New("send cancelled before the frame was written")
)
