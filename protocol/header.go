// Package protocol
// Author: momentics <momentics@gmail.com>
//
// STOMP header names and well-known values.

package protocol

const (
	HeaderAcceptVersion = "accept-version"
	HeaderHeartBeat     = "heart-beat"
	HeaderDestination   = "destination"
	HeaderContentType   = "content-type"
	HeaderMessageID     = "message-id"
	HeaderID            = "id"
	HeaderAck           = "ack"
	HeaderSubscription  = "subscription"
)

const (
	// SupportedVersions is sent in accept-version on CONNECT.
	SupportedVersions = "1.1,1.2"

	// DefaultAck is the only ack mode the client uses.
	DefaultAck = "auto"
)

// Header is a single key/value pair. Keys may repeat within a frame.
type Header struct {
	Key   string
	Value string
}

// H is shorthand for building a Header.
func H(key, value string) Header {
	return Header{Key: key, Value: value}
}
