// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package tcp provides a provider speaking raw STOMP over a TCP stream.
// Inbound bytes are split into frames with the go-stomp frame reader.
package tcp
