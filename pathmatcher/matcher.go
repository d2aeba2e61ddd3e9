// File: pathmatcher/matcher.go
// Package pathmatcher
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Destination matching strategies used to route inbound MESSAGE frames to
// subscriptions. A matcher never fails: a frame lacking the header it looks
// at simply does not match.

package pathmatcher

import (
	"github.com/pkg/errors"

	"github.com/momentics/hioload-stomp/protocol"
)

// Topic identifies one subscription as seen by a matcher.
type Topic struct {
	Destination string
	ID          string
}

// Matcher decides whether frame belongs to topic.
type Matcher interface {
	Matches(topic Topic, frame protocol.Frame) bool
}

// Names accepted by ByName.
const (
	NameSimple       = "simple"
	NameRabbit       = "rabbit"
	NameSubscription = "subscription"
)

// ByName returns the matcher registered under name.
func ByName(name string) (Matcher, error) {
	switch name {
	case "", NameSimple:
		return Simple{}, nil
	case NameRabbit:
		return NewRabbit(), nil
	case NameSubscription:
		return Subscription{}, nil
	default:
		return nil, errors.Errorf("pathmatcher: unknown matcher %q", name)
	}
}
