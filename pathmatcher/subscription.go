// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package pathmatcher

import "github.com/momentics/hioload-stomp/protocol"

// Subscription matches on the subscription header instead of the
// destination, for brokers that do not echo the destination on MESSAGE.
type Subscription struct{}

func (Subscription) Matches(topic Topic, frame protocol.Frame) bool {
	if topic.ID == "" {
		return false
	}
	sub, ok := frame.Header(protocol.HeaderSubscription)
	return ok && sub == topic.ID
}
