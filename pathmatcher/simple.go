// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package pathmatcher

import "github.com/momentics/hioload-stomp/protocol"

// Simple matches when the destination header equals the topic destination.
type Simple struct{}

func (Simple) Matches(topic Topic, frame protocol.Frame) bool {
	dest, ok := frame.Header(protocol.HeaderDestination)
	return ok && dest == topic.Destination
}
