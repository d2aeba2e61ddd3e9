// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package pathmatcher_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-stomp/pathmatcher"
	"github.com/momentics/hioload-stomp/protocol"
)

func message(headers ...protocol.Header) protocol.Frame {
	return protocol.NewFrame(protocol.CommandMessage, headers, "body")
}

func TestSimple(t *testing.T) {
	m := pathmatcher.Simple{}
	topic := pathmatcher.Topic{Destination: "/topic/a"}

	assert.True(t, m.Matches(topic, message(protocol.H("destination", "/topic/a"))))
	assert.False(t, m.Matches(topic, message(protocol.H("destination", "/topic/ab"))))
	assert.False(t, m.Matches(topic, message()))
}

func TestRabbit(t *testing.T) {
	m := pathmatcher.NewRabbit()
	cases := []struct {
		pattern, dest string
		want          bool
	}{
		{"lorem.*.sit", "lorem.ipsum.sit", true},
		{"lorem.*.sit", "lorem.ipsum.amet.sit", false},
		{"lorem.*.sit", "lorem..sit", false},
		{"lorem.#", "lorem.ipsum.dolor", true},
		{"lorem.#.sit", "lorem.ipsum.amet.sit", true},
		{"lorem.#.sit", "lorem.sit", false},
		{"lorem.#", "lorem", false},
		{"lo*", "lo*", true},
		{"lo*", "lorem", false},
		{"a.b", "a.b", true},
		{"a.b", "axb", false},
		{"a+b.c", "a+b.c", true},
		{"a+b.c", "aab.c", false},
		{"/topic/x", "/topic/x", true},
	}
	for _, tc := range cases {
		t.Run(tc.pattern+"~"+tc.dest, func(t *testing.T) {
			topic := pathmatcher.Topic{Destination: tc.pattern}
			frame := message(protocol.H("destination", tc.dest))
			assert.Equal(t, tc.want, m.Matches(topic, frame))
			// second call is served from the cache
			assert.Equal(t, tc.want, m.Matches(topic, frame))
		})
	}

	assert.False(t, m.Matches(pathmatcher.Topic{Destination: "#"}, message()))
}

func TestRabbitExpr(t *testing.T) {
	assert.Equal(t, `^lorem\.ipsum\.[^.]+\.sit$`, pathmatcher.RabbitExpr("lorem.ipsum.*.sit"))
	assert.Equal(t, `^a\..*$`, pathmatcher.RabbitExpr("a.#"))
}

func TestSubscription(t *testing.T) {
	m := pathmatcher.Subscription{}
	topic := pathmatcher.Topic{Destination: "/topic/a", ID: "sub-1"}

	assert.True(t, m.Matches(topic, message(protocol.H("subscription", "sub-1"))))
	assert.False(t, m.Matches(topic, message(protocol.H("subscription", "sub-2"))))
	assert.False(t, m.Matches(topic, message(protocol.H("destination", "/topic/a"))))
	assert.False(t, m.Matches(pathmatcher.Topic{Destination: "/topic/a"}, message(protocol.H("subscription", ""))))
}

func TestByName(t *testing.T) {
	for _, name := range []string{"", "simple", "rabbit", "subscription"} {
		m, err := pathmatcher.ByName(name)
		require.NoError(t, err, name)
		assert.NotNil(t, m)
	}
	_, err := pathmatcher.ByName("glob")
	assert.Error(t, err)
}
