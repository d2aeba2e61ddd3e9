// File: pathmatcher/rabbit.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// RabbitMQ topic-style wildcards: "*" is exactly one dot-separated segment,
// "#" is any run of characters. A "#" between two dots still requires both
// dots, so "a.#.b" does not match "a.b".

package pathmatcher

import (
	"regexp"
	"strings"
	"sync"

	"github.com/momentics/hioload-stomp/protocol"
)

// Rabbit is a wildcard matcher. Compiled patterns are cached per destination.
type Rabbit struct {
	mu    sync.RWMutex
	cache map[string]*regexp.Regexp
}

// NewRabbit returns a ready Rabbit matcher.
func NewRabbit() *Rabbit {
	return &Rabbit{cache: make(map[string]*regexp.Regexp)}
}

func (r *Rabbit) Matches(topic Topic, frame protocol.Frame) bool {
	dest, ok := frame.Header(protocol.HeaderDestination)
	if !ok {
		return false
	}
	return r.compile(topic.Destination).MatchString(dest)
}

func (r *Rabbit) compile(pattern string) *regexp.Regexp {
	r.mu.RLock()
	re, ok := r.cache[pattern]
	r.mu.RUnlock()
	if ok {
		return re
	}

	re = regexp.MustCompile(RabbitExpr(pattern))

	r.mu.Lock()
	if r.cache == nil {
		r.cache = make(map[string]*regexp.Regexp)
	}
	r.cache[pattern] = re
	r.mu.Unlock()
	return re
}

// RabbitExpr translates a wildcard pattern into an anchored regular
// expression. "lorem.*.sit" becomes `^lorem\.[^.]+\.sit$`.
func RabbitExpr(pattern string) string {
	segments := strings.Split(pattern, ".")
	out := make([]string, len(segments))
	for i, s := range segments {
		switch s {
		case "*":
			out[i] = "[^.]+"
		case "#":
			out[i] = ".*"
		default:
			out[i] = regexp.QuoteMeta(s)
		}
	}
	return "^" + strings.Join(out, `\.`) + "$"
}
