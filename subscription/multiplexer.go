// File: subscription/multiplexer.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package subscription

import (
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/momentics/hioload-stomp/api"
	"github.com/momentics/hioload-stomp/control"
	"github.com/momentics/hioload-stomp/internal/concurrency"
	"github.com/momentics/hioload-stomp/pathmatcher"
	"github.com/momentics/hioload-stomp/protocol"
)

// Sender queues outbound control frames. Purge drops queued, unwritten
// frames for which match returns true, failing their completions, and
// returns how many were dropped.
type Sender interface {
	Enqueue(f protocol.Frame, done func(error))
	Purge(match func(protocol.Frame) bool) int
}

// Option configures a Multiplexer.
type Option func(*Multiplexer)

// WithMatcher sets the destination matcher. Default: pathmatcher.Simple.
func WithMatcher(m pathmatcher.Matcher) Option {
	return func(x *Multiplexer) {
		if m != nil {
			x.matcher = m
		}
	}
}

// WithIDGenerator sets the subscription id source. Default: random UUIDs.
func WithIDGenerator(gen func() string) Option {
	return func(x *Multiplexer) {
		if gen != nil {
			x.newID = gen
		}
	}
}

// WithLogger sets the logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(x *Multiplexer) {
		if log != nil {
			x.log = log
		}
	}
}

// WithMetrics reports the live destination count.
func WithMetrics(m *control.Metrics) Option {
	return func(x *Multiplexer) { x.metrics = m }
}

// Multiplexer owns the subscription table. Subscribe, detach and dispatch
// are serialized by one mutex.
type Multiplexer struct {
	sender  Sender
	newID   func() string
	log     logrus.FieldLogger
	metrics *control.Metrics

	mu      sync.Mutex
	matcher pathmatcher.Matcher
	entries map[string]*entry
	closed  bool
}

type entry struct {
	destination string
	id          string
	headers     []protocol.Header
	listeners   map[*Listener]struct{}

	// active is true while a SUBSCRIBE for this entry is queued or
	// acknowledged on the current connection.
	active bool
}

// New creates an empty multiplexer writing control frames to sender.
func New(sender Sender, opts ...Option) *Multiplexer {
	m := &Multiplexer{
		sender:  sender,
		newID:   uuid.NewString,
		log:     logrus.WithField("pkg", "subscription"),
		matcher: pathmatcher.Simple{},
		entries: make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SetMatcher swaps the destination matcher.
func (m *Multiplexer) SetMatcher(matcher pathmatcher.Matcher) {
	if matcher == nil {
		return
	}
	m.mu.Lock()
	m.matcher = matcher
	m.mu.Unlock()
}

// Subscribe attaches a listener to destination. The first listener of a
// destination queues a SUBSCRIBE carrying a fresh id, the destination,
// ack:auto and then headers. Later listeners share it.
func (m *Multiplexer) Subscribe(destination string, headers ...protocol.Header) (*Listener, error) {
	if destination == "" {
		return nil, api.ErrInvalidDestination
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, api.ErrClientClosed
	}

	e, ok := m.entries[destination]
	if ok {
		m.log.WithField("destination", destination).Debug("already subscribed, sharing subscription")
	} else {
		e = &entry{
			destination: destination,
			id:          m.newID(),
			headers:     append([]protocol.Header(nil), headers...),
			listeners:   make(map[*Listener]struct{}),
		}
		m.entries[destination] = e
		m.subscribeLocked(e)
		m.metrics.SetSubscriptions(len(m.entries))
	}

	l := &Listener{m: m, e: e, mb: concurrency.NewMailbox[protocol.Frame](nil)}
	e.listeners[l] = struct{}{}
	return l, nil
}

// Dispatch delivers a MESSAGE frame to the listeners of every entry the
// matcher accepts. Other commands are ignored. It returns the number of
// listeners reached.
func (m *Multiplexer) Dispatch(f protocol.Frame) int {
	if f.Command() != protocol.CommandMessage {
		return 0
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, e := range m.entries {
		if !m.matcher.Matches(pathmatcher.Topic{Destination: e.destination, ID: e.id}, f) {
			continue
		}
		for l := range e.listeners {
			if l.mb.Push(f) {
				n++
			}
		}
	}
	return n
}

// Reset marks every entry as not subscribed on the broker and drops queued
// SUBSCRIBE and UNSUBSCRIBE frames. Listeners stay attached.
func (m *Multiplexer) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, e := range m.entries {
		e.active = false
	}
	dropped := m.sender.Purge(isControlFrame)
	if dropped > 0 {
		m.log.WithField("dropped", dropped).Debug("discarded queued subscription frames")
	}
}

// Resubscribe queues a SUBSCRIBE, with its original id, for every entry
// that Reset marked.
func (m *Multiplexer) Resubscribe() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, e := range m.entries {
		if e.active {
			continue
		}
		m.subscribeLocked(e)
		n++
	}
	if n > 0 {
		m.log.WithField("count", n).Debug("resubscribed")
	}
	return n
}

// CloseAll drops every entry and closes its listeners without queuing
// UNSUBSCRIBE. Later Subscribe calls fail with ErrClientClosed.
func (m *Multiplexer) CloseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	for dest, e := range m.entries {
		for l := range e.listeners {
			delete(e.listeners, l)
			_ = l.mb.Close()
		}
		delete(m.entries, dest)
	}
	m.metrics.SetSubscriptions(0)
}

// SubscriptionID returns the id recorded for destination.
func (m *Multiplexer) SubscriptionID(destination string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[destination]
	if !ok {
		return "", false
	}
	return e.id, true
}

// Destinations returns the subscribed destinations, sorted.
func (m *Multiplexer) Destinations() []string {
	m.mu.Lock()
	out := make([]string, 0, len(m.entries))
	for d := range m.entries {
		out = append(out, d)
	}
	m.mu.Unlock()
	sort.Strings(out)
	return out
}

// Len returns the number of subscribed destinations.
func (m *Multiplexer) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *Multiplexer) subscribeLocked(e *entry) {
	hs := make([]protocol.Header, 0, 3+len(e.headers))
	hs = append(hs,
		protocol.H(protocol.HeaderID, e.id),
		protocol.H(protocol.HeaderDestination, e.destination),
		protocol.H(protocol.HeaderAck, protocol.DefaultAck),
	)
	hs = append(hs, e.headers...)

	log := m.log.WithFields(logrus.Fields{"destination": e.destination, "id": e.id})
	m.sender.Enqueue(protocol.NewFrame(protocol.CommandSubscribe, hs, ""), func(err error) {
		if err != nil {
			log.WithError(err).Debug("SUBSCRIBE not written")
		}
	})
	e.active = true
	log.Debug("subscribe queued")
}

func (m *Multiplexer) detach(l *Listener) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	e := l.e
	if _, ok := e.listeners[l]; !ok {
		return false
	}
	delete(e.listeners, l)
	if len(e.listeners) > 0 {
		return true
	}

	if m.entries[e.destination] == e {
		delete(m.entries, e.destination)
	}
	m.metrics.SetSubscriptions(len(m.entries))

	log := m.log.WithFields(logrus.Fields{"destination": e.destination, "id": e.id})
	if !e.active {
		log.Debug("not connected, skip sending UNSUBSCRIBE")
		return true
	}
	pending := m.sender.Purge(func(f protocol.Frame) bool {
		if f.Command() != protocol.CommandSubscribe {
			return false
		}
		id, _ := f.Header(protocol.HeaderID)
		return id == e.id
	})
	if pending > 0 {
		log.Debug("SUBSCRIBE never left the outbox, nothing to undo")
		return true
	}

	unsub := protocol.NewFrame(protocol.CommandUnsubscribe, []protocol.Header{protocol.H(protocol.HeaderID, e.id)}, "")
	m.sender.Enqueue(unsub, func(err error) {
		if err != nil {
			log.WithError(err).Debug("UNSUBSCRIBE not written")
		}
	})
	return true
}

func isControlFrame(f protocol.Frame) bool {
	switch f.Command() {
	case protocol.CommandSubscribe, protocol.CommandUnsubscribe:
		return true
	}
	return false
}
