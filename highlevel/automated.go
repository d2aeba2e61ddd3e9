// File: highlevel/automated.go
// Package highlevel provides a callback-style API over the STOMP client.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package highlevel

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/momentics/hioload-stomp/api"
	"github.com/momentics/hioload-stomp/client"
	"github.com/momentics/hioload-stomp/protocol"
)

// Automated drives a client with callbacks instead of streams. Each
// callback stream runs on its own goroutine.
type Automated struct {
	client *client.Client
	log    logrus.FieldLogger

	mu        sync.Mutex
	lifecycle api.Stream[api.LifecycleEvent]
	streams   map[string]api.Stream[protocol.Frame]
	wg        sync.WaitGroup
}

// NewAutomated wraps c.
func NewAutomated(c *client.Client, log logrus.FieldLogger) *Automated {
	if log == nil {
		log = logrus.WithField("pkg", "highlevel")
	}
	return &Automated{
		client:  c,
		log:     log,
		streams: make(map[string]api.Stream[protocol.Frame]),
	}
}

// Client returns the wrapped client.
func (a *Automated) Client() *client.Client {
	return a.client
}

// Connect drops previous callbacks, applies the heart-beat proposal and
// connects. onEvent receives every lifecycle event.
func (a *Automated) Connect(headers []protocol.Header, clientHeartbeat, serverHeartbeat time.Duration, onEvent func(api.LifecycleEvent)) {
	a.UnsubscribeAll()
	a.client.SetHeartbeat(clientHeartbeat, serverHeartbeat)

	if onEvent != nil {
		s := a.client.Lifecycle()
		a.mu.Lock()
		a.lifecycle = s
		a.mu.Unlock()
		a.run(func() {
			for ev := range s.C() {
				onEvent(ev)
			}
		})
	}
	a.client.Connect(headers...)
}

// Subscribe calls onMessage for every MESSAGE on destination. A second
// Subscribe for the same destination replaces the first callback.
func (a *Automated) Subscribe(destination string, onMessage func(protocol.Frame)) error {
	l, err := a.client.Subscribe(destination)
	if err != nil {
		return err
	}

	a.mu.Lock()
	old := a.streams[destination]
	a.streams[destination] = l
	a.mu.Unlock()
	if old != nil {
		_ = old.Close()
	}

	a.run(func() {
		for f := range l.C() {
			onMessage(f)
		}
	})
	return nil
}

// Send publishes data to destination in the background and reports the
// result to onSent, if set.
func (a *Automated) Send(ctx context.Context, destination, data string, onSent func(error)) {
	a.run(func() {
		err := a.client.SendTo(ctx, destination, data)
		if err != nil {
			a.log.WithError(err).WithField("destination", destination).Debug("send failed")
		}
		if onSent != nil {
			onSent(err)
		}
	})
}

// Unsubscribe stops the callback for destination.
func (a *Automated) Unsubscribe(destination string) {
	a.mu.Lock()
	s := a.streams[destination]
	delete(a.streams, destination)
	a.mu.Unlock()
	if s != nil {
		_ = s.Close()
	}
}

// UnsubscribeAll stops every subscription and the lifecycle callback.
func (a *Automated) UnsubscribeAll() {
	a.mu.Lock()
	streams := a.streams
	a.streams = make(map[string]api.Stream[protocol.Frame])
	lc := a.lifecycle
	a.lifecycle = nil
	a.mu.Unlock()

	for _, s := range streams {
		_ = s.Close()
	}
	if lc != nil {
		_ = lc.Close()
	}
}

// Disconnect disconnects the client, then drops every callback.
func (a *Automated) Disconnect(ctx context.Context) error {
	err := a.client.Disconnect(ctx)
	a.UnsubscribeAll()
	return err
}

// Wait blocks until every callback goroutine has returned.
func (a *Automated) Wait() {
	a.wg.Wait()
}

func (a *Automated) run(fn func()) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		fn()
	}()
}
