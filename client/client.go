// File: client/client.go
// Package client implements a STOMP client session over an
// api.ConnectionProvider.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// The client:
// - Sends CONNECT when the transport opens and becomes CONNECTED on the broker's answer
// - Holds outbound frames until CONNECTED, then writes them in order
// - Negotiates heart-beats and reports a silent broker as FAILED_SERVER_HEARTBEAT
// - Multiplexes any number of listeners per destination over one SUBSCRIBE
// - Re-subscribes every live destination after a reconnect
//
// Locking: Client.mu is taken before the multiplexer, outbox and heart-beat
// locks, never after them.

package client

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/momentics/hioload-stomp/api"
	"github.com/momentics/hioload-stomp/control"
	"github.com/momentics/hioload-stomp/heartbeat"
	"github.com/momentics/hioload-stomp/internal/concurrency"
	"github.com/momentics/hioload-stomp/pathmatcher"
	"github.com/momentics/hioload-stomp/protocol"
	"github.com/momentics/hioload-stomp/subscription"
)

// Client is one logical STOMP session. It is safe for concurrent use.
type Client struct {
	provider api.ConnectionProvider
	log      logrus.FieldLogger
	metrics  *control.Metrics
	legacy   atomic.Bool

	monitor *heartbeat.Monitor
	mux     *subscription.Multiplexer
	out     *outbox

	lifecycle *concurrency.Broadcast[api.LifecycleEvent]
	frames    *concurrency.Broadcast[protocol.Frame]

	mu             sync.Mutex
	state          api.ConnectionState
	session        *session
	connectHeaders []protocol.Header
	handshake      map[string]string
	closed         bool
}

// session ties the provider listeners of one Connect call together.
// Events arriving on a session the client has moved past are ignored.
type session struct {
	lifecycle api.Stream[api.LifecycleEvent]
	messages  api.Stream[string]
}

func (s *session) close() {
	_ = s.lifecycle.Close()
	_ = s.messages.Close()
}

// New creates a disconnected client over provider.
func New(provider api.ConnectionProvider, opts ...Option) *Client {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = logrus.WithField("pkg", "client")
	}
	if o.scheduler == nil {
		o.scheduler = concurrency.SystemScheduler{}
	}
	if o.matcher == nil {
		o.matcher = pathmatcher.Simple{}
	}

	c := &Client{
		provider:  provider,
		log:       o.log,
		metrics:   o.metrics,
		lifecycle: concurrency.NewBroadcast[api.LifecycleEvent](nil),
		frames:    concurrency.NewBroadcast[protocol.Frame](nil),
	}
	c.legacy.Store(o.legacyWhitespace)
	c.out = newOutbox(c.write)
	c.mux = subscription.New(c.out,
		subscription.WithMatcher(o.matcher),
		subscription.WithIDGenerator(o.newID),
		subscription.WithLogger(o.log.WithField("component", "subscription")),
		subscription.WithMetrics(o.metrics),
	)
	c.monitor = heartbeat.New(o.clientHeartbeat, o.serverHeartbeat, o.scheduler, heartbeat.Hooks{
		Ping:   c.ping,
		Failed: c.heartbeatFailed,
	}, o.log.WithField("component", "heartbeat"))
	c.metrics.SetState(int(api.Disconnected))
	return c
}

// Connect starts a session with the given CONNECT headers. It returns
// immediately; progress is reported on Lifecycle. A no-op unless the
// client is DISCONNECTED.
func (c *Client) Connect(headers ...protocol.Header) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	if c.state != api.Disconnected {
		c.log.WithField("state", c.state).Debug("connect ignored")
		return
	}
	c.connectHeaders = append([]protocol.Header(nil), headers...)
	c.startLocked()
}

func (c *Client) startLocked() {
	c.setStateLocked(api.Connecting)
	s := &session{}
	s.lifecycle = c.provider.Lifecycle()
	s.messages = c.provider.Messages()
	c.session = s

	go c.serve(s)
}

// Disconnect ends the session and waits for the transport to close. A
// no-op when already DISCONNECTED.
func (c *Client) Disconnect(ctx context.Context) error {
	c.mu.Lock()
	if c.state == api.Disconnected {
		c.mu.Unlock()
		return nil
	}
	s := c.session
	c.session = nil
	c.setStateLocked(api.Disconnecting)
	c.monitor.Shutdown()
	c.mu.Unlock()

	err := c.provider.Disconnect(ctx)
	if s != nil {
		s.close()
	}

	c.mu.Lock()
	if c.state == api.Disconnecting {
		c.resetLocked()
	}
	c.mu.Unlock()

	if err != nil {
		return errors.Wrap(err, "client: disconnect")
	}
	return nil
}

// Reconnect disconnects and connects again with the last CONNECT headers.
func (c *Client) Reconnect(ctx context.Context) error {
	err := c.Disconnect(ctx)

	c.mu.Lock()
	if !c.closed && c.state == api.Disconnected {
		c.startLocked()
	}
	c.mu.Unlock()
	return err
}

// Close disconnects and releases the client. Pending sends fail with
// ErrClientClosed and every stream handed out is closed, listeners
// included. Streams requested afterwards come back already closed.
func (c *Client) Close(ctx context.Context) error {
	err := c.Disconnect(ctx)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return err
	}
	c.closed = true
	c.mu.Unlock()

	c.out.close()
	c.mux.CloseAll()
	c.lifecycle.Close()
	c.frames.Close()
	return err
}

// Send writes f once the client is CONNECTED. It blocks until the frame is
// written, the write fails, or ctx ends; in the last case the frame is
// dropped if it was still queued.
func (c *Client) Send(ctx context.Context, f protocol.Frame) error {
	result := make(chan error, 1)
	it := &outItem{frame: f, done: func(err error) { result <- err }}
	c.out.push(it)

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		if c.out.cancel(it) {
			return fmt.Errorf("%w: %w", api.ErrSendCancelled, ctx.Err())
		}
		return <-result
	}
}

// SendTo sends payload to destination as a SEND frame.
func (c *Client) SendTo(ctx context.Context, destination, payload string, headers ...protocol.Header) error {
	if destination == "" {
		return api.ErrInvalidDestination
	}
	hs := make([]protocol.Header, 0, 1+len(headers))
	hs = append(hs, protocol.H(protocol.HeaderDestination, destination))
	hs = append(hs, headers...)
	return c.Send(ctx, protocol.NewFrame(protocol.CommandSend, hs, payload))
}

// Subscribe attaches a listener for MESSAGE frames on destination.
func (c *Client) Subscribe(destination string, headers ...protocol.Header) (*subscription.Listener, error) {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return nil, api.ErrClientClosed
	}
	return c.mux.Subscribe(destination, headers...)
}

// Lifecycle attaches a listener for OPENED, CLOSED, ERROR and
// FAILED_SERVER_HEARTBEAT events.
func (c *Client) Lifecycle() api.Stream[api.LifecycleEvent] {
	mb, _ := c.lifecycle.Subscribe()
	return mb
}

// Frames attaches a listener for every inbound frame except heart-beats.
func (c *Client) Frames() api.Stream[protocol.Frame] {
	mb, _ := c.frames.Subscribe()
	return mb
}

// State returns the connection state.
func (c *Client) State() api.ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Client) IsConnected() bool  { return c.State() == api.Connected }
func (c *Client) IsConnecting() bool { return c.State() == api.Connecting }

// HeartbeatConfig returns the negotiated heart-beat state.
func (c *Client) HeartbeatConfig() heartbeat.Config {
	return c.monitor.Config()
}

// SetHeartbeat changes the proposal used by the next CONNECT.
func (c *Client) SetHeartbeat(client, server time.Duration) {
	c.monitor.Propose(client, server)
}

// SetLegacyWhitespace toggles the legacy frame terminator.
func (c *Client) SetLegacyWhitespace(enabled bool) {
	c.legacy.Store(enabled)
}

// SetPathMatcher swaps the destination matcher.
func (c *Client) SetPathMatcher(m pathmatcher.Matcher) {
	c.mux.SetMatcher(m)
}

// Subscriptions returns the destinations with live listeners.
func (c *Client) Subscriptions() []string {
	return c.mux.Destinations()
}

// SubscriptionID returns the broker id of destination's subscription.
func (c *Client) SubscriptionID(destination string) (string, bool) {
	return c.mux.SubscriptionID(destination)
}

// serve handles one session's transport output in order. The provider
// closes the message stream before it reports ERROR or CLOSED, so text
// read before the socket went away is dispatched before either event.
func (c *Client) serve(s *session) {
	events, messages := s.lifecycle.C(), s.messages.C()
	for events != nil || messages != nil {
		select {
		case text, ok := <-messages:
			if !ok {
				messages = nil
				continue
			}
			c.onText(s, text)

		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if ev.Type == api.Error || ev.Type == api.Closed {
				for messages != nil {
					text, ok := <-messages
					if !ok {
						messages = nil
						break
					}
					c.onText(s, text)
				}
			}
			c.onLifecycle(s, ev)
		}
	}
}

func (c *Client) onLifecycle(s *session, ev api.LifecycleEvent) {
	c.mu.Lock()
	if c.session != s {
		c.mu.Unlock()
		return
	}

	switch ev.Type {
	case api.Opened:
		if c.state != api.Connecting {
			c.mu.Unlock()
			return
		}
		c.handshake = ev.HandshakeHeaders
		hs := make([]protocol.Header, 0, 2+len(c.connectHeaders))
		hs = append(hs,
			protocol.H(protocol.HeaderAcceptVersion, protocol.SupportedVersions),
			protocol.H(protocol.HeaderHeartBeat, c.monitor.Proposal()),
		)
		hs = append(hs, c.connectHeaders...)
		c.mu.Unlock()

		c.log.Debug("transport opened, sending CONNECT")
		// CONNECT bypasses the outbox: the gate only opens on its answer.
		if err := c.writeDirect(protocol.NewFrame(protocol.CommandConnect, hs, "")); err != nil {
			c.log.WithError(err).Warn("CONNECT not written")
		}

	case api.Closed:
		c.session = nil
		c.monitor.Shutdown()
		c.resetLocked()
		c.mu.Unlock()
		s.close()
		c.log.Info("connection closed")

	case api.Error:
		c.log.WithError(ev.Err).Warn("transport error")
		c.lifecycle.Publish(ev)
		c.mu.Unlock()

	default:
		c.mu.Unlock()
	}
}

func (c *Client) onText(s *session, text string) {
	f := protocol.Decode(text)

	c.mu.Lock()
	if c.session != s {
		c.mu.Unlock()
		return
	}
	if c.monitor.Received(f) {
		c.mu.Unlock()
		c.metrics.HeartbeatReceived()
		return
	}
	c.metrics.FrameReceived(f.Command().String())

	if f.Command() == protocol.CommandConnected && c.state == api.Connecting {
		beat, _ := f.Header(protocol.HeaderHeartBeat)
		c.monitor.Start(beat)
		c.setStateLocked(api.Connected)
		c.out.openGate()
		c.mux.Resubscribe()
		c.lifecycle.Publish(api.LifecycleEvent{Type: api.Opened, HandshakeHeaders: c.handshake})
		c.log.Info("connected")
	}
	c.mu.Unlock()

	c.mux.Dispatch(f)
	c.frames.Publish(f)
}

// resetLocked returns the client to DISCONNECTED after a session ends.
func (c *Client) resetLocked() {
	c.mux.Reset()
	c.out.closeGate()
	c.handshake = nil
	c.setStateLocked(api.Disconnected)
	c.lifecycle.Publish(api.LifecycleEvent{Type: api.Closed})
}

func (c *Client) setStateLocked(state api.ConnectionState) {
	c.state = state
	c.metrics.SetState(int(state))
}

// write is the outbox writer. Every written frame counts as a heart-beat.
func (c *Client) write(f protocol.Frame) error {
	if err := c.writeDirect(f); err != nil {
		return err
	}
	c.monitor.Sent()
	return nil
}

func (c *Client) writeDirect(f protocol.Frame) error {
	text := protocol.Encode(f, c.legacy.Load())
	if err := c.provider.Send(context.Background(), text); err != nil {
		return errors.Wrapf(err, "client: write %s", f.Command())
	}
	c.metrics.FrameSent(f.Command().String())
	c.log.WithField("command", f.Command()).Debug(">>> frame")
	return nil
}

func (c *Client) ping() {
	if err := c.provider.Send(context.Background(), protocol.Heartbeat); err != nil {
		c.log.WithError(err).Debug("PING not written")
		return
	}
	c.metrics.HeartbeatSent()
}

func (c *Client) heartbeatFailed() {
	c.metrics.HeartbeatFailed()
	c.lifecycle.Publish(api.LifecycleEvent{Type: api.FailedServerHeartbeat})
}
