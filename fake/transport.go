// Package fake
// Author: momentics <momentics@gmail.com>
//
// Fake implementations for testing and development.
// Provides predictable, controllable behavior for the transport and the
// clock so client tests need no network and no sleeps.

package fake

import (
	"context"
	"io"
	"strings"
	"sync"

	"github.com/momentics/hioload-stomp/api"
	"github.com/momentics/hioload-stomp/protocol"
	"github.com/momentics/hioload-stomp/transport"
)

// Provider is an in-memory api.ConnectionProvider. It runs the real
// transport.Base over a socket the test controls.
type Provider struct {
	*transport.Base

	mu          sync.Mutex
	sock        *Socket
	sent        []string
	dials       int
	dialErr     error
	autoConnect bool
	serverBeat  string
	handshake   map[string]string
}

// ProviderOption configures a Provider.
type ProviderOption func(*Provider)

// WithAutoConnected makes the fake broker answer every CONNECT with a
// CONNECTED frame carrying the given heart-beat value.
func WithAutoConnected(heartBeat string) ProviderOption {
	return func(p *Provider) {
		p.autoConnect = true
		p.serverBeat = heartBeat
	}
}

// WithHandshakeHeaders sets the headers reported with OPENED.
func WithHandshakeHeaders(h map[string]string) ProviderOption {
	return func(p *Provider) { p.handshake = h }
}

// NewProvider creates a fake provider.
func NewProvider(opts ...ProviderOption) *Provider {
	p := &Provider{}
	for _, opt := range opts {
		opt(p)
	}
	p.Base = transport.NewBase(p.dial)
	return p
}

func (p *Provider) dial(context.Context) (transport.Socket, map[string]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dials++
	if p.dialErr != nil {
		return nil, nil, p.dialErr
	}
	p.sock = &Socket{p: p, in: make(chan string, 256), closed: make(chan struct{})}
	return p.sock, p.handshake, nil
}

// FailDial makes subsequent dials fail with err. nil restores dialing.
func (p *Provider) FailDial(err error) {
	p.mu.Lock()
	p.dialErr = err
	p.mu.Unlock()
}

// Dials returns how many times the provider was dialed.
func (p *Provider) Dials() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dials
}

// Deliver pushes inbound text onto the current socket.
func (p *Provider) Deliver(text string) error {
	p.mu.Lock()
	s := p.sock
	p.mu.Unlock()
	if s == nil {
		return api.ErrNotConnected
	}
	return s.deliver(text)
}

// DeliverFrame encodes f and delivers it.
func (p *Provider) DeliverFrame(f protocol.Frame) error {
	return p.Deliver(protocol.Encode(f, false))
}

// Drop closes the current socket from the broker side. A nil err is a
// clean close.
func (p *Provider) Drop(err error) {
	p.mu.Lock()
	s := p.sock
	p.mu.Unlock()
	if s != nil {
		s.fail(err)
	}
}

// Sent returns every text written so far, heart-beats included.
func (p *Provider) Sent() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.sent...)
}

// SentFrames decodes everything written except heart-beats.
func (p *Provider) SentFrames() []protocol.Frame {
	var out []protocol.Frame
	for _, text := range p.Sent() {
		if text == protocol.Heartbeat {
			continue
		}
		out = append(out, protocol.Decode(text))
	}
	return out
}

// SentCommands returns the commands of SentFrames, in order.
func (p *Provider) SentCommands() []protocol.Command {
	var out []protocol.Command
	for _, f := range p.SentFrames() {
		out = append(out, f.Command())
	}
	return out
}

// Heartbeats counts the heart-beats written so far.
func (p *Provider) Heartbeats() int {
	n := 0
	for _, text := range p.Sent() {
		if text == protocol.Heartbeat {
			n++
		}
	}
	return n
}

func (p *Provider) record(s *Socket, text string) {
	p.mu.Lock()
	p.sent = append(p.sent, text)
	reply := p.autoConnect && strings.HasPrefix(text, string(protocol.CommandConnect)+"\n")
	beat := p.serverBeat
	p.mu.Unlock()

	if reply {
		var headers []protocol.Header
		if beat != "" {
			headers = append(headers, protocol.H(protocol.HeaderHeartBeat, beat))
		}
		_ = s.deliver(protocol.Encode(protocol.NewFrame(protocol.CommandConnected, headers, ""), false))
	}
}

// Socket is the in-memory side of one fake connection.
type Socket struct {
	p      *Provider
	in     chan string
	once   sync.Once
	closed chan struct{}
	err    error
}

func (s *Socket) ReadText(ctx context.Context) (string, error) {
	select {
	case text := <-s.in:
		return text, nil
	default:
	}
	select {
	case text := <-s.in:
		return text, nil
	case <-s.closed:
		return "", s.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (s *Socket) WriteText(_ context.Context, text string) error {
	select {
	case <-s.closed:
		return api.ErrTransportClosed
	default:
	}
	s.p.record(s, text)
	return nil
}

func (s *Socket) Close() error {
	s.fail(nil)
	return nil
}

func (s *Socket) deliver(text string) error {
	select {
	case <-s.closed:
		return api.ErrTransportClosed
	case s.in <- text:
		return nil
	}
}

func (s *Socket) fail(err error) {
	s.once.Do(func() {
		if err == nil {
			err = io.EOF
		}
		s.err = err
		close(s.closed)
	})
}
