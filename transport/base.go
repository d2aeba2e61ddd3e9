// File: transport/base.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package transport

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/momentics/hioload-stomp/api"
	"github.com/momentics/hioload-stomp/internal/concurrency"
)

// Socket is one established text connection.
type Socket interface {
	// ReadText blocks for the next inbound text message. io.EOF means the
	// peer closed cleanly.
	ReadText(ctx context.Context) (string, error)
	WriteText(ctx context.Context, text string) error
	Close() error
}

// Dialer opens a socket and returns the handshake response headers, if any.
type Dialer func(ctx context.Context) (Socket, map[string]string, error)

// Option configures a Base.
type Option func(*Base)

// WithLogger sets the logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(b *Base) {
		if log != nil {
			b.log = log
		}
	}
}

// WithDialTimeout bounds each dial attempt. Zero means no bound.
func WithDialTimeout(d time.Duration) Option {
	return func(b *Base) { b.dialTimeout = d }
}

var _ api.ConnectionProvider = (*Base)(nil)

// Base is a lazy, restartable provider. The first Messages listener dials,
// the last one leaving closes the socket, and a later listener dials again.
type Base struct {
	dial        Dialer
	dialTimeout time.Duration
	log         logrus.FieldLogger

	messages  *concurrency.Broadcast[string]
	lifecycle *concurrency.Broadcast[api.LifecycleEvent]

	mu   sync.Mutex
	conn *connection
}

type connection struct {
	cancel  context.CancelFunc
	done    chan struct{}
	writeMu sync.Mutex

	// guarded by Base.mu
	sock    Socket
	closing bool
}

// NewBase creates a provider around dial.
func NewBase(dial Dialer, opts ...Option) *Base {
	b := &Base{
		dial:      dial,
		log:       logrus.WithField("pkg", "transport"),
		lifecycle: concurrency.NewBroadcast[api.LifecycleEvent](nil),
	}
	b.messages = concurrency.NewBroadcast[string](b.release)
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Messages attaches an inbound text listener, dialing if none was attached.
func (b *Base) Messages() api.Stream[string] {
	mb, first := b.messages.Subscribe()
	if first {
		b.open()
	}
	return mb
}

// Lifecycle attaches a lifecycle listener.
func (b *Base) Lifecycle() api.Stream[api.LifecycleEvent] {
	mb, _ := b.lifecycle.Subscribe()
	return mb
}

// Send writes text on the open socket. Writes are serialized.
func (b *Base) Send(ctx context.Context, text string) error {
	b.mu.Lock()
	c := b.conn
	var sock Socket
	if c != nil && !c.closing {
		sock = c.sock
	}
	b.mu.Unlock()

	if sock == nil {
		return api.ErrNotConnected
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := sock.WriteText(ctx, text); err != nil {
		return errors.Wrap(err, "transport: write")
	}
	return nil
}

// Disconnect closes the current socket, if any, and waits for its reader
// to finish. Idempotent.
func (b *Base) Disconnect(ctx context.Context) error {
	c := b.shutdown()
	if c == nil {
		return nil
	}
	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "transport: disconnect")
	}
}

// IsOpen reports whether a socket is currently established.
func (b *Base) IsOpen() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conn != nil && b.conn.sock != nil && !b.conn.closing
}

func (b *Base) open() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.conn != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &connection{cancel: cancel, done: make(chan struct{})}
	b.conn = c
	go b.run(ctx, c)
}

// release runs when the last Messages listener detaches.
func (b *Base) release() {
	if b.messages.Len() > 0 {
		return
	}
	b.shutdown()
}

func (b *Base) shutdown() *connection {
	b.mu.Lock()
	c := b.conn
	if c == nil {
		b.mu.Unlock()
		return nil
	}
	b.conn = nil
	c.closing = true
	sock := c.sock
	b.mu.Unlock()

	c.cancel()
	if sock != nil {
		if err := sock.Close(); err != nil {
			b.log.WithError(err).Debug("socket close")
		}
	}
	return c
}

func (b *Base) run(ctx context.Context, c *connection) {
	defer close(c.done)
	defer c.cancel()

	dialCtx := ctx
	if b.dialTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, b.dialTimeout)
		defer cancel()
	}
	sock, handshake, err := b.dial(dialCtx)
	if err != nil {
		b.mu.Lock()
		closing := c.closing
		b.detachLocked(c)
		b.mu.Unlock()
		if closing {
			return
		}
		b.log.WithError(err).Warn("dial failed")
		b.finish(errors.Wrap(err, "transport: dial"))
		return
	}

	b.mu.Lock()
	if c.closing {
		b.mu.Unlock()
		_ = sock.Close()
		return
	}
	c.sock = sock
	b.mu.Unlock()

	b.log.Debug("socket opened")
	b.lifecycle.Publish(api.LifecycleEvent{Type: api.Opened, HandshakeHeaders: handshake})

	for {
		text, err := sock.ReadText(ctx)
		if err != nil {
			b.mu.Lock()
			closing := c.closing
			b.detachLocked(c)
			b.mu.Unlock()
			_ = sock.Close()

			if closing || errors.Is(err, io.EOF) {
				b.log.Debug("socket closed")
				b.finish(nil)
			} else {
				b.log.WithError(err).Warn("socket failed")
				b.finish(errors.Wrap(err, "transport: read"))
			}
			return
		}
		b.messages.Publish(text)
	}
}

func (b *Base) detachLocked(c *connection) {
	if b.conn == c {
		b.conn = nil
	}
}

// finish ends the current message streams and reports the terminal
// condition: ERROR first when err is set, then CLOSED.
func (b *Base) finish(err error) {
	b.messages.CloseAll()
	if err != nil {
		b.lifecycle.Publish(api.LifecycleEvent{Type: api.Error, Err: err})
	}
	b.lifecycle.Publish(api.LifecycleEvent{Type: api.Closed})
}
