// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

package tcp

import (
	"bytes"
	"context"
	"net"
	"strings"
	"sync"

	"github.com/go-stomp/stomp/v3/frame"
	"github.com/pkg/errors"

	"github.com/momentics/hioload-stomp/protocol"
	"github.com/momentics/hioload-stomp/transport"
)

// New returns a provider connecting to addr ("host:port", optionally
// prefixed with tcp://).
func New(addr string, opts ...transport.Option) *transport.Base {
	addr = strings.TrimPrefix(addr, "tcp://")
	dial := func(ctx context.Context) (transport.Socket, map[string]string, error) {
		var d net.Dialer
		conn, err := d.DialContext(ctx, "tcp", addr)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "tcp: dial %s", addr)
		}
		return newSocket(conn), nil, nil
	}
	return transport.NewBase(dial, opts...)
}

type socket struct {
	conn   net.Conn
	reader *frame.Reader

	mu  sync.Mutex
	buf bytes.Buffer
	enc *frame.Writer
}

func newSocket(conn net.Conn) *socket {
	s := &socket{conn: conn, reader: frame.NewReader(conn)}
	s.enc = frame.NewWriter(&s.buf)
	return s
}

// ReadText returns the next frame re-encoded as text. A heart-beat comes
// back as a lone newline.
func (s *socket) ReadText(context.Context) (string, error) {
	f, err := s.reader.Read()
	if err != nil {
		return "", err
	}
	if f == nil {
		return protocol.Heartbeat, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.buf.Reset()
	if err := s.enc.Write(f); err != nil {
		return "", errors.Wrap(err, "tcp: re-encode frame")
	}
	return s.buf.String(), nil
}

func (s *socket) WriteText(ctx context.Context, text string) error {
	deadline, _ := ctx.Deadline()
	if err := s.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	_, err := s.conn.Write([]byte(text))
	return err
}

func (s *socket) Close() error {
	return s.conn.Close()
}
