// File: transport/gorillaws/gorillaws.go
// Package gorillaws provides a STOMP-over-WebSocket provider built on
// gorilla/websocket.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package gorillaws

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/momentics/hioload-stomp/transport"
)

// Subprotocols offered during the upgrade.
var Subprotocols = []string{"v10.stomp", "v11.stomp", "v12.stomp"}

const closeGrace = time.Second

// New returns a provider dialing url with the given upgrade request headers.
func New(url string, header http.Header, opts ...transport.Option) *transport.Base {
	dialer := *websocket.DefaultDialer
	dialer.Subprotocols = Subprotocols
	return NewWithDialer(&dialer, url, header, opts...)
}

// NewWithDialer is New with a caller-supplied dialer.
func NewWithDialer(dialer *websocket.Dialer, url string, header http.Header, opts ...transport.Option) *transport.Base {
	dial := func(ctx context.Context) (transport.Socket, map[string]string, error) {
		conn, resp, err := dialer.DialContext(ctx, url, header)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "gorillaws: dial %s", url)
		}
		return &socket{conn: conn}, flatten(resp), nil
	}
	return transport.NewBase(dial, opts...)
}

type socket struct {
	conn *websocket.Conn
}

func (s *socket) ReadText(context.Context) (string, error) {
	_, data, err := s.conn.ReadMessage()
	if err != nil {
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			return "", io.EOF
		}
		return "", err
	}
	return string(data), nil
}

func (s *socket) WriteText(ctx context.Context, text string) error {
	deadline, _ := ctx.Deadline()
	if err := s.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return s.conn.WriteMessage(websocket.TextMessage, []byte(text))
}

func (s *socket) Close() error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeGrace))
	return s.conn.Close()
}

func flatten(resp *http.Response) map[string]string {
	if resp == nil || len(resp.Header) == 0 {
		return nil
	}
	out := make(map[string]string, len(resp.Header))
	for k := range resp.Header {
		out[k] = resp.Header.Get(k)
	}
	return out
}
