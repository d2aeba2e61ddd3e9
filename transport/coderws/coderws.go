// File: transport/coderws/coderws.go
// Package coderws provides a STOMP-over-WebSocket provider built on
// coder/websocket.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package coderws

import (
	"context"
	"io"
	"net/http"

	"github.com/coder/websocket"
	"github.com/pkg/errors"

	"github.com/momentics/hioload-stomp/transport"
)

// ReadLimit caps a single inbound frame.
const ReadLimit = 16 << 20

// New returns a provider dialing url with the given upgrade request headers.
func New(url string, header http.Header, opts ...transport.Option) *transport.Base {
	dial := func(ctx context.Context) (transport.Socket, map[string]string, error) {
		conn, resp, err := websocket.Dial(ctx, url, &websocket.DialOptions{
			HTTPHeader:   header,
			Subprotocols: []string{"v10.stomp", "v11.stomp", "v12.stomp"},
		})
		if err != nil {
			return nil, nil, errors.Wrapf(err, "coderws: dial %s", url)
		}
		conn.SetReadLimit(ReadLimit)

		var hs map[string]string
		if resp != nil && len(resp.Header) > 0 {
			hs = make(map[string]string, len(resp.Header))
			for k := range resp.Header {
				hs[k] = resp.Header.Get(k)
			}
		}
		return &socket{conn: conn}, hs, nil
	}
	return transport.NewBase(dial, opts...)
}

type socket struct {
	conn *websocket.Conn
}

func (s *socket) ReadText(ctx context.Context) (string, error) {
	_, data, err := s.conn.Read(ctx)
	if err != nil {
		switch websocket.CloseStatus(err) {
		case websocket.StatusNormalClosure, websocket.StatusGoingAway:
			return "", io.EOF
		}
		return "", err
	}
	return string(data), nil
}

func (s *socket) WriteText(ctx context.Context, text string) error {
	return s.conn.Write(ctx, websocket.MessageText, []byte(text))
}

func (s *socket) Close() error {
	return s.conn.Close(websocket.StatusNormalClosure, "")
}
