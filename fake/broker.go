// File: fake/broker.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Minimal STOMP-over-WebSocket broker for provider tests. It understands
// CONNECT, SUBSCRIBE, UNSUBSCRIBE and SEND; SEND is fanned out as MESSAGE
// to every subscription on exactly the same destination.

package fake

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/momentics/hioload-stomp/protocol"
)

// Broker is an http.Handler that upgrades and speaks STOMP.
type Broker struct {
	Upgrader  websocket.Upgrader
	HeartBeat string

	log logrus.FieldLogger

	mu       sync.Mutex
	conns    map[*brokerConn]struct{}
	received []protocol.Frame
	seq      int
}

type brokerConn struct {
	ws   *websocket.Conn
	mu   sync.Mutex
	subs map[string]string // id -> destination
}

func (c *brokerConn) send(f protocol.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteMessage(websocket.TextMessage, []byte(protocol.Encode(f, false)))
}

// NewBroker returns a broker that accepts any origin.
func NewBroker() *Broker {
	return &Broker{
		Upgrader: websocket.Upgrader{
			CheckOrigin:  func(*http.Request) bool { return true },
			Subprotocols: []string{"v12.stomp", "v11.stomp", "v10.stomp"},
		},
		HeartBeat: "0,0",
		log:       logrus.WithField("pkg", "fake.broker"),
		conns:     make(map[*brokerConn]struct{}),
	}
}

// Received returns every frame clients sent, heart-beats excluded.
func (b *Broker) Received() []protocol.Frame {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]protocol.Frame(nil), b.received...)
}

// Clients returns the number of open connections.
func (b *Broker) Clients() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.conns)
}

// CloseAll drops every client connection without a close handshake.
func (b *Broker) CloseAll() {
	b.mu.Lock()
	conns := make([]*brokerConn, 0, len(b.conns))
	for c := range b.conns {
		conns = append(conns, c)
	}
	b.mu.Unlock()
	for _, c := range conns {
		_ = c.ws.Close()
	}
}

func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := b.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.log.WithError(err).Warn("upgrade failed")
		return
	}
	c := &brokerConn{ws: ws, subs: make(map[string]string)}

	b.mu.Lock()
	b.conns[c] = struct{}{}
	b.mu.Unlock()
	defer func() {
		b.mu.Lock()
		delete(b.conns, c)
		b.mu.Unlock()
		_ = ws.Close()
	}()

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return
		}
		f := protocol.Decode(string(data))
		if f.IsHeartbeat() {
			continue
		}
		b.handle(c, f)
	}
}

func (b *Broker) handle(c *brokerConn, f protocol.Frame) {
	b.mu.Lock()
	b.received = append(b.received, f)
	b.mu.Unlock()

	switch f.Command() {
	case protocol.CommandConnect:
		headers := []protocol.Header{protocol.H("version", "1.2")}
		if b.HeartBeat != "" {
			headers = append(headers, protocol.H(protocol.HeaderHeartBeat, b.HeartBeat))
		}
		_ = c.send(protocol.NewFrame(protocol.CommandConnected, headers, ""))

	case protocol.CommandSubscribe:
		id, _ := f.Header(protocol.HeaderID)
		dest, _ := f.Header(protocol.HeaderDestination)
		b.mu.Lock()
		c.subs[id] = dest
		b.mu.Unlock()

	case protocol.CommandUnsubscribe:
		id, _ := f.Header(protocol.HeaderID)
		b.mu.Lock()
		delete(c.subs, id)
		b.mu.Unlock()

	case protocol.CommandSend:
		dest, _ := f.Header(protocol.HeaderDestination)
		b.publish(dest, f.Payload())
	}
}

type delivery struct {
	conn  *brokerConn
	frame protocol.Frame
}

func (b *Broker) publish(dest, payload string) {
	b.mu.Lock()
	var out []delivery
	for c := range b.conns {
		for id, d := range c.subs {
			if d != dest {
				continue
			}
			b.seq++
			out = append(out, delivery{conn: c, frame: protocol.NewFrame(protocol.CommandMessage, []protocol.Header{
				protocol.H(protocol.HeaderDestination, dest),
				protocol.H(protocol.HeaderSubscription, id),
				protocol.H(protocol.HeaderMessageID, fmt.Sprintf("m-%d", b.seq)),
			}, payload)})
		}
	}
	b.mu.Unlock()

	for _, d := range out {
		if err := d.conn.send(d.frame); err != nil {
			b.log.WithError(err).Debug("delivery failed")
		}
	}
}
