// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package client_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-stomp/api"
	"github.com/momentics/hioload-stomp/client"
	"github.com/momentics/hioload-stomp/control"
	"github.com/momentics/hioload-stomp/fake"
	"github.com/momentics/hioload-stomp/protocol"
)

const (
	wait = 2 * time.Second
	tick = 5 * time.Millisecond
)

func fixedID() string { return "uuid-1" }

func nextEvent(t *testing.T, s api.Stream[api.LifecycleEvent]) api.LifecycleEvent {
	t.Helper()
	select {
	case ev, ok := <-s.C():
		require.True(t, ok, "lifecycle stream closed")
		return ev
	case <-time.After(wait):
		t.Fatal("no lifecycle event")
	}
	return api.LifecycleEvent{}
}

func expectEvent(t *testing.T, s api.Stream[api.LifecycleEvent], want api.LifecycleType) api.LifecycleEvent {
	t.Helper()
	ev := nextEvent(t, s)
	require.Equal(t, want, ev.Type, "got %v", ev)
	return ev
}

func nextFrame(t *testing.T, s api.Stream[protocol.Frame]) protocol.Frame {
	t.Helper()
	select {
	case f, ok := <-s.C():
		require.True(t, ok, "frame stream closed")
		return f
	case <-time.After(wait):
		t.Fatal("no frame")
	}
	return protocol.Frame{}
}

func sentAt(p *fake.Provider, i int) func() bool {
	return func() bool { return len(p.Sent()) > i }
}

func connected(t *testing.T, p *fake.Provider, opts ...client.Option) (*client.Client, api.Stream[api.LifecycleEvent]) {
	t.Helper()
	c := client.New(p, opts...)
	events := c.Lifecycle()
	c.Connect()
	expectEvent(t, events, api.Opened)
	require.True(t, c.IsConnected())
	t.Cleanup(func() { _ = c.Close(context.Background()) })
	return c, events
}

func TestEndToEndScenario(t *testing.T) {
	p := fake.NewProvider(fake.WithHandshakeHeaders(map[string]string{"Sec-WebSocket-Protocol": "v12.stomp"}))
	c := client.New(p, client.WithIDGenerator(fixedID))
	defer c.Close(context.Background())
	events := c.Lifecycle()

	c.Connect()
	assert.True(t, c.IsConnecting())
	require.Eventually(t, sentAt(p, 0), wait, tick)
	assert.Equal(t, "CONNECT\naccept-version:1.1,1.2\nheart-beat:0,0\n\n\x00", p.Sent()[0])
	assert.Equal(t, api.Connecting, c.State())

	require.NoError(t, p.Deliver("CONNECTED\nheart-beat:0,0\n\n\x00"))
	ev := expectEvent(t, events, api.Opened)
	assert.Equal(t, "v12.stomp", ev.HandshakeHeaders["Sec-WebSocket-Protocol"])
	assert.True(t, c.IsConnected())

	l, err := c.Subscribe("/topic/x")
	require.NoError(t, err)
	require.Eventually(t, sentAt(p, 1), wait, tick)
	assert.Equal(t, "SUBSCRIBE\nid:uuid-1\ndestination:/topic/x\nack:auto\n\n\x00", p.Sent()[1])

	require.NoError(t, p.Deliver("MESSAGE\ndestination:/topic/x\n\nhello\x00"))
	assert.Equal(t, "hello", nextFrame(t, l).Payload())
}

func TestConnectHeadersAndHeartbeatProposal(t *testing.T) {
	p := fake.NewProvider(fake.WithAutoConnected("0,0"))
	c, _ := connected(t, p, client.WithHeartbeat(time.Second, 2*time.Second))

	frames := p.SentFrames()
	require.NotEmpty(t, frames)
	beat, _ := frames[0].Header("heart-beat")
	assert.Equal(t, "1000,2000", beat)

	// the broker sent 0,0, so both tasks stay off
	cfg := c.HeartbeatConfig()
	assert.Zero(t, cfg.EffectiveSend)
	assert.Zero(t, cfg.EffectiveCheck)
	assert.Equal(t, time.Second, cfg.ClientProposed)
}

func TestConnectIsIdempotent(t *testing.T) {
	p := fake.NewProvider(fake.WithAutoConnected("0,0"))
	c, events := connected(t, p)

	c.Connect()
	c.Connect()
	assert.Equal(t, 1, p.Dials())
	assert.Equal(t, []protocol.Command{protocol.CommandConnect}, p.SentCommands())

	require.NoError(t, c.Disconnect(context.Background()))
	expectEvent(t, events, api.Closed)
	assert.Equal(t, api.Disconnected, c.State())

	require.NoError(t, c.Disconnect(context.Background()))
	select {
	case ev := <-events.C():
		t.Fatalf("unexpected event %v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestDisconnectWhenNeverConnected(t *testing.T) {
	p := fake.NewProvider()
	c := client.New(p)
	defer c.Close(context.Background())
	assert.NoError(t, c.Disconnect(context.Background()))
	assert.Equal(t, 0, p.Dials())
}

func TestSendWaitsForConnected(t *testing.T) {
	p := fake.NewProvider()
	c := client.New(p)
	defer c.Close(context.Background())
	events := c.Lifecycle()

	result := make(chan error, 1)
	go func() {
		result <- c.SendTo(context.Background(), "/queue/a", "early")
	}()

	c.Connect()
	require.Eventually(t, sentAt(p, 0), wait, tick)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, []protocol.Command{protocol.CommandConnect}, p.SentCommands())
	select {
	case err := <-result:
		t.Fatalf("send returned before CONNECTED: %v", err)
	default:
	}

	require.NoError(t, p.Deliver("CONNECTED\n\n\x00"))
	expectEvent(t, events, api.Opened)

	select {
	case err := <-result:
		require.NoError(t, err)
	case <-time.After(wait):
		t.Fatal("send still blocked")
	}
	frames := p.SentFrames()
	require.Len(t, frames, 2)
	assert.Equal(t, "SEND\ndestination:/queue/a\n\nearly\x00", protocol.Encode(frames[1], false))
}

func TestSendPreservesOrder(t *testing.T) {
	p := fake.NewProvider(fake.WithAutoConnected("0,0"))
	c := client.New(p)
	defer c.Close(context.Background())

	done := make(chan error, 3)
	for _, body := range []string{"1", "2", "3"} {
		body := body
		go func() { done <- c.SendTo(context.Background(), "/q", body) }()
		// let the frame reach the outbox so enqueue order is known
		time.Sleep(10 * time.Millisecond)
	}
	c.Connect()
	for i := 0; i < 3; i++ {
		require.NoError(t, <-done)
	}
	var bodies []string
	for _, f := range p.SentFrames() {
		if f.Command() == protocol.CommandSend {
			bodies = append(bodies, f.Payload())
		}
	}
	assert.Equal(t, []string{"1", "2", "3"}, bodies)
}

func TestSendCancelledBeforeConnected(t *testing.T) {
	p := fake.NewProvider(fake.WithAutoConnected("0,0"))
	c := client.New(p)
	defer c.Close(context.Background())
	events := c.Lifecycle()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := c.SendTo(ctx, "/q", "late")
	assert.ErrorIs(t, err, api.ErrSendCancelled)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	c.Connect()
	expectEvent(t, events, api.Opened)
	require.NoError(t, c.SendTo(context.Background(), "/q", "on time"))
	frames := p.SentFrames()
	require.Len(t, frames, 2)
	assert.Equal(t, "on time", frames[1].Payload())
}

func TestSendToRejectsEmptyDestination(t *testing.T) {
	c := client.New(fake.NewProvider())
	defer c.Close(context.Background())
	assert.ErrorIs(t, c.SendTo(context.Background(), "", "x"), api.ErrInvalidDestination)
	_, err := c.Subscribe("")
	assert.ErrorIs(t, err, api.ErrInvalidDestination)
}

func TestLegacyWhitespace(t *testing.T) {
	p := fake.NewProvider(fake.WithAutoConnected("0,0"))
	c, _ := connected(t, p, client.WithLegacyWhitespace(true))

	require.NoError(t, c.SendTo(context.Background(), "/q", "x"))
	sent := p.Sent()
	assert.Equal(t, "SEND\ndestination:/q\n\nx\n\n\x00", sent[len(sent)-1])

	c.SetLegacyWhitespace(false)
	require.NoError(t, c.SendTo(context.Background(), "/q", "y"))
	sent = p.Sent()
	assert.Equal(t, "SEND\ndestination:/q\n\ny\x00", sent[len(sent)-1])
}

func TestSharedSubscriptionOverTheWire(t *testing.T) {
	p := fake.NewProvider(fake.WithAutoConnected("0,0"))
	c, _ := connected(t, p, client.WithIDGenerator(fixedID))

	a, err := c.Subscribe("/topic/a")
	require.NoError(t, err)
	b, err := c.Subscribe("/topic/a")
	require.NoError(t, err)

	require.NoError(t, p.Deliver("MESSAGE\ndestination:/topic/a\nmessage-id:1\n\nboth\x00"))
	assert.Equal(t, "both", nextFrame(t, a).Payload())
	assert.Equal(t, "both", nextFrame(t, b).Payload())
	require.Eventually(t, func() bool { return len(p.SentFrames()) == 2 }, wait, tick)

	require.NoError(t, a.Close())
	require.NoError(t, b.Close())
	require.Eventually(t, func() bool { return len(p.SentFrames()) == 3 }, wait, tick)
	assert.Equal(t, []protocol.Command{
		protocol.CommandConnect, protocol.CommandSubscribe, protocol.CommandUnsubscribe,
	}, p.SentCommands())
	assert.Empty(t, c.Subscriptions())
}

func TestHeartbeatsAreNotDispatched(t *testing.T) {
	p := fake.NewProvider(fake.WithAutoConnected("0,0"))
	c, _ := connected(t, p)

	frames := c.Frames()
	defer frames.Close()
	l, err := c.Subscribe("/topic/a")
	require.NoError(t, err)
	defer l.Close()

	require.NoError(t, p.Deliver("\n"))
	require.NoError(t, p.Deliver("MESSAGE\ndestination:/topic/a\n\nafter-pong\x00"))

	f := nextFrame(t, frames)
	assert.Equal(t, protocol.CommandMessage, f.Command())
	assert.Equal(t, "after-pong", nextFrame(t, l).Payload())
}

func TestHeartbeatPingAndFailure(t *testing.T) {
	sched := fake.NewScheduler()
	reg := prometheus.NewRegistry()
	metrics, err := control.NewMetrics(reg)
	require.NoError(t, err)

	p := fake.NewProvider(fake.WithAutoConnected("1000,1000"))
	c, events := connected(t, p,
		client.WithHeartbeat(time.Second, time.Second),
		client.WithScheduler(sched),
		client.WithMetrics(metrics),
	)
	cfg := c.HeartbeatConfig()
	assert.Equal(t, time.Second, cfg.EffectiveSend)
	assert.Equal(t, time.Second, cfg.EffectiveCheck)

	sched.Advance(time.Second)
	assert.Equal(t, 1, p.Heartbeats())
	assert.Equal(t, "\n", p.Sent()[len(p.Sent())-1])

	sched.Advance(3 * time.Second)
	ev := expectEvent(t, events, api.FailedServerHeartbeat)
	assert.NoError(t, ev.Err)
	assert.True(t, c.IsConnected(), "a missed heart-beat is not fatal")
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.HeartbeatFailures))

	require.NoError(t, p.Deliver("\n"))
	require.Eventually(t, func() bool {
		return c.HeartbeatConfig().LastServerBeatAt.Equal(sched.Now())
	}, wait, tick)
	sched.Advance(3 * time.Second)
	select {
	case ev := <-events.C():
		t.Fatalf("unexpected event %v", ev)
	case <-time.After(50 * time.Millisecond):
	}

	require.NoError(t, c.Disconnect(context.Background()))
	expectEvent(t, events, api.Closed)
	assert.Zero(t, c.HeartbeatConfig().EffectiveSend)
	assert.Equal(t, 0, sched.Pending())
}

func TestTransportErrorThenClosed(t *testing.T) {
	p := fake.NewProvider()
	p.FailDial(errors.New("connection refused"))
	c := client.New(p)
	defer c.Close(context.Background())
	events := c.Lifecycle()

	c.Connect()
	ev := expectEvent(t, events, api.Error)
	assert.Contains(t, ev.Err.Error(), "connection refused")
	expectEvent(t, events, api.Closed)
	assert.Equal(t, api.Disconnected, c.State())

	p.FailDial(nil)
	c.Connect()
	require.Eventually(t, sentAt(p, 0), wait, tick)
}

func TestResubscribeAfterConnectionLoss(t *testing.T) {
	p := fake.NewProvider(fake.WithAutoConnected("0,0"))
	c := client.New(p, client.WithIDGenerator(fixedID))
	defer c.Close(context.Background())
	events := c.Lifecycle()

	l, err := c.Subscribe("/topic/a")
	require.NoError(t, err)
	defer l.Close()

	c.Connect()
	expectEvent(t, events, api.Opened)
	require.Eventually(t, func() bool { return len(p.SentFrames()) == 2 }, wait, tick)

	p.Drop(errors.New("broken pipe"))
	expectEvent(t, events, api.Error)
	expectEvent(t, events, api.Closed)
	assert.Equal(t, api.Disconnected, c.State())

	c.Connect()
	expectEvent(t, events, api.Opened)
	require.Eventually(t, func() bool { return len(p.SentFrames()) == 4 }, wait, tick)
	frames := p.SentFrames()
	assert.Equal(t, []protocol.Command{
		protocol.CommandConnect, protocol.CommandSubscribe,
		protocol.CommandConnect, protocol.CommandSubscribe,
	}, p.SentCommands())
	id, _ := frames[3].Header("id")
	assert.Equal(t, "uuid-1", id)

	require.NoError(t, p.Deliver("MESSAGE\ndestination:/topic/a\n\nagain\x00"))
	assert.Equal(t, "again", nextFrame(t, l).Payload())
}

func TestReconnectReusesHeaders(t *testing.T) {
	p := fake.NewProvider(fake.WithAutoConnected("0,0"))
	c := client.New(p)
	defer c.Close(context.Background())
	events := c.Lifecycle()

	c.Connect(protocol.H("login", "guest"))
	expectEvent(t, events, api.Opened)

	require.NoError(t, c.Reconnect(context.Background()))
	expectEvent(t, events, api.Closed)
	expectEvent(t, events, api.Opened)
	assert.Equal(t, 2, p.Dials())

	frames := p.SentFrames()
	require.Len(t, frames, 2)
	for _, f := range frames {
		login, ok := f.Header("login")
		assert.True(t, ok)
		assert.Equal(t, "guest", login)
	}
}

func TestCloseFailsPendingSends(t *testing.T) {
	c := client.New(fake.NewProvider())
	result := make(chan error, 1)
	go func() { result <- c.SendTo(context.Background(), "/q", "never") }()
	time.Sleep(20 * time.Millisecond)

	require.NoError(t, c.Close(context.Background()))
	select {
	case err := <-result:
		assert.ErrorIs(t, err, api.ErrClientClosed)
	case <-time.After(wait):
		t.Fatal("send not released")
	}
	_, err := c.Subscribe("/topic/a")
	assert.ErrorIs(t, err, api.ErrClientClosed)
}

func TestConnectionStateGauge(t *testing.T) {
	metrics, err := control.NewMetrics(prometheus.NewRegistry())
	require.NoError(t, err)
	p := fake.NewProvider(fake.WithAutoConnected("0,0"))
	c, events := connected(t, p, client.WithMetrics(metrics))

	assert.Equal(t, float64(api.Connected), testutil.ToFloat64(metrics.ConnectionState))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.FramesSent.WithLabelValues("CONNECT")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.FramesReceived.WithLabelValues("CONNECTED")))

	require.NoError(t, c.Disconnect(context.Background()))
	expectEvent(t, events, api.Closed)
	assert.Equal(t, float64(api.Disconnected), testutil.ToFloat64(metrics.ConnectionState))
}

func TestMessageBeforeSocketCloseIsDelivered(t *testing.T) {
	p := fake.NewProvider(fake.WithAutoConnected("0,0"))
	c, events := connected(t, p)
	l, err := c.Subscribe("/topic/x")
	require.NoError(t, err)
	defer l.Close()

	for i := 0; i < 50; i++ {
		body := fmt.Sprintf("m-%d", i)
		require.NoError(t, p.Deliver("MESSAGE\ndestination:/topic/x\n\n"+body+"\x00"))
		p.Drop(nil)
		expectEvent(t, events, api.Closed)
		assert.Equal(t, body, nextFrame(t, l).Payload())

		c.Connect()
		expectEvent(t, events, api.Opened)
	}
}

func TestCloseEndsEveryStream(t *testing.T) {
	p := fake.NewProvider(fake.WithAutoConnected("0,0"))
	c := client.New(p)
	events := c.Lifecycle()
	c.Connect()
	expectEvent(t, events, api.Opened)

	l, err := c.Subscribe("/topic/x")
	require.NoError(t, err)
	frames := c.Frames()

	require.NoError(t, c.Close(context.Background()))

	drained(t, events.C())
	drained(t, c.Lifecycle().C())
	drained(t, l.C())
	drained(t, frames.C())
	drained(t, c.Frames().C())
}

// drained reads ch until it closes.
func drained[T any](t *testing.T, ch <-chan T) {
	t.Helper()
	deadline := time.After(wait)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("stream still open after Close")
		}
	}
}
