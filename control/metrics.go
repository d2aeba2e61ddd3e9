// control/metrics.go
// Author: momentics <momentics@gmail.com>
//
// Prometheus collectors for the STOMP client. Every method is safe on a nil
// *Metrics so instrumentation stays optional.

package control

import (
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the client collectors.
type Metrics struct {
	FramesSent         *prometheus.CounterVec
	FramesReceived     *prometheus.CounterVec
	HeartbeatsSent     prometheus.Counter
	HeartbeatsReceived prometheus.Counter
	HeartbeatFailures  prometheus.Counter
	Subscriptions      prometheus.Gauge
	ConnectionState    prometheus.Gauge
}

// NewMetrics creates the collectors and registers them on reg. A nil reg
// leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		FramesSent: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "stomp",
				Name:      "frames_sent_total",
				Help:      "Frames written to the transport, by command",
			},
			[]string{"command"},
		),
		FramesReceived: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "stomp",
				Name:      "frames_received_total",
				Help:      "Frames decoded from the transport, by command",
			},
			[]string{"command"},
		),
		HeartbeatsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "stomp",
			Name:      "heartbeats_sent_total",
			Help:      "Heart-beat pings written",
		}),
		HeartbeatsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "stomp",
			Name:      "heartbeats_received_total",
			Help:      "Heart-beat pongs received",
		}),
		HeartbeatFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "stomp",
			Name:      "heartbeat_failures_total",
			Help:      "Check cycles that found the broker silent",
		}),
		Subscriptions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "stomp",
			Name:      "active_subscriptions",
			Help:      "Destinations with at least one listener",
		}),
		ConnectionState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "stomp",
			Name:      "connection_state",
			Help:      "Connection state (0=disconnected, 1=connecting, 2=connected, 3=disconnecting)",
		}),
	}
	if reg == nil {
		return m, nil
	}
	for _, c := range []prometheus.Collector{
		m.FramesSent, m.FramesReceived,
		m.HeartbeatsSent, m.HeartbeatsReceived, m.HeartbeatFailures,
		m.Subscriptions, m.ConnectionState,
	} {
		if err := reg.Register(c); err != nil {
			return nil, errors.Wrap(err, "control: register metrics")
		}
	}
	return m, nil
}

func (m *Metrics) FrameSent(command string) {
	if m == nil {
		return
	}
	m.FramesSent.WithLabelValues(command).Inc()
}

func (m *Metrics) FrameReceived(command string) {
	if m == nil {
		return
	}
	m.FramesReceived.WithLabelValues(command).Inc()
}

func (m *Metrics) HeartbeatSent() {
	if m == nil {
		return
	}
	m.HeartbeatsSent.Inc()
}

func (m *Metrics) HeartbeatReceived() {
	if m == nil {
		return
	}
	m.HeartbeatsReceived.Inc()
}

func (m *Metrics) HeartbeatFailed() {
	if m == nil {
		return
	}
	m.HeartbeatFailures.Inc()
}

// SetSubscriptions records the number of live destinations.
func (m *Metrics) SetSubscriptions(n int) {
	if m == nil {
		return
	}
	m.Subscriptions.Set(float64(n))
}

// SetState records the connection state ordinal.
func (m *Metrics) SetState(state int) {
	if m == nil {
		return
	}
	m.ConnectionState.Set(float64(state))
}
