// File: heartbeat/monitor.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package heartbeat

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/momentics/hioload-stomp/api"
	"github.com/momentics/hioload-stomp/protocol"
)

// GraceFactor multiplies the check interval before the broker is declared
// silent.
const GraceFactor = 3

// Config is a snapshot of the negotiated heart-beat state.
type Config struct {
	ClientProposed   time.Duration
	ServerProposed   time.Duration
	EffectiveSend    time.Duration
	EffectiveCheck   time.Duration
	LastServerBeatAt time.Time
}

// Hooks are invoked from timer callbacks, never under the monitor lock.
type Hooks struct {
	// Ping writes one heart-beat to the transport.
	Ping func()
	// Failed reports a check cycle that found the broker silent.
	Failed func()
}

// Monitor runs the client ping task and the server check task.
type Monitor struct {
	mu    sync.Mutex
	sched api.Scheduler
	hooks Hooks
	log   logrus.FieldLogger

	clientProposed time.Duration
	serverProposed time.Duration
	send           time.Duration
	check          time.Duration
	lastBeat       time.Time

	running   bool
	pingGen   uint64
	checkGen  uint64
	pingTask  api.Cancelable
	checkTask api.Cancelable
}

// New creates an idle monitor with the given proposal.
func New(clientProposed, serverProposed time.Duration, sched api.Scheduler, hooks Hooks, log logrus.FieldLogger) *Monitor {
	if log == nil {
		log = logrus.WithField("pkg", "heartbeat")
	}
	return &Monitor{
		sched:          sched,
		hooks:          hooks,
		log:            log,
		clientProposed: clientProposed,
		serverProposed: serverProposed,
	}
}

// Propose replaces the proposal used by the next Start.
func (m *Monitor) Propose(clientProposed, serverProposed time.Duration) {
	m.mu.Lock()
	m.clientProposed = clientProposed
	m.serverProposed = serverProposed
	m.mu.Unlock()
}

// Proposal returns the heart-beat header value for CONNECT.
func (m *Monitor) Proposal() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Format(m.clientProposed, m.serverProposed)
}

// Start negotiates against the CONNECTED heart-beat header and arms the
// tasks whose interval is non-zero. A running monitor is restarted.
func (m *Monitor) Start(header string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stopLocked()
	m.send, m.check = Negotiate(m.clientProposed, m.serverProposed, header)
	m.running = true
	m.lastBeat = m.sched.Now()

	m.log.WithFields(logrus.Fields{
		"send":  m.send,
		"check": m.check,
	}).Debug("heart-beat negotiated")

	m.armPingLocked()
	m.armCheckLocked()
}

// Received records inbound traffic. It reports whether f is only a
// heart-beat and must not be dispatched further.
func (m *Monitor) Received(f protocol.Frame) bool {
	m.mu.Lock()
	if m.running {
		m.lastBeat = m.sched.Now()
		m.armCheckLocked()
	}
	m.mu.Unlock()

	if f.IsHeartbeat() {
		m.log.Debug("<<< PONG")
		return true
	}
	return false
}

// Sent records an outbound frame, which counts as a heart-beat.
func (m *Monitor) Sent() {
	m.mu.Lock()
	if m.running {
		m.armPingLocked()
	}
	m.mu.Unlock()
}

// Shutdown cancels both tasks and clears the negotiated state.
func (m *Monitor) Shutdown() {
	m.mu.Lock()
	m.stopLocked()
	m.send, m.check = 0, 0
	m.lastBeat = time.Time{}
	m.mu.Unlock()
}

// Config returns the current negotiated state.
func (m *Monitor) Config() Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Config{
		ClientProposed:   m.clientProposed,
		ServerProposed:   m.serverProposed,
		EffectiveSend:    m.send,
		EffectiveCheck:   m.check,
		LastServerBeatAt: m.lastBeat,
	}
}

func (m *Monitor) stopLocked() {
	m.running = false
	m.pingGen++
	m.checkGen++
	if m.pingTask != nil {
		m.pingTask.Stop()
		m.pingTask = nil
	}
	if m.checkTask != nil {
		m.checkTask.Stop()
		m.checkTask = nil
	}
}

func (m *Monitor) armPingLocked() {
	if m.pingTask != nil {
		m.pingTask.Stop()
		m.pingTask = nil
	}
	if m.send <= 0 {
		return
	}
	m.pingGen++
	gen := m.pingGen
	m.pingTask = m.sched.AfterFunc(m.send, func() { m.firePing(gen) })
}

func (m *Monitor) armCheckLocked() {
	if m.checkTask != nil {
		m.checkTask.Stop()
		m.checkTask = nil
	}
	if m.check <= 0 {
		return
	}
	m.checkGen++
	gen := m.checkGen
	m.checkTask = m.sched.AfterFunc(m.check, func() { m.fireCheck(gen) })
}

func (m *Monitor) firePing(gen uint64) {
	m.mu.Lock()
	if !m.running || gen != m.pingGen {
		m.mu.Unlock()
		return
	}
	m.pingTask = nil
	m.mu.Unlock()

	m.log.Debug("PING >>>")
	if m.hooks.Ping != nil {
		m.hooks.Ping()
	}

	m.mu.Lock()
	if m.running && gen == m.pingGen {
		m.armPingLocked()
	}
	m.mu.Unlock()
}

func (m *Monitor) fireCheck(gen uint64) {
	m.mu.Lock()
	if !m.running || gen != m.checkGen {
		m.mu.Unlock()
		return
	}
	now := m.sched.Now()
	elapsed := now.Sub(m.lastBeat)
	failed := elapsed > GraceFactor*m.check
	m.armCheckLocked()
	m.mu.Unlock()

	if !failed {
		return
	}
	m.log.WithField("silence", elapsed).Warn("server heart-beat missed")
	if m.hooks.Failed != nil {
		m.hooks.Failed()
	}
}
