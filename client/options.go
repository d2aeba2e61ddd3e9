// File: client/options.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package client

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/momentics/hioload-stomp/api"
	"github.com/momentics/hioload-stomp/control"
	"github.com/momentics/hioload-stomp/pathmatcher"
)

type options struct {
	clientHeartbeat  time.Duration
	serverHeartbeat  time.Duration
	legacyWhitespace bool
	matcher          pathmatcher.Matcher
	log              logrus.FieldLogger
	metrics          *control.Metrics
	scheduler        api.Scheduler
	newID            func() string
}

// Option configures a Client.
type Option func(*options)

// WithHeartbeat sets the heart-beat proposal sent on CONNECT: the client
// can send every clientMs and wants to hear from the broker every serverMs.
// Zero disables a direction.
func WithHeartbeat(client, server time.Duration) Option {
	return func(o *options) {
		o.clientHeartbeat = client
		o.serverHeartbeat = server
	}
}

// WithLegacyWhitespace appends two newlines before every frame terminator.
func WithLegacyWhitespace(enabled bool) Option {
	return func(o *options) { o.legacyWhitespace = enabled }
}

// WithPathMatcher selects how MESSAGE destinations map to subscriptions.
func WithPathMatcher(m pathmatcher.Matcher) Option {
	return func(o *options) { o.matcher = m }
}

// WithLogger sets the logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(o *options) { o.log = log }
}

// WithMetrics enables Prometheus instrumentation.
func WithMetrics(m *control.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithScheduler replaces the wall clock used by heart-beat tasks.
func WithScheduler(s api.Scheduler) Option {
	return func(o *options) { o.scheduler = s }
}

// WithIDGenerator replaces the subscription id generator.
func WithIDGenerator(gen func() string) Option {
	return func(o *options) { o.newID = gen }
}
