// File: facade/stomp.go
// Unified entry point for hioload-stomp.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Over picks a transport by name and wraps it in a client; FromConfig does
// the same from a loaded control.Config.

package facade

import (
	"net/http"
	"sort"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/momentics/hioload-stomp/api"
	"github.com/momentics/hioload-stomp/client"
	"github.com/momentics/hioload-stomp/control"
	"github.com/momentics/hioload-stomp/pathmatcher"
	"github.com/momentics/hioload-stomp/protocol"
	"github.com/momentics/hioload-stomp/transport"
	"github.com/momentics/hioload-stomp/transport/coderws"
	"github.com/momentics/hioload-stomp/transport/gorillaws"
	"github.com/momentics/hioload-stomp/transport/tcp"
)

// Provider builds the transport named kind.
func Provider(kind, url string, header http.Header, opts ...transport.Option) (api.ConnectionProvider, error) {
	switch kind {
	case control.TransportGorilla:
		return gorillaws.New(url, header, opts...), nil
	case control.TransportCoder:
		return coderws.New(url, header, opts...), nil
	case control.TransportTCP:
		return tcp.New(url, opts...), nil
	default:
		return nil, errors.Errorf("facade: unknown transport %q", kind)
	}
}

// Over returns a client speaking STOMP over the transport named kind.
func Over(kind, url string, header http.Header, opts ...client.Option) (*client.Client, error) {
	p, err := Provider(kind, url, header)
	if err != nil {
		return nil, err
	}
	return client.New(p, opts...), nil
}

// FromConfig builds a client from cfg. log and metrics may be nil.
func FromConfig(cfg *control.Config, log logrus.FieldLogger, metrics *control.Metrics) (*client.Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logrus.WithField("pkg", "stomp")
	}
	matcher, err := pathmatcher.ByName(cfg.Matcher)
	if err != nil {
		return nil, err
	}

	header := http.Header{}
	for k, v := range cfg.HTTPHeaders {
		header.Set(k, v)
	}
	p, err := Provider(cfg.Transport, cfg.URL, header,
		transport.WithLogger(log.WithField("component", "transport")),
		transport.WithDialTimeout(cfg.DialTimeout),
	)
	if err != nil {
		return nil, err
	}

	return client.New(p,
		client.WithHeartbeat(cfg.ClientHeartbeat, cfg.ServerHeartbeat),
		client.WithLegacyWhitespace(cfg.LegacyWhitespace),
		client.WithPathMatcher(matcher),
		client.WithLogger(log),
		client.WithMetrics(metrics),
	), nil
}

// ConnectHeaders turns cfg.ConnectHeaders into CONNECT headers, sorted by
// key.
func ConnectHeaders(cfg *control.Config) []protocol.Header {
	keys := make([]string, 0, len(cfg.ConnectHeaders))
	for k := range cfg.ConnectHeaders {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]protocol.Header, 0, len(keys))
	for _, k := range keys {
		out = append(out, protocol.H(k, cfg.ConnectHeaders[k]))
	}
	return out
}
