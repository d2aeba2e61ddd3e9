// Package control
// Author: momentics <momentics@gmail.com>
//
// Configuration and runtime metrics for hioload-stomp clients.
//
// Provides:
//   - Config, loaded with viper from a file plus STOMP_* environment overrides
//   - Metrics, Prometheus collectors that tolerate a nil receiver
package control
