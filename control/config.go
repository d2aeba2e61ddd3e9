// control/config.go
// Author: momentics <momentics@gmail.com>
//
// Client configuration loaded from an optional file and STOMP_* environment
// variables.

package control

import (
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/momentics/hioload-stomp/pathmatcher"
)

// Transport names.
const (
	TransportGorilla = "gorilla"
	TransportCoder   = "coder"
	TransportTCP     = "tcp"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "STOMP"

// Config describes how to reach and talk to a broker.
type Config struct {
	URL              string            `mapstructure:"url"`
	Transport        string            `mapstructure:"transport"`
	ClientHeartbeat  time.Duration     `mapstructure:"client_heartbeat"`
	ServerHeartbeat  time.Duration     `mapstructure:"server_heartbeat"`
	LegacyWhitespace bool              `mapstructure:"legacy_whitespace"`
	Matcher          string            `mapstructure:"matcher"`
	ConnectHeaders   map[string]string `mapstructure:"connect_headers"`
	HTTPHeaders      map[string]string `mapstructure:"http_headers"`
	DialTimeout      time.Duration     `mapstructure:"dial_timeout"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		URL:         "ws://localhost:15674/ws",
		Transport:   TransportGorilla,
		Matcher:     pathmatcher.NameSimple,
		DialTimeout: 10 * time.Second,
	}
}

func setDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault("url", d.URL)
	v.SetDefault("transport", d.Transport)
	v.SetDefault("client_heartbeat", d.ClientHeartbeat)
	v.SetDefault("server_heartbeat", d.ServerHeartbeat)
	v.SetDefault("legacy_whitespace", d.LegacyWhitespace)
	v.SetDefault("matcher", d.Matcher)
	v.SetDefault("connect_headers", map[string]string{})
	v.SetDefault("http_headers", map[string]string{})
	v.SetDefault("dial_timeout", d.DialTimeout)
}

// LoadConfig reads path (any format viper understands) when it is not
// empty, applies STOMP_* environment overrides, and validates the result.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "control: read config %s", path)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, "control: decode config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects unknown names and negative durations.
func (c *Config) Validate() error {
	switch c.Transport {
	case TransportGorilla, TransportCoder, TransportTCP:
	default:
		return errors.Errorf("control: unknown transport %q", c.Transport)
	}
	if _, err := pathmatcher.ByName(c.Matcher); err != nil {
		return errors.Wrap(err, "control")
	}
	if c.URL == "" {
		return errors.New("control: url must not be empty")
	}
	if c.ClientHeartbeat < 0 || c.ServerHeartbeat < 0 {
		return errors.New("control: heart-beat intervals must not be negative")
	}
	if c.DialTimeout < 0 {
		return errors.New("control: dial timeout must not be negative")
	}
	return nil
}
