// Package config loads the gateway identify fields and adapter tuning
// from a YAML document.
package config

import (
	"os"
	"runtime"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/agentgw/gateway"
)

// Config is the on-disk shape of a gateway client's configuration. The
// zero value is valid: every field has a documented default applied by
// Load and by Identify, so an embedding caller need not ship a file at
// all (testable property 11).
type Config struct {
	Token     string `yaml:"token"`
	OS        string `yaml:"os"`
	Browser   string `yaml:"browser"`
	Device    string `yaml:"device"`
	UserAgent string `yaml:"user_agent"`

	Adapter AdapterConfig `yaml:"adapter"`
}

// AdapterConfig tunes the HTTP/WebSocket transport adapter and the
// Session's own timeouts. Durations are written as strings
// (time.ParseDuration syntax, e.g. "5s") rather than as yaml.v3's
// native scalar decoding of time.Duration, which only understands
// plain integers (nanoseconds), not "5s"-style shorthand.
type AdapterConfig struct {
	DiscoveryURL      string `yaml:"discovery_url"`
	DialTimeout       string `yaml:"dial_timeout"`
	DisconnectTimeout string `yaml:"disconnect_timeout"`
}

const (
	defaultBrowser           = "agentgw"
	defaultDevice            = "agentgw"
	defaultUserAgent         = "agentgw (https://github.com/agentgw/gateway, 1.0)"
	defaultDialTimeout       = 10 * time.Second
	defaultDisconnectTimeout = 1 * time.Second
)

// Load reads and parses the YAML document at path, applying defaults
// for any field the document leaves unset. A missing file is not an
// error to the caller of this package's Default — only Load reports
// one, since a caller that calls Load explicitly asked for a file.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Default returns a Config with every field populated from its
// documented default, as if loading an empty YAML document.
func Default() Config {
	return Config{
		Browser:   defaultBrowser,
		Device:    defaultDevice,
		OS:        runtime.GOOS,
		UserAgent: defaultUserAgent,
		Adapter: AdapterConfig{
			DialTimeout:       defaultDialTimeout.String(),
			DisconnectTimeout: defaultDisconnectTimeout.String(),
		},
	}
}

// Identify converts Config into the gateway.Configuration the Session
// expects, filling in any field the document left blank with its
// default rather than passing through an empty string.
func (c Config) Identify() gateway.Configuration {
	cfg := gateway.Configuration{
		Token:     c.Token,
		OS:        c.OS,
		Browser:   c.Browser,
		Device:    c.Device,
		UserAgent: c.UserAgent,
	}
	if cfg.OS == "" {
		cfg.OS = runtime.GOOS
	}
	if cfg.Browser == "" {
		cfg.Browser = defaultBrowser
	}
	if cfg.Device == "" {
		cfg.Device = defaultDevice
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	return cfg
}

// DialTimeout returns the configured dial timeout, or its default if
// unset or unparseable.
func (c Config) DialTimeout() time.Duration {
	return parseDurationOr(c.Adapter.DialTimeout, defaultDialTimeout)
}

// DisconnectTimeout returns the configured disconnect close-wait, or
// its default if unset or unparseable.
func (c Config) DisconnectTimeout() time.Duration {
	return parseDurationOr(c.Adapter.DisconnectTimeout, defaultDisconnectTimeout)
}

func parseDurationOr(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
