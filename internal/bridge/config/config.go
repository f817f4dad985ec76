package config

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"
)

// Transport names accepted by the bridge
const (
	TransportStdio = "stdio"
	TransportTCP   = "tcp"
	TransportWS    = "ws"
)

// Config holds bridge configuration
type Config struct {
	Transport       string        `mapstructure:"transport" yaml:"transport"`
	ListenHost      string        `mapstructure:"listen_host" yaml:"listen_host"`
	ListenPort      int           `mapstructure:"listen_port" yaml:"listen_port"`
	UpstreamURL     string        `mapstructure:"upstream_url" yaml:"upstream_url"`
	UpstreamTimeout time.Duration `mapstructure:"upstream_timeout" yaml:"upstream_timeout"`
	ProbeUpstream   bool          `mapstructure:"probe_upstream" yaml:"probe_upstream"`
	Methods         []string      `mapstructure:"methods" yaml:"methods"`
	LogLevel        string        `mapstructure:"log_level" yaml:"log_level"`
}

// ListenAddress returns the host:port the listener binds to.
// A zero port requests an OS-assigned ephemeral port.
func (c *Config) ListenAddress() string {
	return net.JoinHostPort(c.ListenHost, strconv.Itoa(c.ListenPort))
}

// Validate checks the configuration for startup-fatal mistakes
func (c *Config) Validate() error {
	switch c.Transport {
	case TransportStdio, TransportTCP, TransportWS:
	default:
		return fmt.Errorf("unknown transport %q (expected stdio, tcp or ws)", c.Transport)
	}

	if c.UpstreamURL == "" {
		return fmt.Errorf("upstream URL is required")
	}
	u, err := url.Parse(c.UpstreamURL)
	if err != nil {
		return fmt.Errorf("invalid upstream URL %q: %w", c.UpstreamURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("upstream URL %q must use http or https", c.UpstreamURL)
	}

	if c.ListenPort < 0 || c.ListenPort > 65535 {
		return fmt.Errorf("invalid listen port %d", c.ListenPort)
	}
	if c.UpstreamTimeout < 0 {
		return fmt.Errorf("upstream timeout must not be negative")
	}
	return nil
}
