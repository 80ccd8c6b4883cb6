// Package config defines the runtime configuration for rcpc and provides
// helpers for parsing connection strings and tunnel specifications.
package config

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/google/uuid"

	rcperr "rcpc/internal/errors"
	"rcpc/internal/protocol"
	"rcpc/util"
)

// Config holds every tuneable for a single rcpc client.
type Config struct {
	// ── Server ───────────────────────────────────────────────────────
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	ClientName string `yaml:"client_name"`
	// ClientID is generated once per client when left as uuid.Nil.
	ClientID   uuid.UUID           `yaml:"client_id"`
	AuthMethod protocol.AuthMethod `yaml:"auth_method"`
	PSK        string              `yaml:"psk"`

	// ── Lifecycle ────────────────────────────────────────────────────
	ConnTimeout          time.Duration `yaml:"connection_timeout"`
	KeepAliveInterval    time.Duration `yaml:"keep_alive_interval"`
	AutoReconnect        bool          `yaml:"auto_reconnect"`
	ReconnectDelay       time.Duration `yaml:"reconnect_delay"`
	MaxReconnectAttempts int           `yaml:"max_reconnect_attempts"`
	MaxReconnectBackoff  time.Duration `yaml:"max_reconnect_backoff"`
	GracePeriod          time.Duration `yaml:"grace_period"`
	QueueCapacity        int           `yaml:"queue_capacity"`

	// ── SSH tunnel ───────────────────────────────────────────────────
	TunnelSpec     string `yaml:"tunnel"` // raw user@host[:port] from -T
	TunnelEnabled  bool   `yaml:"-"`
	TunnelUser     string `yaml:"-"`
	TunnelHost     string `yaml:"-"`
	TunnelPort     int    `yaml:"-"`
	SSHKeyPath     string `yaml:"ssh_key"`
	SSHPassword    bool   `yaml:"ssh_password"` // true → prompt interactively
	UseSSHAgent    bool   `yaml:"ssh_agent"`
	StrictHostKey  bool   `yaml:"strict_hostkey"`
	KnownHostsPath string `yaml:"known_hosts"`

	// ── Session ──────────────────────────────────────────────────────
	Services []string `yaml:"services"` // subscribed after authentication
	Command  string   `yaml:"-"`        // exec: program to launch
	Args     []string `yaml:"-"`

	// ── Output ───────────────────────────────────────────────────────
	Verbose int `yaml:"verbose"`
}

// Default returns a Config populated from defaults.go.
func Default() *Config {
	return &Config{
		Host:                 DefaultHost,
		Port:                 DefaultPort,
		ClientName:           DefaultClientName,
		AuthMethod:           protocol.AuthPreSharedKey,
		ConnTimeout:          DefaultConnTimeout,
		KeepAliveInterval:    DefaultKeepAliveInterval,
		AutoReconnect:        true,
		ReconnectDelay:       DefaultReconnectDelay,
		MaxReconnectAttempts: DefaultMaxReconnectAttempts,
		MaxReconnectBackoff:  DefaultMaxReconnectBackoff,
		GracePeriod:          DefaultGracePeriod,
		QueueCapacity:        DefaultQueueCapacity,
		Verbose:              1,
	}
}

// Address returns the server "host:port".
func (c *Config) Address() string {
	return util.FormatAddr(c.Host, c.Port)
}

// ApplyConnectionString overlays a parsed connection string: the user
// becomes the client name and the password becomes the PSK.
func (c *Config) ApplyConnectionString(cs *ConnectionString) {
	c.Host = cs.Host
	if cs.Port != 0 {
		c.Port = cs.Port
	}
	if cs.Username != "" {
		c.ClientName = cs.Username
	}
	if cs.Password != "" {
		c.PSK = cs.Password
	}
}

// ResolveTunnel parses TunnelSpec into its parts and enables the
// tunnel when a spec is present.
func (c *Config) ResolveTunnel() error {
	if c.TunnelSpec == "" {
		c.TunnelEnabled = false
		return nil
	}
	user, host, port, err := ParseTunnelSpec(c.TunnelSpec)
	if err != nil {
		return &rcperr.ConfigError{
			Field:   "tunnel",
			Value:   c.TunnelSpec,
			Message: err.Error(),
			Hint:    "use user@host[:port], e.g. -T admin@bastion:22",
		}
	}
	c.TunnelEnabled = true
	c.TunnelUser, c.TunnelHost, c.TunnelPort = user, host, port
	return nil
}

// ── Tunnel-spec parser ───────────────────────────────────────────────

// tunnelRe matches [user@]host[:port].
var tunnelRe = regexp.MustCompile(`^(?:([^@]+)@)?([^:]+)(?::(\d+))?$`)

// ParseTunnelSpec extracts user, host, and port from a string such as
// "admin@bastion.example.com:2222".  Port defaults to 22.
func ParseTunnelSpec(spec string) (user, host string, port int, err error) {
	m := tunnelRe.FindStringSubmatch(spec)
	if m == nil {
		return "", "", 0, fmt.Errorf("invalid tunnel spec %q – expected [user@]host[:port]", spec)
	}
	user = m[1]
	host = m[2]
	port = DefaultSSHPort
	if m[3] != "" {
		port, err = strconv.Atoi(m[3])
		if err != nil || port < 1 || port > 65535 {
			return "", "", 0, fmt.Errorf("invalid tunnel port %q", m[3])
		}
	}
	return user, host, port, nil
}
