// Package client is the RCP client facade.  It drives one connection
// through its lifecycle:
//
//	Connect -> Authenticate -> Start -> SubscribeService ... -> Disconnect
//
// and multiplexes that connection across the subscribed services.
package client

import (
	"sync"

	"github.com/google/uuid"

	"rcpc/config"
	"rcpc/internal/metrics"
	"rcpc/internal/protocol"
	"rcpc/internal/service"
	"rcpc/internal/session"
	"rcpc/internal/transport"
	"rcpc/util"
)

// Client is safe for concurrent use.  The zero value is not usable;
// construct one with New.
type Client struct {
	cfg       config.Config
	clientID  uuid.UUID
	log       *util.Logger
	metrics   *metrics.Collector
	dialer    transport.Dialer
	factories service.Factories

	state *session.State

	mu   sync.Mutex
	link *link // nil while disconnected
}

// Option customises a Client.
type Option func(*Client)

// WithLogger sets the logger.  The default is a quiet logger.
func WithLogger(l *util.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l.Named("client")
		}
	}
}

// WithMetrics attaches a metrics collector.
func WithMetrics(m *metrics.Collector) Option {
	return func(c *Client) { c.metrics = m }
}

// WithDialer replaces the dialer chosen from the configuration.
func WithDialer(d transport.Dialer) Option {
	return func(c *Client) {
		if d != nil {
			c.dialer = d
		}
	}
}

// WithService registers (or replaces) the implementation used when
// subscribing to kind.  A nil factory removes the kind.
func WithService(kind service.Kind, f service.Factory) Option {
	return func(c *Client) { c.factories[kind] = f }
}

// New returns a Disconnected client for cfg.  cfg is copied; zero
// values fall back to the package defaults.
func New(cfg *config.Config, opts ...Option) *Client {
	c := &Client{
		cfg:       *cfg,
		log:       util.NewLogger(0),
		factories: service.DefaultFactories(),
		state:     session.New(),
	}
	c.applyDefaults()
	for _, opt := range opts {
		opt(c)
	}
	if c.dialer == nil {
		c.dialer = transport.New(&c.cfg, c.log)
	}

	c.clientID = c.cfg.ClientID
	if c.clientID == uuid.Nil {
		c.clientID = uuid.New()
	}
	return c
}

func (c *Client) applyDefaults() {
	if c.cfg.ClientName == "" {
		c.cfg.ClientName = config.DefaultClientName
	}
	if c.cfg.AuthMethod == "" {
		c.cfg.AuthMethod = protocol.AuthPreSharedKey
	}
	if c.cfg.ConnTimeout <= 0 {
		c.cfg.ConnTimeout = config.DefaultConnTimeout
	}
	if c.cfg.GracePeriod <= 0 {
		c.cfg.GracePeriod = config.DefaultGracePeriod
	}
	if c.cfg.QueueCapacity <= 0 {
		c.cfg.QueueCapacity = config.DefaultQueueCapacity
	}
}

// ── State queries ────────────────────────────────────────────────────

// State returns the current lifecycle phase.
func (c *Client) State() session.Phase { return c.state.Phase() }

// IsConnected reports whether a transport is open (Connected,
// Authenticating or Ready).
func (c *Client) IsConnected() bool {
	switch c.state.Phase() {
	case session.Connected, session.Authenticating, session.Ready:
		return true
	}
	return false
}

// IsAuthenticated reports whether the client is Ready.
func (c *Client) IsAuthenticated() bool { return c.state.Is(session.Ready) }

// SessionInfo returns the server-issued session record, or nil when
// not authenticated.
func (c *Client) SessionInfo() *protocol.SessionInfo { return c.state.SessionInfo() }

// ClientID returns the identifier sent in every Auth request.
func (c *Client) ClientID() uuid.UUID { return c.clientID }

// Config returns a copy of the effective configuration.
func (c *Client) Config() config.Config {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg
}

// Metrics returns the attached collector (possibly nil).
func (c *Client) Metrics() *metrics.Collector { return c.metrics }

// Done returns a channel closed when the current connection is gone,
// whether through Disconnect or because the server went away.  With
// no connection the returned channel is already closed.
func (c *Client) Done() <-chan struct{} {
	if l := c.current(); l != nil {
		return l.done
	}
	closed := make(chan struct{})
	close(closed)
	return closed
}

// SetCredentials replaces the authentication method and key used by
// the next Authenticate, so a caller can retry after a rejection.
func (c *Client) SetCredentials(method protocol.AuthMethod, psk string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg.AuthMethod = method
	c.cfg.PSK = psk
}

func (c *Client) credentials() (protocol.AuthMethod, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg.AuthMethod, c.cfg.PSK
}

// Close disconnects and releases the dialer.
func (c *Client) Close() error {
	err := c.Disconnect()
	if derr := c.dialer.Close(); err == nil {
		err = derr
	}
	return err
}

func (c *Client) current() *link {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.link
}

// detach clears the current link if it is still l.
func (c *Client) detach(l *link) {
	c.mu.Lock()
	if c.link == l {
		c.link = nil
	}
	c.mu.Unlock()
}
