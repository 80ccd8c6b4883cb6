package core

import (
	"context"
	"time"

	"rcpc/client"
	"rcpc/config"
	"rcpc/internal/capability"
	rcperr "rcpc/internal/errors"
	"rcpc/internal/retry"
	"rcpc/util"
)

// SessionMode connects, authenticates, starts the router and hands the
// client to a capability.  With AutoReconnect it re-establishes the
// session, with backoff, whenever the capability ends on a retryable
// error such as a lost connection.
type SessionMode struct {
	Config     *config.Config
	Capability capability.Capability
	Logger     *util.Logger

	// Options are passed to client.New; tests use them to inject a
	// dialer or collector.
	Options []client.Option
}

// Run returns nil when ctx is cancelled or the capability completes.
func (m *SessionMode) Run(ctx context.Context) error {
	opts := append([]client.Option{client.WithLogger(m.Logger)}, m.Options...)
	c := client.New(m.Config, opts...)
	defer c.Close()

	m.Logger.Info("connecting to server at %s", m.Config.Address())

	for established := 0; ; established++ {
		if err := m.establish(ctx, c); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if established > 0 {
			c.Metrics().Reconnect()
		}

		err := m.Capability.Handle(ctx, c)
		c.Disconnect() //nolint:errcheck

		switch {
		case ctx.Err() != nil:
			return nil
		case err == nil:
			return nil
		case !m.Config.AutoReconnect || !rcperr.IsRetryable(err):
			return err
		}
		m.Logger.Warn("session ended: %v", err)
	}
}

// establish brings c to Ready, retrying with backoff when the config
// asks for it.  Authentication failures are never retried.
func (m *SessionMode) establish(ctx context.Context, c *client.Client) error {
	b := m.backoff()
	b.Retryable = rcperr.IsRetryable
	b.OnRetry = func(attempt int, err error, wait time.Duration) {
		m.Logger.Warn("attempt %d failed: %v; retrying in %s", attempt, err, wait.Round(time.Millisecond))
	}

	return b.Do(ctx, func(int) error {
		if err := c.ConnectAndAuthenticate(ctx); err != nil {
			// A failed handshake leaves the transport open.
			c.Disconnect() //nolint:errcheck
			return err
		}
		if err := c.Start(); err != nil {
			c.Disconnect() //nolint:errcheck
			return err
		}
		if info := c.SessionInfo(); info != nil {
			m.Logger.Info("session %s established", info.SessionID)
		}
		return nil
	})
}

func (m *SessionMode) backoff() *retry.Backoff {
	if !m.Config.AutoReconnect {
		return retry.Reconnect(m.Config.ReconnectDelay, m.Config.MaxReconnectBackoff, 1)
	}
	return retry.Reconnect(m.Config.ReconnectDelay, m.Config.MaxReconnectBackoff, m.Config.MaxReconnectAttempts)
}
