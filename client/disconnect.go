package client

import (
	"rcpc/internal/session"
)

// Disconnect tears down the connection and returns the client to
// Disconnected.  It is a no-op when already Disconnected.
//
// The router and every worker are signalled (phase Closing, context
// cancelled, queues and transport closed) and then joined, bounded by
// the configured grace period.  Transport close failures are logged,
// not returned.
func (c *Client) Disconnect() error {
	prev, ok := c.state.TransitionFrom(session.Closing,
		session.Connecting, session.Connected, session.Authenticating, session.Ready)
	if !ok {
		// Disconnected, or another Disconnect is already running.
		return nil
	}
	c.log.Verbose("disconnecting (was %s)", prev)

	c.mu.Lock()
	l := c.link
	c.link = nil
	c.mu.Unlock()

	if l != nil {
		c.log.Verbose("shutting down %d services", l.registry.Len())
		if err := l.close(c.metrics); err != nil {
			c.log.Warn("error closing connection: %v", err)
		}
		if !l.join(c.cfg.GracePeriod) {
			c.log.Warn("tasks still running after %s grace period", c.cfg.GracePeriod)
		}
	}

	c.state.Reset()
	c.log.Verbose("disconnected from server")
	return nil
}
