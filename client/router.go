package client

import (
	"context"
	"errors"
	"io"

	rcperr "rcpc/internal/errors"
	"rcpc/internal/protocol"
	"rcpc/internal/service"
	"rcpc/internal/session"
)

// Start launches the inbound router for the current connection.  It
// is only valid when Ready; calling it again is a no-op.
func (c *Client) Start() error {
	if p := c.state.Phase(); p != session.Ready {
		return rcperr.Ef(rcperr.KindSession, "cannot start in state %s", p)
	}
	l := c.current()
	if l == nil {
		return rcperr.Session("cannot start without a connection").WithCause(rcperr.ErrNotConnected)
	}

	l.routerOnce.Do(func() {
		l.spawn(func(ctx context.Context) error {
			c.route(ctx, l)
			return nil
		})
	})
	return nil
}

// route is the only reader of the connection once the client is
// Ready.  It runs until the phase changes or the connection fails.
func (c *Client) route(ctx context.Context, l *link) {
	c.log.Verbose("frame router started")
	defer c.log.Verbose("frame router stopped")

	for c.state.Is(session.Ready) {
		f, err := l.conn.ReadFrame()
		if err != nil {
			c.readFailed(l, err)
			return
		}
		c.metrics.FrameReceived(protocol.HeaderSize + len(f.Payload))
		c.dispatch(ctx, l, f)
	}
}

// dispatch routes one inbound frame.  Nothing here stops the router.
func (c *Client) dispatch(ctx context.Context, l *link, f *protocol.Frame) {
	switch f.Command {
	case protocol.CmdHeartbeat:
		c.log.Debug("received heartbeat")
		c.metrics.RecordHeartbeat()

	case protocol.CmdError:
		c.log.Warn("received error from server: %s", f.Payload)
		c.metrics.RecordError("server: " + string(f.Payload))
		c.forwardReply(ctx, l, f)

	case protocol.CmdAck:
		c.log.Debug("received ack")
		c.forwardReply(ctx, l, f)

	case protocol.CmdStreamFrame, protocol.CmdDisplayInfo:
		// Streaming data has no delivery guarantee: without a display
		// subscription it is dropped.
		h, ok := l.registry.Get(service.Display)
		if !ok {
			c.metrics.FrameDropped()
			c.log.Debug("no display subscription, dropping %s", f)
			return
		}
		if err := h.Deliver(ctx, f); err != nil {
			c.metrics.FrameDropped()
			c.log.Debug("display did not accept %s: %v", f, err)
		}

	default:
		c.log.Verbose("unhandled command: %s", f.Command)
	}
}

// forwardReply passes Ack and Error frames to the App service, which
// matches them to its pending launch requests.
func (c *Client) forwardReply(ctx context.Context, l *link, f *protocol.Frame) {
	h, ok := l.registry.Get(service.App)
	if !ok {
		return
	}
	if err := h.Deliver(ctx, f); err != nil {
		c.log.Debug("app service did not accept %s: %v", f, err)
	}
}

// readFailed handles the end of the inbound stream.  When the client
// was still Ready the server went away on its own: the connection is
// released and the client becomes Disconnected.  Otherwise Disconnect
// is already tearing things down.
func (c *Client) readFailed(l *link, err error) {
	if !c.state.Is(session.Ready) {
		return
	}
	if errors.Is(err, io.EOF) {
		c.log.Info("server closed the connection")
	} else {
		c.log.Error("error reading frame: %v", err)
		c.metrics.RecordError("read: " + err.Error())
	}

	if !c.state.Drop(session.Ready) {
		return
	}
	c.detach(l)
	l.close(c.metrics) //nolint:errcheck
}
