package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	rcperr "rcpc/internal/errors"
	"rcpc/internal/protocol"
	"rcpc/internal/session"
)

// Connect dials the server.  It is only valid from Disconnected; the
// dial is bounded by the configured connection timeout.
func (c *Client) Connect(ctx context.Context) error {
	if prev, ok := c.state.Transition(session.Disconnected, session.Connecting); !ok {
		return rcperr.Ef(rcperr.KindConnection, "already connected or connecting (state %s)", prev)
	}

	addr := c.cfg.Address()
	c.log.Verbose("connecting to %s", addr)

	dialCtx, cancel := context.WithTimeout(ctx, c.cfg.ConnTimeout)
	defer cancel()

	nc, err := c.dialer.Dial(dialCtx, "tcp", addr)
	if err != nil {
		c.state.Transition(session.Connecting, session.Disconnected)
		c.metrics.RecordError("connect: " + err.Error())
		if ctx.Err() == nil && (errors.Is(dialCtx.Err(), context.DeadlineExceeded) || rcperr.IsTimeout(err)) {
			return rcperr.Ef(rcperr.KindTimeout, "connection timeout after %s", c.cfg.ConnTimeout).
				WithCause(rcperr.ErrTimeout)
		}
		return rcperr.Connection("failed to connect to " + addr).WithCause(rcperr.Wrap("dial", addr, err))
	}

	l := newLink(protocol.NewConn(nc))
	c.mu.Lock()
	c.link = l
	c.mu.Unlock()

	if _, ok := c.state.Transition(session.Connecting, session.Connected); !ok {
		// Disconnect ran while we were dialing.
		c.detach(l)
		l.close(nil) //nolint:errcheck
		return rcperr.Connection("connection aborted").WithCause(rcperr.ErrNotConnected)
	}
	c.metrics.ConnectionOpened()
	c.log.Verbose("connected to %s", addr)
	return nil
}

// ConnectAndAuthenticate runs Connect followed by Authenticate.  An
// authentication failure leaves the connection open.
func (c *Client) ConnectAndAuthenticate(ctx context.Context) error {
	if err := c.Connect(ctx); err != nil {
		return err
	}
	return c.Authenticate(ctx)
}

// Authenticate performs the challenge-response handshake.  It is only
// valid from Connected.
//
// On success the client is Ready.  When the transport fails mid-way
// the connection is dropped and the client is Disconnected; any other
// failure (wrong reply, missing key, unsupported method) returns the
// client to Connected so the caller may retry.
func (c *Client) Authenticate(ctx context.Context) error {
	if prev, ok := c.state.Transition(session.Connected, session.Authenticating); !ok {
		return rcperr.Ef(rcperr.KindAuthentication, "cannot authenticate in state %s", prev)
	}

	l := c.current()
	if l == nil {
		c.state.Transition(session.Authenticating, session.Disconnected)
		return rcperr.Connection("not connected").WithCause(rcperr.ErrNotConnected)
	}

	info, err := c.handshake(ctx, l)
	if err != nil {
		c.metrics.AuthFailure()
		if rcperr.IsKind(err, rcperr.KindConnection) {
			c.log.Warn("authentication aborted: %v", err)
			c.detach(l)
			l.close(c.metrics) //nolint:errcheck
			c.state.Transition(session.Authenticating, session.Disconnected)
		} else {
			c.log.Warn("authentication failed: %v", err)
			l.conn.SetPhase(protocol.PhaseConnected)
			c.state.Transition(session.Authenticating, session.Connected)
		}
		return err
	}

	l.conn.SetPhase(protocol.PhaseAuthenticated)
	l.registry.Open()
	if !c.state.Establish(info) {
		// Disconnect won the race; it owns the link.
		l.registry.Clear()
		return rcperr.Session("disconnected during authentication").WithCause(rcperr.ErrNotConnected)
	}
	c.log.Info("authenticated with %s (session %s)", serverLabel(info), info.SessionID)
	return nil
}

// handshake runs the four-message exchange.  Transport failures are
// returned as Connection errors; everything else leaves the
// connection usable.
func (c *Client) handshake(ctx context.Context, l *link) (*protocol.SessionInfo, error) {
	l.conn.SetPhase(protocol.PhaseAuthenticating)

	// Reads below block until the server answers; ctx may cut them short.
	defer interruptOnCancel(ctx, l.conn)()

	method, psk := c.credentials()
	req, err := protocol.EncodeFrame(protocol.CmdAuth, protocol.AuthPayload{
		ClientID:   c.clientID,
		ClientName: c.cfg.ClientName,
		Method:     method,
		Data:       []byte{},
	})
	if err != nil {
		return nil, err
	}
	if err := c.write(l, req); err != nil {
		return nil, rcperr.Connection("failed to send auth request").WithCause(err)
	}

	f, err := c.readAuthFrame(l, "expected AUTH challenge")
	if err != nil {
		return nil, err
	}
	var challenge protocol.AuthChallenge
	if err := protocol.Unmarshal(f.Payload, &challenge); err != nil {
		return nil, err
	}

	switch method {
	case protocol.AuthPreSharedKey:
		if psk == "" {
			return nil, rcperr.Authentication("PSK not configured")
		}
		resp, err := protocol.EncodeFrame(protocol.CmdAuth, protocol.AuthResponse{
			ClientID: c.clientID,
			Response: protocol.ComputePSKResponse(psk, challenge.Challenge, challenge.Salt),
		})
		if err != nil {
			return nil, err
		}
		if err := c.write(l, resp); err != nil {
			return nil, rcperr.Connection("failed to send auth response").WithCause(err)
		}
	default:
		return nil, rcperr.Ef(rcperr.KindAuthentication, "authentication method %s not implemented", method)
	}

	f, err = c.readAuthFrame(l, "expected session info")
	if err != nil {
		return nil, err
	}
	var info protocol.SessionInfo
	if err := protocol.Unmarshal(f.Payload, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// interruptOnCancel expires conn's deadline if ctx ends before the
// returned function is called.  The returned function clears the
// deadline again once the watcher has exited.
func interruptOnCancel(ctx context.Context, conn *protocol.Conn) func() {
	if ctx.Done() == nil {
		return func() {}
	}
	finished := make(chan struct{})
	exited := make(chan struct{})
	go func() {
		defer close(exited)
		select {
		case <-ctx.Done():
			conn.SetDeadline(time.Now()) //nolint:errcheck
		case <-finished:
		}
	}()
	return func() {
		close(finished)
		<-exited
		conn.SetDeadline(time.Time{}) //nolint:errcheck
	}
}

// readAuthFrame reads the next frame and requires the Auth command.
func (c *Client) readAuthFrame(l *link, expected string) (*protocol.Frame, error) {
	f, err := l.conn.ReadFrame()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, rcperr.Connection("connection closed during authentication").
				WithCause(rcperr.ErrConnectionLost)
		}
		return nil, rcperr.Connection("failed to read during authentication").WithCause(err)
	}
	c.metrics.FrameReceived(protocol.HeaderSize + len(f.Payload))

	switch f.Command {
	case protocol.CmdAuth:
		return f, nil
	case protocol.CmdError:
		return nil, rcperr.Ef(rcperr.KindAuthentication, "server rejected authentication: %s", f.Payload).
			WithCause(rcperr.ErrAuthFailed)
	default:
		return nil, rcperr.Ef(rcperr.KindAuthentication, "%s, got %s", expected, f.Command)
	}
}

// write sends f on l and records it.
func (c *Client) write(l *link, f *protocol.Frame) error {
	if err := l.conn.WriteFrame(f); err != nil {
		return err
	}
	c.metrics.FrameSent(protocol.HeaderSize + len(f.Payload))
	return nil
}

func serverLabel(info *protocol.SessionInfo) string {
	if info.ServerName != "" {
		return info.ServerName
	}
	return "server"
}

// String is used in logs.
func (c *Client) String() string {
	return fmt.Sprintf("rcp client %s -> %s", c.clientID, c.cfg.Address())
}
