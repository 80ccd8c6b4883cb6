package client

import (
	"errors"

	rcperr "rcpc/internal/errors"
	"rcpc/internal/protocol"
	"rcpc/internal/service"
	"rcpc/internal/session"
)

// SubscribeService subscribes to kind, or returns the existing handle
// when kind is already subscribed.  Concurrent calls for one kind send
// a single subscription request and share one handle.
func (c *Client) SubscribeService(kind service.Kind) (service.Handle, error) {
	if h, ok := c.GetService(kind); ok {
		return h, nil
	}
	if p := c.state.Phase(); p != session.Ready {
		return service.Handle{}, notReady(p)
	}
	l := c.current()
	if l == nil {
		return service.Handle{}, notReady(c.state.Phase())
	}

	h, created, err := l.registry.GetOrOpen(kind, func(kind service.Kind) (service.Handle, func(), error) {
		return c.openService(l, kind)
	})
	if err != nil {
		if errors.Is(err, rcperr.ErrRegistryClosed) {
			return service.Handle{}, notReady(c.state.Phase()).WithCause(err)
		}
		return service.Handle{}, err
	}
	if created {
		c.log.Verbose("subscribed to %s service", kind)
	}
	return h, nil
}

// GetOrSubscribeService is SubscribeService under the name callers
// reach for when they only want a handle.
func (c *Client) GetOrSubscribeService(kind service.Kind) (service.Handle, error) {
	return c.SubscribeService(kind)
}

// GetService returns the live handle for kind, if subscribed.
func (c *Client) GetService(kind service.Kind) (service.Handle, bool) {
	l := c.current()
	if l == nil {
		return service.Handle{}, false
	}
	return l.registry.Get(kind)
}

// Services lists the subscribed kinds.
func (c *Client) Services() []service.Kind {
	l := c.current()
	if l == nil {
		return nil
	}
	return l.registry.Kinds()
}

// openService performs one subscription on l: it builds the service,
// asks the server for the subscription and prepares the worker.
func (c *Client) openService(l *link, kind service.Kind) (service.Handle, func(), error) {
	if p := c.state.Phase(); p != session.Ready {
		return service.Handle{}, nil, notReady(p)
	}
	factory, ok := c.factories.Lookup(kind)
	if !ok {
		return service.Handle{}, nil, rcperr.Ef(rcperr.KindService, "service %s not implemented", kind)
	}
	log := c.log.Named(kind.Name())
	svc := factory(log)

	req := protocol.NewFrame(kind.SubscriptionCommand(), []byte(kind.Name()))
	if err := c.write(l, req); err != nil {
		return service.Handle{}, nil, rcperr.Ef(rcperr.KindConnection, "failed to send %s subscription", kind).WithCause(err)
	}

	h := service.NewHandle(kind, c.cfg.QueueCapacity)
	w := &service.Worker{
		Handle:  h,
		Service: svc,
		Writer:  l.conn,
		Ready:   func() bool { return c.state.Is(session.Ready) },
		Logger:  log,
		Metrics: c.metrics,
	}
	launch := func() {
		if !l.spawn(w.Run) {
			c.log.Warn("connection closing, %s worker not started", kind)
		}
	}
	return h, launch, nil
}

// Heartbeat sends a keep-alive frame.
func (c *Client) Heartbeat() error {
	if p := c.state.Phase(); p != session.Ready {
		return rcperr.Ef(rcperr.KindSession, "cannot send heartbeat in state %s", p)
	}
	l := c.current()
	if l == nil {
		return rcperr.Connection("not connected").WithCause(rcperr.ErrNotConnected)
	}
	if err := c.write(l, protocol.NewFrame(protocol.CmdHeartbeat, nil)); err != nil {
		return rcperr.Connection("failed to send heartbeat").WithCause(err)
	}
	c.metrics.RecordHeartbeat()
	return nil
}

func notReady(p session.Phase) *rcperr.Error {
	return rcperr.Ef(rcperr.KindSession, "cannot subscribe to service in state %s", p)
}
