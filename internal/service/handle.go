package service

import (
	"context"
	"sync"

	rcperr "rcpc/internal/errors"
	"rcpc/internal/protocol"
)

// QueueCapacity is the number of envelopes a service queue holds
// before senders block.
const QueueCapacity = 100

// queue is shared by every copy of a Handle.  The envelope channel is
// never closed; closing the done channel is what ends a subscription,
// so a late sender can never panic.
type queue struct {
	ch     chan Envelope
	closed chan struct{}
	once   sync.Once
}

func newQueue(capacity int) *queue {
	return &queue{
		ch:     make(chan Envelope, capacity),
		closed: make(chan struct{}),
	}
}

func (q *queue) close() { q.once.Do(func() { close(q.closed) }) }

// Handle is a client-side reference to a subscribed service.  Handles
// are values; every copy talks to the same queue.
type Handle struct {
	kind Kind
	q    *queue
}

// NewHandle returns a handle with a fresh queue of the given capacity.
func NewHandle(kind Kind, capacity int) Handle {
	if capacity <= 0 {
		capacity = QueueCapacity
	}
	return Handle{kind: kind, q: newQueue(capacity)}
}

// Kind returns the service kind.
func (h Handle) Kind() Kind { return h.kind }

// Name returns the service name.
func (h Handle) Name() string { return h.kind.Name() }

// Done is closed once the subscription has ended.
func (h Handle) Done() <-chan struct{} { return h.q.closed }

// Closed reports whether the subscription has ended.
func (h Handle) Closed() bool {
	select {
	case <-h.q.closed:
		return true
	default:
		return false
	}
}

// SameQueue reports whether h and other refer to one subscription.
func (h Handle) SameQueue(other Handle) bool { return h.q == other.q }

// Pending returns the number of queued envelopes.
func (h Handle) Pending() int { return len(h.q.ch) }

// Send queues f for the service without waiting for a reply.  After
// handling, the worker writes f to the server.
func (h Handle) Send(ctx context.Context, f *protocol.Frame) error {
	return h.enqueue(ctx, newEnvelope(f, false))
}

// Request queues f and waits for the service's reply.  A reply that
// carries an error is returned as that error.
func (h Handle) Request(ctx context.Context, f *protocol.Frame) (*protocol.Frame, error) {
	env := newEnvelope(f, true)
	if err := h.enqueue(ctx, env); err != nil {
		return nil, err
	}

	select {
	case r := <-env.reply:
		if r.Err != nil {
			return nil, r.Err
		}
		return r.Frame, nil
	case <-h.q.closed:
		return nil, rcperr.Service("failed to receive response from service " + h.Name()).
			WithCause(rcperr.ErrServiceClosed)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Deliver queues a frame received from the server.  It waits for
// queue space, so a slow service pushes back on the router; it gives
// up when ctx is done or the subscription ends.
func (h Handle) Deliver(ctx context.Context, f *protocol.Frame) error {
	env := newEnvelope(f, false)
	env.Inbound = true
	return h.enqueue(ctx, env)
}

func (h Handle) enqueue(ctx context.Context, env Envelope) error {
	if h.q == nil || h.Closed() {
		return h.closedErr()
	}
	select {
	case h.q.ch <- env:
		return nil
	case <-h.q.closed:
		return h.closedErr()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h Handle) closedErr() error {
	return rcperr.Service("failed to send message to service " + h.Name()).
		WithCause(rcperr.ErrServiceClosed)
}
