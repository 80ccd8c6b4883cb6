package client

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"rcpc/internal/metrics"
	"rcpc/internal/protocol"
	"rcpc/internal/service"
)

// link is everything that lives exactly as long as one connection:
// the framed transport, its service registry, and the tasks (router
// and workers) that use them.
type link struct {
	conn     *protocol.Conn
	registry *service.Registry

	ctx    context.Context
	cancel context.CancelFunc
	tasks  *errgroup.Group
	done   chan struct{}

	mu     sync.Mutex
	sealed bool // no more tasks may be spawned

	routerOnce sync.Once
	closeOnce  sync.Once
}

func newLink(conn *protocol.Conn) *link {
	ctx, cancel := context.WithCancel(context.Background())
	tasks, ctx := errgroup.WithContext(ctx)
	return &link{
		conn:     conn,
		registry: service.NewRegistry(),
		ctx:      ctx,
		cancel:   cancel,
		tasks:    tasks,
		done:     make(chan struct{}),
	}
}

// spawn runs fn as a tracked task.  It reports false once the link
// has been sealed for shutdown.
func (l *link) spawn(fn func(ctx context.Context) error) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.sealed {
		return false
	}
	l.tasks.Go(func() error { return fn(l.ctx) })
	return true
}

// close ends every subscription, cancels the task context and closes
// the transport.  It does not wait; see join.  Safe to call more than
// once and from a task of this link.
func (l *link) close(m *metrics.Collector) error {
	var err error
	l.closeOnce.Do(func() {
		l.registry.Clear()
		l.cancel()
		err = l.conn.Close()
		close(l.done)
		m.ConnectionClosed()
	})
	return err
}

// join seals the link and waits up to grace for its tasks to return.
// It reports whether they all did.
func (l *link) join(grace time.Duration) bool {
	l.mu.Lock()
	l.sealed = true
	l.mu.Unlock()

	finished := make(chan struct{})
	go func() {
		l.tasks.Wait() //nolint:errcheck
		close(finished)
	}()

	select {
	case <-finished:
		return true
	case <-time.After(grace):
		return false
	}
}
