package protocol

import (
	"bufio"
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

// Phase is the protocol-level connection state mirrored on a Conn for
// diagnostics.  It is independent of the client's lifecycle phase.
type Phase int32

const (
	PhaseConnected Phase = iota
	PhaseAuthenticating
	PhaseAuthenticated
	PhaseClosing
	PhaseClosed
)

func (p Phase) String() string {
	switch p {
	case PhaseConnected:
		return "connected"
	case PhaseAuthenticating:
		return "authenticating"
	case PhaseAuthenticated:
		return "authenticated"
	case PhaseClosing:
		return "closing"
	case PhaseClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Conn carries frames over a net.Conn.  Reads and writes are guarded
// by separate mutexes: a reader blocked waiting for the next frame
// never holds up a writer.  At most one goroutine should read.
type Conn struct {
	conn net.Conn

	readMu sync.Mutex
	reader *bufio.Reader

	writeMu sync.Mutex

	phase     atomic.Int32
	closeOnce sync.Once
	closeErr  error
}

// NewConn wraps an established connection.
func NewConn(conn net.Conn) *Conn {
	c := &Conn{
		conn:   conn,
		reader: bufio.NewReader(conn),
	}
	c.phase.Store(int32(PhaseConnected))
	return c
}

// ReadFrame blocks until the next frame arrives.  It returns io.EOF
// when the peer closed the stream cleanly or Close was called locally.
func (c *Conn) ReadFrame() (*Frame, error) {
	c.readMu.Lock()
	defer c.readMu.Unlock()

	f, err := Decode(c.reader)
	if err != nil {
		if errors.Is(err, net.ErrClosed) {
			return nil, io.EOF
		}
		return nil, err
	}
	return f, nil
}

// WriteFrame writes f atomically with respect to other writers.
func (c *Conn) WriteFrame(f *Frame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return Encode(c.conn, f)
}

// Close closes the underlying connection, unblocking any pending read.
// Subsequent calls return the first result.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.SetPhase(PhaseClosed)
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}

// SetPhase records the protocol phase.
func (c *Conn) SetPhase(p Phase) { c.phase.Store(int32(p)) }

// Phase returns the last recorded protocol phase.
func (c *Conn) Phase() Phase { return Phase(c.phase.Load()) }

// SetDeadline bounds pending and future reads and writes.  The zero
// time clears it.
func (c *Conn) SetDeadline(t time.Time) error { return c.conn.SetDeadline(t) }

// RemoteAddr returns the peer address.
func (c *Conn) RemoteAddr() net.Addr { return c.conn.RemoteAddr() }
