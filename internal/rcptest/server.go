// Package rcptest provides an in-process RCP server for tests.
package rcptest

import (
	"context"
	"crypto/rand"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"rcpc/config"
	"rcpc/internal/protocol"
)

// PSK is the key the server accepts unless WithPSK says otherwise.
const PSK = "test_key"

// Server is a loopback RCP server.  Each accepted connection runs the
// handshake (the PSK exchange unless replaced with WithHandshake) and
// then records every frame the client sends.
type Server struct {
	t  testing.TB
	ln net.Listener

	psk       string
	handshake func(pc *protocol.Conn) bool
	respond   func(f *protocol.Frame) *protocol.Frame

	conns    chan *protocol.Conn
	received chan *protocol.Frame

	wg sync.WaitGroup
}

// Option customises a Server.
type Option func(*Server)

// WithPSK sets the accepted key.
func WithPSK(psk string) Option { return func(s *Server) { s.psk = psk } }

// WithHandshake replaces the PSK exchange.  fn reports whether the
// server should keep serving the connection.
func WithHandshake(fn func(pc *protocol.Conn) bool) Option {
	return func(s *Server) { s.handshake = fn }
}

// WithResponder makes the server answer client frames after recording
// them.  fn returns nil for frames that get no answer.
func WithResponder(fn func(f *protocol.Frame) *protocol.Frame) Option {
	return func(s *Server) { s.respond = fn }
}

// AnswerLaunch is a responder that answers every LaunchApp request
// with reply.
func AnswerLaunch(reply *protocol.Frame) Option {
	return WithResponder(func(f *protocol.Frame) *protocol.Frame {
		if f.Command == protocol.CmdLaunchApp {
			return reply
		}
		return nil
	})
}

// NewServer starts a server that is shut down when the test ends.
func NewServer(t testing.TB, opts ...Option) *Server {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := &Server{
		t:        t,
		ln:       ln,
		psk:      PSK,
		conns:    make(chan *protocol.Conn, 8),
		received: make(chan *protocol.Frame, 256),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.handshake == nil {
		s.handshake = s.pskHandshake
	}

	s.wg.Add(1)
	go s.accept()
	t.Cleanup(func() {
		ln.Close()
		s.wg.Wait()
	})
	return s
}

// Port returns the listening port.
func (s *Server) Port() int { return s.ln.Addr().(*net.TCPAddr).Port }

// Config returns a client configuration pointing at s with short
// timeouts.
func (s *Server) Config() *config.Config {
	cfg := config.Default()
	cfg.Host = "127.0.0.1"
	cfg.Port = s.Port()
	cfg.PSK = PSK
	cfg.ConnTimeout = 2 * time.Second
	cfg.GracePeriod = time.Second
	cfg.ReconnectDelay = 10 * time.Millisecond
	cfg.MaxReconnectBackoff = 50 * time.Millisecond
	cfg.Verbose = 0
	return cfg
}

func (s *Server) accept() {
	defer s.wg.Done()
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		pc := protocol.NewConn(conn)
		s.conns <- pc
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer pc.Close()
			s.serve(pc)
		}()
	}
}

func (s *Server) serve(pc *protocol.Conn) {
	if !s.handshake(pc) {
		return
	}
	for {
		f, err := pc.ReadFrame()
		if err != nil {
			return
		}
		s.received <- f
		if s.respond == nil {
			continue
		}
		if r := s.respond(f); r != nil {
			if err := pc.WriteFrame(r); err != nil {
				return
			}
		}
	}
}

// pskHandshake answers every Auth request with a fresh challenge, so
// a client may restart the exchange after a local failure.
func (s *Server) pskHandshake(pc *protocol.Conn) bool {
	var challenge *protocol.AuthChallenge
	for {
		f, err := pc.ReadFrame()
		if err != nil || f.Command != protocol.CmdAuth {
			return false
		}

		var req protocol.AuthPayload
		if protocol.Unmarshal(f.Payload, &req) == nil && req.Method != "" {
			challenge = &protocol.AuthChallenge{Challenge: make([]byte, 32), Salt: make([]byte, 16)}
			rand.Read(challenge.Challenge) //nolint:errcheck
			rand.Read(challenge.Salt)      //nolint:errcheck
			if !Send(pc, protocol.CmdAuth, challenge) {
				return false
			}
			continue
		}
		if challenge == nil {
			return false
		}

		var resp protocol.AuthResponse
		if protocol.Unmarshal(f.Payload, &resp) != nil {
			return false
		}
		if !protocol.VerifyPSKResponse(s.psk, challenge.Challenge, challenge.Salt, resp.Response) {
			pc.WriteFrame(protocol.NewFrame(protocol.CmdError, []byte("invalid credentials"))) //nolint:errcheck
			return false
		}

		return Send(pc, protocol.CmdAuth, protocol.SessionInfo{
			SessionID:   uuid.New(),
			ServerName:  "rcptest",
			Permissions: []string{"display", "input"},
			ExpiresAt:   time.Now().Add(time.Hour).UTC(),
		})
	}
}

// Send encodes v as a cmd frame on pc and reports success.
func Send(pc *protocol.Conn, cmd protocol.Command, v any) bool {
	f, err := protocol.EncodeFrame(cmd, v)
	if err != nil {
		return false
	}
	return pc.WriteFrame(f) == nil
}

// Conn waits for the next accepted connection.
func (s *Server) Conn() *protocol.Conn {
	s.t.Helper()
	select {
	case pc := <-s.conns:
		return pc
	case <-time.After(2 * time.Second):
		s.t.Fatal("no connection accepted")
		return nil
	}
}

// Expect waits for the next frame the client sent after the handshake
// and checks its command.
func (s *Server) Expect(cmd protocol.Command) *protocol.Frame {
	s.t.Helper()
	select {
	case f := <-s.received:
		require.Equal(s.t, cmd, f.Command, "unexpected frame %s", f)
		return f
	case <-time.After(2 * time.Second):
		s.t.Fatalf("no %s frame received", cmd)
		return nil
	}
}

// Quiet fails the test if the client sends anything in the next 100ms.
func (s *Server) Quiet() {
	s.t.Helper()
	select {
	case f := <-s.received:
		s.t.Fatalf("unexpected frame %s", f)
	case <-time.After(100 * time.Millisecond):
	}
}

// BlockingDialer never completes a dial before ctx ends.
type BlockingDialer struct{}

func (BlockingDialer) Dial(ctx context.Context, _, _ string) (net.Conn, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (BlockingDialer) Close() error { return nil }
