package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rcpc/internal/metrics"
	"rcpc/internal/protocol"
	"rcpc/util"
)

// fakeService records its lifecycle and fails messages whose payload
// is "bad".
type fakeService struct {
	startErr error

	mu      sync.Mutex
	started int
	stopped int
	handled []protocol.Command
}

func (s *fakeService) Start(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started++
	return s.startErr
}

func (s *fakeService) Stop(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped++
	return errors.New("stop failures are only logged")
}

func (s *fakeService) HandleMessage(_ context.Context, env Envelope) error {
	s.mu.Lock()
	s.handled = append(s.handled, env.Frame.Command)
	s.mu.Unlock()
	if string(env.Frame.Payload) == "bad" {
		return errors.New("bad message")
	}
	env.Respond(ack())
	return nil
}

func (s *fakeService) counts() (started, stopped, handled int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started, s.stopped, len(s.handled)
}

// recordingWriter collects frames written to the server.
type recordingWriter struct {
	mu     sync.Mutex
	frames []*protocol.Frame
}

func (w *recordingWriter) WriteFrame(f *protocol.Frame) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.frames = append(w.frames, f)
	return nil
}

func (w *recordingWriter) written() []*protocol.Frame {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]*protocol.Frame(nil), w.frames...)
}

type workerFixture struct {
	handle  Handle
	svc     *fakeService
	writer  *recordingWriter
	ready   atomic.Bool
	metrics *metrics.Collector
	done    chan struct{}
}

func startWorker(t *testing.T, svc *fakeService) *workerFixture {
	t.Helper()
	fx := &workerFixture{
		handle:  NewHandle(Input, QueueCapacity),
		svc:     svc,
		writer:  &recordingWriter{},
		metrics: metrics.New(),
		done:    make(chan struct{}),
	}
	fx.ready.Store(true)

	w := &Worker{
		Handle:  fx.handle,
		Service: svc,
		Writer:  fx.writer,
		Ready:   fx.ready.Load,
		Logger:  util.NewLogger(0),
		Metrics: fx.metrics,
	}
	go func() {
		defer close(fx.done)
		w.Run(context.Background()) //nolint:errcheck
	}()
	return fx
}

func (fx *workerFixture) wait(t *testing.T) {
	t.Helper()
	select {
	case <-fx.done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not exit")
	}
}

func TestWorker_RequestAndRelay(t *testing.T) {
	fx := startWorker(t, &fakeService{})
	ctx := context.Background()

	reply, err := fx.handle.Request(ctx, protocol.NewFrame(protocol.CmdSubscribeInput, []byte("key")))
	require.NoError(t, err)
	assert.Equal(t, protocol.CmdAck, reply.Command)

	fx.handle.q.close()
	fx.wait(t)

	written := fx.writer.written()
	require.Len(t, written, 1)
	assert.Equal(t, []byte("key"), written[0].Payload)
	assert.EqualValues(t, 1, fx.metrics.FramesOut())
}

func TestWorker_InboundNotEchoed(t *testing.T) {
	fx := startWorker(t, &fakeService{})
	ctx := context.Background()

	require.NoError(t, fx.handle.Deliver(ctx, protocol.NewFrame(protocol.CmdStreamFrame, nil)))
	require.NoError(t, fx.handle.Send(ctx, protocol.NewFrame(protocol.CmdSubscribeInput, nil)))
	require.Eventually(t, func() bool { return len(fx.writer.written()) == 1 }, time.Second, 5*time.Millisecond)

	fx.handle.q.close()
	fx.wait(t)

	_, _, handled := fx.svc.counts()
	assert.Equal(t, 2, handled)
	assert.Equal(t, protocol.CmdSubscribeInput, fx.writer.written()[0].Command)
}

// TestWorker_HandlerErrorIsolated verifies a failing message neither
// stops the worker nor reaches the server.
func TestWorker_HandlerErrorIsolated(t *testing.T) {
	fx := startWorker(t, &fakeService{})
	ctx := context.Background()

	_, err := fx.handle.Request(ctx, protocol.NewFrame(protocol.CmdSubscribeInput, []byte("bad")))
	assert.EqualError(t, err, "bad message")

	reply, err := fx.handle.Request(ctx, protocol.NewFrame(protocol.CmdSubscribeInput, []byte("good")))
	require.NoError(t, err)
	assert.Equal(t, protocol.CmdAck, reply.Command)

	fx.handle.q.close()
	fx.wait(t)

	written := fx.writer.written()
	require.Len(t, written, 1)
	assert.Equal(t, []byte("good"), written[0].Payload)
	assert.EqualValues(t, 1, fx.metrics.ErrorCount())
}

func TestWorker_StopCalledOnce(t *testing.T) {
	svc := &fakeService{}
	fx := startWorker(t, svc)

	require.Eventually(t, func() bool {
		started, _, _ := svc.counts()
		return started == 1
	}, time.Second, 5*time.Millisecond)

	fx.handle.q.close()
	fx.handle.q.close()
	fx.wait(t)

	started, stopped, _ := svc.counts()
	assert.Equal(t, 1, started)
	assert.Equal(t, 1, stopped)
	assert.Zero(t, fx.metrics.ActiveServices())
	assert.EqualValues(t, 1, fx.metrics.TotalServices())
}

func TestWorker_StartFailureSkipsStop(t *testing.T) {
	svc := &fakeService{startErr: errors.New("no display")}
	fx := startWorker(t, svc)
	fx.wait(t)

	started, stopped, _ := svc.counts()
	assert.Equal(t, 1, started)
	assert.Zero(t, stopped)
	assert.True(t, fx.handle.Closed())

	err := fx.handle.Send(context.Background(), protocol.NewFrame(protocol.CmdSubscribeInput, nil))
	assert.Error(t, err)
}

// TestWorker_ExitsWhenNotReady verifies the worker leaves its loop
// without handling the envelope that found the client not ready.
func TestWorker_ExitsWhenNotReady(t *testing.T) {
	svc := &fakeService{}
	fx := startWorker(t, svc)
	fx.ready.Store(false)

	_, err := fx.handle.Request(context.Background(), protocol.NewFrame(protocol.CmdSubscribeInput, nil))
	assert.Error(t, err)
	fx.wait(t)

	_, stopped, handled := svc.counts()
	assert.Zero(t, handled)
	assert.Equal(t, 1, stopped)
	assert.Empty(t, fx.writer.written())
}

func TestWorker_ContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	svc := &fakeService{}
	done := make(chan struct{})
	w := &Worker{Handle: NewHandle(App, 1), Service: svc}
	go func() {
		defer close(done)
		w.Run(ctx) //nolint:errcheck
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker ignored cancellation")
	}
	_, stopped, _ := svc.counts()
	assert.Equal(t, 1, stopped)
}

type failingWriter struct{}

func (failingWriter) WriteFrame(*protocol.Frame) error { return errors.New("broken pipe") }

// TestWorker_RelayFailureFailsRequest verifies a request is only
// acknowledged once its frame reached the connection.
func TestWorker_RelayFailureFailsRequest(t *testing.T) {
	h := NewHandle(Input, QueueCapacity)
	w := &Worker{
		Handle:  h,
		Service: &fakeService{},
		Writer:  failingWriter{},
		Logger:  util.NewLogger(0),
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx) //nolint:errcheck

	_, err := h.Request(ctx, protocol.NewFrame(protocol.CmdSubscribeInput, nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken pipe")
}

// TestWorker_HeldReplyForwarded verifies a request the service answers
// only when a later inbound frame arrives still reaches its caller.
func TestWorker_HeldReplyForwarded(t *testing.T) {
	h := NewHandle(App, QueueCapacity)
	writer := &recordingWriter{}
	w := &Worker{
		Handle:  h,
		Service: NewAppService(util.NewLogger(0)),
		Writer:  writer,
		Logger:  util.NewLogger(0),
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx) //nolint:errcheck

	type result struct {
		f   *protocol.Frame
		err error
	}
	done := make(chan result, 1)
	go func() {
		f, err := h.Request(ctx, protocol.NewFrame(protocol.CmdLaunchApp, []byte("calc")))
		done <- result{f, err}
	}()

	require.Eventually(t, func() bool { return len(writer.written()) == 1 }, 2*time.Second, 5*time.Millisecond)
	select {
	case r := <-done:
		t.Fatalf("request answered before the server replied: %v %v", r.f, r.err)
	default:
	}

	require.NoError(t, h.Deliver(ctx, protocol.NewFrame(protocol.CmdError, []byte("denied"))))
	select {
	case r := <-done:
		require.NoError(t, r.err)
		assert.Equal(t, protocol.CmdError, r.f.Command)
		assert.Equal(t, "denied", string(r.f.Payload))
	case <-time.After(2 * time.Second):
		t.Fatal("held reply was not forwarded")
	}
	assert.Len(t, writer.written(), 1, "inbound reply must not be echoed")
}
