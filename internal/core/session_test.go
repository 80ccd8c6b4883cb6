package core

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rcpc/client"
	"rcpc/internal/capability"
	rcperr "rcpc/internal/errors"
	"rcpc/internal/metrics"
	"rcpc/internal/protocol"
	"rcpc/internal/rcptest"
	"rcpc/util"
)

// TestSessionMode_Launch verifies a one-shot session connects, runs
// the capability and returns.
func TestSessionMode_Launch(t *testing.T) {
	srv := rcptest.NewServer(t, rcptest.AnswerLaunch(protocol.NewFrame(protocol.CmdAck, nil)))
	cfg := srv.Config()
	cfg.Command = "calc.exe"

	mode, err := Build(cfg, util.NewLogger(0))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, mode.Run(ctx))

	srv.Expect(protocol.CmdServiceSubscribe)
	srv.Expect(protocol.CmdLaunchApp)
}

// TestSessionMode_LaunchRejected verifies a refused launch ends Run
// with the server's error and is not retried.
func TestSessionMode_LaunchRejected(t *testing.T) {
	srv := rcptest.NewServer(t, rcptest.AnswerLaunch(
		protocol.NewFrame(protocol.CmdError, []byte("not allowed"))))
	cfg := srv.Config()
	cfg.Command = "regedit.exe"

	mode, err := Build(cfg, util.NewLogger(0))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err = mode.Run(ctx)
	require.Error(t, err)
	assert.True(t, rcperr.IsKind(err, rcperr.KindService), "got %v", err)
	assert.Contains(t, err.Error(), "not allowed")

	srv.Expect(protocol.CmdServiceSubscribe)
	srv.Expect(protocol.CmdLaunchApp)
	srv.Quiet()
}

// TestSessionMode_Reconnect verifies a Hold session comes back after
// the server drops it.
func TestSessionMode_Reconnect(t *testing.T) {
	srv := rcptest.NewServer(t)
	cfg := srv.Config()
	cfg.KeepAliveInterval = 0
	cfg.Services = []string{"input"}
	m := metrics.New()

	mode, err := Build(cfg, util.NewLogger(0), client.WithMetrics(m))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- mode.Run(ctx) }()

	first := srv.Conn()
	srv.Expect(protocol.CmdSubscribeInput)
	first.Close()

	srv.Conn()
	srv.Expect(protocol.CmdSubscribeInput)
	assert.Eventually(t, func() bool { return m.Reconnects() == 1 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

// TestSessionMode_NoReconnect verifies a lost session ends Run when
// auto-reconnect is off.
func TestSessionMode_NoReconnect(t *testing.T) {
	srv := rcptest.NewServer(t)
	cfg := srv.Config()
	cfg.AutoReconnect = false

	mode := &SessionMode{
		Config:     cfg,
		Capability: &capability.Hold{Logger: util.NewLogger(0)},
		Logger:     util.NewLogger(0),
	}

	errCh := make(chan error, 1)
	go func() { errCh <- mode.Run(context.Background()) }()

	srv.Conn().Close()
	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, rcperr.ErrConnectionLost)
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return after hangup")
	}
}

// TestSessionMode_AuthFailureNotRetried verifies a rejected key ends
// Run after one attempt.
func TestSessionMode_AuthFailureNotRetried(t *testing.T) {
	srv := rcptest.NewServer(t, rcptest.WithPSK("other"))
	m := metrics.New()

	mode, err := Build(srv.Config(), util.NewLogger(0), client.WithMetrics(m))
	require.NoError(t, err)

	err = mode.Run(context.Background())
	require.Error(t, err)
	assert.True(t, rcperr.IsKind(err, rcperr.KindAuthentication), "got %v", err)
	assert.EqualValues(t, 1, m.AuthFailures())
	assert.EqualValues(t, 1, m.TotalConnections())
}

// TestSessionMode_ConnectRetries verifies dial failures are retried up
// to the attempt budget.
func TestSessionMode_ConnectRetries(t *testing.T) {
	srv := rcptest.NewServer(t)
	cfg := srv.Config()
	cfg.ConnTimeout = 10 * time.Millisecond
	cfg.MaxReconnectAttempts = 3
	m := metrics.New()

	mode, err := Build(cfg, util.NewLogger(0),
		client.WithMetrics(m), client.WithDialer(rcptest.BlockingDialer{}))
	require.NoError(t, err)

	err = mode.Run(context.Background())
	require.Error(t, err)
	assert.True(t, rcperr.IsKind(err, rcperr.KindTimeout), "got %v", err)
	assert.EqualValues(t, 3, m.ErrorCount())
}
