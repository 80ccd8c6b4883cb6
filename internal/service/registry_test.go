package service

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rcperr "rcpc/internal/errors"
)

// countingOpen returns an OpenFunc that counts calls and launches.
func countingOpen(opens, launches *atomic.Int32, delay time.Duration) OpenFunc {
	return func(kind Kind) (Handle, func(), error) {
		opens.Add(1)
		time.Sleep(delay)
		return NewHandle(kind, QueueCapacity), func() { launches.Add(1) }, nil
	}
}

func TestRegistry_SealedUntilOpen(t *testing.T) {
	r := NewRegistry()
	var opens, launches atomic.Int32

	_, _, err := r.GetOrOpen(Display, countingOpen(&opens, &launches, 0))
	assert.ErrorIs(t, err, rcperr.ErrRegistryClosed)
	assert.Zero(t, opens.Load())
}

func TestRegistry_Idempotent(t *testing.T) {
	r := NewRegistry()
	r.Open()
	var opens, launches atomic.Int32
	open := countingOpen(&opens, &launches, 0)

	h1, created, err := r.GetOrOpen(Display, open)
	require.NoError(t, err)
	assert.True(t, created)

	h2, created, err := r.GetOrOpen(Display, open)
	require.NoError(t, err)
	assert.False(t, created)

	assert.True(t, h1.SameQueue(h2))
	assert.EqualValues(t, 1, opens.Load())
	assert.EqualValues(t, 1, launches.Load())

	got, ok := r.Get(Display)
	require.True(t, ok)
	assert.True(t, got.SameQueue(h1))
}

// TestRegistry_EndedHandleReplaced verifies a handle whose worker
// ended is no longer handed out and the kind can be opened again.
func TestRegistry_EndedHandleReplaced(t *testing.T) {
	r := NewRegistry()
	r.Open()
	var opens, launches atomic.Int32
	open := countingOpen(&opens, &launches, 0)

	dead, _, err := r.GetOrOpen(Input, open)
	require.NoError(t, err)
	dead.q.close()

	_, ok := r.Get(Input)
	assert.False(t, ok)
	assert.Empty(t, r.Kinds())
	assert.Zero(t, r.Len())

	fresh, created, err := r.GetOrOpen(Input, open)
	require.NoError(t, err)
	assert.True(t, created)
	assert.False(t, fresh.SameQueue(dead))
	assert.False(t, fresh.Closed())
	assert.EqualValues(t, 2, opens.Load())
	assert.Equal(t, []Kind{Input}, r.Kinds())
}

// TestRegistry_ConcurrentSubscribe verifies racing subscribers of one
// kind trigger a single open and all share its queue.
func TestRegistry_ConcurrentSubscribe(t *testing.T) {
	r := NewRegistry()
	r.Open()
	var opens, launches atomic.Int32
	open := countingOpen(&opens, &launches, 20*time.Millisecond)

	const n = 16
	handles := make([]Handle, n)
	var (
		wg      sync.WaitGroup
		created atomic.Int32
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			h, c, err := r.GetOrOpen(Display, open)
			assert.NoError(t, err)
			if c {
				created.Add(1)
			}
			handles[i] = h
		}(i)
	}
	wg.Wait()

	assert.EqualValues(t, 1, opens.Load())
	assert.EqualValues(t, 1, launches.Load())
	assert.EqualValues(t, 1, created.Load())
	for _, h := range handles[1:] {
		assert.True(t, handles[0].SameQueue(h))
	}
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_DistinctKinds(t *testing.T) {
	r := NewRegistry()
	r.Open()
	var opens, launches atomic.Int32
	open := countingOpen(&opens, &launches, 0)

	for _, k := range []Kind{App, Display, Input, Custom(5)} {
		_, _, err := r.GetOrOpen(k, open)
		require.NoError(t, err)
	}
	assert.Equal(t, []Kind{Display, Input, App, Custom(5)}, r.Kinds())
}

func TestRegistry_OpenError(t *testing.T) {
	r := NewRegistry()
	r.Open()
	boom := rcperr.Service("service audio not implemented")

	_, _, err := r.GetOrOpen(Audio, func(Kind) (Handle, func(), error) {
		return Handle{}, nil, boom
	})
	assert.True(t, errors.Is(err, boom))
	_, ok := r.Get(Audio)
	assert.False(t, ok)
	assert.Zero(t, r.Len())
}

func TestRegistry_Clear(t *testing.T) {
	r := NewRegistry()
	r.Open()
	var opens, launches atomic.Int32
	open := countingOpen(&opens, &launches, 0)

	h, _, err := r.GetOrOpen(Display, open)
	require.NoError(t, err)
	_, _, err = r.GetOrOpen(Input, open)
	require.NoError(t, err)

	assert.Equal(t, 2, r.Clear())
	assert.Zero(t, r.Len())
	assert.False(t, r.IsOpen())
	assert.True(t, h.Closed())

	_, _, err = r.GetOrOpen(Display, open)
	assert.ErrorIs(t, err, rcperr.ErrRegistryClosed)
}

// TestRegistry_ClearDuringOpen verifies a subscription that completes
// after Clear is discarded rather than registered.
func TestRegistry_ClearDuringOpen(t *testing.T) {
	r := NewRegistry()
	r.Open()

	started := make(chan struct{})
	release := make(chan struct{})
	var launched atomic.Bool
	var opened Handle

	done := make(chan error, 1)
	go func() {
		_, _, err := r.GetOrOpen(Display, func(kind Kind) (Handle, func(), error) {
			close(started)
			<-release
			opened = NewHandle(kind, 1)
			return opened, func() { launched.Store(true) }, nil
		})
		done <- err
	}()

	<-started
	r.Clear()
	close(release)

	err := <-done
	assert.ErrorIs(t, err, rcperr.ErrRegistryClosed)
	assert.False(t, launched.Load())
	assert.True(t, opened.Closed())
	assert.Zero(t, r.Len())
}
