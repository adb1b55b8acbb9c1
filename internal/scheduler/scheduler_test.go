package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"valutatradehub/internal/cache"
)

// stubRefresher counts refresh attempts and plays back configured behavior.
type stubRefresher struct {
	calls atomic.Int32
	err   error
	block chan struct{} // when set, TryRefreshNow blocks until closed
}

func (s *stubRefresher) TryRefreshNow(ctx context.Context) (*cache.RefreshResult, error) {
	s.calls.Add(1)
	if s.block != nil {
		<-s.block
	}
	if s.err != nil {
		return nil, s.err
	}
	return &cache.RefreshResult{Updated: 1, RefreshedAt: time.Now()}, nil
}

func TestStartStop(t *testing.T) {
	ref := &stubRefresher{}
	s := New(ref, zap.NewNop().Sugar())

	assert.False(t, s.Running())
	require.NoError(t, s.Start(10*time.Millisecond))
	assert.True(t, s.Running())

	require.Eventually(t, func() bool { return ref.calls.Load() >= 2 },
		time.Second, 5*time.Millisecond, "ticks should fire repeatedly")

	require.NoError(t, s.Stop())
	assert.False(t, s.Running())

	// No further ticks after Stop returns.
	n := ref.calls.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, n, ref.calls.Load())
}

func TestStartTwice(t *testing.T) {
	s := New(&stubRefresher{}, zap.NewNop().Sugar())

	require.NoError(t, s.Start(time.Hour))
	defer s.Stop() //nolint:errcheck // cleanup

	assert.ErrorIs(t, s.Start(time.Hour), ErrAlreadyRunning)
}

func TestStopWhenNotRunning(t *testing.T) {
	s := New(&stubRefresher{}, zap.NewNop().Sugar())
	assert.ErrorIs(t, s.Stop(), ErrNotRunning)
}

func TestRestartAfterStop(t *testing.T) {
	s := New(&stubRefresher{}, zap.NewNop().Sugar())

	require.NoError(t, s.Start(time.Hour))
	require.NoError(t, s.Stop())
	require.NoError(t, s.Start(time.Hour))
	require.NoError(t, s.Stop())
}

func TestInvalidInterval(t *testing.T) {
	s := New(&stubRefresher{}, zap.NewNop().Sugar())

	assert.ErrorIs(t, s.Start(0), ErrInvalidInterval)
	assert.ErrorIs(t, s.Start(-time.Second), ErrInvalidInterval)
	assert.False(t, s.Running())
}

func TestFailingTickKeepsSchedule(t *testing.T) {
	ref := &stubRefresher{err: errors.New("sources down")}
	s := New(ref, zap.NewNop().Sugar())

	require.NoError(t, s.Start(10 * time.Millisecond))
	defer s.Stop() //nolint:errcheck // cleanup

	require.Eventually(t, func() bool { return ref.calls.Load() >= 3 },
		time.Second, 5*time.Millisecond, "schedule must survive refresh failures")
}

func TestOverlappingTickSkipped(t *testing.T) {
	// The refresher reports an in-flight refresh, as TryRefreshNow does when a
	// manual refresh is running. Ticks must keep firing and keep skipping.
	ref := &stubRefresher{err: cache.ErrRefreshInProgress}
	s := New(ref, zap.NewNop().Sugar())

	require.NoError(t, s.Start(10 * time.Millisecond))

	require.Eventually(t, func() bool { return ref.calls.Load() >= 3 },
		time.Second, 5*time.Millisecond)

	require.NoError(t, s.Stop())
}

func TestStopWaitsForInFlightTick(t *testing.T) {
	ref := &stubRefresher{block: make(chan struct{})}
	s := New(ref, zap.NewNop().Sugar())

	require.NoError(t, s.Start(10 * time.Millisecond))
	require.Eventually(t, func() bool { return ref.calls.Load() >= 1 },
		time.Second, time.Millisecond)

	stopped := make(chan error, 1)
	go func() { stopped <- s.Stop() }()

	select {
	case <-stopped:
		t.Fatal("Stop returned while a tick was still running")
	case <-time.After(30 * time.Millisecond):
	}

	close(ref.block)
	select {
	case err := <-stopped:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Stop did not return after the tick finished")
	}
}
