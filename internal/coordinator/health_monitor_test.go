package coordinator

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNewHealthMonitor verifies that NewHealthMonitor creates a stopped monitor
// with defaults filled in.
func TestNewHealthMonitor(t *testing.T) {
	monitor := NewHealthMonitor(5*time.Second, nil, nil, func(context.Context) error { return nil })

	assert.NotNil(t, monitor)
	assert.Equal(t, 5*time.Second, monitor.interval)
	assert.NotNil(t, monitor.clock)
	assert.NotNil(t, monitor.logger)
	assert.False(t, monitor.Active())

	// Stopping a monitor that never started is a no-op
	monitor.Stop()
	assert.False(t, monitor.Active())
}

// TestHealthMonitorTicksOnInterval verifies the first tick runs immediately
// and the next ones follow the injected clock.
func TestHealthMonitorTicksOnInterval(t *testing.T) {
	mock := clock.NewMock()
	var ticks atomic.Int32

	monitor := NewHealthMonitor(time.Second, mock, nil, func(context.Context) error {
		ticks.Add(1)
		return nil
	})
	require.True(t, monitor.Start(context.Background()))
	defer monitor.Stop()

	require.Eventually(t, func() bool { return ticks.Load() == 1 }, time.Second, time.Millisecond)

	// Advance the clock until a few more intervals have elapsed
	require.Eventually(t, func() bool {
		mock.Add(time.Second)
		return ticks.Load() >= 4
	}, 2*time.Second, 5*time.Millisecond)
}

// TestHealthMonitorSingleLoop verifies that starting an active monitor does
// not spawn a second loop.
func TestHealthMonitorSingleLoop(t *testing.T) {
	var running, maxRunning atomic.Int32
	release := make(chan struct{})

	monitor := NewHealthMonitor(time.Millisecond, nil, nil, func(ctx context.Context) error {
		n := running.Add(1)
		defer running.Add(-1)
		for {
			m := maxRunning.Load()
			if n <= m || maxRunning.CompareAndSwap(m, n) {
				break
			}
		}
		select {
		case <-release:
		case <-ctx.Done():
		}
		return nil
	})

	require.True(t, monitor.Start(context.Background()))
	for i := 0; i < 5; i++ {
		assert.False(t, monitor.Start(context.Background()), "second start must be refused")
	}
	close(release)

	time.Sleep(20 * time.Millisecond)
	monitor.Stop()
	assert.Equal(t, int32(1), maxRunning.Load())
}

// TestHealthMonitorStop verifies that Stop waits for the loop, that no tick
// runs afterwards and that the monitor can be restarted cleanly.
func TestHealthMonitorStop(t *testing.T) {
	var ticks atomic.Int32
	monitor := NewHealthMonitor(5*time.Millisecond, nil, nil, func(context.Context) error {
		ticks.Add(1)
		return nil
	})

	require.True(t, monitor.Start(context.Background()))
	require.Eventually(t, func() bool { return ticks.Load() >= 2 }, time.Second, time.Millisecond)

	monitor.Stop()
	assert.False(t, monitor.Active())

	after := ticks.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, ticks.Load(), "no tick may run after Stop returns")

	// A fresh loop starts once the old one has quiesced
	require.True(t, monitor.Start(context.Background()))
	assert.True(t, monitor.Active())
	require.Eventually(t, func() bool { return ticks.Load() > after }, time.Second, time.Millisecond)
	monitor.Stop()
}

// TestHealthMonitorParentCancel verifies cancelling the parent context ends
// the loop and clears the liveness flag.
func TestHealthMonitorParentCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	monitor := NewHealthMonitor(time.Millisecond, nil, nil, func(context.Context) error { return nil })

	require.True(t, monitor.Start(ctx))
	cancel()

	require.Eventually(t, func() bool { return !monitor.Active() }, time.Second, time.Millisecond)
}

// TestHealthMonitorSurvivesBadTicks verifies that errors and panics inside a
// tick never terminate the loop.
func TestHealthMonitorSurvivesBadTicks(t *testing.T) {
	var ticks atomic.Int32
	monitor := NewHealthMonitor(time.Millisecond, nil, nil, func(context.Context) error {
		switch ticks.Add(1) {
		case 1:
			panic("boom")
		case 2:
			return errors.New("peer exploded")
		}
		return nil
	})

	require.True(t, monitor.Start(context.Background()))
	defer monitor.Stop()

	require.Eventually(t, func() bool { return ticks.Load() >= 4 }, time.Second, time.Millisecond)
	assert.True(t, monitor.Active())
}
