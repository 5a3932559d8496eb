package coordinator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// HealthMonitor runs a tick function on a fixed interval in a single
// background goroutine. It is an explicit handle: the loop is started and
// stopped through it and its liveness is queried directly.
// Thread-safe: All methods are safe for concurrent access.
type HealthMonitor struct {
	tick     func(ctx context.Context) error // One monitoring pass
	clock    clock.Clock                     // Source of interval timers
	logger   log.Logger                      // Structured logger
	cancel   context.CancelFunc              // Cancels the running loop
	done     chan struct{}                   // Closed when the running loop returns
	interval time.Duration                   // Time between ticks
	mu       sync.Mutex                      // Protects cancel, done and active
	active   bool                            // A loop goroutine is running
}

// NewHealthMonitor creates a stopped monitor that will call tick every
// interval once started. A nil clock selects the real clock.
//
// Example:
//
//	monitor := NewHealthMonitor(5*time.Second, nil, logger, c.checkHealth)
//	monitor.Start(ctx)
//	defer monitor.Stop()
func NewHealthMonitor(interval time.Duration, clk clock.Clock, logger log.Logger, tick func(ctx context.Context) error) *HealthMonitor {
	if clk == nil {
		clk = clock.New()
	}
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &HealthMonitor{
		tick:     tick,
		clock:    clk,
		logger:   log.With(logger, "component", "HealthMonitor"),
		interval: interval,
	}
}

// Start launches the loop as a child of parent. It returns false, and does
// nothing, when a loop is already active. Cancelling parent ends the loop
// the same way Stop does.
func (h *HealthMonitor) Start(parent context.Context) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.active {
		return false
	}

	ctx, cancel := context.WithCancel(parent)
	h.cancel = cancel
	h.done = make(chan struct{})
	h.active = true

	go h.run(ctx, h.done)

	level.Info(h.logger).Log("op", "start", "interval", h.interval, "msg", "health monitor started")
	return true
}

// Stop cancels the loop and waits until its goroutine has returned, so a
// fresh Start afterwards never overlaps with the old loop. Calling Stop on a
// stopped monitor is a no-op. Stop must not be called from inside a tick.
func (h *HealthMonitor) Stop() {
	h.mu.Lock()
	cancel, done := h.cancel, h.done
	h.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Active reports whether a loop goroutine is running.
func (h *HealthMonitor) Active() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.active
}

// run performs the first tick immediately, then one tick per interval until
// ctx is cancelled. Cancellation is checked before every tick and while
// sleeping, so no tick starts after it has been observed.
func (h *HealthMonitor) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer func() {
		h.mu.Lock()
		h.active = false
		h.mu.Unlock()
		level.Info(h.logger).Log("op", "stop", "msg", "health monitor stopped")
	}()

	for {
		if ctx.Err() != nil {
			return
		}

		h.safeTick(ctx)

		timer := h.clock.Timer(h.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// safeTick runs one tick. Errors and panics are logged and counted; they
// never end the loop.
func (h *HealthMonitor) safeTick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			monitorTickErrors.Inc()
			level.Error(h.logger).Log("op", "tick", "error", fmt.Sprintf("panic: %v", r), "msg", "monitor tick panicked")
		}
	}()

	if err := h.tick(ctx); err != nil && ctx.Err() == nil {
		monitorTickErrors.Inc()
		level.Warn(h.logger).Log("op", "tick", "error", err, "msg", "monitor tick failed")
	}
}
