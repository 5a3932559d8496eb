package coordinator

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/dreamware/lighthouse/internal/cluster"
)

// StopReason tells the stop callback whether the node is going down for good
// or restarting as part of a reset.
type StopReason string

const (
	StopReasonStop  StopReason = "stop"
	StopReasonReset StopReason = "reset"
)

// Transport is the handle a host may use to serve its own HTTP routes next
// to the control surface. It is only handed to the start callback when the
// configuration opts in.
type Transport interface {
	Mount(h http.Handler)
	Unmount()
}

// StartFunc runs when the node transitions into running. transport is nil
// unless pass_transport is configured; port is always this node's port.
// Hooks run with the controller's lifecycle lock held, so a StartFunc must
// not call back into lifecycle operations (Start, Reset, Stop,
// SetTemporaryStatus, PromoteToActive, ApplyIncoming, Close).
type StartFunc func(ctx context.Context, transport Transport, port int) error

// StopFunc runs when the node transitions out of running. Like StartFunc it
// must not call back into lifecycle operations.
type StopFunc func(ctx context.Context, reason StopReason) error

// UpdateFunc runs whenever a synchronization payload is accepted, also under
// the lifecycle lock. Broadcast does not take that lock and may be called.
type UpdateFunc func(ctx context.Context, payload cluster.Payload) error

// callbacks holds the host hooks. Every invocation is synchronous and
// isolated: an error or panic is logged and counted, never propagated.
type callbacks struct {
	onStart  StartFunc
	onStop   StopFunc
	onUpdate UpdateFunc
	logger   log.Logger
	mu       sync.RWMutex
}

// OnStart registers the start hook. Register hooks before calling Start.
func (c *Controller) OnStart(fn StartFunc) {
	c.callbacks.mu.Lock()
	defer c.callbacks.mu.Unlock()
	c.callbacks.onStart = fn
}

// OnStop registers the stop hook.
func (c *Controller) OnStop(fn StopFunc) {
	c.callbacks.mu.Lock()
	defer c.callbacks.mu.Unlock()
	c.callbacks.onStop = fn
}

// OnUpdate registers the update hook.
func (c *Controller) OnUpdate(fn UpdateFunc) {
	c.callbacks.mu.Lock()
	defer c.callbacks.mu.Unlock()
	c.callbacks.onUpdate = fn
}

func (cb *callbacks) start(ctx context.Context, transport Transport, port int) {
	cb.mu.RLock()
	fn := cb.onStart
	cb.mu.RUnlock()
	if fn == nil {
		return
	}
	cb.invoke("start", func() error { return fn(ctx, transport, port) })
}

func (cb *callbacks) stop(ctx context.Context, reason StopReason) {
	cb.mu.RLock()
	fn := cb.onStop
	cb.mu.RUnlock()
	if fn == nil {
		return
	}
	cb.invoke("stop", func() error { return fn(ctx, reason) })
}

func (cb *callbacks) update(ctx context.Context, payload cluster.Payload) {
	cb.mu.RLock()
	fn := cb.onUpdate
	cb.mu.RUnlock()
	if fn == nil {
		return
	}
	cb.invoke("update", func() error { return fn(ctx, payload) })
}

func (cb *callbacks) invoke(hook string, fn func() error) {
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		return fn()
	}()
	if err != nil {
		callbackErrors.WithLabelValues(hook).Inc()
		level.Error(cb.logger).Log("op", "callback", "hook", hook, "error", err, "msg", "lifecycle callback failed")
	}
}
