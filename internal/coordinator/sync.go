package coordinator

import (
	"context"

	"github.com/go-kit/log/level"

	"github.com/dreamware/lighthouse/internal/cluster"
)

// PullFromAnyPeer asks every other node for its last update, in priority
// order, and returns the first non-empty payload. Finding none is not an
// error; synchronization is advisory.
func (c *Controller) PullFromAnyPeer(ctx context.Context) (cluster.Payload, bool) {
	for _, addr := range c.targets() {
		res := c.peers.FetchLastUpdate(ctx, addr)
		if !res.OK() || len(res.Payload) == 0 {
			continue
		}
		level.Info(c.logger).Log("op", "pull", "peer", addr, "msg", "accepted state from peer")
		return res.Payload, true
	}
	level.Debug(c.logger).Log("op", "pull", "msg", "no peer had state to share")
	return nil, false
}

// ApplyIncoming stores payload as the last update and hands it to the update
// callback. A callback failure does not fail the call.
func (c *Controller) ApplyIncoming(ctx context.Context, payload cluster.Payload) error {
	if payload == nil {
		return ErrInvalidPayload
	}

	c.lifecycleMu.Lock()
	defer c.lifecycleMu.Unlock()
	c.applyIncoming(ctx, payload, "push")
	return nil
}

// applyIncoming is ApplyIncoming for callers already holding lifecycleMu.
func (c *Controller) applyIncoming(ctx context.Context, payload cluster.Payload, source string) {
	c.state.SetLastUpdate(payload)
	payloadsAccepted.WithLabelValues(source).Inc()
	c.callbacks.update(ctx, payload)
}

// Broadcast stores payload locally and pushes it to every other node.
// Push failures are logged and otherwise ignored.
func (c *Controller) Broadcast(ctx context.Context, payload cluster.Payload) error {
	if payload == nil {
		return ErrInvalidPayload
	}
	c.state.SetLastUpdate(payload)

	for _, addr := range c.targets() {
		if err := c.peers.PushUpdate(ctx, addr, payload); err != nil {
			level.Warn(c.logger).Log("op", "broadcast", "peer", addr, "error", err)
		}
	}
	return nil
}

// ProvideSnapshot returns the last update, or nil if none was ever accepted.
func (c *Controller) ProvideSnapshot() cluster.Payload {
	return c.state.LastUpdate()
}
