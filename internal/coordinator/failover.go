package coordinator

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/google/uuid"
	"golang.org/x/exp/slices"

	"github.com/dreamware/lighthouse/internal/cluster"
	"github.com/dreamware/lighthouse/internal/config"
)

// StaggerDelay is how long a node waits before checking whether someone
// else already took over: its position in peers times step. A node missing
// from peers waits one step so it never races the first peer.
//
// Example:
//
//	StaggerDelay("c:1", []string{"a:1", "b:1", "c:1"}, 5*time.Second) // 10s
func StaggerDelay(self string, peers []string, step time.Duration) time.Duration {
	idx := slices.Index(peers, self)
	if idx < 0 {
		return step
	}
	return time.Duration(idx) * step
}

// failover runs one failover episode after the parent was seen down.
// Two slaves may both find nobody running inside their stagger windows and
// both promote; the stagger only makes that unlikely.
func (c *Controller) failover(ctx context.Context, parent cluster.StatusResult) error {
	failoverChecks.Inc()
	logger := log.With(c.logger, "episode", uuid.NewString())

	delay := StaggerDelay(c.cfg.SelfAddress, c.state.Peers(), c.cfg.StaggerStep)
	level.Warn(logger).Log("op", "failover", "parent", c.cfg.ParentAddress, "outcome", parent.Outcome, "parentStatus", parent.Response.Status, "delay", delay, "msg", "parent down")

	if err := sleepCtx(ctx, c.clock, delay); err != nil {
		return err
	}

	if addr, ok := c.anyMainRunning(ctx); ok {
		level.Info(logger).Log("op", "failover", "peer", addr, "msg", "another node is running, staying idle")
		return nil
	}

	if c.PromoteToActive(ctx) {
		level.Info(logger).Log("op", "failover", "msg", "promoted to active")
	}
	return nil
}

// anyMainRunning returns the first peer or parent that reports running.
func (c *Controller) anyMainRunning(ctx context.Context) (string, bool) {
	for _, addr := range c.targets() {
		if c.peers.QueryStatus(ctx, addr).Running() {
			return addr, true
		}
	}
	return "", false
}

// PromoteToActive makes this node the active one: status becomes running,
// the start callback runs, and only then every other peer is told to reset.
// It returns false when the node is already running, disabled by a
// temporary status or closed.
func (c *Controller) PromoteToActive(ctx context.Context) bool {
	c.lifecycleMu.Lock()
	if c.closed || c.state.Status().IsCustom() || !c.startWorkload(ctx) {
		c.lifecycleMu.Unlock()
		return false
	}
	c.lifecycleMu.Unlock()

	promotions.Inc()
	c.notifyPeers(ctx, cluster.ActionReset)
	return true
}

// initializeAsMaster pulls state from any peer, tells peers to reset and
// starts the workload. Caller must hold lifecycleMu.
func (c *Controller) initializeAsMaster(ctx context.Context) {
	if payload, ok := c.PullFromAnyPeer(ctx); ok {
		c.applyIncoming(ctx, payload, "peer")
	}
	c.notifyPeers(ctx, cluster.ActionReset)
	if c.startWorkload(ctx) {
		level.Info(c.logger).Log("op", "initializeAsMaster", "msg", "workload started")
	}
}

// initializeAsSlave arms the health monitor unless it is already running.
func (c *Controller) initializeAsSlave() {
	if c.monitor.Start(c.ctx) {
		level.Debug(c.logger).Log("op", "initializeAsSlave", "msg", "monitor armed")
	}
}

// notifyPeers sends action to every other node. Failures are logged only.
func (c *Controller) notifyPeers(ctx context.Context, action string) {
	for _, addr := range c.targets() {
		if err := c.peers.Notify(ctx, addr, action); err != nil {
			level.Warn(c.logger).Log("op", "notify", "peer", addr, "action", action, "error", err)
		}
	}
}

// targets lists every other node once: peers in priority order, then the
// parent. Self is never included.
func (c *Controller) targets() []string {
	candidates := c.state.Peers()
	if c.cfg.Role == config.RoleSlave {
		candidates = append(candidates, c.cfg.ParentAddress)
	}

	out := make([]string, 0, len(candidates))
	seen := make(map[string]bool, len(candidates))
	for _, addr := range candidates {
		if addr == "" || addr == c.cfg.SelfAddress || seen[addr] {
			continue
		}
		seen[addr] = true
		out = append(out, addr)
	}
	return out
}

// sleepCtx waits d on clk or until ctx is cancelled.
func sleepCtx(ctx context.Context, clk clock.Clock, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := clk.Timer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
