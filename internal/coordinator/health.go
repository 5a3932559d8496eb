package coordinator

import (
	"context"
	"fmt"

	"github.com/go-kit/log/level"
	"golang.org/x/exp/slices"

	"github.com/dreamware/lighthouse/internal/cluster"
	"github.com/dreamware/lighthouse/internal/config"
)

// checkHealth is one monitor tick.
//
// Implementation:
//  1. An expired temporary status is cleared and the node re-initializes
//  2. A temporary status still in force skips the tick
//  3. A slave queries its parent and learns the peer list from it once
//  4. If the parent is down and this node is idle, run a failover check
func (c *Controller) checkHealth(ctx context.Context) error {
	now := c.clock.Now()
	if c.state.OverrideExpired(now) {
		c.recoverFromOverride(ctx)
		return nil
	}
	if c.state.OverrideActive(now) || c.cfg.Role != config.RoleSlave {
		return nil
	}

	parent := c.peers.QueryStatus(ctx, c.cfg.ParentAddress)
	if parent.OK() {
		c.discoverPeers(parent.Response)
	}
	if parent.Healthy() {
		return nil
	}

	if st := c.state.Status(); st.IsRunning() || st.IsCustom() {
		return nil
	}
	return c.failover(ctx, parent)
}

// recoverFromOverride ends an expired temporary status and runs the normal
// initialization path again.
func (c *Controller) recoverFromOverride(ctx context.Context) {
	c.lifecycleMu.Lock()
	defer c.lifecycleMu.Unlock()

	// Reset may have cleared it while we waited for the lock.
	if c.closed || !c.state.OverrideExpired(c.clock.Now()) {
		return
	}
	c.state.ClearOverride()
	level.Info(c.logger).Log("op", "recoverFromOverride", "msg", "temporary status expired, reinitializing")
	c.initialize(ctx)
}

// discoverPeers adopts the parent's slave list, plus the parent itself, when
// this node has no peers yet.
func (c *Controller) discoverPeers(parent cluster.StatusResponse) {
	if len(parent.Slaves) == 0 {
		return
	}
	peers := slices.Clone(parent.Slaves)
	if !slices.Contains(peers, c.cfg.ParentAddress) {
		peers = append(peers, c.cfg.ParentAddress)
	}
	if c.state.SetPeersIfEmpty(peers) {
		level.Info(c.logger).Log("op", "discoverPeers", "peers", fmt.Sprint(peers), "msg", "learned peers from parent")
	}
}
