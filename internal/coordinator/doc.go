// Package coordinator implements the failover state machine of a lighthouse
// node: the health-monitoring loop, staggered promotion, the state
// synchronization handshake and the host lifecycle callbacks.
//
// # Overview
//
// A Controller owns one node. Its role is fixed by configuration for the
// whole process lifetime:
//
//	                 ┌──────────────────────┐
//	                 │        Master        │
//	                 │  runs the workload   │
//	                 └──────────┬───────────┘
//	            GET /status     │     POST /reset
//	         ┌──────────────────┼──────────────────┐
//	┌────────▼────────┐ ┌───────▼─────────┐ ┌──────▼──────────┐
//	│    Slave 0      │ │    Slave 1      │ │    Slave 2      │
//	│  stagger 0×step │ │  stagger 1×step │ │  stagger 2×step │
//	└─────────────────┘ └─────────────────┘ └─────────────────┘
//
// A master pulls the last update from any peer, tells every peer to reset
// and starts the workload. A slave runs the HealthMonitor and polls its
// parent on every tick.
//
// # Failover
//
// When the parent stops answering "running" or "waiting", an idle slave
// waits its stagger delay (its index in the peer list times the stagger
// step), then asks every other node whether it is running. If nobody is,
// it promotes itself: status becomes running, the start callback runs, and
// every other node receives a reset.
//
// The stagger reduces but does not remove the chance of two slaves
// promoting in the same window. There is no consensus and no mutual
// exclusion across partitions.
//
// # Temporary Status
//
// SetTemporaryStatus stops the workload and publishes an operator message
// instead of a standard status. While it is in force the node never
// promotes and reset only stops. The monitor clears it once the deadline
// passes and the node runs its normal initialization again.
//
// # Concurrency
//
// Node state lives in node.State behind a single RWMutex. Transitions into
// and out of running are additionally serialized by the controller so a
// start callback is never invoked twice without a stop between them.
// Callbacks are invoked synchronously; their errors and panics are logged
// and counted, never propagated.
//
// # Metrics
//
// Counters and gauges are registered with the default Prometheus registry
// under the "lighthouse_controller" prefix:
//   - running: 1 while the workload runs on this node
//   - promotions_total, failover_checks_total
//   - callback_errors_total{hook}, monitor_tick_errors_total
//   - sync_payloads_accepted_total{source}
package coordinator
