// Package main implements the lighthouse daemon, which runs one node of a
// master/slave group and serves its control surface over HTTP.
//
// Architecture:
//
//	┌─────────────────────────────────────────┐
//	│               lighthouse                │
//	├─────────────────────────────────────────┤
//	│  HTTP API:                              │
//	│    /status, /status/all - Status views  │
//	│    /reset, /stop        - Lifecycle     │
//	│    /sync, /update       - State sync    │
//	│    /status/temporary    - Maintenance   │
//	│    /app/kv/{key}        - Replicated KV │
//	│    /metrics             - Prometheus    │
//	├─────────────────────────────────────────┤
//	│  Components:                            │
//	│    Controller     - Failover machine    │
//	│    HealthMonitor  - Parent polling      │
//	│    PeerClient     - Peer protocol       │
//	│    MemoryStore    - Workload state      │
//	└─────────────────────────────────────────┘
//
// Example usage:
//
//	# Start a node
//	lighthouse run --config master.yaml --log-level debug
//
//	# Show every node known to it
//	lighthouse status --addr 10.0.0.1:8000 --all
//
//	# Write a key on the active node; standbys receive the store
//	curl -X PUT 10.0.0.1:8000/app/kv/color -d '"blue"'
//
//	# Put it into maintenance for ten minutes
//	curl -X POST 10.0.0.1:8000/status/temporary \
//	  -d '{"message":"maintenance","duration":600}'
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
