// Package cluster implements the peer protocol spoken between lighthouse
// nodes: the JSON wire types of the control surface and a bounded-timeout
// HTTP client used to query and signal peers.
//
// # Overview
//
// Nodes form a static master/slave group. Every node exposes the same small
// control surface, so the client side of the protocol is symmetric: a slave
// queries its parent exactly the way an operator queries any node.
//
//	            ┌──────────────┐
//	            │    Master    │
//	            │  /status     │
//	            │  /sync       │
//	            └──────┬───────┘
//	     GET /status   │   POST /reset
//	      ┌────────────┼────────────┐
//	┌─────▼─────┐ ┌────▼──────┐ ┌───▼───────┐
//	│  Slave 0  │ │  Slave 1  │ │  Slave 2  │
//	└───────────┘ └───────────┘ └───────────┘
//
// # Communication Protocol
//
// Status (GET /status):
//   - Returns {"name", "status", "slaves"}
//   - "running" and "waiting" are healthy; anything else is down
//
// Notification (POST /reset, POST /stop):
//   - Bodiless, fire-and-forget
//   - Failures are reported to the caller and never retried
//
// Synchronization (GET /sync, POST /update):
//   - Carries an opaque JSON object, the last update payload
//
// # Failure Model
//
// PeerClient never returns an error from a query. Connection failures,
// non-2xx responses, malformed bodies and missing status fields all collapse
// to OutcomeUnreachable; deadline expiry becomes OutcomeTimeout. Callers treat
// both as "down".
//
// # Caching
//
// When a cache TTL is configured, status results are memoized per address in
// an expiring LRU so several consumers querying the same peer within one
// monitor tick share one request. Entries are never served past the TTL.
package cluster
