package cluster

import (
	"github.com/prometheus/client_golang/prometheus"
)

// MetricsNamespace prefixes every metric exported by lighthouse.
const MetricsNamespace = "lighthouse"

const subsystem = "peer"

var (
	// peerRequests counts outbound peer calls.
	// Labels: op (status, notify, sync, push), outcome (ok, unreachable, timeout)
	peerRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Subsystem: subsystem,
		Name:      "requests_total",
		Help:      "Total number of outbound peer requests by operation and outcome",
	}, []string{"op", "outcome"})

	// statusCacheHits counts status queries answered from the cache.
	statusCacheHits = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Subsystem: subsystem,
		Name:      "status_cache_hits_total",
		Help:      "Total number of peer status queries served from the cache",
	})
)

func init() {
	prometheus.MustRegister(peerRequests)
	prometheus.MustRegister(statusCacheHits)
}

func recordRequest(op string, outcome Outcome) {
	peerRequests.WithLabelValues(op, outcome.String()).Inc()
}
