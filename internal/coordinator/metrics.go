package coordinator

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dreamware/lighthouse/internal/cluster"
)

const subsystem = "controller"

var (
	// nodeRunning is 1 while the host workload is running on this node.
	nodeRunning = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: cluster.MetricsNamespace,
		Subsystem: subsystem,
		Name:      "running",
		Help:      "1 if this node is running the host workload, 0 otherwise",
	})

	// promotions counts slave promotions performed by this node.
	promotions = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: cluster.MetricsNamespace,
		Subsystem: subsystem,
		Name:      "promotions_total",
		Help:      "Total number of promotions to active",
	})

	// failoverChecks counts failover checks entered after the parent was seen down.
	failoverChecks = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: cluster.MetricsNamespace,
		Subsystem: subsystem,
		Name:      "failover_checks_total",
		Help:      "Total number of failover checks started",
	})

	// callbackErrors counts lifecycle callbacks that returned an error or panicked.
	// Labels: hook (start, stop, update)
	callbackErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: cluster.MetricsNamespace,
		Subsystem: subsystem,
		Name:      "callback_errors_total",
		Help:      "Total number of failed lifecycle callback invocations",
	}, []string{"hook"})

	// monitorTickErrors counts monitor ticks that failed.
	monitorTickErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: cluster.MetricsNamespace,
		Subsystem: subsystem,
		Name:      "monitor_tick_errors_total",
		Help:      "Total number of monitor ticks that returned an error or panicked",
	})

	// payloadsAccepted counts synchronization payloads stored by this node.
	// Labels: source (peer, push)
	payloadsAccepted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: cluster.MetricsNamespace,
		Subsystem: subsystem,
		Name:      "sync_payloads_accepted_total",
		Help:      "Total number of synchronization payloads accepted",
	}, []string{"source"})
)

func init() {
	prometheus.MustRegister(nodeRunning)
	prometheus.MustRegister(promotions)
	prometheus.MustRegister(failoverChecks)
	prometheus.MustRegister(callbackErrors)
	prometheus.MustRegister(monitorTickErrors)
	prometheus.MustRegister(payloadsAccepted)
}

// RecordRunning sets the running gauge.
func RecordRunning(running bool) {
	if running {
		nodeRunning.Set(1)
	} else {
		nodeRunning.Set(0)
	}
}
