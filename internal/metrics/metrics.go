// Package metrics exposes the coordinator's internal state as Prometheus
// gauges and counters, registered against a dedicated registry rather than
// the global default so tests can construct an isolated instance.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics bundles every series the Admin API's /metrics endpoint exposes.
type Metrics struct {
	Registry *prometheus.Registry

	NodesOnline         prometheus.Gauge
	JobsActive          prometheus.Gauge
	JobsRoutedTotal     prometheus.Counter
	JobsFailedTotal     prometheus.Counter
	ProofsValidatedTotal *prometheus.CounterVec
	RouteLatencySeconds prometheus.Histogram
}

// New constructs and registers every series on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		Registry: reg,
		NodesOnline: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "krra_nodes_online",
			Help: "Number of nodes currently known to be Online.",
		}),
		JobsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "krra_jobs_active",
			Help: "Number of jobs currently in the Running state.",
		}),
		JobsRoutedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "krra_jobs_routed_total",
			Help: "Total number of jobs successfully routed to a node.",
		}),
		JobsFailedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "krra_jobs_failed_total",
			Help: "Total number of jobs that transitioned to Failed.",
		}),
		ProofsValidatedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "krra_proofs_validated_total",
			Help: "Total number of proof validations, labeled by outcome.",
		}, []string{"result"}),
		RouteLatencySeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "krra_route_latency_seconds",
			Help:    "Latency of the placement algorithm's route() call.",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		m.NodesOnline,
		m.JobsActive,
		m.JobsRoutedTotal,
		m.JobsFailedTotal,
		m.ProofsValidatedTotal,
		m.RouteLatencySeconds,
	)
	return m
}
