package coordinator

import (
	"time"

	"github.com/arkeep-io/krra/internal/membership"
	"github.com/arkeep-io/krra/internal/metrics"
	"github.com/arkeep-io/krra/internal/router"
)

// prometheusTimer starts a stopwatch for krra_route_latency_seconds and
// returns a func to call once the measured operation completes.
func prometheusTimer(m *metrics.Metrics) func() {
	start := time.Now()
	return func() {
		m.RouteLatencySeconds.Observe(time.Since(start).Seconds())
	}
}

// RefreshGauges recomputes krra_nodes_online and krra_jobs_active from
// current state. It is called periodically by the admin API's metrics
// endpoint handler rather than on every mutation, since these are
// point-in-time snapshots rather than monotonic counters.
func (c *Coordinator) RefreshGauges() {
	online := 0
	for _, n := range c.Membership.All() {
		if n.Status == membership.StatusOnline {
			online++
		}
	}
	c.Metrics.NodesOnline.Set(float64(online))

	running := 0
	for _, j := range c.Router.All() {
		if j.Status == router.StatusRunning {
			running++
		}
	}
	c.Metrics.JobsActive.Set(float64(running))
}
