// Package coordinator is the composition root: it owns one instance of
// every control-plane component, wires the narrow capability interfaces
// each component needs to read another's state, and exposes the handful of
// operations (submit, registerNode, unregisterNode, start, stop) that the
// external collaborators (admin API, wire transport, CLI) call into.
package coordinator

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/arkeep-io/krra/internal/audit"
	"github.com/arkeep-io/krra/internal/clock"
	"github.com/arkeep-io/krra/internal/membership"
	"github.com/arkeep-io/krra/internal/metrics"
	"github.com/arkeep-io/krra/internal/proof"
	"github.com/arkeep-io/krra/internal/registry"
	"github.com/arkeep-io/krra/internal/router"
	"github.com/arkeep-io/krra/internal/snapshot"
)

// DefaultWorkers is the size of the shared executor pool.
const DefaultWorkers = 10

// Config bundles the dependencies a Coordinator needs at construction time.
type Config struct {
	Clock     clock.Clock // nil defaults to clock.Real{}
	Audit     audit.Recorder
	AuditLog  *audit.Store // optional; backs ListAudit. nil means /api/audit returns empty.
	Snapshots *snapshot.Store
	Metrics   *metrics.Metrics // nil defaults to metrics.New()
	Logger    *zap.Logger
	Workers   int // 0 defaults to DefaultWorkers
}

// Coordinator is the composition root. It is safe for
// concurrent use; Start and Stop are idempotent-guarded.
type Coordinator struct {
	Registry   *registry.Registry
	Membership *membership.Membership
	Router     *router.Router
	Proofs     *proof.Validator
	Snapshots  *snapshot.Store
	Metrics    *metrics.Metrics
	AuditLog   *audit.Store

	logger  *zap.Logger
	pool    *workerPool
	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
}

// New constructs a Coordinator from cfg. All sub-components are
// constructed but not yet started — call Start to bring the system up.
func New(cfg Config) *Coordinator {
	if cfg.Clock == nil {
		cfg.Clock = clock.Real{}
	}
	if cfg.Audit == nil {
		cfg.Audit = audit.NopRecorder{}
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.New()
	}

	return &Coordinator{
		Registry:   registry.New(cfg.Audit),
		Membership: membership.New(cfg.Clock, cfg.Audit, logger),
		Router:     router.New(cfg.Audit),
		Proofs:     proof.New(cfg.Audit),
		Snapshots:  cfg.Snapshots,
		Metrics:    cfg.Metrics,
		AuditLog:   cfg.AuditLog,
		logger:     logger.Named("coordinator"),
		pool:       newWorkerPool(cfg.Workers),
	}
}

// Start brings every component up in dependency order: Registry and
// Proofs need no initialization beyond construction; Membership starts its
// liveness timer; Router is bound to read-only views of Registry and
// Membership. Start is a no-op if already running.
func (c *Coordinator) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.Membership.Start(runCtx, "", evictionAdapter{c.Router, c.Metrics})

	c.Router.Bind(c.Registry, nodeDirectoryAdapter{c.Membership})

	c.started = true
	c.logger.Info("coordinator started")
	return nil
}

// Stop cancels the membership sweep, prevents new work from entering the
// executor, and waits for in-flight tasks to finish. Stop is a no-op if not
// running.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.started {
		return
	}

	c.Membership.Stop()
	if c.cancel != nil {
		c.cancel()
	}
	c.pool.Drain()

	if c.AuditLog != nil {
		if err := c.AuditLog.Close(); err != nil {
			c.logger.Warn("failed to close audit log", zap.Error(err))
		}
	}

	c.started = false
	c.logger.Info("coordinator stopped")
}

// Submit delegates job placement to the router and updates the routing
// metrics to reflect the outcome.
func (c *Coordinator) Submit(job router.Job) (string, router.RouteFailure) {
	timer := prometheusTimer(c.Metrics)
	jobID, failure := c.Router.Route(job)
	timer()
	if failure == "" {
		c.Metrics.JobsRoutedTotal.Inc()
	}
	return jobID, failure
}

// NotifyCompleted delegates to the router.
func (c *Coordinator) NotifyCompleted(jobID string, output []byte) bool {
	return c.Router.NotifyCompleted(jobID, output)
}

// NotifyFailed delegates to the router and updates krra_jobs_failed_total.
func (c *Coordinator) NotifyFailed(jobID, message string) bool {
	ok := c.Router.NotifyFailed(jobID, message)
	if ok {
		c.Metrics.JobsFailedTotal.Inc()
	}
	return ok
}

// CancelJob delegates to the router.
func (c *Coordinator) CancelJob(jobID string) bool {
	return c.Router.Cancel(jobID)
}

// ListAudit returns the recorded audit history, or an empty slice if no
// audit log was configured.
func (c *Coordinator) ListAudit(ctx context.Context, limit, offset int) ([]audit.Event, error) {
	if c.AuditLog == nil {
		return nil, nil
	}
	return c.AuditLog.List(ctx, limit, offset)
}

// RecordProofValidation increments krra_proofs_validated_total for result,
// keeping the proof package itself free of Prometheus. It counts only the
// results passed to it: Validate does not call it, and neither the wire
// transport nor the admin API handlers call Validate or this method.
func (c *Coordinator) RecordProofValidation(result proof.Result) {
	c.Metrics.ProofsValidatedTotal.WithLabelValues(string(result)).Inc()
}

// RegisterNode delegates to membership.
func (c *Coordinator) RegisterNode(node membership.Node) membership.Node {
	return c.Membership.Register(node)
}

// UnregisterNode delegates to membership and cascades to the router so
// that any jobs assigned to the node are failed out — the same cascade the
// liveness sweep triggers on a timeout eviction, but for a voluntary
// departure signalled out of band.
func (c *Coordinator) UnregisterNode(nodeID string) bool {
	removed := c.Membership.Unregister(nodeID)
	if removed {
		evictionAdapter{c.Router, c.Metrics}.OnNodeEvicted(nodeID)
	}
	return removed
}

// Defer schedules fn on the shared executor. Returns an error if the
// coordinator is stopped and no longer accepting work.
func (c *Coordinator) Defer(fn func()) error {
	return c.pool.Submit(fn)
}

// nodeDirectoryAdapter adapts *membership.Membership to router.NodeDirectory
// without membership needing to know about the router package — this is
// the capability-interface pattern: the composition
// root, not the components themselves, bridges the two.
type nodeDirectoryAdapter struct {
	m *membership.Membership
}

func (a nodeDirectoryAdapter) AllNodes() []router.NodeView {
	nodes := a.m.All()
	out := make([]router.NodeView, len(nodes))
	for i, n := range nodes {
		out[i] = router.NodeView{
			ID:           n.ID,
			Status:       string(n.Status),
			Capabilities: n.Capabilities,
		}
	}
	return out
}

// evictionAdapter adapts *router.Router to membership.EvictionListener.
type evictionAdapter struct {
	r *router.Router
	m *metrics.Metrics
}

func (a evictionAdapter) OnNodeEvicted(nodeID string) {
	failedCount := len(a.r.NodeJobIDs(nodeID))
	a.r.OnNodeEvicted(nodeID)
	a.m.JobsFailedTotal.Add(float64(failedCount))
}
