// Package membership implements the node directory and its heartbeat-based
// liveness sweep. It is modeled closely on the reference service's
// agentmanager package (a concurrent map of connected peers protected by a
// single RWMutex) combined with the health-monitor pattern of periodically
// sweeping for silence, generalized here to accept an injected clock so the
// sweep is deterministic under test.
package membership

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/arkeep-io/krra/internal/audit"
	"github.com/arkeep-io/krra/internal/clock"
)

const (
	// HeartbeatInterval is how often the liveness sweep runs.
	HeartbeatInterval = 10 * time.Second
	// NodeTimeout is the maximum silence tolerated before a node is evicted.
	NodeTimeout = 30 * time.Second
)

// Status tracks a Node's liveness/availability state.
type Status string

const (
	StatusOnline       Status = "Online"
	StatusBusy         Status = "Busy"
	StatusUnresponsive Status = "Unresponsive"
	StatusOffline      Status = "Offline"
	StatusError        Status = "Error"
)

// Node is a single fleet member: its network location, the capability
// predicates it advertises, and its liveness bookkeeping.
type Node struct {
	ID            string
	Hostname      string
	Address       string
	Port          int
	Capabilities  map[string]string
	JoinedAt      time.Time
	LastHeartbeat time.Time
	Status        Status
}

// HasCapability reports whether the node advertises the given capability
// key — e.g. "agent:" + agentId.
func (n Node) HasCapability(key string) bool {
	_, ok := n.Capabilities[key]
	return ok
}

// EvictionListener is notified when the liveness sweep removes a node for
// silence. The Coordinator wires this to JobRouter.OnNodeEvicted.
type EvictionListener interface {
	OnNodeEvicted(nodeID string)
}

// Membership is the concurrent nodeId -> Node directory plus the
// cancellable liveness sweep. registrationOrder preserves insertion order
// so that All() — and therefore the router's placement scan — is
// deterministic, since the router's placement scan is first-match.
type Membership struct {
	mu                sync.RWMutex
	nodes             map[string]Node
	registrationOrder []string

	clock  clock.Clock
	audit  audit.Recorder
	logger *zap.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// New returns an idle Membership. Call Start to begin the liveness sweep.
func New(c clock.Clock, rec audit.Recorder, logger *zap.Logger) *Membership {
	return &Membership{
		nodes:  make(map[string]Node),
		clock:  c,
		audit:  rec,
		logger: logger.Named("membership"),
	}
}

// Register inserts node (or overwrites an existing record for the same id),
// sets status Online, and stamps LastHeartbeat to now.
func (m *Membership) Register(node Node) Node {
	now := m.clock.Now()
	node.JoinedAt = now
	node.LastHeartbeat = now
	node.Status = StatusOnline

	m.mu.Lock()
	if _, existed := m.nodes[node.ID]; !existed {
		m.registrationOrder = append(m.registrationOrder, node.ID)
	}
	m.nodes[node.ID] = node
	m.mu.Unlock()

	m.audit.Record("node.joined", node.ID, node.Hostname)
	return node
}

// Unregister removes nodeID. Reports false iff the id was absent.
func (m *Membership) Unregister(nodeID string) bool {
	m.mu.Lock()
	_, existed := m.nodes[nodeID]
	if existed {
		delete(m.nodes, nodeID)
		m.removeFromOrderLocked(nodeID)
	}
	m.mu.Unlock()

	if existed {
		m.audit.Record("node.left", nodeID, "")
	}
	return existed
}

func (m *Membership) removeFromOrderLocked(nodeID string) {
	for i, id := range m.registrationOrder {
		if id == nodeID {
			m.registrationOrder = append(m.registrationOrder[:i], m.registrationOrder[i+1:]...)
			return
		}
	}
}

// Heartbeat refreshes LastHeartbeat for nodeID to now. Reports false iff the
// id is unknown.
func (m *Membership) Heartbeat(nodeID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.nodes[nodeID]
	if !ok {
		return false
	}
	n.LastHeartbeat = m.clock.Now()
	m.nodes[nodeID] = n
	return true
}

// SetStatus updates nodeID's status in place (e.g. Busy, Error, Offline).
// Reports false iff the id is unknown.
func (m *Membership) SetStatus(nodeID string, status Status) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.nodes[nodeID]
	if !ok {
		return false
	}
	n.Status = status
	m.nodes[nodeID] = n
	return true
}

// Get returns the node record for id, or ok=false if absent.
func (m *Membership) Get(nodeID string) (Node, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n, ok := m.nodes[nodeID]
	return n, ok
}

// All returns every node in registration order — a point-in-time snapshot
// the router's placement scan can safely iterate without holding the lock.
func (m *Membership) All() []Node {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Node, 0, len(m.nodes))
	for _, id := range m.registrationOrder {
		out = append(out, m.nodes[id])
	}
	return out
}

// Start launches the liveness sweep in its own goroutine. self is compared
// against during the sweep as a defensive guard against self-eviction —
// the coordinator passes "" since it never registers itself as a node.
// Start is a no-op if already running.
func (m *Membership) Start(ctx context.Context, self string, onEvict EvictionListener) {
	if m.cancel != nil {
		return
	}

	sweepCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})

	ticker := m.clock.NewTicker(HeartbeatInterval)
	go func() {
		defer close(m.done)
		defer ticker.Stop()
		for {
			select {
			case <-sweepCtx.Done():
				return
			case <-ticker.C():
				m.sweep(self, onEvict)
			}
		}
	}()
}

// Stop cancels the liveness sweep and blocks until the in-progress sweep
// (if any) completes. Cancellation is cooperative: the current tick always
// runs to completion before the goroutine exits.
func (m *Membership) Stop() {
	if m.cancel == nil {
		return
	}
	m.cancel()
	<-m.done
	m.cancel = nil
}

// sweep evicts every node (other than self) whose last heartbeat is older
// than NodeTimeout.
func (m *Membership) sweep(self string, onEvict EvictionListener) {
	now := m.clock.Now()

	m.mu.RLock()
	var stale []string
	for _, id := range m.registrationOrder {
		if id == self {
			continue
		}
		n := m.nodes[id]
		if now.Sub(n.LastHeartbeat) > NodeTimeout {
			stale = append(stale, id)
		}
	}
	m.mu.RUnlock()

	for _, id := range stale {
		if m.Unregister(id) {
			m.logger.Info("evicted unresponsive node", zap.String("node_id", id))
			m.audit.Record("node.evicted", id, "timeout")
			if onEvict != nil {
				onEvict.OnNodeEvicted(id)
			}
		}
	}
}
