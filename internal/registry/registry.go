// Package registry implements the agent catalog: a concurrent map from
// agent id to its most recently registered record, plus a parallel map
// tracking the highest version ever seen for that id.
package registry

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/arkeep-io/krra/internal/audit"
	"github.com/arkeep-io/krra/internal/version"
)

// Kind enumerates the declared role an Agent plays in the fleet.
type Kind string

const (
	KindAnalyzer    Kind = "Analyzer"
	KindTransformer Kind = "Transformer"
	KindValidator   Kind = "Validator"
	KindCoordinator Kind = "Coordinator"
	KindCustom      Kind = "Custom"
)

// Status tracks an Agent's current lifecycle state. Unlike Node and Job
// status, nothing in this package drives transitions out of Inactive — the
// field exists for external collaborators (the executor, the admin API) to
// report against.
type Status string

const (
	StatusActive    Status = "Active"
	StatusInactive  Status = "Inactive"
	StatusExecuting Status = "Executing"
	StatusError     Status = "Error"
	StatusUpdating  Status = "Updating"
)

// Agent is a declared compute unit: an id, a human name, a kind, an
// immutable version, a module locator (opaque reference to the external
// execution artifact), free-form metadata, and a status.
type Agent struct {
	ID             string
	Name           string
	Kind           Kind
	Version        version.Version
	Description    string
	ModuleLocator  string
	Metadata       map[string]string
	RegisteredAt   time.Time
	Status         Status
}

// Registry is the concurrent agentId -> Agent catalog, plus the parallel
// agentId -> latest-seen-Version index.
//
// Single-writer-per-key: every mutating method takes the registry-wide
// mutex for the duration of the map operation, which is cheap because no
// operation here blocks on I/O. Readers (Get, All, LatestVersion,
// IsRegistered) take the same lock in read mode, so All() always reflects a
// single consistent point in time.
type Registry struct {
	mu       sync.RWMutex
	agents   map[string]Agent
	versions map[string]version.Version

	audit audit.Recorder
}

// New returns an empty Registry. audit may be audit.NopRecorder{} if the
// caller does not want events recorded.
func New(audit audit.Recorder) *Registry {
	return &Registry{
		agents:   make(map[string]Agent),
		versions: make(map[string]version.Version),
		audit:    audit,
	}
}

// Register stores agent under its id. If agent.ID is empty, a UUIDv7 is
// generated. The latest-version index is updated iff agent.Version is
// strictly greater than anything previously recorded for this id;
// otherwise the stored record is still overwritten (update semantics) but
// the version index is left untouched. Register never fails.
func (r *Registry) Register(agent Agent) Agent {
	if agent.ID == "" {
		agent.ID = uuid.Must(uuid.NewV7()).String()
	}
	if agent.RegisteredAt.IsZero() {
		agent.RegisteredAt = time.Now().UTC()
	}
	if agent.Status == "" {
		agent.Status = StatusInactive
	}

	r.mu.Lock()
	r.agents[agent.ID] = agent
	if prev, ok := r.versions[agent.ID]; !ok || agent.Version.GreaterThan(prev) {
		r.versions[agent.ID] = agent.Version
	}
	r.mu.Unlock()

	r.audit.Record("agent.registered", agent.ID, agent.Version.String())
	return agent
}

// Unregister removes agent id from both maps. Reports false iff the id was
// absent.
func (r *Registry) Unregister(agentID string) bool {
	r.mu.Lock()
	_, existed := r.agents[agentID]
	delete(r.agents, agentID)
	delete(r.versions, agentID)
	r.mu.Unlock()

	if existed {
		r.audit.Record("agent.unregistered", agentID, "")
	}
	return existed
}

// Update overwrites the record for an already-present id, applying the same
// version-index semantics as Register. Reports false iff the id was not
// already present.
func (r *Registry) Update(agent Agent) bool {
	r.mu.Lock()
	_, existed := r.agents[agent.ID]
	if existed {
		r.agents[agent.ID] = agent
		if prev, ok := r.versions[agent.ID]; !ok || agent.Version.GreaterThan(prev) {
			r.versions[agent.ID] = agent.Version
		}
	}
	r.mu.Unlock()

	if existed {
		r.audit.Record("agent.updated", agent.ID, agent.Version.String())
	}
	return existed
}

// Get returns the agent record for id, or ok=false if absent.
func (r *Registry) Get(agentID string) (Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.agents[agentID]
	return a, ok
}

// All returns a point-in-time snapshot of every registered agent.
func (r *Registry) All() []Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Agent, 0, len(r.agents))
	for _, a := range r.agents {
		out = append(out, a)
	}
	return out
}

// LatestVersion returns the highest version ever registered for agentID.
func (r *Registry) LatestVersion(agentID string) (version.Version, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.versions[agentID]
	return v, ok
}

// IsRegistered reports whether agentID currently has a stored record.
func (r *Registry) IsRegistered(agentID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.agents[agentID]
	return ok
}
