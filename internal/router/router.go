// Package router implements the job lifecycle state machine and the
// placement algorithm that assigns a submitted job to a capable, online
// node. It consults an AgentCatalog and a NodeDirectory capability on every
// routing decision but never mutates either — it is a reader of both.
package router

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/arkeep-io/krra/internal/audit"
)

// Status is a Job's position in its lifecycle.
type Status string

const (
	StatusPending   Status = "Pending"
	StatusRunning   Status = "Running"
	StatusCompleted Status = "Completed"
	StatusFailed    Status = "Failed"
	StatusCancelled Status = "Cancelled"
	StatusTimeout   Status = "Timeout"
)

// Job is a single execution request bound to an agent id.
type Job struct {
	ID              string
	AgentID         string
	Input           []byte
	Metadata        map[string]string
	CreatedAt       time.Time
	StartedAt       *time.Time
	CompletedAt     *time.Time
	Status          Status
	Output          []byte
	ExecutedByNode  string
	ErrorMessage    string
}

// AgentCatalog is the narrow view of the agent registry the router needs:
// only whether an id exists, nothing else.
type AgentCatalog interface {
	IsRegistered(agentID string) bool
}

// NodeView describes the subset of node state the router's placement scan
// reads.
type NodeView struct {
	ID           string
	Status       string // compared against "Online"
	Capabilities map[string]string
}

// NodeDirectory is the narrow view of node membership the router needs: a
// point-in-time, insertion-ordered snapshot of nodes.
type NodeDirectory interface {
	AllNodes() []NodeView
}

// RouteFailure enumerates why route() declined to place a job.
type RouteFailure string

const (
	FailureNotReady     RouteFailure = "NotReady"
	FailureAgentUnknown RouteFailure = "AgentUnknown"
	FailureNoCandidate  RouteFailure = "NoCandidate"
)

// Router owns activeJobs and the nodeId -> ordered job-id index.
// Initialized (ready) only once both collaborators are bound via Bind —
// matching the composition root's dependency-ordered startup.
type Router struct {
	mu         sync.Mutex
	activeJobs map[string]*Job
	nodeJobs   map[string][]string

	agents AgentCatalog
	nodes  NodeDirectory
	audit  audit.Recorder

	ready bool
}

// New returns a Router that is not yet ready; call Bind to supply its
// collaborators before routing any job.
func New(rec audit.Recorder) *Router {
	return &Router{
		activeJobs: make(map[string]*Job),
		nodeJobs:   make(map[string][]string),
		audit:      rec,
	}
}

// Bind supplies the collaborators the router needs to place jobs and marks
// the router ready. Called once by the composition root during start().
func (r *Router) Bind(agents AgentCatalog, nodes NodeDirectory) {
	r.mu.Lock()
	r.agents = agents
	r.nodes = nodes
	r.ready = true
	r.mu.Unlock()
}

// Route attempts to place job onto the first Online node whose
// capabilities contain "agent:" + job.AgentID, in node registration order.
// On success the job transitions Pending->Running, is recorded into
// activeJobs and nodeJobs, and its id is returned. On failure, the job is
// not recorded and ("", failure reason) is returned.
func (r *Router) Route(job Job) (string, RouteFailure) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.ready {
		return "", FailureNotReady
	}
	if !r.agents.IsRegistered(job.AgentID) {
		return "", FailureAgentUnknown
	}

	key := "agent:" + job.AgentID
	var target *NodeView
	for _, n := range r.nodes.AllNodes() {
		if n.Status != "Online" {
			continue
		}
		if _, ok := n.Capabilities[key]; !ok {
			continue
		}
		nv := n
		target = &nv
		break
	}
	if target == nil {
		return "", FailureNoCandidate
	}

	if job.ID == "" {
		job.ID = uuid.Must(uuid.NewV7()).String()
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	now := time.Now().UTC()
	job.Status = StatusRunning
	job.StartedAt = &now
	job.ExecutedByNode = target.ID

	stored := job
	stored.Input = append([]byte(nil), job.Input...)
	r.activeJobs[job.ID] = &stored
	r.nodeJobs[target.ID] = append(r.nodeJobs[target.ID], job.ID)

	r.audit.Record("job.routed", job.ID, target.ID)
	return job.ID, ""
}

// NotifyCompleted transitions jobID Running->Completed, storing a defensive
// copy of output. Returns false if jobID is unknown or not Running.
func (r *Router) NotifyCompleted(jobID string, output []byte) bool {
	return r.terminate(jobID, StatusCompleted, output, "")
}

// NotifyFailed transitions jobID Running->Failed with message. Returns
// false if jobID is unknown or not Running.
func (r *Router) NotifyFailed(jobID string, message string) bool {
	return r.terminate(jobID, StatusFailed, nil, message)
}

// Cancel transitions jobID (Pending or Running) to Cancelled. Returns false
// if the job is unknown or already terminal.
func (r *Router) Cancel(jobID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	j, ok := r.activeJobs[jobID]
	if !ok {
		return false
	}
	if j.Status != StatusPending && j.Status != StatusRunning {
		return false
	}

	wasRunning := j.Status == StatusRunning
	now := time.Now().UTC()
	j.Status = StatusCancelled
	j.CompletedAt = &now

	if wasRunning {
		r.removeFromNodeJobsLocked(j.ExecutedByNode, jobID)
	}
	r.audit.Record("job.cancelled", jobID, "")
	return true
}

func (r *Router) terminate(jobID string, status Status, output []byte, errMsg string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	j, ok := r.activeJobs[jobID]
	if !ok || j.Status != StatusRunning {
		return false
	}

	now := time.Now().UTC()
	j.Status = status
	j.CompletedAt = &now
	if output != nil {
		j.Output = append([]byte(nil), output...)
	}
	j.ErrorMessage = errMsg

	r.removeFromNodeJobsLocked(j.ExecutedByNode, jobID)

	kind := "job.completed"
	if status == StatusFailed {
		kind = "job.failed"
	}
	r.audit.Record(kind, jobID, errMsg)
	return true
}

// OnNodeEvicted transitions every job currently assigned to nodeID
// Running->Failed with reason "node-evicted", then purges the node's job
// index. Invoked by the coordinator after membership reports a removal.
func (r *Router) OnNodeEvicted(nodeID string) {
	r.mu.Lock()
	jobIDs := append([]string(nil), r.nodeJobs[nodeID]...)
	delete(r.nodeJobs, nodeID)
	for _, id := range jobIDs {
		if j, ok := r.activeJobs[id]; ok && j.Status == StatusRunning {
			now := time.Now().UTC()
			j.Status = StatusFailed
			j.CompletedAt = &now
			j.ErrorMessage = "node-evicted"
		}
	}
	r.mu.Unlock()

	for _, id := range jobIDs {
		r.audit.Record("job.failed", id, "node-evicted")
	}
}

// removeFromNodeJobsLocked removes jobID from nodeJobs[nodeID]. Caller must
// hold r.mu.
func (r *Router) removeFromNodeJobsLocked(nodeID, jobID string) {
	ids := r.nodeJobs[nodeID]
	for i, id := range ids {
		if id == jobID {
			r.nodeJobs[nodeID] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	if len(r.nodeJobs[nodeID]) == 0 {
		delete(r.nodeJobs, nodeID)
	}
}

// Get returns a defensive copy of the job record for id.
func (r *Router) Get(jobID string) (Job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.activeJobs[jobID]
	if !ok {
		return Job{}, false
	}
	return copyJob(*j), true
}

// All returns a point-in-time snapshot of every job the router knows
// about, including terminal ones (the router never purges terminal jobs on
// its own — only an external collaborator's retention policy would).
func (r *Router) All() []Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Job, 0, len(r.activeJobs))
	for _, j := range r.activeJobs {
		out = append(out, copyJob(*j))
	}
	return out
}

// NodeJobIDs returns a defensive copy of the ordered job-id list currently
// assigned to nodeID.
func (r *Router) NodeJobIDs(nodeID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.nodeJobs[nodeID]...)
}

func copyJob(j Job) Job {
	cp := j
	cp.Input = append([]byte(nil), j.Input...)
	cp.Output = append([]byte(nil), j.Output...)
	return cp
}
