package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arkeep-io/krra/internal/audit"
)

type fakeCatalog struct {
	known map[string]bool
}

func (f fakeCatalog) IsRegistered(agentID string) bool { return f.known[agentID] }

type fakeDirectory struct {
	nodes []NodeView
}

func (f fakeDirectory) AllNodes() []NodeView { return f.nodes }

func newBoundRouter(catalogKnown map[string]bool, nodes []NodeView) *Router {
	r := New(audit.NopRecorder{})
	r.Bind(fakeCatalog{known: catalogKnown}, fakeDirectory{nodes: nodes})
	return r
}

func TestRouteFailsWhenNotBound(t *testing.T) {
	r := New(audit.NopRecorder{})
	_, failure := r.Route(Job{AgentID: "agent-1"})
	assert.Equal(t, FailureNotReady, failure)
}

func TestRouteFailsForUnknownAgent(t *testing.T) {
	r := newBoundRouter(map[string]bool{}, nil)
	_, failure := r.Route(Job{AgentID: "agent-1"})
	assert.Equal(t, FailureAgentUnknown, failure)
}

func TestRouteFailsWhenNoCapableNodeOnline(t *testing.T) {
	r := newBoundRouter(map[string]bool{"agent-1": true}, []NodeView{
		{ID: "node-1", Status: "Offline", Capabilities: map[string]string{"agent:agent-1": ""}},
		{ID: "node-2", Status: "Online", Capabilities: map[string]string{"agent:other": ""}},
	})
	_, failure := r.Route(Job{AgentID: "agent-1"})
	assert.Equal(t, FailureNoCandidate, failure)
}

func TestRoutePlacesOnFirstMatchingNodeInOrder(t *testing.T) {
	r := newBoundRouter(map[string]bool{"agent-1": true}, []NodeView{
		{ID: "node-1", Status: "Online", Capabilities: map[string]string{"agent:agent-1": ""}},
		{ID: "node-2", Status: "Online", Capabilities: map[string]string{"agent:agent-1": ""}},
	})
	jobID, failure := r.Route(Job{AgentID: "agent-1"})
	require.Empty(t, failure)

	job, ok := r.Get(jobID)
	require.True(t, ok)
	assert.Equal(t, StatusRunning, job.Status)
	assert.Equal(t, "node-1", job.ExecutedByNode)
	assert.Equal(t, []string{jobID}, r.NodeJobIDs("node-1"))
}

func TestNotifyCompletedStoresOutputAndSurvivesInActiveJobs(t *testing.T) {
	r := newBoundRouter(map[string]bool{"agent-1": true}, []NodeView{
		{ID: "node-1", Status: "Online", Capabilities: map[string]string{"agent:agent-1": ""}},
	})
	jobID, _ := r.Route(Job{AgentID: "agent-1"})

	require.True(t, r.NotifyCompleted(jobID, []byte("result")))

	job, ok := r.Get(jobID)
	require.True(t, ok, "a terminal job must remain readable from activeJobs")
	assert.Equal(t, StatusCompleted, job.Status)
	assert.Equal(t, []byte("result"), job.Output)
	assert.NotNil(t, job.CompletedAt)
	assert.Empty(t, r.NodeJobIDs("node-1"), "the node job index is purged on completion")
}

func TestNotifyFailedRequiresRunningJob(t *testing.T) {
	r := newBoundRouter(map[string]bool{"agent-1": true}, []NodeView{
		{ID: "node-1", Status: "Online", Capabilities: map[string]string{"agent:agent-1": ""}},
	})
	jobID, _ := r.Route(Job{AgentID: "agent-1"})
	require.True(t, r.NotifyFailed(jobID, "boom"))

	assert.False(t, r.NotifyFailed(jobID, "again"), "a terminal job cannot be failed a second time")

	job, _ := r.Get(jobID)
	assert.Equal(t, StatusFailed, job.Status)
	assert.Equal(t, "boom", job.ErrorMessage)
}

func TestCancelRunningJob(t *testing.T) {
	r := newBoundRouter(map[string]bool{"agent-1": true}, []NodeView{
		{ID: "node-1", Status: "Online", Capabilities: map[string]string{"agent:agent-1": ""}},
	})
	jobID, _ := r.Route(Job{AgentID: "agent-1"})

	require.True(t, r.Cancel(jobID))
	job, _ := r.Get(jobID)
	assert.Equal(t, StatusCancelled, job.Status)

	assert.False(t, r.Cancel(jobID), "cancelling an already-terminal job reports false")
	assert.False(t, r.Cancel("missing"))
}

func TestOnNodeEvictedFailsOutRunningJobs(t *testing.T) {
	r := newBoundRouter(map[string]bool{"agent-1": true}, []NodeView{
		{ID: "node-1", Status: "Online", Capabilities: map[string]string{"agent:agent-1": ""}},
	})
	jobID, _ := r.Route(Job{AgentID: "agent-1"})

	r.OnNodeEvicted("node-1")

	job, ok := r.Get(jobID)
	require.True(t, ok)
	assert.Equal(t, StatusFailed, job.Status)
	assert.Equal(t, "node-evicted", job.ErrorMessage)
	assert.Empty(t, r.NodeJobIDs("node-1"))
}

func TestCopyJobIsDefensive(t *testing.T) {
	r := newBoundRouter(map[string]bool{"agent-1": true}, []NodeView{
		{ID: "node-1", Status: "Online", Capabilities: map[string]string{"agent:agent-1": ""}},
	})
	jobID, _ := r.Route(Job{AgentID: "agent-1", Input: []byte("original")})

	job, _ := r.Get(jobID)
	job.Input[0] = 'X'

	again, _ := r.Get(jobID)
	assert.Equal(t, byte('o'), again.Input[0], "mutating a returned Job must not affect router state")
}
