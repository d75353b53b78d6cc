package coordinator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/arkeep-io/krra/internal/clock"
	"github.com/arkeep-io/krra/internal/registry"
	"github.com/arkeep-io/krra/internal/router"
	"github.com/arkeep-io/krra/internal/version"
)

func newTestCoordinator(t *testing.T) *Coordinator {
	t.Helper()
	c := New(Config{Clock: clock.NewFake(time.Now()), Logger: zap.NewNop()})
	require.NoError(t, c.Start(context.Background()))
	t.Cleanup(c.Stop)
	return c
}

func mustVersion(t *testing.T) version.Version {
	t.Helper()
	v, err := version.Parse("1.0.0")
	require.NoError(t, err)
	return v
}

func TestSubmitRoutesToCapableOnlineNode(t *testing.T) {
	c := newTestCoordinator(t)

	agent := c.Registry.Register(registry.Agent{Name: "scanner", Version: mustVersion(t)})
	node := c.RegisterNode(nodeWithCapability(agent.ID))

	jobID, failure := c.Submit(router.Job{AgentID: agent.ID})
	require.Empty(t, failure)

	job, ok := c.Router.Get(jobID)
	require.True(t, ok)
	assert.Equal(t, node.ID, job.ExecutedByNode)
}

func TestSubmitFailsForUnknownAgent(t *testing.T) {
	c := newTestCoordinator(t)
	_, failure := c.Submit(router.Job{AgentID: "unknown"})
	assert.Equal(t, router.FailureAgentUnknown, failure)
}

func TestUnregisterNodeCascadesJobFailure(t *testing.T) {
	c := newTestCoordinator(t)
	agent := c.Registry.Register(registry.Agent{Version: mustVersion(t)})
	node := c.RegisterNode(nodeWithCapability(agent.ID))

	jobID, failure := c.Submit(router.Job{AgentID: agent.ID})
	require.Empty(t, failure)

	require.True(t, c.UnregisterNode(node.ID))

	job, ok := c.Router.Get(jobID)
	require.True(t, ok)
	assert.Equal(t, router.StatusFailed, job.Status)
}

func TestCancelJobDelegatesToRouter(t *testing.T) {
	c := newTestCoordinator(t)
	agent := c.Registry.Register(registry.Agent{Version: mustVersion(t)})
	c.RegisterNode(nodeWithCapability(agent.ID))

	jobID, _ := c.Submit(router.Job{AgentID: agent.ID})
	assert.True(t, c.CancelJob(jobID))
}

func TestListAuditReturnsNilWithoutAuditLog(t *testing.T) {
	c := newTestCoordinator(t)
	events, err := c.ListAudit(context.Background(), 0, 0)
	require.NoError(t, err)
	assert.Nil(t, events)
}

func TestRefreshGaugesReflectsCurrentState(t *testing.T) {
	c := newTestCoordinator(t)
	agent := c.Registry.Register(registry.Agent{Version: mustVersion(t)})
	c.RegisterNode(nodeWithCapability(agent.ID))
	c.Submit(router.Job{AgentID: agent.ID})

	c.RefreshGauges()
	assert.Equal(t, float64(1), gaugeValue(c.Metrics.NodesOnline))
	assert.Equal(t, float64(1), gaugeValue(c.Metrics.JobsActive))
}
