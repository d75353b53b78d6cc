package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arkeep-io/krra/internal/audit"
	"github.com/arkeep-io/krra/internal/version"
)

func mustVersion(t *testing.T, s string) version.Version {
	t.Helper()
	v, err := version.Parse(s)
	require.NoError(t, err)
	return v
}

func TestRegisterAssignsIDWhenEmpty(t *testing.T) {
	r := New(audit.NopRecorder{})
	agent := r.Register(Agent{Name: "scanner", Kind: KindAnalyzer, Version: mustVersion(t, "1.0.0")})
	assert.NotEmpty(t, agent.ID)
	assert.True(t, r.IsRegistered(agent.ID))
}

func TestRegisterUpdatesLatestVersionOnlyWhenGreater(t *testing.T) {
	r := New(audit.NopRecorder{})
	a := r.Register(Agent{ID: "agent-1", Version: mustVersion(t, "1.2.0")})

	r.Register(Agent{ID: a.ID, Version: mustVersion(t, "1.1.0")})
	latest, ok := r.LatestVersion(a.ID)
	require.True(t, ok)
	assert.Equal(t, "1.2.0", latest.String(), "a lower re-registration must not regress the latest-version index")

	r.Register(Agent{ID: a.ID, Version: mustVersion(t, "2.0.0")})
	latest, ok = r.LatestVersion(a.ID)
	require.True(t, ok)
	assert.Equal(t, "2.0.0", latest.String())
}

func TestRegisterOverwritesStoredRecordRegardlessOfVersion(t *testing.T) {
	r := New(audit.NopRecorder{})
	r.Register(Agent{ID: "agent-1", Name: "first", Version: mustVersion(t, "1.2.0")})
	r.Register(Agent{ID: "agent-1", Name: "second", Version: mustVersion(t, "1.1.0")})

	got, ok := r.Get("agent-1")
	require.True(t, ok)
	assert.Equal(t, "second", got.Name, "the stored record always reflects the most recent registration")
}

func TestUnregisterRemovesBothIndexes(t *testing.T) {
	r := New(audit.NopRecorder{})
	a := r.Register(Agent{Version: mustVersion(t, "1.0.0")})

	assert.True(t, r.Unregister(a.ID))
	assert.False(t, r.IsRegistered(a.ID))
	_, ok := r.LatestVersion(a.ID)
	assert.False(t, ok)

	assert.False(t, r.Unregister(a.ID), "unregistering an absent id reports false")
}

func TestUpdateRequiresExistingRecord(t *testing.T) {
	r := New(audit.NopRecorder{})
	assert.False(t, r.Update(Agent{ID: "missing", Version: mustVersion(t, "1.0.0")}))

	a := r.Register(Agent{Version: mustVersion(t, "1.0.0")})
	assert.True(t, r.Update(Agent{ID: a.ID, Name: "renamed", Version: mustVersion(t, "1.0.1")}))
	got, _ := r.Get(a.ID)
	assert.Equal(t, "renamed", got.Name)
}

func TestAllReturnsEveryRegisteredAgent(t *testing.T) {
	r := New(audit.NopRecorder{})
	r.Register(Agent{Version: mustVersion(t, "1.0.0")})
	r.Register(Agent{Version: mustVersion(t, "1.0.0")})
	assert.Len(t, r.All(), 2)
}
