package audit

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "audit.db")
	s, err := Open(path, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRecordAndListInInsertionOrder(t *testing.T) {
	s := openTestStore(t)

	s.Record("agent.registered", "agent-1", "1.0.0")
	s.Record("node.joined", "node-1", "")
	s.Record("job.routed", "job-1", "node-1")

	events, err := s.List(context.Background(), 0, 0)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, "agent.registered", events[0].Kind)
	assert.Equal(t, "node.joined", events[1].Kind)
	assert.Equal(t, "job.routed", events[2].Kind)
}

func TestListRespectsLimitAndOffset(t *testing.T) {
	s := openTestStore(t)

	for i := 0; i < 5; i++ {
		s.Record("tick", "subject", "")
	}

	events, err := s.List(context.Background(), 2, 1)
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

func TestOpenAppliesMigrationsIdempotently(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.db")
	s1, err := Open(path, zap.NewNop())
	require.NoError(t, err)
	s1.Record("agent.registered", "agent-1", "")
	require.NoError(t, s1.Close())

	s2, err := Open(path, zap.NewNop())
	require.NoError(t, err)
	defer s2.Close()

	events, err := s2.List(context.Background(), 0, 0)
	require.NoError(t, err)
	require.Len(t, events, 1, "re-opening an existing database must not re-run or duplicate migrations")
}
