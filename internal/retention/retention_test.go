package retention

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/arkeep-io/krra/internal/snapshot"
)

func TestRunNowPrunesEveryGivenComponent(t *testing.T) {
	store, err := snapshot.Open(t.TempDir())
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err := store.Create("component-a", []byte("payload"))
		require.NoError(t, err)
	}
	for i := 0; i < 2; i++ {
		_, err := store.Create("component-b", []byte("payload"))
		require.NoError(t, err)
	}

	sched, err := New(store, 1, zap.NewNop())
	require.NoError(t, err)

	sched.RunNow([]string{"component-a", "component-b"})

	infosA, err := store.List("component-a")
	require.NoError(t, err)
	assert.Len(t, infosA, 1)

	infosB, err := store.List("component-b")
	require.NoError(t, err)
	assert.Len(t, infosB, 1)
}

func TestRunNowToleratesUnknownComponent(t *testing.T) {
	store, err := snapshot.Open(t.TempDir())
	require.NoError(t, err)

	sched, err := New(store, 1, zap.NewNop())
	require.NoError(t, err)

	assert.NotPanics(t, func() { sched.RunNow([]string{"never-created"}) })
}
