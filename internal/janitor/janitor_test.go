package janitor

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autorunner/internal/model"
	"autorunner/internal/statestore"
	"autorunner/internal/supervisor"
)

func newTestJanitor(t *testing.T) (*Janitor, *statestore.Store) {
	t.Helper()
	store, err := statestore.Open(t.TempDir())
	require.NoError(t, err)
	sup := supervisor.New(store)
	return New(store, sup, time.Hour), store
}

func TestRunCycle_RemovesOrphanedRegistryEntryPastAge(t *testing.T) {
	j, store := newTestJanitor(t)

	stale := model.AgentSession{
		SessionID: "sess-stale",
		Kind:      model.AgentKindPTY,
		StartedAt: time.Now().Add(-2 * time.Hour),
		Status:    model.SessionIdle,
	}
	require.NoError(t, store.PTYRegistryUpsert(stale))

	stats := j.RunCycle(context.Background())

	assert.Contains(t, stats.RemovedRegistry, "sess-stale")
	sessions, err := store.PTYRegistryRead()
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestRunCycle_KeepsRegistryEntryWithinAge(t *testing.T) {
	j, store := newTestJanitor(t)

	fresh := model.AgentSession{
		SessionID: "sess-fresh",
		Kind:      model.AgentKindPTY,
		StartedAt: time.Now(),
		Status:    model.SessionIdle,
	}
	require.NoError(t, store.PTYRegistryUpsert(fresh))

	stats := j.RunCycle(context.Background())

	assert.Empty(t, stats.RemovedRegistry)
	sessions, err := store.PTYRegistryRead()
	require.NoError(t, err)
	assert.Len(t, sessions, 1)
}

func TestRunCycle_RemovesStaleScratchDirNotInRegistry(t *testing.T) {
	j, store := newTestJanitor(t)

	scratchDir := filepath.Join(store.StateDir(), scratchDirRelPath)
	staleDir := filepath.Join(scratchDir, "orphan-workdir")
	require.NoError(t, os.MkdirAll(staleDir, 0o755))
	oldTime := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(staleDir, oldTime, oldTime))

	stats := j.RunCycle(context.Background())

	assert.Contains(t, stats.RemovedScratch, "orphan-workdir")
	_, err := os.Stat(staleDir)
	assert.True(t, os.IsNotExist(err))
}

func TestRunCycle_KeepsScratchDirBackingLiveRegistryEntry(t *testing.T) {
	j, store := newTestJanitor(t)

	live := model.AgentSession{SessionID: "sess-live", Kind: model.AgentKindPTY, StartedAt: time.Now()}
	require.NoError(t, store.PTYRegistryUpsert(live))

	scratchDir := filepath.Join(store.StateDir(), scratchDirRelPath)
	liveDir := filepath.Join(scratchDir, "sess-live")
	require.NoError(t, os.MkdirAll(liveDir, 0o755))
	oldTime := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(liveDir, oldTime, oldTime))

	stats := j.RunCycle(context.Background())

	assert.Empty(t, stats.RemovedScratch)
	_, err := os.Stat(liveDir)
	assert.NoError(t, err)
}

func TestStartAndStop_SchedulesWithoutPanicking(t *testing.T) {
	j, _ := newTestJanitor(t)
	require.NoError(t, j.Start("@every 1h"))
	j.Stop()
}
