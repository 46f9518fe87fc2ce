package flowruntime

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autorunner/internal/eventbus"
	"autorunner/internal/model"
	"autorunner/internal/statestore"
	"autorunner/internal/supervisor"
	"autorunner/pkg/herrors"
)

func newTestRuntime(t *testing.T) (*Runtime, *statestore.Store) {
	t.Helper()
	store, err := statestore.Open(t.TempDir())
	require.NoError(t, err)
	rt := New(store, eventbus.New(), supervisor.New(store), nil)
	return rt, store
}

func TestBootstrap_NoTicketsIsPreconditionFailed(t *testing.T) {
	rt, _ := newTestRuntime(t)
	_, err := rt.Bootstrap(context.Background(), "repo-a")
	require.Error(t, err)
	assert.True(t, herrors.Is(err, herrors.PreconditionFailed))
}

func TestStop_RequiresActiveRun(t *testing.T) {
	rt, store := newTestRuntime(t)
	run := model.FlowRun{RunID: "run-1", FlowType: model.FlowTypeTicket, RepoID: "repo-a", Status: model.RunCompleted, StartedAt: time.Now().UTC()}
	require.NoError(t, store.FlowRunCreate(run))

	err := rt.Stop("run-1")
	assert.Error(t, err)
}

func TestStop_PersistsStopRequestedEvenWithoutALiveEngine(t *testing.T) {
	rt, store := newTestRuntime(t)
	run := model.FlowRun{RunID: "run-1", FlowType: model.FlowTypeTicket, RepoID: "repo-a", Status: model.RunRunning, StartedAt: time.Now().UTC()}
	require.NoError(t, store.FlowRunCreate(run))

	require.NoError(t, rt.Stop("run-1"))

	got, err := store.FlowRunGet("run-1")
	require.NoError(t, err)
	assert.True(t, got.StopRequested)
}

func TestResume_RequiresPausedRun(t *testing.T) {
	rt, store := newTestRuntime(t)
	run := model.FlowRun{RunID: "run-1", FlowType: model.FlowTypeTicket, RepoID: "repo-a", Status: model.RunRunning, StartedAt: time.Now().UTC()}
	require.NoError(t, store.FlowRunCreate(run))

	err := rt.Resume(context.Background(), "run-1")
	assert.Error(t, err)
}

func TestArchive_RefusesActiveRunWithoutForce(t *testing.T) {
	rt, store := newTestRuntime(t)
	run := model.FlowRun{RunID: "run-1", FlowType: model.FlowTypeTicket, RepoID: "repo-a", Status: model.RunRunning, StartedAt: time.Now().UTC()}
	require.NoError(t, store.FlowRunCreate(run))

	err := rt.Archive("run-1", false)
	assert.Error(t, err)

	assert.NoError(t, rt.Archive("run-1", true))
}

func TestArchive_AlwaysAllowedOnTerminalRun(t *testing.T) {
	rt, store := newTestRuntime(t)
	run := model.FlowRun{RunID: "run-1", FlowType: model.FlowTypeTicket, RepoID: "repo-a", Status: model.RunCompleted, StartedAt: time.Now().UTC()}
	require.NoError(t, store.FlowRunCreate(run))

	assert.NoError(t, rt.Archive("run-1", false))
}
