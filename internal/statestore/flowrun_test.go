package statestore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autorunner/internal/model"
	"autorunner/pkg/herrors"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(t.TempDir())
	require.NoError(t, err)
	return store
}

func TestFlowRunCreateAndGet(t *testing.T) {
	store := newTestStore(t)
	run := model.FlowRun{RunID: "run-1", FlowType: model.FlowTypeTicket, RepoID: "repo-a", Status: model.RunRunning, StartedAt: time.Now().UTC()}
	require.NoError(t, store.FlowRunCreate(run))

	got, err := store.FlowRunGet("run-1")
	require.NoError(t, err)
	assert.Equal(t, run.RunID, got.RunID)
	assert.Equal(t, model.RunRunning, got.Status)
}

func TestFlowRunGet_MissingReturnsNotFound(t *testing.T) {
	store := newTestStore(t)
	_, err := store.FlowRunGet("nope")
	require.Error(t, err)
	assert.True(t, herrors.Is(err, herrors.NotFound))
}

func TestActiveFlowRun_OnlyReturnsNonTerminal(t *testing.T) {
	store := newTestStore(t)
	terminal := model.FlowRun{RunID: "done", FlowType: model.FlowTypeTicket, Status: model.RunCompleted, StartedAt: time.Now().UTC().Add(-time.Hour)}
	active := model.FlowRun{RunID: "active", FlowType: model.FlowTypeTicket, Status: model.RunRunning, StartedAt: time.Now().UTC()}
	require.NoError(t, store.FlowRunCreate(terminal))
	require.NoError(t, store.FlowRunCreate(active))

	got, err := store.ActiveFlowRun(model.FlowTypeTicket)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "active", got.RunID)
}

func TestActiveFlowRun_NoneReturnsNil(t *testing.T) {
	store := newTestStore(t)
	run := model.FlowRun{RunID: "done", FlowType: model.FlowTypeTicket, Status: model.RunStopped, StartedAt: time.Now().UTC()}
	require.NoError(t, store.FlowRunCreate(run))

	got, err := store.ActiveFlowRun(model.FlowTypeTicket)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestFlowRunList_NewestFirst(t *testing.T) {
	store := newTestStore(t)
	older := model.FlowRun{RunID: "older", FlowType: model.FlowTypeTicket, StartedAt: time.Now().UTC().Add(-time.Hour)}
	newer := model.FlowRun{RunID: "newer", FlowType: model.FlowTypeTicket, StartedAt: time.Now().UTC()}
	require.NoError(t, store.FlowRunCreate(older))
	require.NoError(t, store.FlowRunCreate(newer))

	runs, err := store.FlowRunList(model.FlowTypeTicket)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "newer", runs[0].RunID)
	assert.Equal(t, "older", runs[1].RunID)
}

func TestFlowRunArchiveTickets_NoTicketsDirIsNoop(t *testing.T) {
	store := newTestStore(t)
	err := store.FlowRunArchiveTickets("run-1")
	assert.NoError(t, err)
}
