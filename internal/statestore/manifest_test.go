package statestore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autorunner/internal/model"
)

func TestRepoCreateGetRemove(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.RepoCreate(model.Repo{RepoID: "repo-a", Path: "/repos/a", Kind: model.RepoKindBase}))

	got, err := store.RepoGet("repo-a")
	require.NoError(t, err)
	assert.Equal(t, "/repos/a", got.Path)

	require.NoError(t, store.RepoRemove("repo-a"))
	_, err = store.RepoGet("repo-a")
	assert.Error(t, err)
}

func TestRepoCreate_RejectsDuplicateID(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.RepoCreate(model.Repo{RepoID: "repo-a", Path: "/repos/a", Kind: model.RepoKindBase}))
	err := store.RepoCreate(model.Repo{RepoID: "repo-a", Path: "/repos/a-again", Kind: model.RepoKindBase})
	assert.Error(t, err)
}

func TestRepoCreate_WorktreeRequiresExistingBase(t *testing.T) {
	store := newTestStore(t)
	err := store.RepoCreate(model.Repo{RepoID: "wt", Path: "/repos/wt", Kind: model.RepoKindWorktree, WorktreeOf: "missing-base"})
	assert.Error(t, err)

	require.NoError(t, store.RepoCreate(model.Repo{RepoID: "base", Path: "/repos/base", Kind: model.RepoKindBase}))
	require.NoError(t, store.RepoCreate(model.Repo{RepoID: "wt", Path: "/repos/wt", Kind: model.RepoKindWorktree, WorktreeOf: "base"}))
}

func TestResolveDestination_DefaultsToLocal(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.RepoCreate(model.Repo{RepoID: "repo-a", Path: "/repos/a", Kind: model.RepoKindBase}))

	dest, err := store.ResolveDestination("repo-a")
	require.NoError(t, err)
	assert.Equal(t, model.DestinationLocal, dest.Kind)
}

func TestResolveDestination_WorktreeInheritsBase(t *testing.T) {
	store := newTestStore(t)
	baseDest := &model.Destination{Kind: model.DestinationDocker, Image: "codex:latest"}
	require.NoError(t, store.RepoCreate(model.Repo{RepoID: "base", Path: "/repos/base", Kind: model.RepoKindBase, Destination: baseDest}))
	require.NoError(t, store.RepoCreate(model.Repo{RepoID: "wt", Path: "/repos/wt", Kind: model.RepoKindWorktree, WorktreeOf: "base"}))

	dest, err := store.ResolveDestination("wt")
	require.NoError(t, err)
	assert.Equal(t, model.DestinationDocker, dest.Kind)
	assert.Equal(t, "codex:latest", dest.Image)
}

func TestResolveDestination_WorktreeOwnOverrideWins(t *testing.T) {
	store := newTestStore(t)
	baseDest := &model.Destination{Kind: model.DestinationDocker, Image: "codex:latest"}
	require.NoError(t, store.RepoCreate(model.Repo{RepoID: "base", Path: "/repos/base", Kind: model.RepoKindBase, Destination: baseDest}))
	ownDest := &model.Destination{Kind: model.DestinationLocal}
	require.NoError(t, store.RepoCreate(model.Repo{RepoID: "wt", Path: "/repos/wt", Kind: model.RepoKindWorktree, WorktreeOf: "base", Destination: ownDest}))

	dest, err := store.ResolveDestination("wt")
	require.NoError(t, err)
	assert.Equal(t, model.DestinationLocal, dest.Kind)
}

func TestRepoSetDestination(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.RepoCreate(model.Repo{RepoID: "repo-a", Path: "/repos/a", Kind: model.RepoKindBase}))
	require.NoError(t, store.RepoSetDestination("repo-a", &model.Destination{Kind: model.DestinationDocker, Image: "x"}))

	dest, err := store.ResolveDestination("repo-a")
	require.NoError(t, err)
	assert.Equal(t, model.DestinationDocker, dest.Kind)
	assert.Equal(t, "x", dest.Image)
}

func TestRepoSetDestination_UnknownRepo(t *testing.T) {
	store := newTestStore(t)
	err := store.RepoSetDestination("nope", &model.Destination{Kind: model.DestinationLocal})
	assert.Error(t, err)
}
