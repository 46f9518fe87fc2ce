package main

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func initBaseRepoDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	run := func(args ...string) {
		cmd := exec.Command("git", append([]string{"-C", dir}, args...)...)
		out, err := cmd.CombinedOutput()
		require.NoErrorf(t, err, "git %v: %s", args, out)
	}
	run("init", "-q")
	run("config", "user.email", "test@example.com")
	run("config", "user.name", "test")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("hi\n"), 0o644))
	run("add", "README.md")
	run("commit", "-q", "-m", "initial")
	return dir
}

func TestHubRepoCreate_BaseRepoRegistersManifestEntry(t *testing.T) {
	hubRoot := t.TempDir()
	basePath := t.TempDir()

	code := run([]string{"hub", "repo", "create", "--hub", hubRoot, "--kind", "base", "--path", basePath, "repo-a"})
	require.Equal(t, exitOK, code)

	store, err := openHubStore(hubRoot)
	require.NoError(t, err)
	repo, err := store.RepoGet("repo-a")
	require.NoError(t, err)
	require.Equal(t, basePath, repo.Path)
}

func TestHubRepoCreate_WorktreeCreatesGitWorktreeAndManifestEntry(t *testing.T) {
	hubRoot := t.TempDir()
	basePath := initBaseRepoDir(t)

	code := run([]string{"hub", "repo", "create", "--hub", hubRoot, "--kind", "base", "--path", basePath, "repo-base"})
	require.Equal(t, exitOK, code)

	worktreePath := filepath.Join(t.TempDir(), "wt")
	code = run([]string{"hub", "repo", "create", "--hub", hubRoot, "--kind", "worktree", "--worktree-of", "repo-base", "--path", worktreePath, "repo-wt"})
	require.Equal(t, exitOK, code)
	require.DirExists(t, worktreePath)

	store, err := openHubStore(hubRoot)
	require.NoError(t, err)
	repo, err := store.RepoGet("repo-wt")
	require.NoError(t, err)
	require.Equal(t, "repo-base", repo.WorktreeOf)
}

func TestHubRepoRemove_WorktreeRemovesGitWorktree(t *testing.T) {
	hubRoot := t.TempDir()
	basePath := initBaseRepoDir(t)
	require.Equal(t, exitOK, run([]string{"hub", "repo", "create", "--hub", hubRoot, "--kind", "base", "--path", basePath, "repo-base"}))

	worktreePath := filepath.Join(t.TempDir(), "wt")
	require.Equal(t, exitOK, run([]string{"hub", "repo", "create", "--hub", hubRoot, "--kind", "worktree", "--worktree-of", "repo-base", "--path", worktreePath, "repo-wt"}))

	code := run([]string{"hub", "repo", "remove", "--hub", hubRoot, "repo-wt"})
	require.Equal(t, exitOK, code)
	require.NoDirExists(t, worktreePath)

	store, err := openHubStore(hubRoot)
	require.NoError(t, err)
	_, err = store.RepoGet("repo-wt")
	require.Error(t, err)
}

func TestHubRepoCreate_RejectsMissingPathForBase(t *testing.T) {
	code := run([]string{"hub", "repo", "create", "--hub", t.TempDir(), "--kind", "base", "repo-a"})
	require.Equal(t, exitUsage, code)
}
