package repoctl

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func initBaseRepo(t *testing.T) string {
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
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("hello\n"), 0o644))
	run("add", "README.md")
	run("commit", "-q", "-m", "initial")
	return dir
}

func TestCreateAndRemoveWorktree(t *testing.T) {
	base := initBaseRepo(t)
	worktreePath := filepath.Join(t.TempDir(), "wt")

	require.NoError(t, CreateWorktree(context.Background(), base, worktreePath, "feature-x"))
	require.DirExists(t, worktreePath)
	require.FileExists(t, filepath.Join(worktreePath, "README.md"))

	require.NoError(t, RemoveWorktree(context.Background(), base, worktreePath, "feature-x"))
	require.NoDirExists(t, worktreePath)
}

func TestCreateWorktree_RejectsEmptyBranch(t *testing.T) {
	base := initBaseRepo(t)
	err := CreateWorktree(context.Background(), base, filepath.Join(t.TempDir(), "wt"), "")
	require.Error(t, err)
}

func TestBranchForWorktree_NormalizesSlashes(t *testing.T) {
	require.Equal(t, "autorunner/team-svc", BranchForWorktree("team/svc"))
}
