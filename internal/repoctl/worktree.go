// Package repoctl performs the filesystem/git side-effects that back a
// StateStore manifest entry: a "worktree" Repo (spec §3) isn't real until
// something actually runs `git worktree add` next to its base checkout.
// StateStore itself only ever touches manifest.yml — it says so in
// RepoCreate's and RepoRemove's doc comments — so every caller that wants a
// usable worktree on disk calls here too.
package repoctl

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"autorunner/pkg/herrors"
	"autorunner/pkg/logx"
)

var logger = logx.NewLogger("repoctl")

// CreateWorktree adds a git worktree at worktreePath, checked out onto a new
// branch, off of the base repo rooted at basePath. Both paths must already
// be absolute; basePath must be a git checkout (base repo, never another
// worktree — spec §3's worktree_of always resolves to a base).
func CreateWorktree(ctx context.Context, basePath, worktreePath, branch string) error {
	if branch == "" {
		return herrors.New(herrors.PreconditionFailed, "", "branch must not be empty")
	}
	logger.Info("adding worktree %s (branch %s) off %s", worktreePath, branch, basePath)

	cmd := exec.CommandContext(ctx, "git", "-C", basePath, "worktree", "add", "-b", branch, worktreePath)
	if out, err := cmd.CombinedOutput(); err != nil {
		return herrors.Wrap(herrors.Internal, err, "", "git worktree add %s: %s", worktreePath, strings.TrimSpace(string(out)))
	}
	return nil
}

// RemoveWorktree removes the worktree at worktreePath from its base repo and
// deletes its branch, matching the Repo lifecycle invariant that "worktrees
// additionally remove their git branch" (spec §3). `git worktree remove` is
// run once, with --force, so uncommitted changes in the worktree are
// discarded; if git fails (for example because it no longer knows the
// worktree), that error is returned and the branch is left alone. A branch
// deletion failure is logged, not returned, since the worktree is already
// gone by then.
func RemoveWorktree(ctx context.Context, basePath, worktreePath, branch string) error {
	logger.Info("removing worktree %s (branch %s) from %s", worktreePath, branch, basePath)

	cmd := exec.CommandContext(ctx, "git", "-C", basePath, "worktree", "remove", "--force", worktreePath)
	if out, err := cmd.CombinedOutput(); err != nil {
		return herrors.Wrap(herrors.Internal, err, "", "git worktree remove %s: %s", worktreePath, strings.TrimSpace(string(out)))
	}

	if branch == "" {
		return nil
	}
	branchCmd := exec.CommandContext(ctx, "git", "-C", basePath, "branch", "-D", branch)
	if out, err := branchCmd.CombinedOutput(); err != nil {
		logger.Warn("delete branch %s after worktree removal: %v (%s)", branch, err, strings.TrimSpace(string(out)))
	}
	return nil
}

// BranchForWorktree derives the branch name a worktree repo checks out when
// the caller didn't pick one explicitly: repo_id is URL-safe (spec §3) so it
// doubles as a valid git branch name once slashes are normalized.
func BranchForWorktree(repoID string) string {
	return fmt.Sprintf("autorunner/%s", strings.ReplaceAll(repoID, "/", "-"))
}
