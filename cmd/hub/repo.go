package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"autorunner/internal/model"
	"autorunner/internal/repoctl"
)

func runHubRepo(args []string) int {
	if len(args) == 0 {
		return usageErr("usage: hub repo {list|create|remove} ...")
	}
	switch args[0] {
	case "list":
		return hubRepoList(args[1:])
	case "create":
		return hubRepoCreate(args[1:])
	case "remove":
		return hubRepoRemove(args[1:])
	default:
		return usageErr("unknown hub repo subcommand %q", args[0])
	}
}

func hubRepoList(args []string) int {
	fs := flag.NewFlagSet("hub repo list", flag.ContinueOnError)
	hubRoot := fs.String("hub", "", "hub root directory")
	asJSON := fs.Bool("json", false, "emit JSON")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	store, err := openHubStore(*hubRoot)
	if err != nil {
		return usageErr("%v", err)
	}
	repos, err := store.ReadManifest()
	if err != nil {
		return fail("read manifest: %v", err)
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return ok(enc.Encode(repos))
	}
	for _, r := range repos {
		fmt.Printf("%s\tkind=%s\tpath=%s", r.RepoID, r.Kind, r.Path)
		if r.Kind == model.RepoKindWorktree {
			fmt.Printf("\tworktree_of=%s", r.WorktreeOf)
		}
		fmt.Println()
	}
	return exitOK
}

// hubRepoCreate registers a repo in the hub manifest and, for a worktree
// repo, also creates the git worktree on disk — StateStore.RepoCreate only
// ever touches manifest.yml (spec §3's "one logical writer" rule), so the
// filesystem side-effect is this command's job.
func hubRepoCreate(args []string) int {
	fs := flag.NewFlagSet("hub repo create", flag.ContinueOnError)
	hubRoot := fs.String("hub", "", "hub root directory")
	kind := fs.String("kind", string(model.RepoKindBase), "base|worktree")
	path := fs.String("path", "", "filesystem path (base repo) or left empty to derive a worktree path under the base repo's parent directory")
	worktreeOf := fs.String("worktree-of", "", "base repo_id this worktree branches from (required when --kind=worktree)")
	branch := fs.String("branch", "", "worktree branch name (defaults to autorunner/<repo_id>)")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	rest := fs.Args()
	if len(rest) != 1 {
		return usageErr("usage: hub repo create --hub <path> --kind base|worktree [...] <repo_id>")
	}
	repoID := rest[0]

	store, err := openHubStore(*hubRoot)
	if err != nil {
		return usageErr("%v", err)
	}

	repo := model.Repo{RepoID: repoID, Kind: model.RepoKind(*kind)}

	switch repo.Kind {
	case model.RepoKindBase:
		if *path == "" {
			return usageErr("--path is required for --kind=base")
		}
		repo.Path = *path
		repo.Initialized = true

	case model.RepoKindWorktree:
		if *worktreeOf == "" {
			return usageErr("--worktree-of is required for --kind=worktree")
		}
		base, err := store.RepoGet(*worktreeOf)
		if err != nil {
			return fail("look up base repo %s: %v", *worktreeOf, err)
		}
		repo.WorktreeOf = *worktreeOf
		repo.Path = *path
		if repo.Path == "" {
			repo.Path = filepath.Join(filepath.Dir(base.Path), repoID)
		}
		wtBranch := *branch
		if wtBranch == "" {
			wtBranch = repoctl.BranchForWorktree(repoID)
		}
		if err := repoctl.CreateWorktree(context.Background(), base.Path, repo.Path, wtBranch); err != nil {
			return fail("create worktree: %v", err)
		}
		repo.Initialized = true

	default:
		return usageErr("--kind must be base or worktree, got %q", *kind)
	}

	if err := store.RepoCreate(repo); err != nil {
		return fail("create repo: %v", err)
	}
	fmt.Println(repo.RepoID)
	return exitOK
}

// hubRepoRemove removes a repo from the manifest and, for a worktree,
// removes the git worktree and its branch from its base repo first.
func hubRepoRemove(args []string) int {
	fs := flag.NewFlagSet("hub repo remove", flag.ContinueOnError)
	hubRoot := fs.String("hub", "", "hub root directory")
	branch := fs.String("branch", "", "worktree branch to delete (defaults to autorunner/<repo_id>)")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	rest := fs.Args()
	if len(rest) != 1 {
		return usageErr("usage: hub repo remove --hub <path> <repo_id>")
	}
	repoID := rest[0]

	store, err := openHubStore(*hubRoot)
	if err != nil {
		return usageErr("%v", err)
	}
	repo, err := store.RepoGet(repoID)
	if err != nil {
		return fail("look up repo %s: %v", repoID, err)
	}

	if repo.Kind == model.RepoKindWorktree {
		base, err := store.RepoGet(repo.WorktreeOf)
		if err != nil {
			return fail("look up base repo %s: %v", repo.WorktreeOf, err)
		}
		wtBranch := *branch
		if wtBranch == "" {
			wtBranch = repoctl.BranchForWorktree(repoID)
		}
		if err := repoctl.RemoveWorktree(context.Background(), base.Path, repo.Path, wtBranch); err != nil {
			return fail("remove worktree: %v", err)
		}
	}

	if err := store.RepoRemove(repoID); err != nil {
		return fail("remove repo: %v", err)
	}
	return exitOK
}

func ok(err error) int {
	if err != nil {
		return fail("encode output: %v", err)
	}
	return exitOK
}
