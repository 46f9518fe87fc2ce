package statestore

import (
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"

	"autorunner/internal/model"
	"autorunner/pkg/herrors"
)

const manifestRelPath = "manifest.yml"

// manifestFile is the on-disk shape of manifest.yml.
type manifestFile struct {
	Repos []model.Repo `yaml:"repos"`
}

// ReadManifest returns every repo known to this hub. A missing manifest is
// treated as an empty one, not an error — a freshly initialized hub has no
// repos yet.
func (s *Store) ReadManifest() ([]model.Repo, error) {
	data, err := s.readFile(manifestRelPath)
	if herrors.Is(err, herrors.NotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var mf manifestFile
	if err := yaml.Unmarshal(data, &mf); err != nil {
		return nil, herrors.Wrap(herrors.FileCorrupt, err, manifestRelPath, "parse manifest")
	}
	return mf.Repos, nil
}

// writeManifest persists the full repo list, sorted by repo_id for a stable
// diff-friendly file.
func (s *Store) writeManifest(repos []model.Repo) error {
	sort.Slice(repos, func(i, j int) bool { return repos[i].RepoID < repos[j].RepoID })
	data, err := yaml.Marshal(manifestFile{Repos: repos})
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	return s.atomicWrite(manifestRelPath, data)
}

// RepoCreate adds a new repo to the manifest. If repo.Kind is a worktree,
// repo.WorktreeOf must resolve to an existing base repo already in the
// manifest (spec §3 Repo invariant).
func (s *Store) RepoCreate(repo model.Repo) error {
	repos, err := s.ReadManifest()
	if err != nil {
		return err
	}
	for _, r := range repos {
		if r.RepoID == repo.RepoID {
			return herrors.New(herrors.PreconditionFailed, "", "repo %s already exists", repo.RepoID)
		}
	}
	if repo.Kind == model.RepoKindWorktree {
		found := false
		for _, r := range repos {
			if r.RepoID == repo.WorktreeOf && r.Kind == model.RepoKindBase {
				found = true
				break
			}
		}
		if !found {
			return herrors.New(herrors.PreconditionFailed, "", "worktree_of %s does not resolve to an existing base repo", repo.WorktreeOf)
		}
	}
	repos = append(repos, repo)
	return s.writeManifest(repos)
}

// RepoGet returns the repo with the given id.
func (s *Store) RepoGet(repoID string) (*model.Repo, error) {
	repos, err := s.ReadManifest()
	if err != nil {
		return nil, err
	}
	for i := range repos {
		if repos[i].RepoID == repoID {
			return &repos[i], nil
		}
	}
	return nil, herrors.New(herrors.NotFound, "", "repo %s not found", repoID)
}

// RepoRemove deletes a repo from the manifest. Callers are responsible for
// any filesystem/git-branch cleanup a worktree removal implies; StateStore
// only owns the manifest entry.
func (s *Store) RepoRemove(repoID string) error {
	repos, err := s.ReadManifest()
	if err != nil {
		return err
	}
	out := repos[:0]
	found := false
	for _, r := range repos {
		if r.RepoID == repoID {
			found = true
			continue
		}
		out = append(out, r)
	}
	if !found {
		return herrors.New(herrors.NotFound, "", "repo %s not found", repoID)
	}
	return s.writeManifest(out)
}

// RepoSetDestination atomically updates a repo's destination override.
func (s *Store) RepoSetDestination(repoID string, dest *model.Destination) error {
	repos, err := s.ReadManifest()
	if err != nil {
		return err
	}
	for i := range repos {
		if repos[i].RepoID == repoID {
			repos[i].Destination = dest
			return s.writeManifest(repos)
		}
	}
	return herrors.New(herrors.NotFound, "", "repo %s not found", repoID)
}

// ResolveDestination implements the resolution order from spec §3: a
// worktree's own destination, else its base's, else {kind=local}.
func (s *Store) ResolveDestination(repoID string) (model.Destination, error) {
	repos, err := s.ReadManifest()
	if err != nil {
		return model.Destination{}, err
	}
	byID := make(map[string]model.Repo, len(repos))
	for _, r := range repos {
		byID[r.RepoID] = r
	}
	r, ok := byID[repoID]
	if !ok {
		return model.Destination{}, herrors.New(herrors.NotFound, "", "repo %s not found", repoID)
	}
	if r.Destination != nil {
		return *r.Destination, nil
	}
	if r.Kind == model.RepoKindWorktree {
		if base, ok := byID[r.WorktreeOf]; ok && base.Destination != nil {
			return *base.Destination, nil
		}
	}
	return model.Destination{Kind: model.DestinationLocal}, nil
}
