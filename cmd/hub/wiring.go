package main

import (
	"fmt"

	"autorunner/internal/destination"
	"autorunner/internal/eventbus"
	"autorunner/internal/flowruntime"
	"autorunner/internal/hubctx"
	"autorunner/internal/model"
	"autorunner/internal/statestore"
	"autorunner/internal/supervisor"
	"autorunner/pkg/config"
)

// openHubStore opens the StateStore rooted at hubRoot, where manifest.yml
// and pma/delivery_targets.json live (spec §6.1: these are hub-level, not
// per-repo).
func openHubStore(hubRoot string) (*statestore.Store, error) {
	if hubRoot == "" {
		return nil, fmt.Errorf("--hub is required")
	}
	return statestore.Open(hubRoot)
}

// launcherFor returns the destination.Launcher that drives agent processes
// for dest, constructing a DockerExec on demand for a docker destination
// (spec §4.F: the docker destination is a managed long-lived container,
// not a CLI shell-out).
func launcherFor(dest model.Destination) (destination.Launcher, error) {
	switch dest.Kind {
	case model.DestinationDocker:
		mounts := make([]destination.MountSpec, 0, len(dest.Mounts))
		for _, m := range dest.Mounts {
			mounts = append(mounts, destination.MountSpec{Source: m.Source, Target: m.Target, ReadOnly: m.ReadOnly})
		}
		return destination.NewDockerExec(destination.ContainerSpec{
			Name:    dest.ContainerName,
			Image:   dest.Image,
			WorkDir: dest.Workdir,
			Mounts:  mounts,
			Env:     envSlice(dest.Env),
		})
	default:
		return destination.NewLocalExec(), nil
	}
}

func envSlice(env map[string]string) []string {
	if len(env) == 0 {
		return nil
	}
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	return out
}

// repoHubContext assembles the HubContext for repoID's own root (flow runs
// and tickets are per-repo state, spec §6.1): its StateStore, a fresh
// EventBus, an AgentSupervisor, the resolved destination's Launcher, and its
// loaded Config. The hub store supplies only the manifest lookup used to
// resolve the repo's path and destination.
func repoHubContext(hubStore *statestore.Store, repoID string) (*hubctx.HubContext, error) {
	repo, err := hubStore.RepoGet(repoID)
	if err != nil {
		return nil, err
	}
	dest, err := hubStore.ResolveDestination(repoID)
	if err != nil {
		return nil, err
	}
	launcher, err := launcherFor(dest)
	if err != nil {
		return nil, fmt.Errorf("build launcher for repo %s: %w", repoID, err)
	}

	repoStore, err := statestore.Open(repo.Path)
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(repo.Path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	bus := eventbus.New()
	sup := supervisor.New(repoStore)
	return hubctx.New(repoStore, bus, sup, launcher, cfg), nil
}

// repoRuntime builds a flowruntime.Runtime from repoID's HubContext.
func repoRuntime(hubStore *statestore.Store, repoID string) (*flowruntime.Runtime, error) {
	hctx, err := repoHubContext(hubStore, repoID)
	if err != nil {
		return nil, err
	}
	return flowruntime.New(hctx.Store, hctx.Bus, hctx.Supervisor, hctx.Destination), nil
}
