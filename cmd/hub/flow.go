package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"autorunner/internal/model"
	"autorunner/internal/statestore"
)

func runFlow(args []string) int {
	if len(args) == 0 || args[0] != "ticket_flow" {
		return usageErr("usage: flow ticket_flow {bootstrap|start|stop|status|archive} --repo --hub [--run-id] [--json]")
	}
	args = args[1:]
	if len(args) == 0 {
		return usageErr("usage: flow ticket_flow {bootstrap|start|stop|status|archive} --repo --hub [--run-id] [--json]")
	}

	switch args[0] {
	case "bootstrap":
		return flowBootstrap(args[1:])
	case "start":
		return flowStart(args[1:])
	case "stop":
		return flowStop(args[1:])
	case "status":
		return flowStatus(args[1:])
	case "archive":
		return flowArchive(args[1:])
	default:
		return usageErr("unknown flow ticket_flow subcommand %q", args[0])
	}
}

type flowFlags struct {
	hubRoot string
	repoID  string
	runID   string
	asJSON  bool
	force   bool
}

func parseFlowFlags(name string, args []string, needRepo, needRunID bool) (*flowFlags, int) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	f := &flowFlags{}
	fs.StringVar(&f.hubRoot, "hub", "", "hub root directory")
	fs.StringVar(&f.repoID, "repo", "", "repo id")
	fs.StringVar(&f.runID, "run-id", "", "flow run id")
	fs.BoolVar(&f.asJSON, "json", false, "emit JSON")
	fs.BoolVar(&f.force, "force", false, "force (archive: archive a still-active run)")
	if err := fs.Parse(args); err != nil {
		return nil, exitUsage
	}
	if f.hubRoot == "" {
		fmt.Fprintln(os.Stderr, "--hub is required")
		return nil, exitUsage
	}
	if needRepo && f.repoID == "" {
		fmt.Fprintln(os.Stderr, "--repo is required")
		return nil, exitUsage
	}
	if needRunID && f.runID == "" {
		fmt.Fprintln(os.Stderr, "--run-id is required")
		return nil, exitUsage
	}
	return f, exitOK
}

func printRun(run model.FlowRun, asJSON bool) {
	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(run)
		return
	}
	fmt.Printf("run_id=%s status=%s repo=%s\n", run.RunID, run.Status, run.RepoID)
}

// flowBootstrap starts (or reuses) the active ticket_flow run for --repo and
// blocks in the foreground until it reaches a terminal or paused state, or
// until an interrupt signal requests a graceful stop — there is no
// background hub daemon in this build for a bootstrap invocation to hand
// the run off to (spec §6.2 note: the HTTP/SSE surface is a contract for UI
// implementations, not a requirement this CLI itself must satisfy).
func flowBootstrap(args []string) int {
	f, code := parseFlowFlags("flow ticket_flow bootstrap", args, true, false)
	if f == nil {
		return code
	}

	hubStore, err := openHubStore(f.hubRoot)
	if err != nil {
		return usageErr("%v", err)
	}
	rt, err := repoRuntime(hubStore, f.repoID)
	if err != nil {
		return fail("wire runtime for repo %s: %v", f.repoID, err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	result, err := rt.Bootstrap(ctx, f.repoID)
	if err != nil {
		return fail("bootstrap: %v", err)
	}

	run := waitForSettled(ctx, rt, hubStore, result.Run.RunID)
	printRun(run, f.asJSON)
	if run.Status == model.RunFailed {
		return exitRuntimeErr
	}
	return exitOK
}

// flowStart resumes a paused run identified by --run-id and blocks the same
// way flowBootstrap does.
func flowStart(args []string) int {
	f, code := parseFlowFlags("flow ticket_flow start", args, true, true)
	if f == nil {
		return code
	}

	hubStore, err := openHubStore(f.hubRoot)
	if err != nil {
		return usageErr("%v", err)
	}
	rt, err := repoRuntime(hubStore, f.repoID)
	if err != nil {
		return fail("wire runtime for repo %s: %v", f.repoID, err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rt.Resume(ctx, f.runID); err != nil {
		return fail("start: %v", err)
	}

	run := waitForSettled(ctx, rt, hubStore, f.runID)
	printRun(run, f.asJSON)
	if run.Status == model.RunFailed {
		return exitRuntimeErr
	}
	return exitOK
}

// flowStop persists a stop request against --run-id. It does not need the
// engine driving the run to live in this process: Runtime.Stop writes
// FlowRun.StopRequested durably, and the engine (wherever it runs) observes
// it at its next safe point.
func flowStop(args []string) int {
	f, code := parseFlowFlags("flow ticket_flow stop", args, false, true)
	if f == nil {
		return code
	}

	hubStore, err := openHubStore(f.hubRoot)
	if err != nil {
		return usageErr("%v", err)
	}
	run, err := hubStore.FlowRunGet(f.runID)
	if err != nil {
		return fail("stop: %v", err)
	}
	rt, err := repoRuntime(hubStore, run.RepoID)
	if err != nil {
		return fail("wire runtime for repo %s: %v", run.RepoID, err)
	}
	if err := rt.Stop(f.runID); err != nil {
		return fail("stop: %v", err)
	}
	return exitOK
}

func flowStatus(args []string) int {
	f, code := parseFlowFlags("flow ticket_flow status", args, false, false)
	if f == nil {
		return code
	}

	hubStore, err := openHubStore(f.hubRoot)
	if err != nil {
		return usageErr("%v", err)
	}

	if f.runID != "" {
		run, err := hubStore.FlowRunGet(f.runID)
		if err != nil {
			return fail("status: %v", err)
		}
		printRun(*run, f.asJSON)
		return exitOK
	}

	runs, err := hubStore.FlowRunList(model.FlowTypeTicket)
	if err != nil {
		return fail("status: %v", err)
	}
	if f.asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(runs)
		return exitOK
	}
	for _, run := range runs {
		printRun(run, false)
	}
	return exitOK
}

func flowArchive(args []string) int {
	f, code := parseFlowFlags("flow ticket_flow archive", args, false, true)
	if f == nil {
		return code
	}

	hubStore, err := openHubStore(f.hubRoot)
	if err != nil {
		return usageErr("%v", err)
	}
	run, err := hubStore.FlowRunGet(f.runID)
	if err != nil {
		return fail("archive: %v", err)
	}
	rt, err := repoRuntime(hubStore, run.RepoID)
	if err != nil {
		return fail("wire runtime for repo %s: %v", run.RepoID, err)
	}
	if err := rt.Archive(f.runID, f.force); err != nil {
		return fail("archive: %v", err)
	}
	return exitOK
}

// waitForSettled polls the persisted FlowRun until it leaves the running
// state (paused counts as settled: spec §4.C.1 pause breaks the loop) or ctx
// is cancelled, in which case it asks the runtime to stop and waits for that
// to land before returning.
func waitForSettled(ctx context.Context, rt interface {
	Stop(runID string) error
}, store *statestore.Store, runID string) model.FlowRun {
	const pollInterval = 500 * time.Millisecond
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	stopRequested := false
	for {
		select {
		case <-ctx.Done():
			if !stopRequested {
				stopRequested = true
				_ = rt.Stop(runID)
			}
		case <-ticker.C:
		}

		run, err := store.FlowRunGet(runID)
		if err != nil {
			continue
		}
		if run.Status != model.RunRunning {
			return *run
		}
	}
}
