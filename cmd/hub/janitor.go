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

	"autorunner/internal/janitor"
	"autorunner/internal/statestore"
	"autorunner/internal/supervisor"
)

func runHubJanitor(args []string) int {
	if len(args) == 0 {
		return usageErr("usage: hub janitor {run|serve} ...")
	}
	switch args[0] {
	case "run":
		return hubJanitorRun(args[1:])
	case "serve":
		return hubJanitorServe(args[1:])
	default:
		return usageErr("unknown hub janitor subcommand %q", args[0])
	}
}

func janitorFor(repoRoot string, scratchAge time.Duration) (*janitor.Janitor, error) {
	store, err := statestore.Open(repoRoot)
	if err != nil {
		return nil, err
	}
	sup := supervisor.New(store)
	return janitor.New(store, sup, scratchAge), nil
}

// hubJanitorRun performs a single sweep of one repo's scratch state and
// PTY registry immediately, for manual invocation or an external cron.
func hubJanitorRun(args []string) int {
	fs := flag.NewFlagSet("hub janitor run", flag.ContinueOnError)
	repoRoot := fs.String("repo", "", "repo root directory")
	scratchAge := fs.Duration("scratch-age", janitor.DefaultScratchAge, "minimum idle age before a scratch dir is swept")
	asJSON := fs.Bool("json", false, "emit JSON")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if *repoRoot == "" {
		return usageErr("--repo is required")
	}

	j, err := janitorFor(*repoRoot, *scratchAge)
	if err != nil {
		return fail("open janitor: %v", err)
	}
	stats := j.RunCycle(context.Background())

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return ok(enc.Encode(stats))
	}
	fmt.Printf("reaped=%d registry_removed=%d scratch_removed=%d errors=%d\n",
		len(stats.ReapedSessions), len(stats.RemovedRegistry), len(stats.RemovedScratch), len(stats.Errors))
	return exitOK
}

// hubJanitorServe runs the janitor's cron schedule in the foreground until
// interrupted, for a long-lived hub process to exec alongside its API
// server.
func hubJanitorServe(args []string) int {
	fs := flag.NewFlagSet("hub janitor serve", flag.ContinueOnError)
	repoRoot := fs.String("repo", "", "repo root directory")
	scratchAge := fs.Duration("scratch-age", janitor.DefaultScratchAge, "minimum idle age before a scratch dir is swept")
	schedule := fs.String("cron", "@every 5m", "cron schedule for the sweep")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if *repoRoot == "" {
		return usageErr("--repo is required")
	}

	j, err := janitorFor(*repoRoot, *scratchAge)
	if err != nil {
		return fail("open janitor: %v", err)
	}
	if err := j.Start(*schedule); err != nil {
		return fail("start janitor: %v", err)
	}
	defer j.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	return exitOK
}
