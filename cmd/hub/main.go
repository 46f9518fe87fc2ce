// Command hub is the CLI surface for PMA delivery targets, per-repo
// destinations, and ticket_flow runs (spec §6.3). Each top-level verb owns
// its own flag set and dispatches on the next argument, mirroring how the
// teacher orchestrator's main.go peels off "init"/"bootstrap" before
// falling through to flag.Parse for its default command.
package main

import (
	"fmt"
	"os"

	"autorunner/pkg/clistatus"
	"autorunner/pkg/version"
)

// Exit codes per spec §6.3: 0 success, 2 invalid args, non-zero otherwise.
const (
	exitOK         = int(clistatus.OK)
	exitUsage      = int(clistatus.Usage)
	exitRuntimeErr = int(clistatus.RuntimeError)
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		printTopUsage()
		return exitUsage
	}

	switch args[0] {
	case "pma":
		return runPMA(args[1:])
	case "hub":
		return runHub(args[1:])
	case "flow":
		return runFlow(args[1:])
	case "version", "--version":
		fmt.Printf("%s (commit %s, built %s)\n", version.Version, version.Commit, version.Date)
		return exitOK
	case "-h", "--help", "help":
		printTopUsage()
		return exitOK
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", args[0])
		printTopUsage()
		return exitUsage
	}
}

func printTopUsage() {
	fmt.Fprintln(os.Stderr, `usage:
  pma targets {list|add|rm|clear}
  hub destination {show|set} <repo_id> {local|docker ...}
  hub repo {list|create|remove} ...
  hub janitor {run|serve} --repo ...
  flow ticket_flow {bootstrap|start|stop|status|archive} --repo --hub [--run-id] [--json]
  version`)
}

// fail prints msg to stderr and returns the runtime-error exit code.
func fail(format string, args ...any) int {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	return exitRuntimeErr
}

// usageErr prints msg to stderr and returns the invalid-args exit code.
func usageErr(format string, args ...any) int {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	return exitUsage
}
