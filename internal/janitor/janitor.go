// Package janitor runs the hub's periodic housekeeping sweep: reaping dead
// PTY sessions, dropping orphaned PTY registry entries, and removing stale
// app-process scratch directories under app_server_workspaces. None of
// these are durable audit evidence (mirrors and the outbox dedupe ledger
// are append-only and permanent per spec §4.A) — only scratch state that
// accumulates across restarts ever gets swept here.
package janitor

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"

	"autorunner/internal/statestore"
	"autorunner/internal/supervisor"
	"autorunner/pkg/logx"
)

// scratchDirRelPath is the scratch subtree a Store's root keeps under
// .codex-autorunner for agent-process workdirs (spec.md: "agent-process
// scratch"). pty_registry.json lives alongside it and is never swept.
const scratchDirRelPath = "app_server_workspaces"

const ptyRegistryFileName = "pty_registry.json"

// DefaultScratchAge is how long a scratch directory may sit unused before a
// sweep removes it.
const DefaultScratchAge = 24 * time.Hour

// CycleStats reports what one sweep did, for logging and tests.
type CycleStats struct {
	ReapedSessions   []string
	RemovedRegistry  []string
	RemovedScratch   []string
	Errors           []error
}

// Janitor periodically sweeps the supervisor and scratch state of one
// Store's root (a hub root or a repo root).
type Janitor struct {
	store      *statestore.Store
	supervisor *supervisor.Supervisor
	scratchAge time.Duration
	logger     *logx.Logger
	cron       *cron.Cron
}

// New returns a Janitor bound to store and sup. scratchAge is the minimum
// idle age before an unreferenced scratch directory is removed; a
// non-positive value falls back to DefaultScratchAge.
func New(store *statestore.Store, sup *supervisor.Supervisor, scratchAge time.Duration) *Janitor {
	if scratchAge <= 0 {
		scratchAge = DefaultScratchAge
	}
	return &Janitor{
		store:      store,
		supervisor: sup,
		scratchAge: scratchAge,
		logger:     logx.NewLogger("janitor"),
	}
}

// Start schedules a sweep on the given cron spec (e.g. "@every 5m") and
// begins running it in the background. Call Stop to end the schedule.
func (j *Janitor) Start(spec string) error {
	j.cron = cron.New()
	if _, err := j.cron.AddFunc(spec, func() {
		j.RunCycle(context.Background())
	}); err != nil {
		return err
	}
	j.cron.Start()
	return nil
}

// Stop ends the cron schedule, waiting for any in-flight sweep to finish.
func (j *Janitor) Stop() {
	if j.cron == nil {
		return
	}
	<-j.cron.Stop().Done()
}

// RunCycle performs one sweep immediately, independent of the cron
// schedule, and returns what it did.
func (j *Janitor) RunCycle(ctx context.Context) CycleStats {
	start := time.Now()
	var stats CycleStats

	stats.ReapedSessions = j.supervisor.ReapDeadPTYSessions()

	removedRegistry, err := j.sweepOrphanedRegistry()
	if err != nil {
		stats.Errors = append(stats.Errors, err)
	}
	stats.RemovedRegistry = removedRegistry

	removedScratch, err := j.sweepScratchDirs()
	if err != nil {
		stats.Errors = append(stats.Errors, err)
	}
	stats.RemovedScratch = removedScratch

	if len(stats.ReapedSessions) > 0 || len(stats.RemovedRegistry) > 0 || len(stats.RemovedScratch) > 0 {
		j.logger.Info("sweep complete: reaped=%d registry=%d scratch=%d elapsed=%s",
			len(stats.ReapedSessions), len(stats.RemovedRegistry), len(stats.RemovedScratch), time.Since(start))
	}
	for _, e := range stats.Errors {
		j.logger.Warn("sweep error: %v", e)
	}
	return stats
}

// sweepOrphanedRegistry removes PTY registry entries with no live
// supervisor session that have aged past scratchAge, so a crashed process's
// registry entry does not linger forever offering a dead reattach target.
func (j *Janitor) sweepOrphanedRegistry() ([]string, error) {
	sessions, err := j.store.PTYRegistryRead()
	if err != nil {
		return nil, err
	}
	cutoff := time.Now().Add(-j.scratchAge)

	var removed []string
	for _, sess := range sessions {
		if _, live := j.supervisor.PTYSession(sess.SessionID); live {
			continue
		}
		if sess.StartedAt.After(cutoff) {
			continue
		}
		if err := j.store.PTYRegistryRemove(sess.SessionID); err != nil {
			return removed, err
		}
		removed = append(removed, sess.SessionID)
	}
	return removed, nil
}

// sweepScratchDirs removes subdirectories of app_server_workspaces older
// than scratchAge, leaving pty_registry.json and anything still backing a
// live or freshly-registered session untouched.
func (j *Janitor) sweepScratchDirs() ([]string, error) {
	dir := filepath.Join(j.store.StateDir(), scratchDirRelPath)
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	live := make(map[string]bool)
	sessions, err := j.store.PTYRegistryRead()
	if err != nil {
		return nil, err
	}
	for _, sess := range sessions {
		live[sess.SessionID] = true
	}

	cutoff := time.Now().Add(-j.scratchAge)
	var removed []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		name := entry.Name()
		if name == ptyRegistryFileName || live[name] {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return removed, err
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(dir, name)); err != nil {
			return removed, err
		}
		removed = append(removed, name)
	}
	return removed, nil
}
