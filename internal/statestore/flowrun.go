package statestore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"autorunner/internal/model"
	"autorunner/pkg/herrors"
)

// flowRunFile is the on-disk shape of flows/<run_id>/run.json.
type flowRunFile struct {
	Version int `json:"version"`
	model.FlowRun
}

const currentFlowRunVersion = 1

func flowRunRelPath(runID string) string {
	return filepath.Join("flows", runID, "run.json")
}

// FlowRunCreate persists a brand new FlowRun record. Callers must already
// hold the per-(repo,flow_type) bootstrap lock (see LockBootstrap) so the
// single-active-run invariant holds.
func (s *Store) FlowRunCreate(run model.FlowRun) error {
	return s.flowRunWrite(run)
}

// FlowRunSave persists a mutated FlowRun record (status transitions, ticket
// engine state, etc). FlowRun records are never deleted, only archived.
func (s *Store) FlowRunSave(run model.FlowRun) error {
	return s.flowRunWrite(run)
}

func (s *Store) flowRunWrite(run model.FlowRun) error {
	data, err := json.MarshalIndent(flowRunFile{Version: currentFlowRunVersion, FlowRun: run}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal flow run %s: %w", run.RunID, err)
	}
	return s.atomicWrite(flowRunRelPath(run.RunID), data)
}

// FlowRunGet loads one FlowRun by id.
func (s *Store) FlowRunGet(runID string) (*model.FlowRun, error) {
	data, err := s.readFile(flowRunRelPath(runID))
	if err != nil {
		return nil, err
	}
	var f flowRunFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, herrors.Wrap(herrors.FileCorrupt, err, flowRunRelPath(runID), "parse flow run")
	}
	return &f.FlowRun, nil
}

// FlowRunList returns every FlowRun under this root's flows/ directory,
// optionally filtered by flow type, newest-started first.
func (s *Store) FlowRunList(flowType model.FlowType) ([]model.FlowRun, error) {
	flowsDir := filepath.Join(s.StateDir(), "flows")
	entries, err := os.ReadDir(flowsDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list flows dir: %w", err)
	}

	var runs []model.FlowRun
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		run, err := s.FlowRunGet(e.Name())
		if err != nil {
			s.logger.Warn("skipping unreadable flow run %s: %v", e.Name(), err)
			continue
		}
		if flowType != "" && run.FlowType != flowType {
			continue
		}
		runs = append(runs, *run)
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].StartedAt.After(runs[j].StartedAt) })
	return runs, nil
}

// ActiveFlowRun returns the active run (if any) for flowType on this root —
// "active" meaning not in a terminal status.
func (s *Store) ActiveFlowRun(flowType model.FlowType) (*model.FlowRun, error) {
	runs, err := s.FlowRunList(flowType)
	if err != nil {
		return nil, err
	}
	for i := range runs {
		if runs[i].Active() {
			return &runs[i], nil
		}
	}
	return nil, nil
}

// FlowRunArchiveTickets moves tickets/ under
// flows/<run_id>/tickets_archive/ (spec §4.C.1 archive()).
func (s *Store) FlowRunArchiveTickets(runID string) error {
	src := filepath.Join(s.StateDir(), "tickets")
	dst := filepath.Join(s.StateDir(), "flows", runID, "tickets_archive")
	if _, err := os.Stat(src); os.IsNotExist(err) {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create tickets_archive parent: %w", err)
	}
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("archive tickets for run %s: %w", runID, err)
	}
	return os.MkdirAll(src, 0o755)
}
