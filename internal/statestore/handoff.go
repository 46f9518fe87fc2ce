package statestore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"autorunner/internal/model"
)

func handoffsDir(runID string) string {
	return filepath.Join("flows", runID, "handoffs")
}

// HandoffAppend assigns the next dense sequence number for runID and
// persists the dispatch record atomically — the seq assignment and the
// write happen under the same per-path lock so concurrent dispatches from
// the same run can never collide (spec §3 HandoffDispatch invariant:
// dense seq starting at 1, no gaps).
func (s *Store) HandoffAppend(runID string, h model.HandoffDispatch) (model.HandoffDispatch, error) {
	dir, err := s.resolve(handoffsDir(runID))
	if err != nil {
		return h, err
	}
	unlock, err := s.locks.Lock(dir)
	if err != nil {
		return h, fmt.Errorf("lock handoffs dir for run %s: %w", runID, err)
	}
	defer unlock()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return h, fmt.Errorf("create handoffs dir: %w", err)
	}
	existing, err := s.handoffSeqsLocked(dir)
	if err != nil {
		return h, err
	}
	h.Seq = len(existing) + 1
	if h.CreatedAt.IsZero() {
		h.CreatedAt = time.Now().UTC()
	}

	data, err := json.MarshalIndent(h, "", "  ")
	if err != nil {
		return h, fmt.Errorf("marshal handoff: %w", err)
	}
	path := filepath.Join(dir, strconv.Itoa(h.Seq)+".json")
	tmp := path + ".tmp-" + randomSuffix()
	if err := os.WriteFile(tmp, data, 0o644); err != nil { //nolint:gosec // not secret material
		return h, fmt.Errorf("write handoff: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return h, fmt.Errorf("rename handoff: %w", err)
	}
	return h, nil
}

func (s *Store) handoffSeqsLocked(dir string) ([]int, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list handoffs dir: %w", err)
	}
	var seqs []int
	for _, e := range entries {
		name := strings.TrimSuffix(e.Name(), ".json")
		if n, err := strconv.Atoi(name); err == nil {
			seqs = append(seqs, n)
		}
	}
	return seqs, nil
}

// HandoffHistory returns all handoffs for runID ordered by seq ascending.
func (s *Store) HandoffHistory(runID string) ([]model.HandoffDispatch, error) {
	dir, err := s.resolve(handoffsDir(runID))
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list handoffs dir: %w", err)
	}
	var out []model.HandoffDispatch
	for _, e := range entries {
		data, err := os.ReadFile(filepath.Join(dir, e.Name())) //nolint:gosec // bounded to handoffs dir
		if err != nil {
			s.logger.Warn("skipping unreadable handoff %s: %v", e.Name(), err)
			continue
		}
		var h model.HandoffDispatch
		if err := json.Unmarshal(data, &h); err != nil {
			s.logger.Warn("skipping corrupt handoff %s: %v", e.Name(), err)
			continue
		}
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out, nil
}

// LatestHandoff returns the highest-seq handoff for runID, or nil if none exist.
func (s *Store) LatestHandoff(runID string) (*model.HandoffDispatch, error) {
	all, err := s.HandoffHistory(runID)
	if err != nil || len(all) == 0 {
		return nil, err
	}
	return &all[len(all)-1], nil
}
