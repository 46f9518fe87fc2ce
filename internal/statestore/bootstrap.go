package statestore

import (
	"fmt"

	"autorunner/internal/model"
)

// LockBootstrap serializes FlowRuntime.bootstrap calls for one
// (repo_id, flow_type) pair so the single-active-run invariant (spec §3
// FlowRun) can be checked and enforced atomically: callers must call
// ActiveFlowRun while still holding the returned unlock func.
func (s *Store) LockBootstrap(repoID string, flowType model.FlowType) (func(), error) {
	path, err := s.resolve(fmt.Sprintf("flows/.bootstrap-%s-%s", repoID, flowType))
	if err != nil {
		return nil, err
	}
	return s.locks.Lock(path)
}
