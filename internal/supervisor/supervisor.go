package supervisor

import (
	"fmt"
	"sync"

	"autorunner/internal/model"
	"autorunner/internal/statestore"
	"autorunner/pkg/metrics"
)

// Supervisor is the process-wide registry of live AgentSessions and
// PTYSessions, keyed by session_id. One Supervisor exists per hub process.
type Supervisor struct {
	mu          sync.RWMutex
	appSessions map[string]*AppServerSession
	ptySessions map[string]*PTYSession
	store       *statestore.Store
}

// New returns an empty Supervisor backed by store for PTY registry
// persistence.
func New(store *statestore.Store) *Supervisor {
	return &Supervisor{
		appSessions: make(map[string]*AppServerSession),
		ptySessions: make(map[string]*PTYSession),
		store:       store,
	}
}

// RegisterAppServerSession adds a started AppServerSession to the registry.
func (sup *Supervisor) RegisterAppServerSession(session *AppServerSession) {
	sup.mu.Lock()
	defer sup.mu.Unlock()
	sup.appSessions[session.id] = session
}

// AppServerSession looks up a running app-server session by id.
func (sup *Supervisor) AppServerSession(sessionID string) (*AppServerSession, bool) {
	sup.mu.RLock()
	defer sup.mu.RUnlock()
	s, ok := sup.appSessions[sessionID]
	return s, ok
}

// AttachPTY registers a started PTYSession, persisting its registry entry
// so a refreshed client can reattach after a process restart.
func (sup *Supervisor) AttachPTY(session *PTYSession) error {
	sup.mu.Lock()
	sup.ptySessions[session.id] = session
	sup.mu.Unlock()
	metrics.SupervisorSessions.WithLabelValues(string(model.AgentKindPTY), string(model.SessionIdle)).Inc()
	return sup.store.PTYRegistryUpsert(session.AgentSession())
}

// PTYSession looks up a running PTY session by id, or reports it is not
// currently attached (the caller may still find a stale registry entry via
// the StateStore and choose to start a fresh session instead).
func (sup *Supervisor) PTYSession(sessionID string) (*PTYSession, bool) {
	sup.mu.RLock()
	defer sup.mu.RUnlock()
	s, ok := sup.ptySessions[sessionID]
	return s, ok
}

// ReapDeadPTYSessions closes and forgets every registered PTY session whose
// underlying process has already exited, returning the reaped session ids.
// Intended to be called periodically by a janitor sweep (spec §9's
// "process must be reaped" note) rather than on every lookup.
func (sup *Supervisor) ReapDeadPTYSessions() []string {
	sup.mu.RLock()
	candidates := make([]*PTYSession, 0, len(sup.ptySessions))
	for _, s := range sup.ptySessions {
		candidates = append(candidates, s)
	}
	sup.mu.RUnlock()

	var reaped []string
	for _, s := range candidates {
		if exited, _ := s.Exited(); !exited {
			continue
		}
		if err := sup.ClosePTY(s.id); err == nil {
			reaped = append(reaped, s.id)
		}
	}
	return reaped
}

// ClosePTY closes and forgets a PTY session, removing its registry entry.
func (sup *Supervisor) ClosePTY(sessionID string) error {
	sup.mu.Lock()
	session, ok := sup.ptySessions[sessionID]
	delete(sup.ptySessions, sessionID)
	sup.mu.Unlock()
	if !ok {
		return fmt.Errorf("pty session %s not registered", sessionID)
	}
	metrics.SupervisorSessions.WithLabelValues(string(model.AgentKindPTY), string(model.SessionIdle)).Dec()
	if err := session.Close(); err != nil {
		return err
	}
	return sup.store.PTYRegistryRemove(sessionID)
}
