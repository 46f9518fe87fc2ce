package statestore

import (
	"encoding/json"
	"sort"

	"autorunner/internal/model"
	"autorunner/pkg/herrors"
)

const ptyRegistryRelPath = "app_server_workspaces/pty_registry.json"

type ptyRegistryFile struct {
	Sessions []model.AgentSession `json:"sessions"`
}

// PTYRegistryRead returns every known PTY session so a refreshed client can
// attach by session_id across process or browser restarts (spec §3
// AgentSession: "PTY sessions persist an id across reconnects").
func (s *Store) PTYRegistryRead() ([]model.AgentSession, error) {
	data, err := s.readFile(ptyRegistryRelPath)
	if herrors.Is(err, herrors.NotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var f ptyRegistryFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, herrors.Wrap(herrors.FileCorrupt, err, ptyRegistryRelPath, "parse pty registry")
	}
	return f.Sessions, nil
}

// PTYRegistryUpsert records or updates one PTY session's registry entry.
func (s *Store) PTYRegistryUpsert(session model.AgentSession) error {
	sessions, err := s.PTYRegistryRead()
	if err != nil {
		return err
	}
	found := false
	for i := range sessions {
		if sessions[i].SessionID == session.SessionID {
			sessions[i] = session
			found = true
			break
		}
	}
	if !found {
		sessions = append(sessions, session)
	}
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].SessionID < sessions[j].SessionID })
	return s.writePTYRegistry(sessions)
}

// PTYRegistryRemove deletes a PTY session's registry entry once it exits.
func (s *Store) PTYRegistryRemove(sessionID string) error {
	sessions, err := s.PTYRegistryRead()
	if err != nil {
		return err
	}
	out := sessions[:0]
	for _, sess := range sessions {
		if sess.SessionID != sessionID {
			out = append(out, sess)
		}
	}
	return s.writePTYRegistry(out)
}

func (s *Store) writePTYRegistry(sessions []model.AgentSession) error {
	data, err := json.MarshalIndent(ptyRegistryFile{Sessions: sessions}, "", "  ")
	if err != nil {
		return err
	}
	return s.atomicWrite(ptyRegistryRelPath, data)
}
