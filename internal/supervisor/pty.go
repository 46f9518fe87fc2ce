package supervisor

import (
	"context"
	"fmt"
	"io"
	"sync"

	"autorunner/internal/destination"
	"autorunner/internal/model"
	"autorunner/pkg/logx"
)

// ptyReplayBytes is how much of a PTY session's recent output a newly
// attached client replays (spec §9: "client attach replays the last N
// bytes only; full history lives in mirrors").
const ptyReplayBytes = 64 * 1024

// PTYSession is a raw interactive terminal backed by a destination
// process. It persists across client reconnects — attach by SessionID,
// or start a new one (spec §4.B.2).
type PTYSession struct {
	id      string
	repoID  string
	process destination.Process
	logger  *logx.Logger

	mu        sync.Mutex
	ring      *ringBuffer
	attached  map[uint64]chan []byte
	nextAttID uint64
	exited    bool
	exitErr   error
}

// StartPTYSession launches a PTY-backed terminal via launcher.
func StartPTYSession(ctx context.Context, sessionID, repoID string, launcher destination.Launcher, shell []string) (*PTYSession, error) {
	proc, err := launcher.StartProcess(ctx, destination.ProcessSpec{Cmd: shell, TTY: true})
	if err != nil {
		return nil, fmt.Errorf("start pty session %s: %w", sessionID, err)
	}

	s := &PTYSession{
		id:       sessionID,
		repoID:   repoID,
		process:  proc,
		logger:   logx.NewLogger("supervisor-pty").WithField("session_id", sessionID),
		ring:     newRingBuffer(ptyReplayBytes),
		attached: make(map[uint64]chan []byte),
	}
	go s.readLoop()
	return s, nil
}

// AgentSession returns the in-memory model record for this PTY session,
// for registry persistence (spec §3 AgentSession).
func (s *PTYSession) AgentSession() model.AgentSession {
	return model.AgentSession{
		SessionID: s.id,
		Kind:      model.AgentKindPTY,
		RepoID:    s.repoID,
		Status:    model.SessionIdle,
	}
}

// Write sends client keystrokes to the terminal.
func (s *PTYSession) Write(p []byte) error {
	_, err := s.process.Stdin().Write(p)
	return err
}

// Resize forwards a terminal resize to the underlying pty.
func (s *PTYSession) Resize(cols, rows uint16) error {
	return s.process.Resize(cols, rows)
}

// Attach registers a new client and returns a channel of output chunks
// after first replaying the ring buffer's current contents. Call the
// returned detach func when the client disconnects.
func (s *PTYSession) Attach() (replay []byte, ch <-chan []byte, detach func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextAttID
	s.nextAttID++
	out := make(chan []byte, 256)
	s.attached[id] = out

	return s.ring.Snapshot(), out, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if c, ok := s.attached[id]; ok {
			close(c)
			delete(s.attached, id)
		}
	}
}

// Close atomically closes this session (spec §4.B.2: "optionally close an
// old one atomically" when a client reattaches to a fresh session instead).
func (s *PTYSession) Close() error {
	return s.process.Kill()
}

// Exited reports whether the underlying process has exited, and why.
func (s *PTYSession) Exited() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exited, s.exitErr
}

func (s *PTYSession) readLoop() {
	buf := make([]byte, 4096)
	for {
		n, err := s.process.Stdout().Read(buf)
		if n > 0 {
			chunk := append([]byte(nil), buf[:n]...)
			s.ring.Write(chunk)
			s.broadcast(chunk)
		}
		if err != nil {
			s.mu.Lock()
			s.exited = true
			if err != io.EOF {
				s.exitErr = err
			}
			s.mu.Unlock()
			s.logger.Debug("pty read loop ended: %v", err)
			return
		}
	}
}

func (s *PTYSession) broadcast(chunk []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.attached {
		select {
		case ch <- chunk:
		default:
			s.logger.Debug("dropping pty output chunk for a slow client")
		}
	}
}
