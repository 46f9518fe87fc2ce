// Package supervisor owns long-lived agent processes: app-server sessions
// driven over a line-delimited JSON protocol, and PTY terminal sessions.
// Both process kinds are always launched through a destination.Launcher;
// the supervisor never spawns a process directly (spec §4.B).
package supervisor

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"autorunner/internal/destination"
	"autorunner/internal/eventbus"
	"autorunner/internal/model"
	"autorunner/internal/protocol"
	"autorunner/pkg/herrors"
	"autorunner/pkg/logx"
	"autorunner/pkg/metrics"
)

const (
	outputBufferMaxLines = 200
	outputBufferMaxTotal = 50

	// defaultTurnTimeout applies when the caller passes a non-positive
	// timeout, so a misconfigured turn_timeout never disables the deadline
	// outright.
	defaultTurnTimeout = 10 * time.Minute
)

// TurnRequest is one app-server turn submission (spec §4.B.1).
type TurnRequest struct {
	Message      string
	Agent        model.AgentName
	Model        string
	Reasoning    string
	ClientTurnID string
}

// turnRequestWire is the line-delimited JSON shape written to the
// app-server's stdin for one TurnRequest.
type turnRequestWire struct {
	Message      string `json:"message"`
	Agent        string `json:"agent"`
	Model        string `json:"model,omitempty"`
	Reasoning    string `json:"reasoning,omitempty"`
	ClientTurnID string `json:"client_turn_id"`
}

// TurnOutcome is delivered on the channel SubmitTurn returns once the turn
// reaches a terminal state for that turn (done, interrupted, or error).
type TurnOutcome struct {
	Status string // "done" | "interrupted" | "error"
	Reply  StructuredReply
	Err    error
}

// AppServerSession owns one app-server child process. Exactly one turn is
// in flight at a time; additional SubmitTurn calls queue (spec §4.B).
type AppServerSession struct {
	id          string
	repoID      string
	agent       model.AgentName
	process     destination.Process
	parser      StructuredReplyParser
	bus         *eventbus.Bus
	runID       string
	turnTimeout time.Duration
	logger      *logx.Logger

	mu           sync.Mutex
	status       model.SessionStatus
	queue        chan turnJob
	lastEvent    protocol.Event
	outputBuf    *lineEventBuffer
	interrupt    chan struct{}
	done         chan struct{}
	turnResultCh chan TurnOutcome
}

type turnJob struct {
	req TurnRequest
	out chan TurnOutcome
}

// StartAppServerSession launches an app-server process for agent via
// launcher and returns a live session ready to accept turns. turnTimeout
// bounds how long any single turn may run before it fails with an
// AgentProtocolError whose message names the timeout; no separate
// "turn_timeout" reason is attached. A non-positive value falls back to
// defaultTurnTimeout.
func StartAppServerSession(ctx context.Context, sessionID, repoID string, agent model.AgentName, launcher destination.Launcher, cmd []string, bus *eventbus.Bus, runID string, turnTimeout time.Duration) (*AppServerSession, error) {
	proc, err := launcher.StartProcess(ctx, destination.ProcessSpec{Cmd: cmd})
	if err != nil {
		return nil, herrors.Wrap(herrors.AdapterFailed, err, "", "start app-server process for session %s", sessionID)
	}
	if turnTimeout <= 0 {
		turnTimeout = defaultTurnTimeout
	}

	s := &AppServerSession{
		id:          sessionID,
		repoID:      repoID,
		agent:       agent,
		process:     proc,
		parser:      ParserFor(agent),
		bus:         bus,
		runID:       runID,
		turnTimeout: turnTimeout,
		logger:      logx.NewLogger("supervisor").WithField("session_id", sessionID),
		status:      model.SessionStarting,
		queue:       make(chan turnJob, 32),
		outputBuf:   newLineEventBuffer(outputBufferMaxLines, outputBufferMaxTotal),
		interrupt:   make(chan struct{}, 1),
		done:        make(chan struct{}),
	}
	s.setStatus(model.SessionIdle)

	go s.readLoop()
	go s.turnLoop()

	return s, nil
}

func (s *AppServerSession) setStatus(status model.SessionStatus) {
	s.mu.Lock()
	prev := s.status
	s.status = status
	s.mu.Unlock()
	if prev != "" {
		metrics.SupervisorSessions.WithLabelValues(string(model.AgentKindAppServer), string(prev)).Dec()
	}
	metrics.SupervisorSessions.WithLabelValues(string(model.AgentKindAppServer), string(status)).Inc()
}

// Status returns the session's current state.
func (s *AppServerSession) Status() model.SessionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// SubmitTurn enqueues req and returns a channel that receives exactly one
// TurnOutcome once the turn completes, is interrupted, or errors.
func (s *AppServerSession) SubmitTurn(req TurnRequest) <-chan TurnOutcome {
	out := make(chan TurnOutcome, 1)
	select {
	case s.queue <- turnJob{req: req, out: out}:
	case <-s.done:
		out <- TurnOutcome{Status: "error", Err: fmt.Errorf("session %s is dead", s.id)}
	}
	return out
}

// Interrupt is idempotent: a no-op while idle; while a turn is running it
// resolves the pending turn with "interrupted", never "error" (spec §4.B).
// No cancel message is written to the app-server process, so the agent
// itself is not told to stop the turn.
func (s *AppServerSession) Interrupt() {
	if s.Status() != model.SessionBusy {
		return
	}
	s.setStatus(model.SessionInterrupting)
	select {
	case s.interrupt <- struct{}{}:
	default:
	}
}

func (s *AppServerSession) turnLoop() {
	for {
		select {
		case job := <-s.queue:
			s.runTurn(job)
		case <-s.done:
			return
		}
	}
}

func (s *AppServerSession) runTurn(job turnJob) {
	s.setStatus(model.SessionBusy)
	defer func() {
		if s.Status() != model.SessionDead {
			s.setStatus(model.SessionIdle)
		}
	}()

	envelope, err := json.Marshal(turnRequestWire{
		Message:      job.req.Message,
		Agent:        string(job.req.Agent),
		Model:        job.req.Model,
		Reasoning:    job.req.Reasoning,
		ClientTurnID: job.req.ClientTurnID,
	})
	if err == nil {
		envelope = append(envelope, '\n')
		_, err = s.process.Stdin().Write(envelope)
	}
	if err != nil {
		job.out <- TurnOutcome{Status: "error", Err: fmt.Errorf("write turn request: %w", err)}
		return
	}

	timer := time.NewTimer(s.turnTimeout)
	defer timer.Stop()

	select {
	case <-s.interrupt:
		job.out <- TurnOutcome{Status: "interrupted"}
	case reply := <-s.waitForTurnDone():
		job.out <- reply
	case <-s.done:
		job.out <- TurnOutcome{Status: "error", Err: fmt.Errorf("session %s exited mid-turn", s.id)}
	case <-timer.C:
		s.mu.Lock()
		s.turnResultCh = nil
		s.mu.Unlock()
		job.out <- TurnOutcome{
			Status: "error",
			Err:    herrors.New(herrors.AgentProtocolError, "", "turn exceeded timeout %s", s.turnTimeout),
		}
	}
}

// waitForTurnDone installs a fresh per-turn channel as s.turnResultCh and
// returns it without blocking; the read loop resolves the turn by sending
// its outcome on that channel (see resolveTurn). Kept simple since only one
// turn is ever in flight per session.
func (s *AppServerSession) waitForTurnDone() <-chan TurnOutcome {
	ch := make(chan TurnOutcome, 1)
	s.mu.Lock()
	s.turnResultCh = ch
	s.mu.Unlock()
	return ch
}

func (s *AppServerSession) readLoop() {
	defer close(s.done)
	scanner := bufio.NewScanner(s.process.Stdout())
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		ev, err := protocol.Classify(line)
		if err != nil {
			s.logger.Debug("unclassifiable app-server line: %v", err)
			s.resolveTurn(TurnOutcome{
				Status: "error",
				Err:    herrors.Wrap(herrors.AgentProtocolError, err, "", "unparseable app-server envelope"),
			})
			continue
		}
		s.mu.Lock()
		s.lastEvent = protocol.Coalesce(s.lastEvent, ev)
		s.mu.Unlock()
		s.outputBuf.Append(ev.Summary)

		s.bus.Publish(eventbus.Event{
			Type:  eventbus.EventAppServerEvent,
			RunID: s.runID,
			Data:  ev,
		})

		switch {
		case ev.Kind == protocol.KindMessage && ev.Method == "done":
			reply, err := s.parser.Parse([]byte(ev.Detail))
			s.resolveTurn(TurnOutcome{Status: "done", Reply: reply, Err: err})
		case ev.Kind == protocol.KindMessage:
			// A non-terminal message chunk is the agent's reply streaming in
			// (spec §4.C.3 agent_stream_delta), distinct from the generic
			// app_server_event passthrough published above.
			s.bus.Publish(eventbus.Event{
				Type:  eventbus.EventAgentStreamDelta,
				RunID: s.runID,
				Data:  ev.Detail,
			})
		case ev.Kind == protocol.KindUnknown:
			s.resolveTurn(TurnOutcome{
				Status: "error",
				Err:    herrors.New(herrors.AgentProtocolError, "", "unrecognized app-server envelope: %q", string(line)),
			})
		}
	}

	s.setStatus(model.SessionDead)
	if err := scanner.Err(); err != nil {
		s.logger.Error("app-server read loop ended: %v", err)
	}
}

func (s *AppServerSession) resolveTurn(outcome TurnOutcome) {
	s.mu.Lock()
	ch := s.turnResultCh
	s.turnResultCh = nil
	s.mu.Unlock()
	if ch != nil {
		ch <- outcome
	}
}

// Kill terminates the underlying process immediately.
func (s *AppServerSession) Kill() error {
	s.setStatus(model.SessionExiting)
	return s.process.Kill()
}
