package flowruntime

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"autorunner/internal/eventbus"
	"autorunner/internal/model"
	"autorunner/internal/supervisor"
	"autorunner/pkg/config"
	"autorunner/pkg/logx"
	"autorunner/pkg/metrics"
)

// ticketEngine drives one FlowRun's ticket_flow state machine (spec
// §4.C.2). One engine exists per active or paused run; Bootstrap/Resume
// create it, Stop asks it to wind down, and it leaves the runtime's engine
// registry when its loop ends.
type ticketEngine struct {
	rt     *Runtime
	cfg    config.TicketFlowConfig
	logger *logx.Logger

	mu      sync.Mutex
	run     model.FlowRun
	session *supervisor.AppServerSession

	stopRequested chan struct{}
	stopOnce      sync.Once
	done          chan struct{}
}

func newTicketEngine(rt *Runtime, run model.FlowRun, cfg config.TicketFlowConfig) *ticketEngine {
	return &ticketEngine{
		rt:            rt,
		cfg:           cfg,
		logger:        logx.NewLogger("flowruntime").WithField("run_id", run.RunID),
		run:           run,
		stopRequested: make(chan struct{}),
		done:          make(chan struct{}),
	}
}

// start runs the engine loop in its own goroutine and returns immediately.
func (e *ticketEngine) start(ctx context.Context) {
	go e.loop(ctx)
}

// requestStop asks the loop to stop at its next safe point (after the
// in-flight turn) and, if it has not done so within the configured
// StopTimeout, escalates to a forced failure (spec §4.C.1 stop()).
func (e *ticketEngine) requestStop() {
	e.stopOnce.Do(func() { close(e.stopRequested) })
	go func() {
		timer := time.NewTimer(e.cfg.StopTimeout)
		defer timer.Stop()
		select {
		case <-e.done:
		case <-timer.C:
			e.forceFailStopTimeout()
		}
	}()
}

// externalStopRequested reports whether the run's persisted StopRequested
// flag has been set since this engine started, without needing the engine
// that is asking to be the engine that set it.
func (e *ticketEngine) externalStopRequested() bool {
	select {
	case <-e.stopRequested:
		return false // already handled via the in-memory path
	default:
	}
	run, err := e.rt.store.FlowRunGet(e.run.RunID)
	if err != nil {
		return false
	}
	return run.StopRequested
}

func (e *ticketEngine) forceFailStopTimeout() {
	e.mu.Lock()
	run := e.run
	if run.Status.Terminal() {
		e.mu.Unlock()
		return
	}
	run.Status = model.RunFailed
	now := time.Now().UTC()
	run.FinishedAt = &now
	run.TicketEngine.Reason = "stop_timeout"
	e.run = run
	e.mu.Unlock()

	if session := e.currentSession(); session != nil {
		_ = session.Kill()
	}
	if err := e.rt.store.FlowRunSave(run); err != nil {
		e.logger.Error("persist stop-timeout failure: %v", err)
	}
	metrics.FlowRunsTotal.WithLabelValues(string(run.FlowType), "failed").Inc()
	metrics.ActiveFlowRuns.WithLabelValues(string(run.FlowType)).Dec()
	e.rt.bus.Publish(eventbus.Event{Type: eventbus.EventFlowFailed, RunID: run.RunID})
	e.rt.bus.CloseRun(run.RunID)
	e.finish()
}

func (e *ticketEngine) currentSession() *supervisor.AppServerSession {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session
}

func (e *ticketEngine) finish() {
	select {
	case <-e.done:
	default:
		close(e.done)
	}
	e.rt.mu.Lock()
	delete(e.rt.engines, e.run.RunID)
	e.rt.mu.Unlock()
}

// loop implements spec §4.C.2 steps 1-7: on each iteration, pick the
// lowest-index not-done ticket not yet recorded in ErroredTickets, drive exactly one turn against it, then
// branch on the structured reply (ticket done, handoff/pause, or turn-cap
// exhaustion) before looping again.
func (e *ticketEngine) loop(ctx context.Context) {
	defer e.finish()

	for {
		select {
		case <-e.stopRequested:
			e.stop()
			return
		default:
		}

		// A stop may have been requested by a CLI invocation running in a
		// different process than this engine's (spec §6.3 "flow ticket_flow
		// stop"), which can only reach this run through its persisted
		// FlowRun.StopRequested flag, not this engine's in-memory channel.
		if e.externalStopRequested() {
			e.requestStop()
			continue
		}

		tickets, err := e.rt.store.TicketList()
		if err != nil {
			e.fail(fmt.Errorf("load next ticket: %w", err))
			return
		}
		e.mu.Lock()
		errored := append([]string(nil), e.run.TicketEngine.ErroredTickets...)
		e.mu.Unlock()
		var ticket *model.Ticket
		for i := range tickets {
			if !tickets[i].Done && !slices.Contains(errored, tickets[i].Path) {
				ticket = &tickets[i]
				break
			}
		}
		if ticket == nil {
			e.complete()
			return
		}
		if ticket.ParseError != nil {
			e.logger.Warn("skipping unparsable ticket %s: %v", ticket.Path, ticket.ParseError)
			e.markErrored(ticket.Path, "parse_error")
			continue
		}

		if e.runOneTurnCycle(ctx, *ticket) == loopStop {
			return
		}
	}
}

type loopSignal int

const (
	loopContinue loopSignal = iota
	loopStop
)

// runOneTurnCycle drives turns against one ticket until it completes, is
// handed off/paused, or exhausts its turn cap, then reports whether the
// engine's outer loop should continue or has already terminated the run.
func (e *ticketEngine) runOneTurnCycle(ctx context.Context, ticket model.Ticket) loopSignal {
	session, err := e.sessionForTicket(ctx, ticket)
	if err != nil {
		e.fail(fmt.Errorf("start agent session for ticket %s: %w", ticket.Path, err))
		return loopStop
	}

	ticketTurns := 0
	for {
		select {
		case <-e.stopRequested:
			e.stop()
			return loopStop
		default:
		}

		e.rt.bus.Publish(eventbus.Event{
			Type:        eventbus.EventStepStarted,
			RunID:       e.run.RunID,
			TicketIndex: ticket.Index,
		})

		outcome := <-session.SubmitTurn(supervisor.TurnRequest{
			Message: e.composeTurnPrompt(ticket, ticketTurns+1),
			Agent:   model.AgentName(ticket.Agent),
		})
		ticketTurns++

		e.mu.Lock()
		e.run.TicketEngine.TicketTurns = ticketTurns
		e.run.TicketEngine.TotalTurns++
		e.run.TicketEngine.CurrentTicketPath = ticket.Path
		run := e.run
		e.mu.Unlock()
		if err := e.rt.store.FlowRunSave(run); err != nil {
			e.logger.Warn("persist turn progress: %v", err)
		}

		if outcome.Status == "interrupted" {
			metrics.TicketEngineTurns.WithLabelValues("interrupted").Inc()
			continue
		}
		if outcome.Err != nil {
			metrics.TicketEngineTurns.WithLabelValues("error").Inc()
			e.fail(fmt.Errorf("agent turn failed for ticket %s: %w", ticket.Path, outcome.Err))
			return loopStop
		}

		if outcome.Reply.Handoff != nil {
			if _, err := e.rt.store.HandoffAppend(e.run.RunID, *outcome.Reply.Handoff); err != nil {
				e.logger.Error("persist handoff dispatch: %v", err)
			}
			e.rt.bus.Publish(eventbus.Event{
				Type:        eventbus.EventHandoffDispatch,
				RunID:       e.run.RunID,
				TicketIndex: ticket.Index,
				Data:        outcome.Reply.Handoff,
			})
			if outcome.Reply.Handoff.Mode == model.HandoffPause {
				metrics.TicketEngineTurns.WithLabelValues("handoff_pause").Inc()
				e.pause(outcome.Reply.Handoff.Title)
				return loopStop
			}
		}

		if outcome.Reply.TicketComplete {
			if err := e.rt.store.TicketMarkDone(ticket.Path); err != nil {
				e.fail(fmt.Errorf("mark ticket %s done: %w", ticket.Path, err))
				return loopStop
			}
			metrics.TicketEngineTurns.WithLabelValues("ticket_done").Inc()
			return loopContinue
		}

		if ticketTurns >= e.turnCap(ticket) {
			e.logger.Warn("ticket %s exceeded turn cap %d", ticket.Path, e.turnCap(ticket))
			metrics.TicketEngineTurns.WithLabelValues("turn_cap_exceeded").Inc()
			e.markErrored(ticket.Path, "turn_cap_exceeded")
			return loopContinue
		}
	}
}

func (e *ticketEngine) turnCap(ticket model.Ticket) int {
	if e.cfg.TurnCapDefault > 0 {
		return e.cfg.TurnCapDefault
	}
	return 20
}

// sessionForTicket starts (or reuses) the app-server session for this
// ticket's thread. Every ticket in a ticket_flow run shares one thread key
// per repo (spec §4.C.2 step 3: thread_key = "ticket_flow.<repo_id>").
func (e *ticketEngine) sessionForTicket(ctx context.Context, ticket model.Ticket) (*supervisor.AppServerSession, error) {
	e.mu.Lock()
	existing := e.session
	e.mu.Unlock()
	if existing != nil && existing.Status() != model.SessionDead {
		return existing, nil
	}

	agent := model.AgentName(ticket.Agent)
	if agent == "" {
		agent = model.AgentCodex
	}
	sessionID := fmt.Sprintf("ticket_flow.%s", e.run.RepoID)
	session, err := supervisor.StartAppServerSession(ctx, sessionID, e.run.RepoID, agent, e.rt.launcher,
		appServerCmd(agent), e.rt.bus, e.run.RunID, e.cfg.TurnTimeout)
	if err != nil {
		return nil, err
	}
	e.rt.supervisor.RegisterAppServerSession(session)

	e.mu.Lock()
	e.session = session
	e.mu.Unlock()
	return session, nil
}

func appServerCmd(agent model.AgentName) []string {
	switch agent {
	case model.AgentOpencode:
		return []string{"opencode", "app-server"}
	default:
		return []string{"codex", "app-server"}
	}
}

// composeTurnPrompt builds the message sent for one turn against ticket
// (spec §4.C.2 step 4). Ticket body is the task; engine state tells the
// agent how far into the ticket's turn budget it already is.
func (e *ticketEngine) composeTurnPrompt(ticket model.Ticket, turn int) string {
	return fmt.Sprintf("Ticket %s: %s\nTurn %d of at most %d for this ticket.\n\n%s",
		ticket.Path, ticket.Title, turn, e.turnCap(ticket), ticket.Body)
}

func (e *ticketEngine) markErrored(path, reason string) {
	e.mu.Lock()
	e.run.TicketEngine.Reason = reason
	e.run.TicketEngine.ErroredTickets = append(e.run.TicketEngine.ErroredTickets, path)
	run := e.run
	e.mu.Unlock()
	if err := e.rt.store.FlowRunSave(run); err != nil {
		e.logger.Warn("persist errored ticket %s: %v", path, err)
	}
}

func (e *ticketEngine) complete() {
	e.mu.Lock()
	e.run.Status = model.RunCompleted
	now := time.Now().UTC()
	e.run.FinishedAt = &now
	run := e.run
	e.mu.Unlock()
	if err := e.rt.store.FlowRunSave(run); err != nil {
		e.logger.Error("persist run completion: %v", err)
	}
	metrics.FlowRunsTotal.WithLabelValues(string(run.FlowType), "completed").Inc()
	metrics.ActiveFlowRuns.WithLabelValues(string(run.FlowType)).Dec()
	e.rt.bus.Publish(eventbus.Event{Type: eventbus.EventFlowCompleted, RunID: run.RunID})
	e.rt.bus.CloseRun(run.RunID)
}

func (e *ticketEngine) pause(reasonDetails string) {
	e.mu.Lock()
	e.run.Status = model.RunPaused
	e.run.TicketEngine.Reason = "handoff_pause"
	e.run.TicketEngine.ReasonDetails = reasonDetails
	run := e.run
	e.mu.Unlock()
	if err := e.rt.store.FlowRunSave(run); err != nil {
		e.logger.Error("persist run pause: %v", err)
	}
	metrics.FlowRunsTotal.WithLabelValues(string(run.FlowType), "paused").Inc()
	e.rt.bus.Publish(eventbus.Event{Type: eventbus.EventFlowPaused, RunID: run.RunID})
}

func (e *ticketEngine) stop() {
	e.mu.Lock()
	e.run.Status = model.RunStopped
	now := time.Now().UTC()
	e.run.FinishedAt = &now
	run := e.run
	session := e.session
	e.mu.Unlock()
	if session != nil {
		session.Interrupt()
	}
	if err := e.rt.store.FlowRunSave(run); err != nil {
		e.logger.Error("persist run stop: %v", err)
	}
	metrics.FlowRunsTotal.WithLabelValues(string(run.FlowType), "stopped").Inc()
	metrics.ActiveFlowRuns.WithLabelValues(string(run.FlowType)).Dec()
	e.rt.bus.Publish(eventbus.Event{Type: eventbus.EventFlowStopped, RunID: run.RunID})
	e.rt.bus.CloseRun(run.RunID)
}

func (e *ticketEngine) fail(err error) {
	e.mu.Lock()
	e.run.Status = model.RunFailed
	e.run.ErrorMessage = err.Error()
	now := time.Now().UTC()
	e.run.FinishedAt = &now
	run := e.run
	e.mu.Unlock()
	e.logger.Error("run %s failed: %v", run.RunID, err)
	if saveErr := e.rt.store.FlowRunSave(run); saveErr != nil {
		e.logger.Error("persist run failure: %v", saveErr)
	}
	metrics.FlowRunsTotal.WithLabelValues(string(run.FlowType), "failed").Inc()
	metrics.ActiveFlowRuns.WithLabelValues(string(run.FlowType)).Dec()
	e.rt.bus.Publish(eventbus.Event{Type: eventbus.EventFlowFailed, RunID: run.RunID})
	e.rt.bus.CloseRun(run.RunID)
}
