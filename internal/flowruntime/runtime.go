// Package flowruntime schedules flow runs and drives the ticket engine
// state machine (spec §4.C). ticket_flow is the one concrete flow type;
// Runtime is written so a second flow type would be a new engine behind
// the same bootstrap/resume/stop/archive surface, not a rewrite of it.
package flowruntime

import (
	"context"
	"crypto/rand"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"autorunner/internal/destination"
	"autorunner/internal/eventbus"
	"autorunner/internal/model"
	"autorunner/internal/statestore"
	"autorunner/internal/supervisor"
	"autorunner/pkg/config"
	"autorunner/pkg/herrors"
	"autorunner/pkg/logx"
	"autorunner/pkg/metrics"
)

// Runtime owns every active ticket_flow run for one repo root.
type Runtime struct {
	store      *statestore.Store
	bus        *eventbus.Bus
	supervisor *supervisor.Supervisor
	launcher   destination.Launcher
	logger     *logx.Logger

	mu      sync.Mutex
	engines map[string]*ticketEngine // run_id -> engine
}

// New returns a Runtime bound to one repo's StateStore, the hub's shared
// EventBus, and the supervisor/launcher used to drive agent turns.
func New(store *statestore.Store, bus *eventbus.Bus, sup *supervisor.Supervisor, launcher destination.Launcher) *Runtime {
	return &Runtime{
		store:      store,
		bus:        bus,
		supervisor: sup,
		launcher:   launcher,
		logger:     logx.NewLogger("flowruntime"),
		engines:    make(map[string]*ticketEngine),
	}
}

// BootstrapResult is returned by Bootstrap.
type BootstrapResult struct {
	Run  model.FlowRun
	Hint string // "" or "active_run_reused"
}

// Bootstrap creates (or reuses) the active ticket_flow run for repoID
// (spec §4.C.1).
func (r *Runtime) Bootstrap(ctx context.Context, repoID string) (BootstrapResult, error) {
	unlock, err := r.store.LockBootstrap(repoID, model.FlowTypeTicket)
	if err != nil {
		return BootstrapResult{}, fmt.Errorf("lock bootstrap: %w", err)
	}
	defer unlock()

	if active, err := r.store.ActiveFlowRun(model.FlowTypeTicket); err != nil {
		return BootstrapResult{}, err
	} else if active != nil {
		return BootstrapResult{Run: *active, Hint: "active_run_reused"}, nil
	}

	tickets, err := r.store.TicketList()
	if err != nil {
		return BootstrapResult{}, err
	}
	if len(tickets) == 0 {
		return BootstrapResult{}, herrors.New(herrors.PreconditionFailed, "", "repo %s has no tickets for ticket_flow", repoID)
	}

	run := model.FlowRun{
		RunID:     newRunID(),
		FlowType:  model.FlowTypeTicket,
		RepoID:    repoID,
		Status:    model.RunPending,
		StartedAt: time.Now().UTC(),
	}
	if err := r.store.FlowRunCreate(run); err != nil {
		return BootstrapResult{}, err
	}

	metrics.FlowRunsTotal.WithLabelValues(string(run.FlowType), "started").Inc()
	metrics.ActiveFlowRuns.WithLabelValues(string(run.FlowType)).Inc()
	r.bus.Publish(eventbus.Event{Type: eventbus.EventFlowStarted, RunID: run.RunID})

	run.Status = model.RunRunning
	if err := r.store.FlowRunSave(run); err != nil {
		return BootstrapResult{}, err
	}

	cfg, err := config.Get()
	if err != nil {
		return BootstrapResult{}, fmt.Errorf("load config for bootstrap: %w", err)
	}

	engine := newTicketEngine(r, run, cfg.TicketFlow)
	r.mu.Lock()
	r.engines[run.RunID] = engine
	r.mu.Unlock()
	engine.start(ctx)

	return BootstrapResult{Run: run}, nil
}

// Resume clears a paused run's pause flag and continues the engine (spec
// §4.C.1: only valid from paused).
func (r *Runtime) Resume(ctx context.Context, runID string) error {
	run, err := r.store.FlowRunGet(runID)
	if err != nil {
		return err
	}
	if run.Status != model.RunPaused {
		return herrors.New(herrors.PreconditionFailed, "", "run %s is not paused", runID)
	}
	run.Status = model.RunRunning
	if err := r.store.FlowRunSave(*run); err != nil {
		return err
	}
	metrics.FlowRunsTotal.WithLabelValues(string(run.FlowType), "resumed").Inc()
	r.bus.Publish(eventbus.Event{Type: eventbus.EventFlowResumed, RunID: runID})

	cfg, err := config.Get()
	if err != nil {
		return fmt.Errorf("load config for resume: %w", err)
	}
	engine := newTicketEngine(r, *run, cfg.TicketFlow)
	r.mu.Lock()
	r.engines[runID] = engine
	r.mu.Unlock()
	engine.start(ctx)
	return nil
}

// Stop requests cooperative shutdown of runID (spec §4.C.1). The request is
// persisted to the FlowRun so it reaches the engine driving it even when
// that engine lives in a different process than the caller (spec §6.3 CLI
// surface: "flow ticket_flow stop" is its own invocation).
func (r *Runtime) Stop(runID string) error {
	run, err := r.store.FlowRunGet(runID)
	if err != nil {
		return err
	}
	if !run.Active() {
		return herrors.New(herrors.PreconditionFailed, "", "run %s is not active", runID)
	}
	run.StopRequested = true
	if err := r.store.FlowRunSave(*run); err != nil {
		return err
	}

	r.mu.Lock()
	engine, ok := r.engines[runID]
	r.mu.Unlock()
	if ok {
		engine.requestStop()
	}
	return nil
}

// Archive moves a terminal (or force-archived) run's tickets under
// tickets_archive/ (spec §4.C.1).
func (r *Runtime) Archive(runID string, force bool) error {
	run, err := r.store.FlowRunGet(runID)
	if err != nil {
		return err
	}
	if !run.Active() {
		// terminal, always archivable
	} else if !force {
		return herrors.New(herrors.PreconditionFailed, "", "run %s is still active; pass force to archive anyway", runID)
	}
	if err := r.store.FlowRunArchiveTickets(runID); err != nil {
		return err
	}
	r.bus.CloseRun(runID)
	return nil
}

func newRunID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
}
