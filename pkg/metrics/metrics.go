// Package metrics instruments the hub for Prometheus scraping.
//
// The teacher's pkg/metrics is a query-side client: it reads a running
// Prometheus server back for per-story token/cost aggregates after the
// fact. This hub has no equivalent after-the-fact reporting need —
// instead it is itself the thing a Prometheus server scrapes — so this
// package is the producing half of the same concern: typed counters and
// gauges registered against the default registry via promauto, covering
// run lifecycle, delivery outcomes, and supervisor session state the way
// the teacher's StoryMetrics covered token/cost aggregates.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FlowRunsTotal counts FlowRuntime lifecycle transitions by flow_type
	// and outcome (started, completed, failed, stopped, paused, resumed).
	FlowRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "autorunner_flow_runs_total",
		Help: "FlowRun lifecycle transitions, by flow_type and outcome.",
	}, []string{"flow_type", "outcome"})

	// ActiveFlowRuns tracks the number of non-terminal FlowRuns per
	// flow_type, sampled at bootstrap/resume/stop/archive/completion.
	ActiveFlowRuns = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "autorunner_active_flow_runs",
		Help: "Currently active (non-terminal) FlowRuns, by flow_type.",
	}, []string{"flow_type"})

	// TicketEngineTurns counts ticket engine turns by result
	// (ticket_done, turn_cap_exceeded, handoff_pause, interrupted, error).
	TicketEngineTurns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "autorunner_ticket_engine_turns_total",
		Help: "Ticket engine agent turns, by result.",
	}, []string{"result"})

	// DeliveryOutcomesTotal counts DeliveryRouter per-target outcomes by
	// target kind and result (ok, error, duplicate).
	DeliveryOutcomesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "autorunner_delivery_outcomes_total",
		Help: "DeliveryRouter per-target delivery attempts, by target kind and result.",
	}, []string{"target_kind", "result"})

	// DeliveryAttemptsTotal counts whole Deliver() calls by their
	// overall delivery_status (spec §4.E.2 step 6).
	DeliveryAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "autorunner_delivery_attempts_total",
		Help: "DeliveryRouter.Deliver calls, by overall delivery_status.",
	}, []string{"status"})

	// SupervisorSessions tracks live AgentSupervisor sessions by kind
	// (app_server, pty) and status.
	SupervisorSessions = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "autorunner_supervisor_sessions",
		Help: "Live AgentSupervisor sessions, by kind and status.",
	}, []string{"kind", "status"})

	// EventBusDropsTotal counts events dropped because a subscriber's
	// queue was full (spec §4.D backpressure contract).
	EventBusDropsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "autorunner_eventbus_drops_total",
		Help: "Events dropped due to a full subscriber queue, by event type.",
	}, []string{"event_type"})
)
