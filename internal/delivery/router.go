package delivery

import (
	"context"
	"sort"
	"time"

	"autorunner/internal/model"
	"autorunner/internal/statestore"
	"autorunner/pkg/logx"
	"autorunner/pkg/metrics"
)

// Payload is the content of one PMA output or dispatch.
type Payload struct {
	Text        string
	Attachments []model.Attachment
}

// Request is one delivery attempt (spec §4.E.1).
type Request struct {
	TurnID     string // turn_id for outputs, dispatch_id for dispatches
	RunID      string // flow run this delivery originated from, for web/SSE tagging
	IsDispatch bool
	Payload    Payload
	// Targets overrides the configured target set when non-nil; nil means
	// "use StateStore.ReadTargets()".
	Targets []model.DeliveryTarget
}

// Result is the outcome of one Deliver call (spec §4.E.2 step 6).
type Result struct {
	Status   string // success | partial_success | failed | duplicate_only | skipped
	Reason   string // set when Status == "skipped"
	Outcomes []statestore.DeliveryOutcome
}

// Router implements DeliveryRouter.
type Router struct {
	store     *statestore.Store
	registry  *Registry
	chunkSize int
	logger    *logx.Logger
}

// New returns a Router backed by store, dispatching to adapters resolved
// through registry, chunking payloads at chunkSize runes.
func New(store *statestore.Store, registry *Registry, chunkSize int) *Router {
	return &Router{
		store:     store,
		registry:  registry,
		chunkSize: chunkSize,
		logger:    logx.NewLogger("delivery"),
	}
}

// Deliver runs the fan-out algorithm in spec §4.E.2.
func (r *Router) Deliver(ctx context.Context, req Request) (Result, error) {
	ctx = WithRunID(ctx, req.RunID)
	targets := req.Targets
	if targets == nil {
		f, err := r.store.ReadTargets()
		if err != nil {
			return Result{}, err
		}
		targets = f.Targets
	}
	if len(targets) == 0 {
		return Result{Status: "skipped", Reason: "no_targets"}, nil
	}

	ordered := append([]model.DeliveryTarget(nil), targets...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].TargetKey() < ordered[j].TargetKey() })

	chunks := chunkText(req.Payload.Text, r.chunkSize)

	var outcomes []statestore.DeliveryOutcome
	var succeededKeys []string
	attempted, succeeded, failed := 0, 0, 0

	for _, target := range ordered {
		key := target.TargetKey()

		if !req.IsDispatch {
			dup, err := r.store.DeliveryDedupeCheck(key, req.TurnID)
			if err != nil {
				return Result{}, err
			}
			if dup {
				outcomes = append(outcomes, statestore.DeliveryOutcome{TargetKey: key, Skipped: "duplicate"})
				continue
			}
		}

		outcome := r.deliverToTarget(ctx, target, key, req, chunks)
		attempted++
		if outcome.OK {
			succeeded++
			succeededKeys = append(succeededKeys, key)
			if target.Kind == model.TargetChat && req.RunID != "" {
				r.mirrorOutboundChat(req.RunID, target, req.Payload.Text)
			}
		} else {
			failed++
		}
		outcomes = append(outcomes, outcome)
	}

	if !req.IsDispatch {
		if err := r.store.DeliveryMarkSucceeded(req.TurnID, succeededKeys); err != nil {
			return Result{}, err
		}
	}
	if err := r.store.DeliveryMirrorAppend(statestore.DeliveryMirrorRecord{TurnID: req.TurnID, Targets: outcomes}); err != nil {
		return Result{}, err
	}

	status := deliveryStatus(attempted, succeeded, failed)
	metrics.DeliveryAttemptsTotal.WithLabelValues(status).Inc()
	for i, target := range ordered {
		if i >= len(outcomes) {
			break
		}
		metrics.DeliveryOutcomesTotal.WithLabelValues(string(target.Kind), outcomeResult(outcomes[i])).Inc()
	}

	return Result{Status: status, Outcomes: outcomes}, nil
}

func outcomeResult(o statestore.DeliveryOutcome) string {
	switch {
	case o.Skipped != "":
		return o.Skipped
	case o.OK:
		return "ok"
	default:
		return "error"
	}
}

// mirrorOutboundChat records a successful chat delivery into the run's
// outbound chat mirror (spec §4.E.4: "every outbound message, including
// PMA deliveries that landed in a chat target"). A mirror-write failure is
// logged, not propagated — it must never turn a successful delivery into
// a reported failure.
func (r *Router) mirrorOutboundChat(runID string, target model.DeliveryTarget, text string) {
	err := r.store.ChatMirrorAppend(runID, model.ChatMirrorRecord{
		TS:        time.Now().UTC(),
		Direction: model.DirectionOutbound,
		Platform:  target.Platform,
		ChatID:    target.ChatID,
		ThreadID:  target.ThreadID,
		Kind:      "pma_delivery",
		Text:      text,
	})
	if err != nil {
		r.logger.Warn("append outbound chat mirror for run %s: %v", runID, err)
	}

	if err := r.store.ChannelDirectoryObserve(model.ChannelDirectoryEntry{
		Platform: target.Platform,
		ChatID:   target.ChatID,
		ThreadID: target.ThreadID,
		LastSeen: time.Now().UTC(),
	}); err != nil {
		r.logger.Warn("observe channel directory entry: %v", err)
	}
}

func deliveryStatus(attempted, succeeded, failed int) string {
	switch {
	case attempted == 0:
		return "duplicate_only"
	case failed == 0:
		return "success"
	case succeeded == 0:
		return "failed"
	default:
		return "partial_success"
	}
}

func (r *Router) deliverToTarget(ctx context.Context, target model.DeliveryTarget, key string, req Request, chunks []string) statestore.DeliveryOutcome {
	adapter, err := r.registry.Resolve(target)
	if err != nil {
		return statestore.DeliveryOutcome{TargetKey: key, OK: false, Error: err.Error()}
	}

	sent := 0
	for i, chunk := range chunks {
		outboxID := statestore.OutboxID(req.TurnID, key, i, req.IsDispatch)
		attachments := []model.Attachment(nil)
		if i == len(chunks)-1 {
			attachments = req.Payload.Attachments
		}
		if err := adapter.Deliver(ctx, target, outboxID, chunk, attachments); err != nil {
			r.logger.Warn("delivery to target %s failed on chunk %d: %v", key, i, err)
			return statestore.DeliveryOutcome{TargetKey: key, OK: false, Error: err.Error(), ChunksSent: sent}
		}
		sent++
	}
	return statestore.DeliveryOutcome{TargetKey: key, OK: true, ChunksSent: sent}
}
