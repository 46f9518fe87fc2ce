// Package eventbus is the single in-process fan-out point between
// FlowRuntime/AgentSupervisor/DeliveryRouter producers and their consumers
// (SSE connections, mirror writers, chat adapters). It never blocks a
// publisher: a subscriber whose queue is full has the event dropped and a
// marker recorded instead.
package eventbus

import (
	"sync"
	"time"

	"autorunner/pkg/logx"
	"autorunner/pkg/metrics"
)

// EventType enumerates the externally-visible event shapes FlowRuntime and
// its collaborators emit (spec §4.C.3).
type EventType string

const (
	EventFlowStarted      EventType = "flow_started"
	EventFlowCompleted    EventType = "flow_completed"
	EventFlowFailed       EventType = "flow_failed"
	EventFlowStopped      EventType = "flow_stopped"
	EventFlowPaused       EventType = "flow_paused"
	EventFlowResumed      EventType = "flow_resumed"
	EventStepStarted      EventType = "step_started"
	EventAgentStreamDelta EventType = "agent_stream_delta"
	EventAppServerEvent   EventType = "app_server_event"
	EventHandoffDispatch  EventType = "handoff_dispatched"
	EventPMADelivery      EventType = "pma_delivery"

	// EventDroppedN is the marker delivered to a subscriber in place of the
	// next event it would otherwise receive, once its queue has dropped one
	// or more events (spec §4.D: "a dropped_n marker is delivered"). Data
	// carries the cumulative drop count for that subscriber.
	EventDroppedN EventType = "dropped_n"
)

// Event is one item on the bus. Data carries the type-specific payload
// (e.g. a protocol.Event for app_server_event, a plain string delta for
// agent_stream_delta).
type Event struct {
	Type      EventType `json:"type"`
	RunID     string    `json:"run_id"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data,omitempty"`

	// TicketIndex tags ticket-flow events with the ticket they belong to
	// (spec §4.C.2 step 5: "every event is forwarded to the EventBus tagged
	// with {run_id, ticket_index}").
	TicketIndex int `json:"ticket_index,omitempty"`
}

// subscriberQueueSize bounds each subscriber's buffered channel. A
// subscriber slower than this is dropped-with-marker rather than allowed
// to block the publisher (spec §4.D: "the bus itself is not durable").
const subscriberQueueSize = 256

// Subscription is a live handle returned by Subscribe. Callers must range
// over Events until it is closed, then call Unsubscribe.
type Subscription struct {
	id     uint64
	Events <-chan Event
	bus    *Bus
	runID  string
}

// Unsubscribe removes this subscription from the bus and closes its channel.
func (s *Subscription) Unsubscribe() {
	s.bus.unsubscribe(s.runID, s.id)
}

type subscriber struct {
	id          uint64
	ch          chan Event
	drop        int  // count of events dropped due to a full queue, surfaced for diagnostics
	markerOwed  bool // set once drop > 0 until a dropped_n marker has actually been delivered
}

// Bus is a single in-process publish/subscribe hub keyed by run_id. A
// subscription with runID == "" receives every event regardless of run.
type Bus struct {
	mu      sync.RWMutex
	subs    map[string]map[uint64]*subscriber
	nextID  uint64
	logger  *logx.Logger
}

// New returns an empty Bus.
func New() *Bus {
	return &Bus{
		subs:   make(map[string]map[uint64]*subscriber),
		logger: logx.NewLogger("eventbus"),
	}
}

// Subscribe registers a new subscriber for runID ("" subscribes to every
// run). The returned Subscription's Events channel delivers events in
// publish order for a given run_id; total order across different run_ids
// is not guaranteed.
func (b *Bus) Subscribe(runID string) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	sub := &subscriber{id: id, ch: make(chan Event, subscriberQueueSize)}
	if b.subs[runID] == nil {
		b.subs[runID] = make(map[uint64]*subscriber)
	}
	b.subs[runID][id] = sub

	return &Subscription{id: id, Events: sub.ch, bus: b, runID: runID}
}

func (b *Bus) unsubscribe(runID string, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if subs, ok := b.subs[runID]; ok {
		if sub, ok := subs[id]; ok {
			close(sub.ch)
			delete(subs, id)
		}
		if len(subs) == 0 {
			delete(b.subs, runID)
		}
	}
}

// Publish delivers ev to every subscriber of ev.RunID and every
// wildcard ("") subscriber. A subscriber whose queue is full has the event
// dropped (counted, logged at debug) rather than blocking this call —
// Publish never blocks on a slow consumer.
func (b *Bus) Publish(ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()

	b.deliverTo(ev.RunID, ev)
	if ev.RunID != "" {
		b.deliverTo("", ev)
	}
}

func (b *Bus) deliverTo(key string, ev Event) {
	for _, sub := range b.subs[key] {
		// A prior drop owes this subscriber a marker before anything else —
		// send it in place of ev this round rather than blocking to deliver
		// both (spec §4.D: "a dropped_n marker is delivered").
		if sub.markerOwed {
			marker := Event{Type: EventDroppedN, RunID: ev.RunID, Timestamp: ev.Timestamp, Data: sub.drop}
			select {
			case sub.ch <- marker:
				sub.markerOwed = false
				continue
			default:
				sub.drop++
				metrics.EventBusDropsTotal.WithLabelValues(string(ev.Type)).Inc()
				continue
			}
		}

		select {
		case sub.ch <- ev:
		default:
			sub.drop++
			sub.markerOwed = true
			metrics.EventBusDropsTotal.WithLabelValues(string(ev.Type)).Inc()
			b.logger.Debug("dropped event %s for run %s: subscriber %d queue full (%d total drops)", ev.Type, ev.RunID, sub.id, sub.drop)
		}
	}
}

// CloseRun unsubscribes and closes every subscriber scoped to runID. Callers
// invoke this once a run reaches a terminal state and has finished emitting.
func (b *Bus) CloseRun(runID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, sub := range b.subs[runID] {
		close(sub.ch)
		delete(b.subs[runID], id)
	}
	delete(b.subs, runID)
}
