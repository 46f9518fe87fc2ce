package delivery

import (
	"context"
	"time"

	"autorunner/internal/model"
	"autorunner/internal/statestore"
	"autorunner/pkg/logx"
)

// InboundListener drives the inbound half of every registered chat
// adapter's ChatAdapter capability (spec.md: "stream_inbound() -> lazy
// sequence of InboundMsg"). It is the sole writer of
// flows/<run_id>/chat/inbound.jsonl and the sole caller of
// ChannelDirectoryObserve from live chat traffic (spec §4.E.4, §3
// ChannelDirectory).
type InboundListener struct {
	store    *statestore.Store
	registry *Registry
	logger   *logx.Logger
}

// NewInboundListener returns a listener that mirrors inbound traffic from
// every adapter in registry that implements InboundAdapter.
func NewInboundListener(store *statestore.Store, registry *Registry) *InboundListener {
	return &InboundListener{store: store, registry: registry, logger: logx.NewLogger("delivery")}
}

// Listen starts one goroutine per chat adapter capable of streaming inbound
// messages and blocks until ctx is cancelled. Adapters that only implement
// Deliver (no InboundAdapter) are skipped silently — they have nothing to
// stream.
func (l *InboundListener) Listen(ctx context.Context) {
	for platform, adapter := range l.registry.ChatAdapters() {
		inbound, ok := adapter.(InboundAdapter)
		if !ok {
			continue
		}
		msgs, err := inbound.StreamInbound(ctx)
		if err != nil {
			l.logger.Warn("start inbound listener for %s: %v", platform, err)
			continue
		}
		go l.drain(ctx, msgs)
	}
	<-ctx.Done()
}

func (l *InboundListener) drain(ctx context.Context, msgs <-chan model.InboundMsg) {
	for {
		select {
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			l.observe(msg)
		case <-ctx.Done():
			return
		}
	}
}

// observe records one inbound message: always into ChannelDirectory (a
// hub-level hint, independent of any run), and into the active ticket-flow
// run's inbound chat mirror when one exists. A message that arrives with no
// active run has nowhere to mirror to and is only directory-observed — it is
// not a protocol error, just traffic outside any run's lifetime.
func (l *InboundListener) observe(msg model.InboundMsg) {
	if err := l.store.ChannelDirectoryObserve(model.ChannelDirectoryEntry{
		Platform: msg.Platform,
		ChatID:   msg.ChatID,
		ThreadID: msg.ThreadID,
		Label:    msg.Actor,
		LastSeen: msg.Timestamp,
	}); err != nil {
		l.logger.Warn("observe channel directory entry: %v", err)
	}

	run, err := l.store.ActiveFlowRun(model.FlowTypeTicket)
	if err != nil {
		l.logger.Warn("resolve active run for inbound mirror: %v", err)
		return
	}
	if run == nil {
		l.logger.Debug("inbound message from %s:%s has no active run, mirror skipped", msg.Platform, msg.ChatID)
		return
	}

	ts := msg.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	rec := model.ChatMirrorRecord{
		TS:        ts,
		Direction: model.DirectionInbound,
		Platform:  msg.Platform,
		ChatID:    msg.ChatID,
		ThreadID:  msg.ThreadID,
		MessageID: msg.MessageID,
		Actor:     msg.Actor,
		Kind:      "chat_message",
		Text:      msg.Text,
	}
	if err := l.store.ChatMirrorAppend(run.RunID, rec); err != nil {
		l.logger.Warn("append inbound chat mirror for run %s: %v", run.RunID, err)
	}
}
