package eventbus

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/r3labs/sse/v2"
)

// SSEBridge forwards Bus events for one run onto an r3labs/sse/v2 stream —
// the wire encoder behind the `GET /api/flows/<run_id>/events` contract
// surface. Mounting that route on an actual HTTP mux is a UI-layer concern
// and stays out of scope here; this type owns only turning Events into SSE
// frames and exposes the underlying server's ServeHTTP for a caller that
// does own a mux to mount.
type SSEBridge struct {
	server *sse.Server
}

// NewSSEBridge constructs a bridge around a fresh r3labs/sse/v2 server.
// Replay is left off: a newly-attached SSE client gets only events
// published after it connects, matching the ring-buffer's own
// tail-only-replay behavior for PTY sessions (spec §9) rather than
// re-delivering a run's entire history over SSE.
func NewSSEBridge() *SSEBridge {
	s := sse.New()
	s.AutoReplay = false
	return &SSEBridge{server: s}
}

// encodeSSE converts a bus Event into the wire frame r3labs/sse/v2 writes to
// attached clients: frame Event names the EventType so clients can dispatch
// without parsing Data, and Data carries the full JSON-encoded Event.
func encodeSSE(ev Event) (*sse.Event, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, err
	}
	return &sse.Event{Event: []byte(ev.Type), Data: data}, nil
}

// Stream registers runID as a live SSE stream and forwards bus events for
// that run onto it until ctx is cancelled or the bus subscription closes.
// Callers invoke this once per attaching SSE client's run_id.
func (b *SSEBridge) Stream(ctx context.Context, bus *Bus, runID string) {
	b.server.CreateStream(runID)
	sub := bus.Subscribe(runID)

	go func() {
		defer sub.Unsubscribe()
		defer b.server.RemoveStream(runID)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub.Events:
				if !ok {
					return
				}
				frame, err := encodeSSE(ev)
				if err != nil {
					continue
				}
				b.server.Publish(runID, frame)
			}
		}
	}()
}

// ServeHTTP mounts the SSE wire protocol (stream_id from the "stream"
// query parameter) for a caller's own mux.
func (b *SSEBridge) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.server.ServeHTTP(w, r)
}
