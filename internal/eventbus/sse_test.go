package eventbus

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeSSE_CarriesTypeAndJSONPayload(t *testing.T) {
	ev := Event{Type: EventFlowStarted, RunID: "run-1", Timestamp: time.Unix(0, 0).UTC()}
	frame, err := encodeSSE(ev)
	require.NoError(t, err)
	assert.Equal(t, string(EventFlowStarted), string(frame.Event))
	assert.Contains(t, string(frame.Data), `"run_id":"run-1"`)
}

func TestSSEBridge_StreamDoesNotPanicAndStopsOnCancel(t *testing.T) {
	bus := New()
	bridge := NewSSEBridge()
	ctx, cancel := context.WithCancel(context.Background())

	bridge.Stream(ctx, bus, "run-1")
	bus.Publish(Event{Type: EventFlowStarted, RunID: "run-1"})

	cancel()
	time.Sleep(20 * time.Millisecond) // let the forwarding goroutine observe cancellation
}
