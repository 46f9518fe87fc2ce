package eventbus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublish_DeliversToMatchingRunAndWildcard(t *testing.T) {
	bus := New()
	runSub := bus.Subscribe("run-1")
	defer runSub.Unsubscribe()
	wildcardSub := bus.Subscribe("")
	defer wildcardSub.Unsubscribe()
	otherSub := bus.Subscribe("run-2")
	defer otherSub.Unsubscribe()

	bus.Publish(Event{Type: EventFlowStarted, RunID: "run-1"})

	select {
	case ev := <-runSub.Events:
		assert.Equal(t, EventFlowStarted, ev.Type)
	case <-time.After(time.Second):
		t.Fatal("run-scoped subscriber never received the event")
	}

	select {
	case ev := <-wildcardSub.Events:
		assert.Equal(t, EventFlowStarted, ev.Type)
	case <-time.After(time.Second):
		t.Fatal("wildcard subscriber never received the event")
	}

	select {
	case <-otherSub.Events:
		t.Fatal("subscriber for a different run should not receive the event")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPublish_StampsTimestampWhenZero(t *testing.T) {
	bus := New()
	sub := bus.Subscribe("run-1")
	defer sub.Unsubscribe()

	bus.Publish(Event{Type: EventFlowStarted, RunID: "run-1"})
	ev := <-sub.Events
	assert.False(t, ev.Timestamp.IsZero())
}

func TestPublish_DropsWithoutBlockingWhenQueueFull(t *testing.T) {
	bus := New()
	sub := bus.Subscribe("run-1")
	defer sub.Unsubscribe()

	for i := 0; i < subscriberQueueSize+5; i++ {
		bus.Publish(Event{Type: EventStepStarted, RunID: "run-1"})
	}

	// Draining should yield exactly subscriberQueueSize buffered events; the
	// rest were dropped, not queued beyond capacity.
	count := 0
	for {
		select {
		case <-sub.Events:
			count++
		default:
			require.Equal(t, subscriberQueueSize, count)
			return
		}
	}
}

func TestPublish_DeliversDroppedNMarkerOnceSlotFrees(t *testing.T) {
	bus := New()
	sub := bus.Subscribe("run-1")
	defer sub.Unsubscribe()

	for i := 0; i < subscriberQueueSize+1; i++ {
		bus.Publish(Event{Type: EventStepStarted, RunID: "run-1"})
	}

	// Drain the full queue; the subscriber now has a slot free but is owed
	// a dropped_n marker for the event that didn't fit (spec §4.D).
	for i := 0; i < subscriberQueueSize; i++ {
		<-sub.Events
	}

	bus.Publish(Event{Type: EventStepStarted, RunID: "run-1"})

	select {
	case ev := <-sub.Events:
		require.Equal(t, EventDroppedN, ev.Type)
		assert.Equal(t, 1, ev.Data)
	case <-time.After(time.Second):
		t.Fatal("subscriber never received the dropped_n marker")
	}
}

func TestCloseRun_ClosesOnlyThatRunsSubscribers(t *testing.T) {
	bus := New()
	sub := bus.Subscribe("run-1")
	other := bus.Subscribe("run-2")
	defer other.Unsubscribe()

	bus.CloseRun("run-1")

	_, ok := <-sub.Events
	assert.False(t, ok, "run-1 subscriber channel should be closed")

	bus.Publish(Event{Type: EventFlowStarted, RunID: "run-2"})
	select {
	case ev := <-other.Events:
		assert.Equal(t, EventFlowStarted, ev.Type)
	case <-time.After(time.Second):
		t.Fatal("run-2 subscriber should be unaffected by closing run-1")
	}
}
