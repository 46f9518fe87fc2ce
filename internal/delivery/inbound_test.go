package delivery

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autorunner/internal/model"
	"autorunner/internal/statestore"
)

type fakeInboundAdapter struct {
	fakeAdapter
	inbound chan model.InboundMsg
}

func (f *fakeInboundAdapter) StreamInbound(context.Context) (<-chan model.InboundMsg, error) {
	return f.inbound, nil
}

func TestInboundListener_MirrorsIntoActiveRun(t *testing.T) {
	store, err := statestore.Open(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.FlowRunCreate(model.FlowRun{
		RunID:     "run-1",
		FlowType:  model.FlowTypeTicket,
		Status:    model.RunRunning,
		StartedAt: time.Now().UTC(),
	}))

	adapter := &fakeInboundAdapter{inbound: make(chan model.InboundMsg, 1)}
	registry := NewRegistry().WithChat(model.PlatformTelegram, adapter)
	listener := NewInboundListener(store, registry)

	ctx, cancel := context.WithCancel(context.Background())
	adapter.inbound <- model.InboundMsg{
		Platform:  model.PlatformTelegram,
		ChatID:    "123",
		Actor:     "alice",
		Text:      "hello from chat",
		Timestamp: time.Now().UTC(),
	}

	done := make(chan struct{})
	go func() {
		listener.Listen(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		recs, err := store.ChatMirrorRead("run-1", model.DirectionInbound)
		return err == nil && len(recs) == 1
	}, time.Second, 10*time.Millisecond)

	recs, err := store.ChatMirrorRead("run-1", model.DirectionInbound)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "hello from chat", recs[0].Text)
	assert.Equal(t, model.DirectionInbound, recs[0].Direction)

	entries, err := store.ChannelDirectoryRead()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "123", entries[0].ChatID)

	cancel()
	<-done
}

func TestInboundListener_SkipsAdaptersWithoutInboundCapability(t *testing.T) {
	store, err := statestore.Open(t.TempDir())
	require.NoError(t, err)

	registry := NewRegistry().WithChat(model.PlatformDiscord, &fakeAdapter{})
	listener := NewInboundListener(store, registry)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		listener.Listen(ctx)
		close(done)
	}()
	cancel()
	<-done
}
