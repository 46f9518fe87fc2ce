package delivery

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autorunner/internal/model"
	"autorunner/internal/statestore"
)

type fakeAdapter struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (f *fakeAdapter) Deliver(_ context.Context, target model.DeliveryTarget, outboxID, chunk string, _ []model.Attachment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.calls = append(f.calls, outboxID)
	return nil
}

func newTestRouter(t *testing.T, web *fakeAdapter) (*Router, *statestore.Store) {
	t.Helper()
	store, err := statestore.Open(t.TempDir())
	require.NoError(t, err)
	registry := NewRegistry().WithWeb(web)
	return New(store, registry, 3500), store
}

func TestRouter_Deliver_SkippedWhenNoTargets(t *testing.T) {
	router, _ := newTestRouter(t, &fakeAdapter{})
	result, err := router.Deliver(context.Background(), Request{TurnID: "t1", Payload: Payload{Text: "hello"}})
	require.NoError(t, err)
	assert.Equal(t, "skipped", result.Status)
	assert.Equal(t, "no_targets", result.Reason)
}

func TestRouter_Deliver_SucceedsAndDedupesSecondCall(t *testing.T) {
	web := &fakeAdapter{}
	router, store := newTestRouter(t, web)
	require.NoError(t, store.TargetUpsert(model.DeliveryTarget{Kind: model.TargetWeb}))

	req := Request{TurnID: "turn-1", Payload: Payload{Text: "hello"}}
	result, err := router.Deliver(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "success", result.Status)
	require.Len(t, web.calls, 1)
	assert.Equal(t, "pma:turn-1:web:0", web.calls[0])

	// Re-delivering the same turn to the same target is a duplicate, not a
	// second send (spec §4.E.2 step 3b).
	result2, err := router.Deliver(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "duplicate_only", result2.Status)
	assert.Len(t, web.calls, 1)
	require.Len(t, result2.Outcomes, 1)
	assert.Equal(t, "duplicate", result2.Outcomes[0].Skipped)
}

func TestRouter_Deliver_DispatchNeverDedupes(t *testing.T) {
	web := &fakeAdapter{}
	router, store := newTestRouter(t, web)
	require.NoError(t, store.TargetUpsert(model.DeliveryTarget{Kind: model.TargetWeb}))

	req := Request{TurnID: "dispatch-1", IsDispatch: true, Payload: Payload{Text: "notice"}}
	for i := 0; i < 2; i++ {
		result, err := router.Deliver(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, "success", result.Status)
	}
	assert.Len(t, web.calls, 2)
}

func TestRouter_Deliver_FailedAdapterYieldsFailedStatus(t *testing.T) {
	web := &fakeAdapter{err: assertErr{}}
	router, store := newTestRouter(t, web)
	require.NoError(t, store.TargetUpsert(model.DeliveryTarget{Kind: model.TargetWeb}))

	result, err := router.Deliver(context.Background(), Request{TurnID: "t1", Payload: Payload{Text: "x"}})
	require.NoError(t, err)
	assert.Equal(t, "failed", result.Status)
	require.Len(t, result.Outcomes, 1)
	assert.False(t, result.Outcomes[0].OK)
}

func TestRouter_Deliver_OrdersTargetsByKey(t *testing.T) {
	web := &fakeAdapter{}
	router, store := newTestRouter(t, web)
	require.NoError(t, store.TargetUpsert(model.DeliveryTarget{Kind: model.TargetLocal, Path: "/tmp/z.jsonl"}))
	require.NoError(t, store.TargetUpsert(model.DeliveryTarget{Kind: model.TargetWeb}))
	registry := NewRegistry().WithWeb(web).WithLocal(web)
	router = New(store, registry, 3500)

	result, err := router.Deliver(context.Background(), Request{TurnID: "t1", Payload: Payload{Text: "x"}})
	require.NoError(t, err)
	require.Len(t, result.Outcomes, 2)
	// "local:/tmp/z.jsonl" < "web" lexicographically.
	assert.Equal(t, "local:/tmp/z.jsonl", result.Outcomes[0].TargetKey)
	assert.Equal(t, "web", result.Outcomes[1].TargetKey)
}

type assertErr struct{}

func (assertErr) Error() string { return "adapter failure" }
