package statestore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autorunner/internal/model"
)

func TestTargetUpsert_CoalescesByKey(t *testing.T) {
	store := newTestStore(t)
	target := model.DeliveryTarget{Kind: model.TargetWeb}
	require.NoError(t, store.TargetUpsert(target))
	require.NoError(t, store.TargetUpsert(target))

	f, err := store.ReadTargets()
	require.NoError(t, err)
	assert.Len(t, f.Targets, 1)
}

func TestTargetRemove(t *testing.T) {
	store := newTestStore(t)
	target := model.DeliveryTarget{Kind: model.TargetLocal, Path: "/tmp/out.jsonl"}
	require.NoError(t, store.TargetUpsert(target))
	require.NoError(t, store.TargetRemove(target.TargetKey()))

	f, err := store.ReadTargets()
	require.NoError(t, err)
	assert.Empty(t, f.Targets)
}

func TestDeliveryDedupeCheck(t *testing.T) {
	store := newTestStore(t)
	key := "web"
	dup, err := store.DeliveryDedupeCheck(key, "turn-1")
	require.NoError(t, err)
	assert.False(t, dup)

	require.NoError(t, store.DeliveryMarkSucceeded("turn-1", []string{key}))

	dup, err = store.DeliveryDedupeCheck(key, "turn-1")
	require.NoError(t, err)
	assert.True(t, dup)

	dup, err = store.DeliveryDedupeCheck(key, "turn-2")
	require.NoError(t, err)
	assert.False(t, dup)
}

func TestDeliveryMarkSucceeded_NoOpOnEmpty(t *testing.T) {
	store := newTestStore(t)
	assert.NoError(t, store.DeliveryMarkSucceeded("turn-1", nil))
}

func TestOutboxID_DistinguishesDispatchFromOutput(t *testing.T) {
	out := OutboxID("turn-1", "web", 0, false)
	dispatch := OutboxID("turn-1", "web", 0, true)
	assert.Equal(t, "pma:turn-1:web:0", out)
	assert.Equal(t, "pma-dispatch:turn-1:web:0", dispatch)
	assert.NotEqual(t, out, dispatch)
}

func TestDeliveryMirrorAppend(t *testing.T) {
	store := newTestStore(t)
	rec := DeliveryMirrorRecord{TurnID: "turn-1", Targets: []DeliveryOutcome{{TargetKey: "web", OK: true, ChunksSent: 1}}}
	require.NoError(t, store.DeliveryMirrorAppend(rec))
	require.NoError(t, store.DeliveryMirrorAppend(rec))
}
