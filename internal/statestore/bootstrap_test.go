package statestore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autorunner/internal/model"
)

func TestLockBootstrap_SerializesSameKey(t *testing.T) {
	store := newTestStore(t)
	unlock, err := store.LockBootstrap("repo-a", model.FlowTypeTicket)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		unlock2, err := store.LockBootstrap("repo-a", model.FlowTypeTicket)
		require.NoError(t, err)
		unlock2()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("expected second LockBootstrap to block until the first unlocks")
	case <-time.After(100 * time.Millisecond):
	}
	unlock()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("second LockBootstrap never acquired the lock after unlock")
	}
}

func TestLockBootstrap_DifferentKeysDoNotContend(t *testing.T) {
	store := newTestStore(t)
	unlockA, err := store.LockBootstrap("repo-a", model.FlowTypeTicket)
	require.NoError(t, err)
	defer unlockA()

	unlockB, err := store.LockBootstrap("repo-b", model.FlowTypeTicket)
	require.NoError(t, err)
	unlockB()
}
