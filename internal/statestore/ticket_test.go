package statestore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTicketFile(t *testing.T, store *Store, name, content string) {
	t.Helper()
	dir := filepath.Join(store.StateDir(), ticketsDirName)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestNextTicket_ReturnsParseErroredTicketInsteadOfSkipping(t *testing.T) {
	store := newTestStore(t)
	writeTicketFile(t, store, "TICKET-001.md", "not valid frontmatter at all")

	ticket, err := store.NextTicket()
	require.NoError(t, err)
	require.NotNil(t, ticket)
	assert.Error(t, ticket.ParseError)
}

func TestNextTicket_SkipsDoneTickets(t *testing.T) {
	store := newTestStore(t)
	writeTicketFile(t, store, "TICKET-001.md", "---\ntitle: first\nagent: coder\ndone: true\n---\nbody")
	writeTicketFile(t, store, "TICKET-002.md", "---\ntitle: second\nagent: coder\ndone: false\n---\nbody")

	ticket, err := store.NextTicket()
	require.NoError(t, err)
	require.NotNil(t, ticket)
	assert.Equal(t, "TICKET-002.md", ticket.Path)
}

func TestNextTicket_NilWhenNoneRemain(t *testing.T) {
	store := newTestStore(t)
	writeTicketFile(t, store, "TICKET-001.md", "---\ntitle: first\nagent: coder\ndone: true\n---\nbody")

	ticket, err := store.NextTicket()
	require.NoError(t, err)
	assert.Nil(t, ticket)
}
