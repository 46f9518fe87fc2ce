package supervisor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autorunner/internal/model"
)

func TestCodexReplyParser_ParsesCompleteWithHandoff(t *testing.T) {
	raw := []byte(`{"ticket_complete":true,"handoff_mode":"architect","handoff_title":"t","handoff_body":"b"}`)
	reply, err := CodexReplyParser{}.Parse(raw)
	require.NoError(t, err)
	assert.True(t, reply.TicketComplete)
	require.NotNil(t, reply.Handoff)
	assert.Equal(t, model.HandoffMode("architect"), reply.Handoff.Mode)
	assert.Equal(t, "t", reply.Handoff.Title)
	assert.Equal(t, "b", reply.Handoff.Body)
}

func TestCodexReplyParser_NoHandoffModeLeavesHandoffNil(t *testing.T) {
	reply, err := CodexReplyParser{}.Parse([]byte(`{"ticket_complete":false}`))
	require.NoError(t, err)
	assert.False(t, reply.TicketComplete)
	assert.Nil(t, reply.Handoff)
}

func TestCodexReplyParser_MalformedJSONErrors(t *testing.T) {
	_, err := CodexReplyParser{}.Parse([]byte(`not json`))
	assert.Error(t, err)
}

func TestOpenCodeReplyParser_AlwaysEmpty(t *testing.T) {
	reply, err := OpenCodeReplyParser{}.Parse([]byte(`{"ticket_complete":true}`))
	require.NoError(t, err)
	assert.False(t, reply.TicketComplete)
	assert.Nil(t, reply.Handoff)
}

func TestParserFor_SelectsByAgent(t *testing.T) {
	assert.IsType(t, OpenCodeReplyParser{}, ParserFor(model.AgentOpencode))
	assert.IsType(t, CodexReplyParser{}, ParserFor(model.AgentCodex))
}
