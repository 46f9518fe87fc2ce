package supervisor

import (
	"encoding/json"
	"fmt"

	"autorunner/internal/model"
)

// StructuredReply is the ticket engine's view of an agent's final answer
// for one turn: whether it declares the ticket complete, and whether it
// declares a handoff (spec §4.C.2 step 6).
type StructuredReply struct {
	TicketComplete bool
	Handoff        *model.HandoffDispatch
}

// StructuredReplyParser turns an agent's raw done-event payload into a
// StructuredReply. Each agent kind gets its own implementation since the
// source spec leaves the structured-reply schema agent-specific.
type StructuredReplyParser interface {
	Parse(raw []byte) (StructuredReply, error)
}

// codexReplyEnvelope is codex's own structured-reply JSON shape.
type codexReplyEnvelope struct {
	TicketComplete bool   `json:"ticket_complete"`
	HandoffMode    string `json:"handoff_mode,omitempty"`
	HandoffTitle   string `json:"handoff_title,omitempty"`
	HandoffBody    string `json:"handoff_body,omitempty"`
}

// CodexReplyParser parses codex's structured-reply envelope.
type CodexReplyParser struct{}

func (CodexReplyParser) Parse(raw []byte) (StructuredReply, error) {
	var env codexReplyEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return StructuredReply{}, fmt.Errorf("parse codex structured reply: %w", err)
	}
	reply := StructuredReply{TicketComplete: env.TicketComplete}
	if env.HandoffMode != "" {
		reply.Handoff = &model.HandoffDispatch{
			Mode:  model.HandoffMode(env.HandoffMode),
			Title: env.HandoffTitle,
			Body:  env.HandoffBody,
		}
	}
	return reply, nil
}

// OpenCodeReplyParser is a pass-through parser: until opencode's own
// structured-reply schema is known, it never declares a ticket complete or
// a handoff, so the ticket engine's turn-cap (spec §4.C.2 step 7) is the
// only way an opencode-driven ticket progresses past its turns. This fails
// closed rather than guessing at a schema that does not exist yet.
type OpenCodeReplyParser struct{}

func (OpenCodeReplyParser) Parse(_ []byte) (StructuredReply, error) {
	return StructuredReply{}, nil
}

// ParserFor returns the StructuredReplyParser for an agent kind.
func ParserFor(agent model.AgentName) StructuredReplyParser {
	switch agent {
	case model.AgentOpencode:
		return OpenCodeReplyParser{}
	default:
		return CodexReplyParser{}
	}
}
