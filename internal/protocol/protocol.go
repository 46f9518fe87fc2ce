// Package protocol classifies the raw JSON event envelopes emitted by an
// agent CLI running in app-server mode into the shape the UI and handoff
// detector both consume (spec §4.D).
package protocol

import (
	"encoding/json"
	"fmt"
)

// Kind is the classified type of an app-server event.
type Kind string

const (
	KindThinking Kind = "thinking"
	KindCommand  Kind = "command"
	KindToolCall Kind = "tool_call"
	KindFileEdit Kind = "file_edit"
	KindMessage  Kind = "message"
	KindUnknown  Kind = "unknown"
)

// MergeStrategy says how a new event with the same ItemID should combine
// with the previously emitted entry.
type MergeStrategy string

const (
	MergeAppend  MergeStrategy = "append"
	MergeNewline MergeStrategy = "newline"
	MergeNone    MergeStrategy = "none"
)

// Event is the classified, UI- and handoff-detector-ready form of one
// app-server envelope.
type Event struct {
	Kind          Kind          `json:"kind"`
	ItemID        string        `json:"item_id,omitempty"`
	Title         string        `json:"title,omitempty"`
	Summary       string        `json:"summary,omitempty"`
	Detail        string        `json:"detail,omitempty"`
	Method        string        `json:"method,omitempty"`
	Time          string        `json:"time,omitempty"`
	MergeStrategy MergeStrategy `json:"merge_strategy,omitempty"`
}

// rawEnvelope is the wire shape an app-server actually emits. Field names
// follow the agent CLI's own envelope, not this package's classified Event.
type rawEnvelope struct {
	Type    string `json:"type"`
	ItemID  string `json:"item_id"`
	Title   string `json:"title"`
	Summary string `json:"summary"`
	Detail  string `json:"detail"`
	Method  string `json:"method"`
	Time    string `json:"time"`
	Merge   string `json:"merge_strategy"`
}

// Classify parses one line of app-server output into an Event. An envelope
// whose type is not recognized classifies as KindUnknown rather than
// erroring, so the caller can keep reading the stream past it; a line that
// is not valid JSON returns an error.
func Classify(raw []byte) (Event, error) {
	var env rawEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Event{}, fmt.Errorf("parse app-server envelope: %w", err)
	}

	ev := Event{
		ItemID:  env.ItemID,
		Title:   env.Title,
		Summary: env.Summary,
		Detail:  env.Detail,
		Method:  env.Method,
		Time:    env.Time,
	}
	switch env.Merge {
	case string(MergeAppend):
		ev.MergeStrategy = MergeAppend
	case string(MergeNewline):
		ev.MergeStrategy = MergeNewline
	default:
		ev.MergeStrategy = MergeNone
	}

	switch env.Type {
	case "thinking":
		ev.Kind = KindThinking
	case "command":
		ev.Kind = KindCommand
	case "tool_call":
		ev.Kind = KindToolCall
	case "file_edit":
		ev.Kind = KindFileEdit
	case "message":
		ev.Kind = KindMessage
	default:
		ev.Kind = KindUnknown
	}
	return ev, nil
}

// Coalesce merges next into prev according to next's MergeStrategy, when
// both share the same ItemID (spec §4.D: "same item_id with
// merge_strategy=append coalesces into the previous entry").
func Coalesce(prev, next Event) Event {
	if prev.ItemID == "" || prev.ItemID != next.ItemID {
		return next
	}
	switch next.MergeStrategy {
	case MergeAppend:
		prev.Detail += next.Detail
		prev.Summary = next.Summary
		prev.Time = next.Time
		return prev
	case MergeNewline:
		if prev.Detail != "" {
			prev.Detail += "\n"
		}
		prev.Detail += next.Detail
		prev.Summary = next.Summary
		prev.Time = next.Time
		return prev
	default:
		return next
	}
}
