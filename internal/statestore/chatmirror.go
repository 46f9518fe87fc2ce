package statestore

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"autorunner/internal/model"
)

func chatMirrorRelPath(runID string, direction model.ChatDirection) string {
	return filepath.Join("flows", runID, "chat", string(direction)+".jsonl")
}

// ChatMirrorAppend appends one record to the inbound or outbound JSONL
// mirror for runID. Mirrors are append-only: this is the only write path
// (spec §4.E.4), opened O_APPEND under appendLine so previous content is
// always a prefix of the new content.
func (s *Store) ChatMirrorAppend(runID string, rec model.ChatMirrorRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal chat mirror record: %w", err)
	}
	return s.appendLine(chatMirrorRelPath(runID, rec.Direction), data)
}

// ChatMirrorRead reads every record from the inbound or outbound mirror for
// runID, in file order. A missing mirror (no messages observed yet) returns
// an empty slice, not an error.
func (s *Store) ChatMirrorRead(runID string, direction model.ChatDirection) ([]model.ChatMirrorRecord, error) {
	data, err := s.readFile(chatMirrorRelPath(runID, direction))
	if err != nil {
		return nil, nil //nolint:nilerr // missing mirror means no messages yet, not a failure
	}
	return decodeJSONLRecords[model.ChatMirrorRecord](data)
}

func decodeJSONLRecords[T any](data []byte) ([]T, error) {
	var out []T
	start := 0
	for i := 0; i <= len(data); i++ {
		if i == len(data) || data[i] == '\n' {
			if i > start {
				var rec T
				if err := json.Unmarshal(data[start:i], &rec); err != nil {
					return nil, fmt.Errorf("parse jsonl record: %w", err)
				}
				out = append(out, rec)
			}
			start = i + 1
		}
	}
	return out, nil
}
