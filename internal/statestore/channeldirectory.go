package statestore

import (
	"encoding/json"

	"autorunner/internal/model"
	"autorunner/pkg/herrors"
)

const channelDirectoryRelPath = "chat/channel_directory.json"

type channelDirectoryFile struct {
	Entries []model.ChannelDirectoryEntry `json:"entries"`
}

// ChannelDirectoryRead returns the derived channel directory cache. It is
// never consulted for delivery decisions (spec §4.E.3) — callers use it only
// to populate UI hints. A missing or corrupt file is treated as empty and
// silently rebuilt on the next observed inbound message, never as a fatal
// error, since the directory is a hint, not authoritative state.
func (s *Store) ChannelDirectoryRead() ([]model.ChannelDirectoryEntry, error) {
	data, err := s.readFile(channelDirectoryRelPath)
	if herrors.Is(err, herrors.NotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, nil //nolint:nilerr // directory is a hint; corrupt cache rebuilds silently
	}
	var f channelDirectoryFile
	if err := json.Unmarshal(data, &f); err != nil {
		s.logger.Warn("channel directory corrupt, rebuilding: %v", err)
		return nil, nil
	}
	return f.Entries, nil
}

// ChannelDirectoryObserve records or refreshes a channel sighting (spec §3
// ChannelDirectory). It is called for inbound chat traffic and also after
// each successful outbound chat delivery.
func (s *Store) ChannelDirectoryObserve(entry model.ChannelDirectoryEntry) error {
	entries, err := s.ChannelDirectoryRead()
	if err != nil {
		return err
	}
	for i := range entries {
		if entries[i].Platform == entry.Platform && entries[i].ChatID == entry.ChatID && entries[i].ThreadID == entry.ThreadID {
			entries[i] = entry
			return s.writeChannelDirectory(entries)
		}
	}
	entries = append(entries, entry)
	return s.writeChannelDirectory(entries)
}

func (s *Store) writeChannelDirectory(entries []model.ChannelDirectoryEntry) error {
	data, err := json.MarshalIndent(channelDirectoryFile{Entries: entries}, "", "  ")
	if err != nil {
		return err
	}
	return s.atomicWrite(channelDirectoryRelPath, data)
}
