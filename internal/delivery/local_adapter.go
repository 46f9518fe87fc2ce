package delivery

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"autorunner/internal/model"
)

// localRecord is one line appended to a "local" delivery target's file.
type localRecord struct {
	OutboxID    string             `json:"outbox_id"`
	Timestamp   time.Time          `json:"timestamp"`
	Text        string             `json:"text"`
	Attachments []model.Attachment `json:"attachments,omitempty"`
}

// LocalAdapter delivers to "local" targets by appending one JSON line per
// chunk to the target's path. It is the delivery-side counterpart to the
// StateStore mirrors: same append-only O_APPEND discipline, but for a
// path an operator chose (e.g. a per-project notification log), not one
// StateStore owns.
type LocalAdapter struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewLocalAdapter returns a ready LocalAdapter.
func NewLocalAdapter() *LocalAdapter {
	return &LocalAdapter{locks: make(map[string]*sync.Mutex)}
}

func (a *LocalAdapter) lockFor(path string) func() {
	a.mu.Lock()
	l, ok := a.locks[path]
	if !ok {
		l = &sync.Mutex{}
		a.locks[path] = l
	}
	a.mu.Unlock()
	l.Lock()
	return l.Unlock
}

// Deliver appends one JSONL record for chunk to target.Path.
func (a *LocalAdapter) Deliver(_ context.Context, target model.DeliveryTarget, outboxID, chunk string, attachments []model.Attachment) error {
	if target.Path == "" {
		return fmt.Errorf("local target has no path")
	}
	unlock := a.lockFor(target.Path)
	defer unlock()

	if err := os.MkdirAll(filepath.Dir(target.Path), 0o755); err != nil {
		return fmt.Errorf("create parent dir for local target %s: %w", target.Path, err)
	}
	data, err := json.Marshal(localRecord{OutboxID: outboxID, Timestamp: time.Now().UTC(), Text: chunk, Attachments: attachments})
	if err != nil {
		return fmt.Errorf("marshal local delivery record: %w", err)
	}

	f, err := os.OpenFile(target.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644) //nolint:gosec // delivery payload, not secret
	if err != nil {
		return fmt.Errorf("open local target %s: %w", target.Path, err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("append to local target %s: %w", target.Path, err)
	}
	return f.Sync()
}
