// Package statestore is the only component that reads or writes durable
// artifacts under a hub or repo root's .codex-autorunner/ subtree (spec
// §4.A). It exposes typed operations grouped by entity: manifest, flow
// runs, handoffs, tickets, chat mirrors, delivery targets, outbox dedupe,
// and the channel directory cache.
//
// Every write is atomic (write-then-rename into the same directory) under
// an advisory per-path lock; append-only mirrors are opened O_APPEND and
// never truncated. Both invariants are enforced here, not by callers.
// Flow run records (run.json) and delivery_targets.json carry a version
// integer and are always written at the current version; the other JSON
// files carry no version, and no reader upgrades an older version on read.
package statestore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"

	"autorunner/pkg/herrors"
	"autorunner/pkg/logx"
)

// StateDirName is the subdirectory name every hub/repo root's durable state
// lives under.
const StateDirName = ".codex-autorunner"

// Store is the StateStore handle. A Store is bound to one root (a hub root
// or a repo root); callers construct one Store per root they operate on.
type Store struct {
	root   string // absolute path to the hub or repo root (NOT including .codex-autorunner)
	logger *logx.Logger
	locks  *lockTable
}

// Open returns a Store rooted at root, creating the .codex-autorunner
// directory if it does not exist yet.
func Open(root string) (*Store, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root: %w", err)
	}
	stateDir := filepath.Join(abs, StateDirName)
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	return &Store{
		root:   abs,
		logger: logx.NewLogger("statestore"),
		locks:  newLockTable(),
	}, nil
}

// Root returns the root directory this Store is bound to.
func (s *Store) Root() string { return s.root }

// StateDir returns <root>/.codex-autorunner.
func (s *Store) StateDir() string { return filepath.Join(s.root, StateDirName) }

// resolve joins the state dir with relPath and enforces that the result
// stays under .codex-autorunner — any attempt to escape it is a fatal error
// (spec §4.A invariant 1, tested by the state-root-containment property).
func (s *Store) resolve(relPath string) (string, error) {
	stateDir := s.StateDir()
	joined := filepath.Join(stateDir, relPath)
	cleanedStateDir := filepath.Clean(stateDir) + string(os.PathSeparator)
	cleaned := filepath.Clean(joined)
	if cleaned != filepath.Clean(stateDir) && !strings.HasPrefix(cleaned+string(os.PathSeparator), cleanedStateDir) {
		return "", herrors.New(herrors.Internal, relPath, "path escapes state root %s", stateDir)
	}
	return cleaned, nil
}

// atomicWrite writes data to relPath (relative to .codex-autorunner) via a
// temp file in the same directory followed by rename, under the path's
// advisory lock.
func (s *Store) atomicWrite(relPath string, data []byte) error {
	path, err := s.resolve(relPath)
	if err != nil {
		return err
	}
	unlock, err := s.locks.Lock(path)
	if err != nil {
		return fmt.Errorf("lock %s: %w", relPath, err)
	}
	defer unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create parent dir for %s: %w", relPath, err)
	}
	tmp := path + ".tmp-" + randomSuffix()
	if err := os.WriteFile(tmp, data, 0o644); err != nil { //nolint:gosec // hub-local operator data, not secrets
		return fmt.Errorf("write temp file for %s: %w", relPath, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename temp file for %s: %w", relPath, err)
	}
	return nil
}

// appendLine appends data followed by a newline to relPath, creating parent
// directories and the file as needed, opened with O_APPEND so a concurrent
// reader always sees a prefix of the final content (spec mirror-append-only
// invariant).
func (s *Store) appendLine(relPath string, data []byte) error {
	path, err := s.resolve(relPath)
	if err != nil {
		return err
	}
	unlock, err := s.locks.Lock(path)
	if err != nil {
		return fmt.Errorf("lock %s: %w", relPath, err)
	}
	defer unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create parent dir for %s: %w", relPath, err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644) //nolint:gosec // mirror data, not secret
	if err != nil {
		return fmt.Errorf("open %s for append: %w", relPath, err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("append to %s: %w", relPath, err)
	}
	return f.Sync()
}

// readFile reads relPath, returning herrors.NotFound if it does not exist.
func (s *Store) readFile(relPath string) ([]byte, error) {
	path, err := s.resolve(relPath)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path) //nolint:gosec // path resolved and containment-checked above
	if os.IsNotExist(err) {
		return nil, herrors.New(herrors.NotFound, relPath, "not found")
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", relPath, err)
	}
	return data, nil
}

// lockTable takes the per-path advisory lock (spec §4.A): each Lock call
// opens <path>.lock through its own *flock.Flock, creating the parent
// directory first if needed, so calls on the same path serialize through
// that lock file both within this process and across processes.
type lockTable struct {
	dir string
}

func newLockTable() *lockTable {
	return &lockTable{dir: os.TempDir()}
}

func (t *lockTable) Lock(path string) (func(), error) {
	lockPath := path + ".lock"
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		return nil, err
	}
	fl := flock.New(lockPath)
	if err := fl.Lock(); err != nil {
		return nil, err
	}
	return func() {
		_ = fl.Unlock()
	}, nil
}
