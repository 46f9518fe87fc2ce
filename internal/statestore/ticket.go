package statestore

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"autorunner/internal/model"
	"autorunner/internal/ticketfile"
)

const ticketsDirName = "tickets"

func ticketRelPath(filename string) string {
	return filepath.Join(ticketsDirName, filename)
}

// TicketList loads every ticket under tickets/, sorted by index ascending
// with lexical filename as the tie-break (spec §4.C.2 ordering rule).
// Tickets whose frontmatter fails to parse are still returned, with
// ParseError set, so the engine can log-and-skip them without halting.
func (s *Store) TicketList() ([]model.Ticket, error) {
	dir := filepath.Join(s.StateDir(), ticketsDirName)
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list tickets dir: %w", err)
	}

	var out []model.Ticket
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		raw, err := os.ReadFile(filepath.Join(dir, name)) //nolint:gosec // bounded to tickets dir
		if err != nil {
			out = append(out, model.Ticket{Path: name, ParseError: fmt.Errorf("read ticket file: %w", err)})
			continue
		}
		parsed, err := ticketfile.Parse(name, string(raw))
		if err != nil {
			out = append(out, model.Ticket{Index: parsed.Index, Path: name, ParseError: err})
			continue
		}
		out = append(out, model.Ticket{
			Index: parsed.Index,
			Path:  name,
			Title: parsed.Frontmatter.Title,
			Agent: parsed.Frontmatter.Agent,
			Done:  parsed.Frontmatter.Done,
			Body:  parsed.Body,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Index != out[j].Index {
			return out[i].Index < out[j].Index
		}
		return out[i].Path < out[j].Path
	})
	return out, nil
}

// NextTicket returns the lowest-index ticket with Done == false, or nil if
// none remain (spec §4.C.2 step 2). A ticket with ParseError set is still
// returned rather than filtered out here — the engine must see it so it can
// log-and-skip via markErrored (spec §4.C.2 step 7); silently filtering it
// would let a run with only a malformed ticket left fall through to
// complete() and report false success.
func (s *Store) NextTicket() (*model.Ticket, error) {
	tickets, err := s.TicketList()
	if err != nil {
		return nil, err
	}
	for i := range tickets {
		if !tickets[i].Done {
			return &tickets[i], nil
		}
	}
	return nil, nil
}

// TicketMarkDone flips a ticket's frontmatter done flag to true and rewrites
// the file atomically, preserving its body verbatim.
func (s *Store) TicketMarkDone(filename string) error {
	return s.ticketSetDone(filename, true)
}

func (s *Store) ticketSetDone(filename string, done bool) error {
	relPath := ticketRelPath(filename)
	raw, err := s.readFile(relPath)
	if err != nil {
		return err
	}
	parsed, err := ticketfile.Parse(filename, string(raw))
	if err != nil {
		return fmt.Errorf("parse ticket %s before mutation: %w", filename, err)
	}
	parsed.Frontmatter.Done = done
	rendered, err := ticketfile.Render(parsed)
	if err != nil {
		return fmt.Errorf("render ticket %s: %w", filename, err)
	}
	return s.atomicWrite(relPath, []byte(rendered))
}
