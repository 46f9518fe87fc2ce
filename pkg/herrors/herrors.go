// Package herrors defines the hub's abstract error kinds (spec §7) as a
// typed enum plus a wrapping error type, so callers can branch with the
// standard library's errors.Is/errors.As instead of string-matching
// messages. This generalizes the ad hoc fmt.Errorf-with-sentinel
// conventions scattered across the teacher's persistence and config
// packages into one place.
package herrors

import (
	"errors"
	"fmt"
)

// Kind is one of the abstract error categories from spec §7.
type Kind int

const (
	// Internal covers programmer errors or violated invariants.
	Internal Kind = iota
	// PreconditionFailed means the caller asked for something the current
	// state forbids (e.g. starting a run with no tickets).
	PreconditionFailed
	// NotFound means an entity is missing on disk or in memory.
	NotFound
	// FileCorrupt means an authoritative JSON/YAML file failed to parse.
	FileCorrupt
	// AdapterFailed means a single delivery adapter returned an error.
	AdapterFailed
	// DestinationUnavailable means destination preflight failed.
	DestinationUnavailable
	// AgentProtocolError means unexpected framing from an agent process.
	AgentProtocolError
	// Cancelled means a caller-initiated stop or client disconnect.
	Cancelled
)

func (k Kind) String() string {
	switch k {
	case PreconditionFailed:
		return "precondition_failed"
	case NotFound:
		return "not_found"
	case FileCorrupt:
		return "file_corrupt"
	case AdapterFailed:
		return "adapter_failed"
	case DestinationUnavailable:
		return "destination_unavailable"
	case AgentProtocolError:
		return "agent_protocol_error"
	case Cancelled:
		return "cancelled"
	default:
		return "internal"
	}
}

// Error is the hub's error wrapper. Path is set when the error concerns a
// specific file under the hub or repo root (spec §4.A FileCorrupt contract).
type Error struct {
	Cause   error
	Kind    Kind
	Message string
	Path    string
}

func (e *Error) Error() string {
	if e.Path != "" {
		if e.Cause != nil {
			return fmt.Sprintf("%s: %s (path=%s): %v", e.Kind, e.Message, e.Path, e.Cause)
		}
		return fmt.Sprintf("%s: %s (path=%s)", e.Kind, e.Message, e.Path)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is makes errors.Is match any *Error of the same Kind as target, so
// errors.Is(err, herrors.New(herrors.NotFound, "", "")) holds for every
// NotFound error; the package-level Is(err, kind) is the usual comparison.
func (e *Error) Is(target error) bool {
	var te *Error
	if errors.As(target, &te) {
		return e.Kind == te.Kind
	}
	return false
}

// New constructs an *Error with no wrapped cause.
func New(kind Kind, path, format string, args ...any) *Error {
	return &Error{Kind: kind, Path: path, Message: fmt.Sprintf(format, args...)}
}

// Wrap constructs an *Error wrapping cause.
func Wrap(kind Kind, cause error, path, format string, args ...any) *Error {
	return &Error{Kind: kind, Path: path, Cause: cause, Message: fmt.Sprintf(format, args...)}
}

// KindOf extracts the Kind from err, defaulting to Internal if err is not
// (or does not wrap) an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// Is reports whether err is (or wraps) a herrors.Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
