// Package model defines the durable entities StateStore reads and writes
// (spec §3). These are plain data types; every operation on them lives in
// internal/statestore, which is the only component allowed to touch disk.
package model

import "time"

// RepoKind distinguishes a base checkout from a worktree.
type RepoKind string

const (
	RepoKindBase     RepoKind = "base"
	RepoKindWorktree RepoKind = "worktree"
)

// Repo is one unit of work the hub knows about.
type Repo struct {
	RepoID      string       `yaml:"repo_id" json:"repo_id"`
	Path        string       `yaml:"path" json:"path"`
	Kind        RepoKind     `yaml:"kind" json:"kind"`
	WorktreeOf  string       `yaml:"worktree_of,omitempty" json:"worktree_of,omitempty"`
	Initialized bool         `yaml:"initialized" json:"initialized"`
	Destination *Destination `yaml:"destination,omitempty" json:"destination,omitempty"`
}

// DestinationKind selects where agent processes execute.
type DestinationKind string

const (
	DestinationLocal  DestinationKind = "local"
	DestinationDocker DestinationKind = "docker"
)

// Mount is one bind mount for a docker Destination.
type Mount struct {
	Source   string `yaml:"source" json:"source"`
	Target   string `yaml:"target" json:"target"`
	ReadOnly bool   `yaml:"read_only" json:"read_only"`
}

// Destination is a tagged variant: kind=local carries no other fields;
// kind=docker carries image/container/profile/workdir/env/mounts.
type Destination struct {
	Kind            DestinationKind   `yaml:"kind" json:"kind"`
	Image           string            `yaml:"image,omitempty" json:"image,omitempty"`
	ContainerName   string            `yaml:"container_name,omitempty" json:"container_name,omitempty"`
	Profile         string            `yaml:"profile,omitempty" json:"profile,omitempty"`
	Workdir         string            `yaml:"workdir,omitempty" json:"workdir,omitempty"`
	EnvPassthrough  []string          `yaml:"env_passthrough,omitempty" json:"env_passthrough,omitempty"`
	Env             map[string]string `yaml:"env,omitempty" json:"env,omitempty"`
	Mounts          []Mount           `yaml:"mounts,omitempty" json:"mounts,omitempty"`
}

// FlowType identifies a flow implementation; ticket_flow is the canonical one.
type FlowType string

const FlowTypeTicket FlowType = "ticket_flow"

// RunStatus is a FlowRun's lifecycle state (spec §4.C.1).
type RunStatus string

const (
	RunPending   RunStatus = "pending"
	RunRunning   RunStatus = "running"
	RunPaused    RunStatus = "paused"
	RunCompleted RunStatus = "completed"
	RunStopped   RunStatus = "stopped"
	RunFailed    RunStatus = "failed"
)

// Terminal reports whether status is one of the run's terminal states.
func (s RunStatus) Terminal() bool {
	return s == RunCompleted || s == RunStopped || s == RunFailed
}

// TicketEngineState is the ticket_flow-specific payload of FlowRun.State.
type TicketEngineState struct {
	CurrentTicketPath string `json:"current_ticket_path,omitempty"`
	TicketTurns       int    `json:"ticket_turns"`
	TotalTurns        int    `json:"total_turns"`
	Reason            string `json:"reason,omitempty"`
	ReasonDetails     string `json:"reason_details,omitempty"`

	// ErroredTickets holds the filenames of tickets skipped this run due
	// to a parse error or turn-cap excess, so a restarted engine does not
	// retry them within the same run (spec §4.C.2 step 7).
	ErroredTickets []string `json:"errored_tickets,omitempty"`
}

// FlowRun is one invocation of a flow against a repo (spec §3).
type FlowRun struct {
	RunID         string            `json:"run_id"`
	FlowType      FlowType          `json:"flow_type"`
	RepoID        string            `json:"repo_id"`
	Status        RunStatus         `json:"status"`
	StartedAt     time.Time         `json:"started_at"`
	FinishedAt    *time.Time        `json:"finished_at,omitempty"`
	ExitCode      *int              `json:"exit_code,omitempty"`
	ErrorMessage  string            `json:"error_message,omitempty"`
	TicketEngine  TicketEngineState `json:"ticket_engine"`
	StopRequested bool              `json:"stop_requested"`
}

// Active reports whether the run counts toward the single-active-run invariant.
func (r *FlowRun) Active() bool { return !r.Status.Terminal() }

// Ticket is one unit of agent work, backed by a markdown file with YAML
// frontmatter under <repo>/.codex-autorunner/tickets/TICKET-NNN.md.
type Ticket struct {
	Index int    `json:"index"`
	Path  string `json:"path"`
	Title string `json:"title" yaml:"title"`
	Agent string `json:"agent" yaml:"agent"`
	Done  bool   `json:"done" yaml:"done"`
	Body  string `json:"body"`

	// ParseError is set when frontmatter failed to parse; such tickets are
	// skipped by the engine but never halt the run (spec §3 Ticket invariant).
	ParseError error `json:"-"`
}

// HandoffMode is the kind of notice a HandoffDispatch carries.
type HandoffMode string

const (
	HandoffNotify  HandoffMode = "notify"
	HandoffPause   HandoffMode = "pause"
	HandoffResolve HandoffMode = "resolve"
)

// Attachment is a named blob referenced by a HandoffDispatch.
type Attachment struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// HandoffDispatch is an append-only per-run record (spec §3).
type HandoffDispatch struct {
	Seq         int          `json:"seq"`
	Mode        HandoffMode  `json:"mode"`
	Title       string       `json:"title"`
	Body        string       `json:"body"`
	Attachments []Attachment `json:"attachments,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
}

// TargetKind is the kind of PMA delivery target.
type TargetKind string

const (
	TargetWeb   TargetKind = "web"
	TargetLocal TargetKind = "local"
	TargetChat  TargetKind = "chat"
)

// ChatPlatform names a supported chat backend.
type ChatPlatform string

const (
	PlatformTelegram ChatPlatform = "telegram"
	PlatformDiscord  ChatPlatform = "discord"
)

// DeliveryTarget is a PMA delivery target (spec §3).
type DeliveryTarget struct {
	Kind     TargetKind   `json:"kind"`
	Platform ChatPlatform `json:"platform,omitempty"`
	ChatID   string       `json:"chat_id,omitempty"`
	ThreadID string       `json:"thread_id,omitempty"`
	Path     string       `json:"path,omitempty"`
}

// TargetKey computes the target's sole identity key (spec §3).
func (t DeliveryTarget) TargetKey() string {
	switch t.Kind {
	case TargetWeb:
		return "web"
	case TargetLocal:
		return "local:" + t.Path
	case TargetChat:
		key := "chat:" + string(t.Platform) + ":"
		switch t.Platform {
		case PlatformTelegram:
			key += t.ChatID
			if t.ThreadID != "" {
				key += ":" + t.ThreadID
			}
		case PlatformDiscord:
			key += t.ChatID
		}
		return key
	default:
		return ""
	}
}

// DeliveryTargetsFile is the on-disk shape of delivery_targets.json (v1).
type DeliveryTargetsFile struct {
	Version            int                       `json:"version"`
	Targets            []DeliveryTarget          `json:"targets"`
	LastDeliveryByTarget map[string]string        `json:"last_delivery_by_target"`
}

// ChannelDirectoryEntry is one derived hint about a known chat channel.
type ChannelDirectoryEntry struct {
	Platform  ChatPlatform `json:"platform"`
	ChatID    string       `json:"chat_id"`
	ThreadID  string       `json:"thread_id,omitempty"`
	Label     string       `json:"label,omitempty"`
	LastSeen  time.Time    `json:"last_seen"`
}

// ChatDirection is inbound or outbound relative to the hub.
type ChatDirection string

const (
	DirectionInbound  ChatDirection = "inbound"
	DirectionOutbound ChatDirection = "outbound"
)

// InboundMsg is one message observed by a ChatAdapter's inbound listener,
// independent of any PMA delivery (spec.md's `stream_inbound() -> lazy
// sequence of InboundMsg`).
type InboundMsg struct {
	Platform  ChatPlatform `json:"platform"`
	ChatID    string       `json:"chat_id"`
	ThreadID  string       `json:"thread_id,omitempty"`
	MessageID string       `json:"message_id,omitempty"`
	Actor     string       `json:"actor,omitempty"`
	Text      string       `json:"text"`
	Timestamp time.Time    `json:"timestamp"`
}

// ChatMirrorRecord is one line of a chat mirror JSONL file (spec §3, §4.E.4).
type ChatMirrorRecord struct {
	TS        time.Time     `json:"ts"`
	Direction ChatDirection `json:"direction"`
	Platform  ChatPlatform  `json:"platform"`
	ChatID    string        `json:"chat_id"`
	ThreadID  string        `json:"thread_id,omitempty"`
	MessageID string        `json:"message_id,omitempty"`
	Actor     string        `json:"actor,omitempty"`
	Kind      string        `json:"kind,omitempty"`
	Text      string        `json:"text"`
	Meta      map[string]any `json:"meta,omitempty"`
}

// AgentKind distinguishes app-server and PTY agent sessions.
type AgentKind string

const (
	AgentKindAppServer AgentKind = "app_server"
	AgentKindPTY       AgentKind = "pty"
)

// AgentName identifies the external agent CLI driving a session.
type AgentName string

const (
	AgentCodex    AgentName = "codex"
	AgentOpencode AgentName = "opencode"
)

// SessionStatus is an AgentSession's process state (spec §4.B).
type SessionStatus string

const (
	SessionStarting     SessionStatus = "starting"
	SessionIdle         SessionStatus = "idle"
	SessionBusy         SessionStatus = "busy"
	SessionInterrupting SessionStatus = "interrupting"
	SessionExiting      SessionStatus = "exiting"
	SessionDead         SessionStatus = "dead"
)

// AgentSession is in-memory only (spec §3); PTY sessions additionally persist
// a small registry entry so a refreshed browser can reattach.
type AgentSession struct {
	SessionID string
	Kind      AgentKind
	RepoID    string
	Agent     AgentName
	ThreadID  string
	StartedAt time.Time
	Status    SessionStatus
}
