package types

import (
	"encoding/json"
	"time"
)

// Role identifies who (or what) emitted an event.
type Role string

const (
	RoleUser       Role = "user"
	RoleAssistant  Role = "assistant"
	RoleSystem     Role = "system"
	RoleToolResult Role = "tool-result"
)

// Event is one unit of worker activity. Events are append-only: once
// stored they are never modified or deleted.
type Event struct {
	ID        EventID   `json:"id"`
	ForkID    ForkID    `json:"fork_id"`
	SessionID SessionID `json:"session_id,omitempty"`
	Role      Role      `json:"role"`

	// ParentToolUseID names the tool invocation that caused this event.
	// Empty for root events.
	ParentToolUseID ToolUseID `json:"parent_tool_use_id,omitempty"`

	// ToolUseIDs are the tool invocations this event itself initiated;
	// later events referencing one of them are its children.
	ToolUseIDs []ToolUseID `json:"tool_use_ids,omitempty"`

	// Payload holds the worker's emitted line verbatim.
	Payload json.RawMessage `json:"payload"`

	// Derived scalars, present only when the worker reported them.
	CostUSD    *float64 `json:"cost_usd,omitempty"`
	DurationMS *int64   `json:"duration_ms,omitempty"`
	NumTurns   *int64   `json:"num_turns,omitempty"`

	At time.Time `json:"at"`
}

// ForkStatus is the lifecycle state of a fork.
type ForkStatus string

const (
	ForkActive    ForkStatus = "active"
	ForkRunning   ForkStatus = "running"
	ForkCompleted ForkStatus = "completed"
	ForkFailed    ForkStatus = "failed"
)

// Terminal reports whether no further status transition is allowed.
func (s ForkStatus) Terminal() bool {
	return s == ForkCompleted || s == ForkFailed
}

// Fork is one spawned background unit of work tied to a worker process.
type Fork struct {
	ID              ForkID     `json:"id"`
	ParentSessionID SessionID  `json:"parent_session_id,omitempty"`
	ForkSessionID   SessionID  `json:"fork_session_id,omitempty"`
	Name            string     `json:"name,omitempty"`
	Status          ForkStatus `json:"status"`
	Read            bool       `json:"read"`
	PID             int        `json:"pid,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
}

// Session is one agent conversation context. ForkID back-references the
// fork that created it and is set at most once.
type Session struct {
	ID        SessionID `json:"id"`
	ForkID    ForkID    `json:"fork_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// JobStatus is the lifecycle state of a job.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// Job groups a fork with human-readable intent and, once finished, its
// output. Output is immutable after it is first set.
type Job struct {
	ID          JobID      `json:"id"`
	Description string     `json:"description"`
	Status      JobStatus  `json:"status"`
	ForkID      ForkID     `json:"fork_id"`
	SessionID   SessionID  `json:"session_id,omitempty"`
	Output      string     `json:"output,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Notification is a pending completion notice addressed to a parent
// session. It lives in the mailbox until drained, then is gone.
type Notification struct {
	SessionID SessionID `json:"session_id"`
	ForkID    ForkID    `json:"fork_id"`
	Summary   string    `json:"summary"`
	At        time.Time `json:"at"`
}

// ForkFilter narrows ListForks. Zero value matches everything.
type ForkFilter struct {
	Status     ForkStatus
	UnreadOnly bool
}

// LaunchSpec is everything the external process launcher needs to start a
// detached worker. Opaque to the orchestrator beyond shape validation.
type LaunchSpec struct {
	Message            string
	SessionID          SessionID // explicit session ID, chosen upfront
	ResumeSessionID    SessionID // session to resume, if any
	ForkSession        bool
	Model              string
	WorkingDir         string
	AppendSystemPrompt string
	MaxTurns           int
	AllowedTools       string
}
