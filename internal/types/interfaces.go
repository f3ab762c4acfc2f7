package types

import "context"

type EventStore interface {
	// Append stores the event and links it into the causal graph before
	// returning. It assigns an ID when the event carries none.
	Append(ctx context.Context, event *Event) error
	Get(ctx context.Context, id EventID) (*Event, error)
	// ForFork returns a fork's events ordered by ID (append order).
	ForFork(ctx context.Context, forkID ForkID) ([]*Event, error)
	// ChildrenOf returns events linked as children of the tool invocation,
	// ordered by ID.
	ChildrenOf(ctx context.Context, toolUseID ToolUseID) ([]*Event, error)
	// PendingEdges counts this fork's unresolved parent references.
	PendingEdges(ctx context.Context, forkID ForkID) (int, error)
}

type ForkStore interface {
	Create(ctx context.Context, fork *Fork) error
	Get(ctx context.Context, id ForkID) (*Fork, error)
	List(ctx context.Context, filter ForkFilter) ([]*Fork, error)
	// Transition performs a compare-and-set on status: it succeeds only if
	// the current status is one of from. CompletedAt is set exactly once,
	// when the fork first enters a terminal status.
	Transition(ctx context.Context, id ForkID, from []ForkStatus, to ForkStatus) (bool, error)
	// SetSession binds the fork's session ID, at most once.
	SetSession(ctx context.Context, id ForkID, sessionID SessionID) error
	SetPID(ctx context.Context, id ForkID, pid int) error
	MarkRead(ctx context.Context, id ForkID) error
	MarkAllRead(ctx context.Context) (int, error)
}

type SessionStore interface {
	Create(ctx context.Context, session *Session) error
	Get(ctx context.Context, id SessionID) (*Session, error)
	List(ctx context.Context) ([]*Session, error)
}

type JobStore interface {
	Create(ctx context.Context, job *Job) error
	Get(ctx context.Context, id JobID) (*Job, error)
	ForFork(ctx context.Context, forkID ForkID) (*Job, error)
	List(ctx context.Context) ([]*Job, error)
	// Start moves a pending job to running.
	Start(ctx context.Context, id JobID) error
	// Complete sets status and output. Output is written only if not
	// already set; a finished job never changes again.
	Complete(ctx context.Context, id JobID, output string) error
	Fail(ctx context.Context, id JobID, reason string) error
}

// Mailbox is the per-session durable notification queue. DrainAll is
// destructive: the backing records are removed atomically with the read,
// so of two concurrent drains exactly one observes each notice.
type Mailbox interface {
	Enqueue(sessionID SessionID, n Notification) error
	DrainAll(sessionID SessionID) ([]Notification, error)
}

// Handle is a running worker process.
type Handle interface {
	// Events yields parsed worker events in emit order. The channel closes
	// when the process's output ends.
	Events() <-chan Event
	// Wait blocks until the process exits and returns its exit error.
	Wait() error
	Pid() int
}

// Launcher starts detached worker processes. The orchestrator never
// blocks on a handle beyond launch.
type Launcher interface {
	Launch(ctx context.Context, spec LaunchSpec) (Handle, error)
}
