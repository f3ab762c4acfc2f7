// Package orchestrator coordinates fork spawning: guard checks, worker
// launch, event ingestion, lifecycle transitions, and completion notices.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"syscall"

	"golang.org/x/sync/semaphore"

	"github.com/user/forkd/internal/claude"
	"github.com/user/forkd/internal/guard"
	"github.com/user/forkd/internal/names"
	"github.com/user/forkd/internal/types"
)

// callbackPrompt is appended to the worker's system prompt so it reports
// back through the shared store when it finishes.
const callbackPrompt = "When you have fully completed the task, as your final action run " +
	"the shell command: forkd done %s \"<one-paragraph summary of what you did>\". " +
	"Replace the quoted part with your actual summary. Do this exactly once."

// Orchestrator wires the stores, mailbox, guard, and launcher together.
// All dependencies are injected; it owns no global state.
type Orchestrator struct {
	forks    types.ForkStore
	sessions types.SessionStore
	jobs     types.JobStore
	events   types.EventStore
	mailbox  types.Mailbox
	guard    *guard.Guard
	launcher types.Launcher
	log      *slog.Logger

	sem *semaphore.Weighted
	wg  sync.WaitGroup
}

// Options configures a new Orchestrator.
type Options struct {
	Forks    types.ForkStore
	Sessions types.SessionStore
	Jobs     types.JobStore
	Events   types.EventStore
	Mailbox  types.Mailbox
	Guard    *guard.Guard
	// Launcher may be nil for processes that never spawn (done, list).
	Launcher      types.Launcher
	MaxConcurrent int
	Log           *slog.Logger
}

// New validates the wiring and returns an orchestrator.
func New(opts Options) (*Orchestrator, error) {
	if opts.Forks == nil || opts.Sessions == nil || opts.Jobs == nil || opts.Events == nil {
		return nil, fmt.Errorf("all stores are required")
	}
	if opts.Mailbox == nil {
		return nil, fmt.Errorf("mailbox is required")
	}
	if opts.Guard == nil {
		opts.Guard = guard.New()
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 4
	}
	if opts.Log == nil {
		opts.Log = slog.Default()
	}
	return &Orchestrator{
		forks:    opts.Forks,
		sessions: opts.Sessions,
		jobs:     opts.Jobs,
		events:   opts.Events,
		mailbox:  opts.Mailbox,
		guard:    opts.Guard,
		launcher: opts.Launcher,
		log:      opts.Log,
		sem:      semaphore.NewWeighted(int64(opts.MaxConcurrent)),
	}, nil
}

// SpawnRequest describes one fork to start.
type SpawnRequest struct {
	Message         string
	ParentSessionID types.SessionID
	ResumeSessionID types.SessionID
	ForkSession     bool
	Model           string
	WorkingDir      string
	MaxTurns        int
	AllowedTools    string
}

// Spawn checks the message, records the fork and its job, launches the
// worker, and starts ingesting its events. It returns as soon as the
// worker is running; Wait blocks until ingestion finishes.
func (o *Orchestrator) Spawn(ctx context.Context, req SpawnRequest) (*types.Fork, error) {
	if o.launcher == nil {
		return nil, fmt.Errorf("orchestrator has no launcher")
	}
	if req.Message == "" {
		return nil, fmt.Errorf("message is required")
	}
	if err := o.guard.Check(req.Message); err != nil {
		return nil, err
	}

	fork := &types.Fork{
		ID:              types.NewForkID(),
		ParentSessionID: req.ParentSessionID,
		Name:            names.Random(),
		Status:          types.ForkActive,
	}
	if err := o.forks.Create(ctx, fork); err != nil {
		return nil, err
	}

	job := &types.Job{
		ID:          types.NewJobID(),
		Description: req.Message,
		ForkID:      fork.ID,
		SessionID:   req.ParentSessionID,
	}
	if err := o.jobs.Create(ctx, job); err != nil {
		return nil, err
	}

	spec := types.LaunchSpec{
		Message:            req.Message,
		ResumeSessionID:    req.ResumeSessionID,
		ForkSession:        req.ForkSession,
		Model:              req.Model,
		WorkingDir:         req.WorkingDir,
		MaxTurns:           req.MaxTurns,
		AllowedTools:       req.AllowedTools,
		AppendSystemPrompt: fmt.Sprintf(callbackPrompt, fork.ID),
	}
	// Fresh workers get their session ID upfront; resumed-and-forked
	// sessions pick theirs at startup and we learn it from the stream.
	if req.ResumeSessionID == "" {
		spec.SessionID = types.NewSessionID()
		if err := o.bindSession(ctx, fork, spec.SessionID); err != nil {
			return nil, err
		}
	}

	if err := o.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("acquire worker slot: %w", err)
	}
	handle, err := o.launcher.Launch(ctx, spec)
	if err != nil {
		o.sem.Release(1)
		// Settle like any other failure so the parent still gets a notice.
		o.markFailed(ctx, fork.ID, "worker launch failed: "+err.Error())
		return nil, fmt.Errorf("launch worker: %w", err)
	}

	if err := o.forks.SetPID(ctx, fork.ID, handle.Pid()); err != nil {
		o.log.Warn("failed to record worker pid", "fork_id", fork.ID, "error", err)
	}
	if err := o.jobs.Start(ctx, job.ID); err != nil {
		o.log.Warn("failed to mark job running", "job_id", job.ID, "error", err)
	}
	fork.PID = handle.Pid()

	o.wg.Add(1)
	go o.ingest(fork, job, handle)

	o.log.Info("spawned fork", "fork_id", fork.ID, "name", fork.Name,
		"pid", handle.Pid(), "parent_session", req.ParentSessionID)
	return fork, nil
}

func (o *Orchestrator) bindSession(ctx context.Context, fork *types.Fork, sessionID types.SessionID) error {
	if err := o.sessions.Create(ctx, &types.Session{ID: sessionID, ForkID: fork.ID}); err != nil {
		return err
	}
	if err := o.forks.SetSession(ctx, fork.ID, sessionID); err != nil {
		return err
	}
	fork.ForkSessionID = sessionID
	return nil
}

// ingest drains the worker's event stream into the store and settles the
// fork's final status once the process exits.
func (o *Orchestrator) ingest(fork *types.Fork, job *types.Job, handle types.Handle) {
	defer o.wg.Done()
	defer o.sem.Release(1)
	ctx := context.Background()

	first := true
	var resultText string
	var sawResult, resultErr bool

	for event := range handle.Events() {
		event.ForkID = fork.ID
		if first {
			first = false
			if _, err := o.forks.Transition(ctx, fork.ID,
				[]types.ForkStatus{types.ForkActive}, types.ForkRunning); err != nil {
				o.log.Error("failed to mark fork running", "fork_id", fork.ID, "error", err)
			}
		}
		if event.SessionID != "" && fork.ForkSessionID == "" {
			if err := o.bindSession(ctx, fork, event.SessionID); err != nil {
				o.log.Warn("failed to bind session from stream",
					"fork_id", fork.ID, "session_id", event.SessionID, "error", err)
			}
		}
		if text, ok := claude.ResultText(&event); ok {
			sawResult = true
			resultText = text
			resultErr = claude.IsErrorResult(&event)
		}
		if err := o.events.Append(ctx, &event); err != nil {
			o.log.Error("failed to append event", "fork_id", fork.ID, "error", err)
		}
	}

	waitErr := handle.Wait()

	// The worker normally completes itself via the done command before
	// exiting. Anything still non-terminal here did not report back.
	switch {
	case waitErr != nil:
		o.markFailed(ctx, fork.ID, "worker exited: "+waitErr.Error())
	case sawResult && resultErr:
		o.markFailed(ctx, fork.ID, "worker reported an error result")
	case sawResult && resultText != "":
		o.complete(ctx, fork.ID, resultText)
	default:
		o.markFailed(ctx, fork.ID, "worker exited without reporting completion")
	}
}

// Complete finishes a fork on behalf of its worker. Exactly one completion
// or failure wins; the rest are silent no-ops.
func (o *Orchestrator) Complete(ctx context.Context, forkID types.ForkID, summary string) error {
	if summary == "" {
		return fmt.Errorf("summary is required")
	}
	return o.complete(ctx, forkID, summary)
}

func (o *Orchestrator) complete(ctx context.Context, forkID types.ForkID, summary string) error {
	if pending, err := o.events.PendingEdges(ctx, forkID); err == nil && pending > 0 {
		o.log.Warn("completing fork with unresolved parent references",
			"fork_id", forkID, "pending", pending)
	}
	won, err := o.forks.Transition(ctx, forkID,
		[]types.ForkStatus{types.ForkActive, types.ForkRunning}, types.ForkCompleted)
	if err != nil {
		return err
	}
	if !won {
		o.log.Debug("fork already settled", "fork_id", forkID)
		return nil
	}
	o.settle(ctx, forkID, summary, false)
	return nil
}

// MarkFailed records a fork failure. Loses silently against an earlier
// completion or failure.
func (o *Orchestrator) MarkFailed(ctx context.Context, forkID types.ForkID, reason string) error {
	if reason == "" {
		reason = "fork failed"
	}
	return o.markFailedErr(ctx, forkID, reason)
}

func (o *Orchestrator) markFailed(ctx context.Context, forkID types.ForkID, reason string) {
	if err := o.markFailedErr(ctx, forkID, reason); err != nil {
		o.log.Error("failed to mark fork failed", "fork_id", forkID, "error", err)
	}
}

func (o *Orchestrator) markFailedErr(ctx context.Context, forkID types.ForkID, reason string) error {
	won, err := o.forks.Transition(ctx, forkID,
		[]types.ForkStatus{types.ForkActive, types.ForkRunning}, types.ForkFailed)
	if err != nil {
		return err
	}
	if !won {
		o.log.Debug("fork already settled", "fork_id", forkID)
		return nil
	}
	o.settle(ctx, forkID, reason, true)
	return nil
}

// settle runs the post-transition bookkeeping for the single winner:
// finish the job and enqueue the notification.
func (o *Orchestrator) settle(ctx context.Context, forkID types.ForkID, summary string, failed bool) {
	job, err := o.jobs.ForFork(ctx, forkID)
	if err != nil {
		o.log.Warn("no job to settle", "fork_id", forkID, "error", err)
	} else if failed {
		if err := o.jobs.Fail(ctx, job.ID, summary); err != nil {
			o.log.Error("failed to fail job", "job_id", job.ID, "error", err)
		}
	} else {
		if err := o.jobs.Complete(ctx, job.ID, summary); err != nil {
			o.log.Error("failed to complete job", "job_id", job.ID, "error", err)
		}
	}

	fork, err := o.forks.Get(ctx, forkID)
	if err != nil {
		o.log.Error("failed to load settled fork", "fork_id", forkID, "error", err)
		return
	}
	if fork.ParentSessionID == "" {
		o.log.Debug("fork has no parent session, skipping notification", "fork_id", forkID)
		return
	}
	notice := types.Notification{ForkID: forkID, Summary: summary}
	if failed {
		notice.Summary = "fork " + string(forkID) + " failed: " + summary
	}
	if err := o.mailbox.Enqueue(fork.ParentSessionID, notice); err != nil {
		o.log.Error("failed to enqueue notification",
			"fork_id", forkID, "session_id", fork.ParentSessionID, "error", err)
		return
	}
	o.log.Info("fork settled", "fork_id", forkID, "failed", failed,
		"parent_session", fork.ParentSessionID)
}

// Sweep fails running forks whose worker process is gone. Returns how many
// forks were settled.
func (o *Orchestrator) Sweep(ctx context.Context) (int, error) {
	swept := 0
	for _, status := range []types.ForkStatus{types.ForkActive, types.ForkRunning} {
		forks, err := o.forks.List(ctx, types.ForkFilter{Status: status})
		if err != nil {
			return swept, err
		}
		for _, fork := range forks {
			if fork.PID == 0 || processAlive(fork.PID) {
				continue
			}
			o.markFailed(ctx, fork.ID, fmt.Sprintf("worker process %d is gone", fork.PID))
			swept++
		}
	}
	return swept, nil
}

// Wait blocks until all ingestion goroutines have finished.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// DrainNotifications removes and returns the session's queued notices.
func (o *Orchestrator) DrainNotifications(sessionID types.SessionID) ([]types.Notification, error) {
	return o.mailbox.DrainAll(sessionID)
}

func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}
