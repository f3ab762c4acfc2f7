// Package watch follows a session's mailbox and delivers notices as they
// arrive, while periodically sweeping orphaned forks.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/robfig/cron/v3"

	"github.com/user/forkd/internal/types"
)

// Sweeper settles forks whose workers are gone.
type Sweeper interface {
	Sweep(ctx context.Context) (int, error)
}

// Drainer empties a session's mailbox.
type Drainer interface {
	DrainNotifications(sessionID types.SessionID) ([]types.Notification, error)
}

// Watcher ties a mailbox directory, a session, and a sweeper together.
type Watcher struct {
	Dir       string
	SessionID types.SessionID
	Drainer   Drainer
	Sweeper   Sweeper
	// Sink receives each drained notice.
	Sink func(types.Notification)
	// SweepSchedule is a cron spec, e.g. "@every 1m". Empty disables
	// sweeping.
	SweepSchedule string
	// PollInterval backs up fsnotify on filesystems without events.
	PollInterval time.Duration
	Log          *slog.Logger
}

// Run blocks until the context is cancelled, draining the session's
// mailbox on every change to its file. A poll ticker covers filesystems
// where fsnotify misses renames.
func (w *Watcher) Run(ctx context.Context) error {
	if w.Dir == "" || w.SessionID == "" || w.Drainer == nil || w.Sink == nil {
		return fmt.Errorf("watcher needs dir, session, drainer, and sink")
	}
	if w.Log == nil {
		w.Log = slog.Default()
	}
	if w.PollInterval <= 0 {
		w.PollInterval = 15 * time.Second
	}

	if w.SweepSchedule != "" && w.Sweeper != nil {
		c := cron.New()
		if _, err := c.AddFunc(w.SweepSchedule, func() {
			swept, err := w.Sweeper.Sweep(context.Background())
			if err != nil {
				w.Log.Error("sweep failed", "error", err)
				return
			}
			if swept > 0 {
				w.Log.Info("swept dead forks", "count", swept)
			}
		}); err != nil {
			return fmt.Errorf("schedule sweep: %w", err)
		}
		c.Start()
		defer c.Stop()
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		w.Log.Warn("fsnotify unavailable, polling only", "error", err)
		return w.pollLoop(ctx, nil)
	}
	defer fw.Close()
	if err := fw.Add(w.Dir); err != nil {
		w.Log.Warn("cannot watch mailbox dir, polling only", "dir", w.Dir, "error", err)
		return w.pollLoop(ctx, nil)
	}

	w.drain()
	return w.pollLoop(ctx, fw)
}

func (w *Watcher) pollLoop(ctx context.Context, fw *fsnotify.Watcher) error {
	ticker := time.NewTicker(w.PollInterval)
	defer ticker.Stop()

	target := string(w.SessionID) + ".jsonl"
	for {
		if fw == nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				w.drain()
			}
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.drain()
		case event, ok := <-fw.Events:
			if !ok {
				fw = nil
				continue
			}
			if filepath.Base(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				w.drain()
			}
		case err, ok := <-fw.Errors:
			if !ok {
				fw = nil
				continue
			}
			w.Log.Warn("mailbox watch error", "error", err)
		}
	}
}

func (w *Watcher) drain() {
	notices, err := w.Drainer.DrainNotifications(w.SessionID)
	if err != nil {
		w.Log.Error("drain failed", "session_id", w.SessionID, "error", err)
		return
	}
	for _, n := range notices {
		w.Sink(n)
	}
}
