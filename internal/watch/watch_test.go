package watch

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/user/forkd/internal/mailbox"
	"github.com/user/forkd/internal/types"
)

type mailboxDrainer struct {
	m *mailbox.Mailbox
}

func (d mailboxDrainer) DrainNotifications(sessionID types.SessionID) ([]types.Notification, error) {
	return d.m.DrainAll(sessionID)
}

type countingSweeper struct {
	mu    sync.Mutex
	calls int
}

func (s *countingSweeper) Sweep(context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return 0, nil
}

func TestWatcherDeliversEnqueuedNotices(t *testing.T) {
	m, err := mailbox.New(filepath.Join(t.TempDir(), "notify"))
	if err != nil {
		t.Fatalf("mailbox: %v", err)
	}
	session := types.SessionID("watched")

	var mu sync.Mutex
	var got []types.Notification
	w := &Watcher{
		Dir:          m.Dir(),
		SessionID:    session,
		Drainer:      mailboxDrainer{m},
		PollInterval: 20 * time.Millisecond,
		Sink: func(n types.Notification) {
			mu.Lock()
			got = append(got, n)
			mu.Unlock()
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	if err := m.Enqueue(session, types.Notification{ForkID: "fork1234", Summary: "finished"}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := len(got)
		mu.Unlock()
		if n == 1 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 || got[0].Summary != "finished" {
		t.Fatalf("expected one delivered notice, got %v", got)
	}
}

func TestWatcherRequiresWiring(t *testing.T) {
	w := &Watcher{}
	if err := w.Run(context.Background()); err == nil {
		t.Error("expected error for unwired watcher")
	}
}

func TestWatcherRunsSweepSchedule(t *testing.T) {
	m, err := mailbox.New(filepath.Join(t.TempDir(), "notify"))
	if err != nil {
		t.Fatalf("mailbox: %v", err)
	}
	sweeper := &countingSweeper{}
	w := &Watcher{
		Dir:           m.Dir(),
		SessionID:     "watched",
		Drainer:       mailboxDrainer{m},
		Sweeper:       sweeper,
		SweepSchedule: "@every 100ms",
		PollInterval:  time.Hour,
		Sink:          func(types.Notification) {},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 400*time.Millisecond)
	defer cancel()
	_ = w.Run(ctx)

	sweeper.mu.Lock()
	defer sweeper.mu.Unlock()
	if sweeper.calls == 0 {
		t.Error("expected at least one sweep")
	}
}
