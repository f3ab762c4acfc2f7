package mailbox

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/user/forkd/internal/types"
)

func newTestMailbox(t *testing.T) *Mailbox {
	t.Helper()
	m, err := New(filepath.Join(t.TempDir(), "notify"))
	if err != nil {
		t.Fatalf("new mailbox: %v", err)
	}
	return m
}

func TestEnqueueDrainRoundTrip(t *testing.T) {
	m := newTestMailbox(t)
	session := types.SessionID("parent-session")

	for _, summary := range []string{"first done", "second done"} {
		err := m.Enqueue(session, types.Notification{ForkID: "fork1234", Summary: summary})
		if err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}

	notices, err := m.DrainAll(session)
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if len(notices) != 2 {
		t.Fatalf("expected 2 notices, got %d", len(notices))
	}
	if notices[0].Summary != "first done" || notices[1].Summary != "second done" {
		t.Errorf("notices out of order: %v", notices)
	}
	if notices[0].SessionID != session {
		t.Errorf("expected addressed session, got %s", notices[0].SessionID)
	}
	if notices[0].At.IsZero() {
		t.Error("expected enqueue to stamp the time")
	}

	// Drained means gone.
	notices, err = m.DrainAll(session)
	if err != nil {
		t.Fatalf("second drain: %v", err)
	}
	if len(notices) != 0 {
		t.Errorf("expected empty second drain, got %d notices", len(notices))
	}
}

func TestDrainEmptyMailbox(t *testing.T) {
	m := newTestMailbox(t)
	notices, err := m.DrainAll("never-seen")
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if len(notices) != 0 {
		t.Errorf("expected no notices, got %d", len(notices))
	}
}

func TestMailboxesAreIsolatedPerSession(t *testing.T) {
	m := newTestMailbox(t)

	if err := m.Enqueue("session-a", types.Notification{ForkID: "forka111", Summary: "a"}); err != nil {
		t.Fatalf("enqueue a: %v", err)
	}
	if err := m.Enqueue("session-b", types.Notification{ForkID: "forkb222", Summary: "b"}); err != nil {
		t.Fatalf("enqueue b: %v", err)
	}

	notices, err := m.DrainAll("session-a")
	if err != nil {
		t.Fatalf("drain a: %v", err)
	}
	if len(notices) != 1 || notices[0].Summary != "a" {
		t.Errorf("session-a drain returned %v", notices)
	}

	notices, err = m.DrainAll("session-b")
	if err != nil {
		t.Fatalf("drain b: %v", err)
	}
	if len(notices) != 1 || notices[0].Summary != "b" {
		t.Errorf("session-b drain returned %v", notices)
	}
}

func TestConcurrentDrainsClaimOnce(t *testing.T) {
	m := newTestMailbox(t)
	session := types.SessionID("contended")

	for i := 0; i < 5; i++ {
		if err := m.Enqueue(session, types.Notification{ForkID: "fork1234", Summary: "done"}); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}

	const drainers = 8
	results := make([][]types.Notification, drainers)
	var wg sync.WaitGroup
	for i := 0; i < drainers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			notices, err := m.DrainAll(session)
			if err != nil {
				t.Errorf("drain %d: %v", i, err)
				return
			}
			results[i] = notices
		}(i)
	}
	wg.Wait()

	total := 0
	winners := 0
	for _, notices := range results {
		total += len(notices)
		if len(notices) > 0 {
			winners++
		}
	}
	if total != 5 {
		t.Errorf("expected 5 notices delivered in total, got %d", total)
	}
	if winners != 1 {
		t.Errorf("expected exactly one winning drain, got %d", winners)
	}
}

func TestDrainSkipsMalformedLines(t *testing.T) {
	m := newTestMailbox(t)
	session := types.SessionID("noisy")

	if err := m.Enqueue(session, types.Notification{ForkID: "fork1234", Summary: "good"}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	f, err := os.OpenFile(filepath.Join(m.Dir(), "noisy.jsonl"),
		os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := f.WriteString("not json at all\n"); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = f.Close()

	notices, err := m.DrainAll(session)
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if len(notices) != 1 || notices[0].Summary != "good" {
		t.Errorf("expected only the valid notice, got %v", notices)
	}
}
