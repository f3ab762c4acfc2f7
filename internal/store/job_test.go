package store

import (
	"context"
	"testing"

	"github.com/user/forkd/internal/types"
)

func TestJobFinishIsWriteOnce(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	job := &types.Job{
		ID:          types.NewJobID(),
		Description: "summarize the build failures",
		ForkID:      "fork1234",
	}
	if err := s.Jobs.Create(ctx, job); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.Jobs.Start(ctx, job.ID); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := s.Jobs.Complete(ctx, job.ID, "three flaky tests"); err != nil {
		t.Fatalf("complete: %v", err)
	}

	got, err := s.Jobs.Get(ctx, job.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != types.JobCompleted {
		t.Errorf("expected completed, got %s", got.Status)
	}
	if got.Output != "three flaky tests" {
		t.Errorf("unexpected output %q", got.Output)
	}
	if got.CompletedAt == nil {
		t.Fatal("expected completed_at")
	}

	// A later failure or re-completion never rewrites a finished job.
	if err := s.Jobs.Fail(ctx, job.ID, "process exited"); err != nil {
		t.Fatalf("fail after complete: %v", err)
	}
	if err := s.Jobs.Complete(ctx, job.ID, "different output"); err != nil {
		t.Fatalf("re-complete: %v", err)
	}

	got, err = s.Jobs.Get(ctx, job.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != types.JobCompleted {
		t.Errorf("finished status changed to %s", got.Status)
	}
	if got.Output != "three flaky tests" {
		t.Errorf("finished output changed to %q", got.Output)
	}
}

func TestJobFailRecordsReason(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	job := &types.Job{ID: types.NewJobID(), Description: "doomed", ForkID: "fork5678"}
	if err := s.Jobs.Create(ctx, job); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.Jobs.Fail(ctx, job.ID, "worker exited with status 1"); err != nil {
		t.Fatalf("fail: %v", err)
	}

	got, err := s.Jobs.ForFork(ctx, "fork5678")
	if err != nil {
		t.Fatalf("for fork: %v", err)
	}
	if got.Status != types.JobFailed {
		t.Errorf("expected failed, got %s", got.Status)
	}
	if got.Output != "worker exited with status 1" {
		t.Errorf("unexpected output %q", got.Output)
	}
}
