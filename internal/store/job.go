package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/user/forkd/internal/types"
)

// Create inserts a new job row.
func (s *JobStore) Create(ctx context.Context, job *types.Job) error {
	if job == nil || job.ID == "" {
		return fmt.Errorf("job id is required")
	}
	if job.ForkID == "" {
		return fmt.Errorf("job fork_id is required")
	}
	if job.Status == "" {
		job.Status = types.JobPending
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO jobs (id, description, status, fork_id, session_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		string(job.ID), job.Description, string(job.Status), string(job.ForkID),
		nullString(string(job.SessionID)), toMillis(job.CreatedAt))
	if err != nil {
		return fmt.Errorf("create job %s: %w", job.ID, err)
	}
	return nil
}

const jobColumns = `id, description, status, fork_id, session_id, output, created_at, completed_at`

// Get returns one job by ID.
func (s *JobStore) Get(ctx context.Context, id types.JobID) (*types.Job, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE id = ?`, string(id))
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("job %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", id, err)
	}
	return job, nil
}

// ForFork returns the most recent job tied to the fork.
func (s *JobStore) ForFork(ctx context.Context, forkID types.ForkID) (*types.Job, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE fork_id = ? ORDER BY created_at DESC, id DESC LIMIT 1`,
		string(forkID))
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("job for fork %s: %w", forkID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get job for fork %s: %w", forkID, err)
	}
	return job, nil
}

// List returns all jobs, newest first.
func (s *JobStore) List(ctx context.Context) ([]*types.Job, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+jobColumns+` FROM jobs ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*types.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate jobs: %w", err)
	}
	return jobs, nil
}

// Start marks the job running once work begins.
func (s *JobStore) Start(ctx context.Context, id types.JobID) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status = ? WHERE id = ? AND status = ?`,
		string(types.JobRunning), string(id), string(types.JobPending))
	if err != nil {
		return fmt.Errorf("start job %s: %w", id, err)
	}
	return nil
}

// Complete marks the job completed. Output is written only on the first
// finish; the status update itself is idempotent.
func (s *JobStore) Complete(ctx context.Context, id types.JobID, output string) error {
	return s.finish(ctx, id, types.JobCompleted, output)
}

// Fail marks the job failed, recording the reason as output if no output
// was stored yet.
func (s *JobStore) Fail(ctx context.Context, id types.JobID, reason string) error {
	return s.finish(ctx, id, types.JobFailed, reason)
}

func (s *JobStore) finish(ctx context.Context, id types.JobID, status types.JobStatus, output string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin finish job %s: %w", id, err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		UPDATE jobs SET status = ?, completed_at = COALESCE(completed_at, ?)
		WHERE id = ? AND status NOT IN (?, ?)`,
		string(status), toMillis(time.Now().UTC()), string(id),
		string(types.JobCompleted), string(types.JobFailed))
	if err != nil {
		return fmt.Errorf("finish job %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish job %s: rows affected: %w", id, err)
	}
	if affected == 1 && output != "" {
		_, err = tx.ExecContext(ctx,
			`UPDATE jobs SET output = ? WHERE id = ? AND output IS NULL`,
			output, string(id))
		if err != nil {
			return fmt.Errorf("set output for job %s: %w", id, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit finish job %s: %w", id, err)
	}
	return nil
}

func scanJob(row rowScanner) (*types.Job, error) {
	var (
		job         types.Job
		sessionID   sql.NullString
		output      sql.NullString
		createdAt   int64
		completedAt sql.NullInt64
	)
	err := row.Scan(&job.ID, &job.Description, &job.Status, &job.ForkID,
		&sessionID, &output, &createdAt, &completedAt)
	if err != nil {
		return nil, err
	}
	job.SessionID = types.SessionID(sessionID.String)
	job.Output = output.String
	job.CreatedAt = fromMillis(createdAt)
	if completedAt.Valid {
		at := fromMillis(completedAt.Int64)
		job.CompletedAt = &at
	}
	return &job, nil
}
