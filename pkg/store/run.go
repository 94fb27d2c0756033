package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RunStatus is the lifecycle state of a warp run.
type RunStatus string

const (
	RunQueued  RunStatus = "queued"
	RunRunning RunStatus = "running"
	RunDone    RunStatus = "done"
	RunFailed  RunStatus = "failed"
)

// Run is one warp execution over a session.
type Run struct {
	ID            string     `json:"id"`
	SessionID     string     `json:"session_id"`
	Status        RunStatus  `json:"status"`
	FramesTotal   int        `json:"frames_total"`
	FramesWarped  int        `json:"frames_warped"`
	SentinelCount int        `json:"sentinel_count"`
	Error         string     `json:"error,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	FinishedAt    *time.Time `json:"finished_at,omitempty"`
}

// CreateRun queues a run for the session.
func (s *Store) CreateRun(ctx context.Context, sessionID string, framesTotal int) (*Run, error) {
	if _, err := s.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	now := time.Now().UTC().Truncate(time.Second)
	run := &Run{
		ID:          uuid.NewString(),
		SessionID:   sessionID,
		Status:      RunQueued,
		FramesTotal: framesTotal,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, session_id, status, frames_total, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, run.SessionID, run.Status, run.FramesTotal, now.Unix(), now.Unix())
	if err != nil {
		return nil, fmt.Errorf("store: create run: %w", err)
	}
	return run, nil
}

// UpdateRunProgress marks the run running and records its counters.
func (s *Store) UpdateRunProgress(ctx context.Context, id string, warped, sentinels int) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE runs SET status = ?, frames_warped = ?, sentinel_count = ?, updated_at = ?
		WHERE id = ? AND finished_at IS NULL`,
		RunRunning, warped, sentinels, time.Now().UTC().Unix(), id)
	if err != nil {
		return fmt.Errorf("store: update run: %w", err)
	}
	return expectOne(res, "run", id)
}

// FinishRun marks the run done, or failed with runErr's message.
func (s *Store) FinishRun(ctx context.Context, id string, runErr error) error {
	status, msg := RunDone, ""
	if runErr != nil {
		status, msg = RunFailed, runErr.Error()
	}
	now := time.Now().UTC().Unix()
	res, err := s.db.ExecContext(ctx, `
		UPDATE runs SET status = ?, error = ?, updated_at = ?, finished_at = ?
		WHERE id = ?`,
		status, msg, now, now, id)
	if err != nil {
		return fmt.Errorf("store: finish run: %w", err)
	}
	if err := expectOne(res, "run", id); err != nil {
		return err
	}
	if runErr != nil {
		s.logger.Error("run failed", "run", id, "error", runErr)
	}
	return nil
}

// GetRun returns the run with the given id.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	var run Run
	var created, updated int64
	var finished sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		SELECT id, session_id, status, frames_total, frames_warped, sentinel_count,
		       error, created_at, updated_at, finished_at
		FROM runs WHERE id = ?`, id).Scan(
		&run.ID, &run.SessionID, &run.Status, &run.FramesTotal, &run.FramesWarped,
		&run.SentinelCount, &run.Error, &created, &updated, &finished)
	if err != nil {
		return nil, notFound(err, "run", id)
	}
	run.CreatedAt = time.Unix(created, 0).UTC()
	run.UpdatedAt = time.Unix(updated, 0).UTC()
	if finished.Valid {
		t := time.Unix(finished.Int64, 0).UTC()
		run.FinishedAt = &t
	}
	return &run, nil
}
