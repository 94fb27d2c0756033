package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/teslashibe/go-gazewarp/pkg/segment"
)

// Session is one uploaded recording and its working folder.
type Session struct {
	ID         string    `json:"id"`
	Dir        string    `json:"dir"`
	VideoPath  string    `json:"video_path"`
	FPS        float64   `json:"fps"`
	FrameCount int       `json:"frame_count"`
	CreatedAt  time.Time `json:"created_at"`
}

// CreateSession records a new session rooted at dir. If id is empty a
// random UUID is assigned.
func (s *Store) CreateSession(ctx context.Context, id, dir string) (*Session, error) {
	if id == "" {
		id = uuid.NewString()
	}
	now := time.Now().UTC().Truncate(time.Second)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, dir, created_at) VALUES (?, ?, ?)`,
		id, dir, now.Unix())
	if err != nil {
		return nil, fmt.Errorf("store: create session: %w", err)
	}
	return &Session{ID: id, Dir: dir, CreatedAt: now}, nil
}

// GetSession returns the session with the given id.
func (s *Store) GetSession(ctx context.Context, id string) (*Session, error) {
	var sess Session
	var created int64
	err := s.db.QueryRowContext(ctx, `
		SELECT id, dir, video_path, fps, frame_count, created_at
		FROM sessions WHERE id = ?`, id).Scan(
		&sess.ID, &sess.Dir, &sess.VideoPath, &sess.FPS, &sess.FrameCount, &created)
	if err != nil {
		return nil, notFound(err, "session", id)
	}
	sess.CreatedAt = time.Unix(created, 0).UTC()
	return &sess, nil
}

// UpdateVideo records the session's video file and its metadata.
func (s *Store) UpdateVideo(ctx context.Context, id, path string, fps float64, frames int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET video_path = ?, fps = ?, frame_count = ? WHERE id = ?`,
		path, fps, frames, id)
	if err != nil {
		return fmt.Errorf("store: update video: %w", err)
	}
	return expectOne(res, "session", id)
}

// ReplaceSegments stores segs for the session, replacing any previous set
// of the same kind (raw or normalized).
func (s *Store) ReplaceSegments(ctx context.Context, sessionID string, normalized bool, segs []segment.Segment) error {
	if _, err := s.GetSession(ctx, sessionID); err != nil {
		return err
	}
	return withTx(ctx, s.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM segments WHERE session_id = ? AND normalized = ?`,
			sessionID, boolInt(normalized)); err != nil {
			return fmt.Errorf("store: clear segments: %w", err)
		}
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO segments (session_id, normalized, idx, start_frame, end_frame, label)
			VALUES (?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("store: prepare segments: %w", err)
		}
		defer stmt.Close()
		for i, seg := range segs {
			if _, err := stmt.ExecContext(ctx, sessionID, boolInt(normalized), i, seg.Start, seg.End, seg.Label); err != nil {
				return fmt.Errorf("store: insert segment %d: %w", i, err)
			}
		}
		return nil
	})
}

// ListSegments returns the stored segments of one kind in order.
func (s *Store) ListSegments(ctx context.Context, sessionID string, normalized bool) ([]segment.Segment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT start_frame, end_frame, label FROM segments
		WHERE session_id = ? AND normalized = ?
		ORDER BY idx`, sessionID, boolInt(normalized))
	if err != nil {
		return nil, fmt.Errorf("store: list segments: %w", err)
	}
	defer rows.Close()

	segs := []segment.Segment{}
	for rows.Next() {
		var seg segment.Segment
		if err := rows.Scan(&seg.Start, &seg.End, &seg.Label); err != nil {
			return nil, fmt.Errorf("store: scan segment: %w", err)
		}
		segs = append(segs, seg)
	}
	return segs, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func expectOne(res sql.Result, what, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s %s", ErrNotFound, what, id)
	}
	return nil
}
