package history

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// SQLiteRepository stores history in the local database opened by package db.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const sessionColumns = `id, video_path, query, prompt, policy, threshold, status, progress, duration,
	samples, matches, frame_errors, error, cancelled, elapsed_ms, created_at, updated_at`

func (r *SQLiteRepository) CreateSession(ctx context.Context, s *Session) error {
	now := time.Now().UTC()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.UpdatedAt = now
	if s.Status == "" {
		s.Status = StatusRunning
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sessions (id, video_path, query, prompt, policy, threshold, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, s.ID, s.VideoPath, s.Query, s.Prompt, s.Policy, s.Threshold, s.Status,
		formatTime(s.CreatedAt), formatTime(s.UpdatedAt))
	return err
}

func (r *SQLiteRepository) GetSession(ctx context.Context, id string) (*Session, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)
	s, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return s, err
}

func (r *SQLiteRepository) ListSessions(ctx context.Context, limit int) ([]*Session, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+sessionColumns+` FROM sessions ORDER BY created_at DESC LIMIT ?
	`, listLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

func (r *SQLiteRepository) UpdateProgress(ctx context.Context, id string, progress float64) error {
	return r.exec(ctx, `
		UPDATE sessions SET progress = ?, samples = samples + 1, updated_at = ? WHERE id = ?
	`, progress, formatTime(time.Now()), id)
}

func (r *SQLiteRepository) FinishSession(ctx context.Context, id string, res Result) error {
	progress := "progress"
	if res.Status == StatusCompleted {
		progress = "1"
	}
	return r.exec(ctx, `
		UPDATE sessions SET status = ?, error = ?, cancelled = ?, elapsed_ms = ?, duration = ?,
			samples = ?, matches = ?, frame_errors = ?, progress = `+progress+`, updated_at = ?
		WHERE id = ?
	`, res.Status, nullString(res.Error), boolToInt(res.Cancelled), res.Elapsed.Milliseconds(), res.Duration,
		res.Samples, res.Matches, res.FrameErrors, formatTime(time.Now()), id)
}

func (r *SQLiteRepository) AddMatch(ctx context.Context, m *Match) error {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO matches (session_id, second, score, has_score, answer, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id, second) DO NOTHING
	`, m.SessionID, m.Second, m.Score, boolToInt(m.HasScore), m.Answer, formatTime(m.CreatedAt))
	return err
}

func (r *SQLiteRepository) ListMatches(ctx context.Context, sessionID string) ([]*Match, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT session_id, second, score, has_score, answer, created_at
		FROM matches WHERE session_id = ? ORDER BY second ASC
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var matches []*Match
	for rows.Next() {
		var m Match
		var hasScore int
		var createdAt string
		if err := rows.Scan(&m.SessionID, &m.Second, &m.Score, &hasScore, &m.Answer, &createdAt); err != nil {
			return nil, err
		}
		m.HasScore = hasScore != 0
		m.CreatedAt = parseTime(createdAt)
		matches = append(matches, &m)
	}
	return matches, rows.Err()
}

func (r *SQLiteRepository) GetConfig(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, "SELECT value FROM config WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

func (r *SQLiteRepository) SetConfig(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO config (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

func (r *SQLiteRepository) exec(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*Session, error) {
	var s Session
	var errMsg sql.NullString
	var cancelled int
	var createdAt, updatedAt string

	err := row.Scan(&s.ID, &s.VideoPath, &s.Query, &s.Prompt, &s.Policy, &s.Threshold, &s.Status,
		&s.Progress, &s.Duration, &s.Samples, &s.Matches, &s.FrameErrors, &errMsg, &cancelled,
		&s.ElapsedMs, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	s.Error = errMsg.String
	s.Cancelled = cancelled != 0
	s.CreatedAt = parseTime(createdAt)
	s.UpdatedAt = parseTime(updatedAt)
	return &s, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTime also accepts SQLite's datetime('now') layout.
func parseTime(s string) time.Time {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	t, _ := time.Parse(time.DateTime, s)
	return t
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
