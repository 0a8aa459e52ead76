package history

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS sessions (
	id TEXT PRIMARY KEY,
	video_path TEXT NOT NULL,
	query TEXT NOT NULL,
	prompt TEXT NOT NULL,
	policy TEXT NOT NULL DEFAULT 'boolean',
	threshold INTEGER NOT NULL DEFAULT 0,
	status TEXT NOT NULL DEFAULT 'running',
	progress DOUBLE PRECISION NOT NULL DEFAULT 0,
	duration DOUBLE PRECISION NOT NULL DEFAULT 0,
	samples INTEGER NOT NULL DEFAULT 0,
	matches INTEGER NOT NULL DEFAULT 0,
	frame_errors INTEGER NOT NULL DEFAULT 0,
	error TEXT NOT NULL DEFAULT '',
	cancelled BOOLEAN NOT NULL DEFAULT FALSE,
	elapsed_ms BIGINT NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sessions_created_at ON sessions(created_at);

CREATE TABLE IF NOT EXISTS matches (
	session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
	second INTEGER NOT NULL,
	score INTEGER NOT NULL DEFAULT 0,
	has_score BOOLEAN NOT NULL DEFAULT FALSE,
	answer TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (session_id, second)
);

CREATE TABLE IF NOT EXISTS config (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);`

// PostgresRepository stores history in a shared PostgreSQL database.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository connects, verifies the connection and creates the
// schema if it does not exist yet.
func NewPostgresRepository(ctx context.Context, databaseURL string) (*PostgresRepository, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &PostgresRepository{pool: pool}, nil
}

func (r *PostgresRepository) Close() {
	if r.pool != nil {
		r.pool.Close()
	}
}

func (r *PostgresRepository) CreateSession(ctx context.Context, s *Session) error {
	now := time.Now().UTC()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.UpdatedAt = now
	if s.Status == "" {
		s.Status = StatusRunning
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO sessions (id, video_path, query, prompt, policy, threshold, status, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		s.ID, s.VideoPath, s.Query, s.Prompt, s.Policy, s.Threshold, s.Status, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetSession(ctx context.Context, id string) (*Session, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id=$1`, id)
	s, err := scanPgSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find session by id: %w", err)
	}
	return s, nil
}

func (r *PostgresRepository) ListSessions(ctx context.Context, limit int) ([]*Session, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+sessionColumns+` FROM sessions ORDER BY created_at DESC LIMIT $1`, listLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		s, err := scanPgSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

func (r *PostgresRepository) UpdateProgress(ctx context.Context, id string, progress float64) error {
	return r.exec(ctx, `
		UPDATE sessions SET progress=$2, samples=samples+1, updated_at=$3 WHERE id=$1`,
		id, progress, time.Now().UTC())
}

func (r *PostgresRepository) FinishSession(ctx context.Context, id string, res Result) error {
	return r.exec(ctx, `
		UPDATE sessions SET
			status=$2, error=$3, cancelled=$4, elapsed_ms=$5, duration=$6,
			samples=$7, matches=$8, frame_errors=$9,
			progress=CASE WHEN $2='completed' THEN 1 ELSE progress END,
			updated_at=$10
		WHERE id=$1`,
		id, res.Status, res.Error, res.Cancelled, res.Elapsed.Milliseconds(), res.Duration,
		res.Samples, res.Matches, res.FrameErrors, time.Now().UTC())
}

func (r *PostgresRepository) AddMatch(ctx context.Context, m *Match) error {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO matches (session_id, second, score, has_score, answer, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (session_id, second) DO NOTHING`,
		m.SessionID, m.Second, m.Score, m.HasScore, m.Answer, m.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert match: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ListMatches(ctx context.Context, sessionID string) ([]*Match, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT session_id, second, score, has_score, answer, created_at
		FROM matches WHERE session_id=$1 ORDER BY second ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list matches: %w", err)
	}
	defer rows.Close()

	var matches []*Match
	for rows.Next() {
		var m Match
		if err := rows.Scan(&m.SessionID, &m.Second, &m.Score, &m.HasScore, &m.Answer, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		matches = append(matches, &m)
	}
	return matches, rows.Err()
}

func (r *PostgresRepository) GetConfig(ctx context.Context, key string) (string, error) {
	var value string
	err := r.pool.QueryRow(ctx, `SELECT value FROM config WHERE key=$1`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	return value, err
}

func (r *PostgresRepository) SetConfig(ctx context.Context, key, value string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO config (key, value) VALUES ($1,$2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`, key, value)
	return err
}

func (r *PostgresRepository) exec(ctx context.Context, query string, args ...any) error {
	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanPgSession(row pgx.Row) (*Session, error) {
	var s Session
	err := row.Scan(&s.ID, &s.VideoPath, &s.Query, &s.Prompt, &s.Policy, &s.Threshold, &s.Status,
		&s.Progress, &s.Duration, &s.Samples, &s.Matches, &s.FrameErrors, &s.Error, &s.Cancelled,
		&s.ElapsedMs, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}
