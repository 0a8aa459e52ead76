// Package history persists search sessions and their matched moments so a
// finished search can be reopened, previewed and exported later.
package history

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
	StatusFailed    = "failed"
)

// ErrNotFound is returned when a session id is unknown.
var ErrNotFound = errors.New("session not found")

type Session struct {
	ID          string    `json:"id"`
	VideoPath   string    `json:"video_path"`
	Query       string    `json:"query"`
	Prompt      string    `json:"prompt"`
	Policy      string    `json:"policy"`
	Threshold   int       `json:"threshold"`
	Status      string    `json:"status"`
	Progress    float64   `json:"progress"`
	Duration    float64   `json:"duration"`
	Samples     int       `json:"samples"`
	Matches     int       `json:"matches"`
	FrameErrors int       `json:"frame_errors"`
	Error       string    `json:"error,omitempty"`
	Cancelled   bool      `json:"cancelled"`
	ElapsedMs   int64     `json:"elapsed_ms"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Match struct {
	SessionID string    `json:"session_id"`
	Second    int       `json:"second"`
	Score     int       `json:"score"`
	HasScore  bool      `json:"has_score"`
	Answer    string    `json:"answer"`
	CreatedAt time.Time `json:"created_at"`
}

// Result is the final outcome written when a session finishes.
type Result struct {
	Status      string
	Error       string
	Cancelled   bool
	Elapsed     time.Duration
	Duration    float64
	Samples     int
	Matches     int
	FrameErrors int
}

// Repository stores search history. Implementations are safe for concurrent use.
type Repository interface {
	CreateSession(ctx context.Context, s *Session) error
	GetSession(ctx context.Context, id string) (*Session, error)
	ListSessions(ctx context.Context, limit int) ([]*Session, error)
	UpdateProgress(ctx context.Context, id string, progress float64) error
	FinishSession(ctx context.Context, id string, r Result) error

	AddMatch(ctx context.Context, m *Match) error
	ListMatches(ctx context.Context, sessionID string) ([]*Match, error)

	GetConfig(ctx context.Context, key string) (string, error)
	SetConfig(ctx context.Context, key, value string) error
}

const defaultListLimit = 50

func NewID() string {
	return uuid.NewString()
}

func listLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	return limit
}
