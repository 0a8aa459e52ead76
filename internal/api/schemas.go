package api

import (
	"time"

	"github.com/heimdex/framescout/internal/doctor"
	"github.com/heimdex/framescout/internal/history"
	"github.com/heimdex/framescout/internal/search"
)

type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	UptimeS int64  `json:"uptime_s"`
}

type StatusResponse struct {
	State       string          `json:"state"`
	Search      search.Status   `json:"search"`
	LastError   string          `json:"last_error,omitempty"`
	Clients     int             `json:"clients"`
	Environment *DoctorResponse `json:"environment,omitempty"`
}

type DoctorResponse struct {
	CanSearch   bool   `json:"can_search"`
	FFmpeg      bool   `json:"ffmpeg"`
	Ollama      bool   `json:"ollama"`
	Model       string `json:"model"`
	ModelReady  bool   `json:"model_ready"`
	LastProbeAt string `json:"last_probe_at,omitempty"`
}

type StartSearchRequest struct {
	VideoPath  string `json:"video_path"`
	Query      string `json:"query"`
	Policy     string `json:"policy,omitempty"`
	Threshold  int    `json:"threshold,omitempty"`
	SourceLang string `json:"source_lang,omitempty"`
}

type SessionResponse struct {
	ID          string  `json:"id"`
	VideoPath   string  `json:"video_path"`
	Query       string  `json:"query"`
	Prompt      string  `json:"prompt"`
	Policy      string  `json:"policy"`
	Threshold   int     `json:"threshold,omitempty"`
	Status      string  `json:"status"`
	Progress    float64 `json:"progress"`
	Duration    float64 `json:"duration"`
	Samples     int     `json:"samples"`
	Matches     int     `json:"matches"`
	FrameErrors int     `json:"frame_errors"`
	Error       string  `json:"error,omitempty"`
	Cancelled   bool    `json:"cancelled"`
	Elapsed     string  `json:"elapsed,omitempty"`
	ElapsedMs   int64   `json:"elapsed_ms"`
	CreatedAt   string  `json:"created_at"`
	UpdatedAt   string  `json:"updated_at"`
}

type SessionsResponse struct {
	Sessions []SessionResponse `json:"sessions"`
}

type MatchResponse struct {
	Second    int    `json:"second"`
	Timestamp string `json:"timestamp"`
	Score     *int   `json:"score,omitempty"`
	Answer    string `json:"answer"`
}

type MatchesResponse struct {
	SessionID string          `json:"session_id"`
	Matches   []MatchResponse `json:"matches"`
}

type StopResponse struct {
	Stopped bool `json:"stopped"`
}

type TranslateRequest struct {
	Text   string `json:"text"`
	Source string `json:"source,omitempty"`
	Target string `json:"target,omitempty"`
}

type TranslateResponse struct {
	Text       string `json:"text"`
	Translated string `json:"translated"`
	Source     string `json:"source"`
	Target     string `json:"target"`
}

type ExportRequest struct {
	Title     string  `json:"title"`
	OutputDir string  `json:"output_dir"`
	FrameRate float64 `json:"frame_rate"`
	Gap       int     `json:"gap"`
	Handle    int     `json:"handle"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func SessionToResponse(s *history.Session) SessionResponse {
	resp := SessionResponse{
		ID:          s.ID,
		VideoPath:   s.VideoPath,
		Query:       s.Query,
		Prompt:      s.Prompt,
		Policy:      s.Policy,
		Threshold:   s.Threshold,
		Status:      s.Status,
		Progress:    s.Progress,
		Duration:    s.Duration,
		Samples:     s.Samples,
		Matches:     s.Matches,
		FrameErrors: s.FrameErrors,
		Error:       s.Error,
		Cancelled:   s.Cancelled,
		ElapsedMs:   s.ElapsedMs,
		CreatedAt:   s.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   s.UpdatedAt.Format(time.RFC3339),
	}
	if s.ElapsedMs > 0 {
		resp.Elapsed = (time.Duration(s.ElapsedMs) * time.Millisecond).Round(time.Millisecond).String()
	}
	return resp
}

func MatchToResponse(m *history.Match) MatchResponse {
	resp := MatchResponse{
		Second:    m.Second,
		Timestamp: search.FormatTimestamp(m.Second),
		Answer:    m.Answer,
	}
	if m.HasScore {
		score := m.Score
		resp.Score = &score
	}
	return resp
}

func ReportToResponse(r *doctor.Report) *DoctorResponse {
	resp := &DoctorResponse{
		CanSearch:  r.CanSearch(),
		FFmpeg:     r.FFmpeg.Available && r.FFprobe.Available,
		Ollama:     r.Ollama.Available,
		Model:      r.Model.Name,
		ModelReady: r.Model.Available,
	}
	if !r.ProbedAt.IsZero() {
		resp.LastProbeAt = r.ProbedAt.Format(time.RFC3339)
	}
	return resp
}
