// Package search runs searches end to end: it turns a request into a prompt,
// starts a scan session, and from a single event loop persists results,
// updates metrics and notifies publishers.
package search

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/jpeg"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/heimdex/framescout/internal/history"
	"github.com/heimdex/framescout/internal/logging"
	"github.com/heimdex/framescout/internal/metrics"
	"github.com/heimdex/framescout/internal/scan"
	"github.com/heimdex/framescout/internal/translate"
	"github.com/heimdex/framescout/internal/video"
)

var (
	// ErrSearchActive is returned by Start while another search is running.
	ErrSearchActive = errors.New("a search is already running")
	// ErrInvalidRequest wraps every validation failure of a Request.
	ErrInvalidRequest = errors.New("invalid search request")
)

// Request describes one search. SourceLang overrides the configured source
// language of the query; empty means the configured default.
type Request struct {
	VideoPath  string
	Query      string
	SourceLang string
	Policy     scan.MatchPolicy
}

// Config holds the service's collaborators.
type Config struct {
	Repo        history.Repository
	Opener      scan.Opener
	Answerer    scan.Answerer
	Translator  translate.Translator // nil disables translation
	SourceLang  string
	TargetLang  string
	EventBuffer int
	Logger      *slog.Logger
}

// Status is a snapshot of the running search, if any.
type Status struct {
	Running   bool    `json:"running"`
	SessionID string  `json:"session_id,omitempty"`
	State     string  `json:"state"`
	Query     string  `json:"query,omitempty"`
	VideoPath string  `json:"video_path,omitempty"`
	Progress  float64 `json:"progress"`
	Matches   int     `json:"matches"`
}

type Service struct {
	cfg    Config
	runner *scan.Runner
	logger *slog.Logger

	sessionCtx     context.Context
	cancelSessions context.CancelFunc

	mu         sync.RWMutex
	publishers map[int]Publisher
	nextPubID  int
	live       Status
}

func New(cfg Config) *Service {
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	if cfg.TargetLang == "" {
		cfg.TargetLang = "en"
	}
	logger := logging.WithComponent(cfg.Logger, "search")
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		cfg:            cfg,
		runner:         scan.NewRunner(logger, cfg.EventBuffer),
		logger:         logger,
		sessionCtx:     ctx,
		cancelSessions: cancel,
		publishers:     make(map[int]Publisher),
		live:           Status{State: scan.StateIdle.String()},
	}
}

// Subscribe registers a publisher and returns a function that removes it.
func (s *Service) Subscribe(p Publisher) func() {
	s.mu.Lock()
	id := s.nextPubID
	s.nextPubID++
	s.publishers[id] = p
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.publishers, id)
		s.mu.Unlock()
	}
}

// Start validates the request, records the session and starts it in the
// background. It returns ErrSearchActive if a search is already running.
func (s *Service) Start(ctx context.Context, req Request) (*history.Session, error) {
	videoPath, query, err := validate(req)
	if err != nil {
		return nil, err
	}
	if s.runner.IsRunning() {
		return nil, ErrSearchActive
	}

	sourceLang := req.SourceLang
	if sourceLang == "" {
		sourceLang = s.cfg.SourceLang
	}
	prepared := translate.Prepare(ctx, s.cfg.Translator, query, sourceLang, s.cfg.TargetLang, s.logger)
	prompt := req.Policy.Prompt(prepared)

	rec := &history.Session{
		ID:        history.NewID(),
		VideoPath: videoPath,
		Query:     query,
		Prompt:    prompt,
		Policy:    req.Policy.Kind.String(),
		Threshold: req.Policy.Threshold,
		Status:    history.StatusRunning,
	}
	if err := s.cfg.Repo.CreateSession(ctx, rec); err != nil {
		return nil, fmt.Errorf("record session: %w", err)
	}

	sess := scan.NewSession(scan.SessionConfig{
		ID:        rec.ID,
		VideoPath: videoPath,
		Prompt:    prompt,
		Policy:    req.Policy,
		Opener:    s.cfg.Opener,
		Answerer:  metrics.TimedAnswerer(s.cfg.Answerer),
		Logger:    s.cfg.Logger,
	})

	s.mu.Lock()
	if !s.runner.Start(s.sessionCtx, sess) {
		s.mu.Unlock()
		res := history.Result{Status: history.StatusFailed, Error: ErrSearchActive.Error()}
		if err := s.cfg.Repo.FinishSession(context.WithoutCancel(ctx), rec.ID, res); err != nil {
			s.logger.Warn("failed to record rejected session", "session_id", rec.ID, "error", err)
		}
		return nil, ErrSearchActive
	}
	s.live = Status{
		Running:   true,
		SessionID: rec.ID,
		State:     scan.StateRunning.String(),
		Query:     query,
		VideoPath: videoPath,
	}
	s.mu.Unlock()

	metrics.SessionStarted()
	s.logger.Info("search started",
		"session_id", rec.ID,
		"video", logging.SanitizePath(videoPath),
		"policy", req.Policy.String(),
		"prompt", prompt,
	)
	s.publish(Notification{Type: NotifyStarted, SessionID: rec.ID, Query: query, Status: history.StatusRunning})

	return rec, nil
}

// Stop requests cooperative cancellation of the running search. It reports
// whether a search was running.
func (s *Service) Stop() bool {
	active := s.runner.Active()
	if active == nil {
		return false
	}
	s.runner.Stop()

	s.mu.Lock()
	if s.live.SessionID == active.ID() {
		s.live.State = scan.StateStopping.String()
	}
	s.mu.Unlock()

	s.logger.Info("search stop requested", "session_id", active.ID())
	return true
}

// Status returns the live state of the current search.
func (s *Service) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.live
}

// Run is the host event loop. It must be running for sessions to make
// progress past the event buffer. When ctx ends, the running session is
// cancelled and its remaining events are still persisted before Run returns.
func (s *Service) Run(ctx context.Context) {
	persistCtx := context.WithoutCancel(ctx)
	handle := func(e scan.Event) { s.handle(persistCtx, e) }
	listener := scan.Listener{
		OnMatch:      handle,
		OnProgress:   handle,
		OnFrameError: handle,
		OnFinished:   handle,
	}

	scan.Serve(ctx, s.runner.Events(), listener)

	drained := make(chan struct{})
	go func() {
		defer close(drained)
		for e := range s.runner.Events() {
			handle(e)
		}
	}()

	s.cancelSessions()
	s.runner.Close()
	<-drained
	s.logger.Info("search event loop stopped")
}

func (s *Service) handle(ctx context.Context, e scan.Event) {
	status := ""
	switch e.Type {
	case scan.EventMatch:
		m := &history.Match{
			SessionID: e.SessionID,
			Second:    e.Second,
			Score:     e.Score,
			HasScore:  e.HasScore,
			Answer:    e.Answer,
		}
		if err := s.cfg.Repo.AddMatch(ctx, m); err != nil {
			s.logger.Error("failed to record match", "session_id", e.SessionID, "second", e.Second, "error", err)
		}
		s.updateLive(e.SessionID, func(l *Status) { l.Matches++ })

	case scan.EventProgress:
		if err := s.cfg.Repo.UpdateProgress(ctx, e.SessionID, e.Progress); err != nil {
			s.logger.Warn("failed to record progress", "session_id", e.SessionID, "error", err)
		}
		s.updateLive(e.SessionID, func(l *Status) { l.Progress = e.Progress })

	case scan.EventFrameError:
		s.logger.Warn("frame skipped", "session_id", e.SessionID, "second", e.Second, "error", e.Err)

	case scan.EventFinished:
		status = finalStatus(e)
		res := history.Result{
			Status:      status,
			Cancelled:   e.Summary.Cancelled,
			Elapsed:     e.Summary.Elapsed,
			Duration:    e.Summary.Duration,
			Samples:     e.Summary.Samples,
			Matches:     e.Summary.Matches,
			FrameErrors: e.Summary.FrameErrors,
		}
		if e.Err != nil {
			res.Error = e.Err.Error()
		}
		if err := s.cfg.Repo.FinishSession(ctx, e.SessionID, res); err != nil {
			s.logger.Error("failed to record session result", "session_id", e.SessionID, "error", err)
		}
		s.logger.Info("search finished",
			"session_id", e.SessionID,
			"status", status,
			"matches", e.Summary.Matches,
			"samples", e.Summary.Samples,
			"elapsed_ms", e.Summary.Elapsed.Milliseconds(),
		)
	}

	metrics.Record(e, status)

	n := notificationFor(e, status)
	if e.Type == scan.EventFinished {
		s.mu.Lock()
		if s.live.SessionID == e.SessionID {
			n.Progress = s.live.Progress
			if status == history.StatusCompleted {
				n.Progress = 1
			}
			s.live.Running = false
			s.live.State = scan.StateFinished.String()
			s.live.Progress = n.Progress
		}
		s.mu.Unlock()
	}
	s.publish(n)
}

func (s *Service) updateLive(sessionID string, fn func(*Status)) {
	s.mu.Lock()
	if s.live.SessionID == sessionID {
		fn(&s.live)
	}
	s.mu.Unlock()
}

func (s *Service) publish(n Notification) {
	s.mu.RLock()
	pubs := make([]Publisher, 0, len(s.publishers))
	for _, p := range s.publishers {
		pubs = append(pubs, p)
	}
	s.mu.RUnlock()

	for _, p := range pubs {
		p.Publish(n)
	}
}

// Sessions lists recorded searches, newest first.
func (s *Service) Sessions(ctx context.Context, limit int) ([]*history.Session, error) {
	return s.cfg.Repo.ListSessions(ctx, limit)
}

// Session returns one recorded search or history.ErrNotFound.
func (s *Service) Session(ctx context.Context, id string) (*history.Session, error) {
	return s.cfg.Repo.GetSession(ctx, id)
}

// Matches returns the matched seconds of a search in ascending order.
func (s *Service) Matches(ctx context.Context, id string) ([]*history.Match, error) {
	if _, err := s.cfg.Repo.GetSession(ctx, id); err != nil {
		return nil, err
	}
	return s.cfg.Repo.ListMatches(ctx, id)
}

// Frame returns a JPEG of the frame a search analysed at second.
func (s *Service) Frame(ctx context.Context, id string, second int) ([]byte, error) {
	sess, err := s.cfg.Repo.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if second < 0 {
		return nil, fmt.Errorf("%w: second must not be negative", ErrInvalidRequest)
	}
	if sess.Duration > 0 && float64(second) >= math.Ceil(sess.Duration) {
		return nil, fmt.Errorf("%w: second %d is past the end of the video", ErrInvalidRequest, second)
	}

	img, err := video.Snapshot(ctx, s.cfg.Opener, sess.VideoPath, second)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 85}); err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	return buf.Bytes(), nil
}

func finalStatus(e scan.Event) string {
	switch {
	case e.Err != nil:
		return history.StatusFailed
	case e.Summary.Cancelled:
		return history.StatusCancelled
	default:
		return history.StatusCompleted
	}
}

func validate(req Request) (string, string, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return "", "", fmt.Errorf("%w: query is required", ErrInvalidRequest)
	}
	if strings.TrimSpace(req.VideoPath) == "" {
		return "", "", fmt.Errorf("%w: video path is required", ErrInvalidRequest)
	}
	if req.Policy.Kind == scan.PolicyScored && (req.Policy.Threshold < 0 || req.Policy.Threshold > scan.MaxScore) {
		return "", "", fmt.Errorf("%w: threshold %d out of range", ErrInvalidRequest, req.Policy.Threshold)
	}

	abs, err := filepath.Abs(req.VideoPath)
	if err != nil {
		return "", "", fmt.Errorf("%w: invalid path: %v", ErrInvalidRequest, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", "", fmt.Errorf("%w: video does not exist: %v", ErrInvalidRequest, err)
	}
	if info.IsDir() {
		return "", "", fmt.Errorf("%w: video path is a directory", ErrInvalidRequest)
	}
	return abs, query, nil
}
