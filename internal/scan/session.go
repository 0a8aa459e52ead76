package scan

import (
	"context"
	"errors"
	"image"
	"log/slog"
	"sync/atomic"
	"time"
)

// State is the lifecycle position of a Session.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateStopping
	StateFinished
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// Answerer is the inference collaborator: it answers a question about one
// image. It is called sequentially, never concurrently, by a session.
type Answerer interface {
	Answer(ctx context.Context, img image.Image, prompt string) (string, error)
}

// AnswererFunc adapts a function to Answerer.
type AnswererFunc func(ctx context.Context, img image.Image, prompt string) (string, error)

func (f AnswererFunc) Answer(ctx context.Context, img image.Image, prompt string) (string, error) {
	return f(ctx, img, prompt)
}

// SessionConfig holds everything a session needs. Prompt is sent verbatim.
type SessionConfig struct {
	ID        string
	VideoPath string
	Prompt    string
	Policy    MatchPolicy
	Opener    Opener
	Answerer  Answerer
	Sink      Sink
	Logger    *slog.Logger
}

// Session drives one pass over one video for one prompt and policy.
type Session struct {
	cfg    SessionConfig
	logger *slog.Logger

	state         atomic.Int32
	stopRequested atomic.Bool
}

func NewSession(cfg SessionConfig) *Session {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if cfg.Sink == nil {
		cfg.Sink = SinkFunc(func(Event) {})
	}
	return &Session{
		cfg:    cfg,
		logger: logger.With("session_id", cfg.ID),
	}
}

func (s *Session) ID() string          { return s.cfg.ID }
func (s *Session) VideoPath() string   { return s.cfg.VideoPath }
func (s *Session) Prompt() string      { return s.cfg.Prompt }
func (s *Session) Policy() MatchPolicy { return s.cfg.Policy }

func (s *Session) State() State {
	return State(s.state.Load())
}

// Stop asks the loop to exit before its next sample. It does not interrupt an
// inference call already in flight. Idle and finished sessions are unaffected.
func (s *Session) Stop() {
	switch State(s.state.Load()) {
	case StateRunning, StateStopping:
	default:
		return
	}
	s.stopRequested.Store(true)
	if s.state.CompareAndSwap(int32(StateRunning), int32(StateStopping)) {
		s.logger.Info("stop requested")
	}
}

// Run executes the session on the calling goroutine. It returns the OpenError
// if the video could not be opened; every other outcome returns nil and is
// described by the finished event's Summary.
func (s *Session) Run(ctx context.Context) error {
	if !s.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		return ErrSessionUsed
	}

	start := time.Now()
	s.logger.Info("analysis started",
		"video", s.cfg.VideoPath,
		"policy", s.cfg.Policy.String(),
	)

	video, err := s.cfg.Opener.Open(ctx, s.cfg.VideoPath)
	if err != nil {
		return s.fail(start, s.openError(err))
	}

	sampler, err := NewSampler(video)
	if err != nil {
		video.Close()
		return s.fail(start, s.openError(err))
	}

	summary := Summary{Duration: sampler.Duration()}
	s.logger.Info("video opened",
		"fps", video.FrameRate(),
		"frames", video.FrameCount(),
		"duration_s", summary.Duration,
		"expected_samples", sampler.Expected(),
	)

	for s.shouldContinue(ctx) {
		sample, ok := sampler.Next()
		if !ok {
			if err := sampler.Err(); err != nil {
				s.logger.Info("frame sequence ended early", "error", err)
			}
			break
		}
		s.analyze(ctx, sample, &summary)
	}

	if err := video.Close(); err != nil {
		s.logger.Warn("failed to close video", "error", err)
	}

	summary.Cancelled = s.stopRequested.Load() || ctx.Err() != nil
	summary.Elapsed = time.Since(start)
	s.state.Store(int32(StateFinished))

	s.logger.Info("analysis finished",
		"samples", summary.Samples,
		"matches", summary.Matches,
		"frame_errors", summary.FrameErrors,
		"cancelled", summary.Cancelled,
		"elapsed_ms", summary.Elapsed.Milliseconds(),
	)
	s.emit(Event{Type: EventFinished, Summary: summary})
	return nil
}

func (s *Session) shouldContinue(ctx context.Context) bool {
	return State(s.state.Load()) == StateRunning &&
		!s.stopRequested.Load() &&
		ctx.Err() == nil
}

func (s *Session) analyze(ctx context.Context, sample SamplePoint, summary *Summary) {
	summary.Samples++

	answer, err := s.cfg.Answerer.Answer(ctx, sample.Image, s.cfg.Prompt)
	if err != nil {
		summary.FrameErrors++
		ierr := &InferenceError{Second: sample.Second, Err: err}
		s.logger.Warn("inference failed", "second", sample.Second, "error", err)
		s.emit(Event{Type: EventFrameError, Second: sample.Second, Err: ierr})
	} else {
		decision := Interpret(answer, s.cfg.Policy)
		s.logger.Debug("frame analyzed",
			"second", sample.Second,
			"answer", answer,
			"matched", decision.Matched,
		)
		if decision.Matched {
			summary.Matches++
			s.logger.Info("match", "second", sample.Second, "answer", answer)
			s.emit(Event{
				Type:     EventMatch,
				Second:   sample.Second,
				Score:    decision.Score,
				HasScore: decision.HasScore,
				Answer:   answer,
			})
		}
	}

	s.emit(Event{
		Type:     EventProgress,
		Second:   sample.Second,
		Progress: Progress(sample.Second, summary.Duration),
	})
}

func (s *Session) fail(start time.Time, err error) error {
	s.state.Store(int32(StateFinished))
	s.logger.Error("analysis failed", "error", err)
	s.emit(Event{
		Type:    EventFinished,
		Summary: Summary{Elapsed: time.Since(start), Cancelled: s.stopRequested.Load()},
		Err:     err,
	})
	return err
}

func (s *Session) openError(err error) *OpenError {
	var oerr *OpenError
	if errors.As(err, &oerr) {
		if oerr.Path == "" {
			oerr.Path = s.cfg.VideoPath
		}
		return oerr
	}
	return &OpenError{Path: s.cfg.VideoPath, Err: err}
}

func (s *Session) emit(e Event) {
	e.SessionID = s.cfg.ID
	s.cfg.Sink.Emit(e)
}
