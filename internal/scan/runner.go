package scan

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

const defaultEventBuffer = 256

// Runner executes at most one Session at a time on a background goroutine and
// queues its events, in order, on a channel the host consumes.
type Runner struct {
	logger *slog.Logger
	events chan Event
	active atomic.Pointer[Session]

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

func NewRunner(logger *slog.Logger, buffer int) *Runner {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if buffer <= 0 {
		buffer = defaultEventBuffer
	}
	return &Runner{
		logger: logger,
		events: make(chan Event, buffer),
	}
}

// Events returns the channel all session events are delivered on. It is
// closed by Close.
func (r *Runner) Events() <-chan Event {
	return r.events
}

// Start runs the session in the background and returns true. If a session is
// already active, or the runner is closed, it does nothing and returns false.
// ctx bounds the session's lifetime, so it should outlive the caller's request.
func (r *Runner) Start(ctx context.Context, s *Session) bool {
	if s == nil || s.State() != StateIdle {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return false
	}
	if !r.active.CompareAndSwap(nil, s) {
		r.logger.Info("analysis already running, start ignored",
			"active_session", r.active.Load().ID(),
			"requested_session", s.ID(),
		)
		return false
	}

	inner := s.cfg.Sink
	s.cfg.Sink = SinkFunc(func(e Event) {
		if inner != nil {
			inner.Emit(e)
		}
		if e.Type == EventFinished {
			// Free the slot first so OnFinished handlers can start a new session.
			r.active.CompareAndSwap(s, nil)
		}
		r.deliver(ctx, e)
	})

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer r.active.CompareAndSwap(s, nil)

		if err := s.Run(ctx); err != nil {
			r.logger.Warn("session ended with error", "session_id", s.ID(), "error", err)
		}
	}()

	return true
}

// Stop requests cooperative cancellation of the active session, if any. It
// does not wait; completion is reported by the finished event.
func (r *Runner) Stop() {
	if s := r.active.Load(); s != nil {
		s.Stop()
	}
}

// Active returns the running session or nil.
func (r *Runner) Active() *Session {
	return r.active.Load()
}

// IsRunning reports whether a session currently occupies the runner.
func (r *Runner) IsRunning() bool {
	return r.active.Load() != nil
}

// Wait blocks until the active session's goroutine has returned.
func (r *Runner) Wait() {
	r.wg.Wait()
}

// Close stops the active session, waits for it and closes the event channel.
func (r *Runner) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	r.mu.Unlock()

	r.Stop()
	r.wg.Wait()
	close(r.events)
}

func (r *Runner) deliver(ctx context.Context, e Event) {
	select {
	case r.events <- e:
		return
	case <-ctx.Done():
	}

	// The host may already be gone; keep the event only if there is room.
	select {
	case r.events <- e:
	default:
		r.logger.Warn("event dropped after cancellation", "type", e.Type.String(), "session_id", e.SessionID)
	}
}
