package scan

import (
	"context"
	"time"
)

type EventType int

const (
	EventMatch EventType = iota + 1
	EventProgress
	EventFrameError
	EventFinished
)

func (t EventType) String() string {
	switch t {
	case EventMatch:
		return "match"
	case EventProgress:
		return "progress"
	case EventFrameError:
		return "frame_error"
	case EventFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// Summary describes a finished session.
type Summary struct {
	Elapsed     time.Duration
	Cancelled   bool
	Duration    float64
	Samples     int
	Matches     int
	FrameErrors int
}

// Event is emitted by a session while it runs. Fields are populated according
// to Type:
//   - EventMatch: Second, Score/HasScore, Answer
//   - EventProgress: Second, Progress
//   - EventFrameError: Second, Err
//   - EventFinished: Summary, Err (non-nil only for an OpenError)
type Event struct {
	Type      EventType
	SessionID string
	Second    int
	Score     int
	HasScore  bool
	Answer    string
	Progress  float64
	Summary   Summary
	Err       error
}

// Sink receives events synchronously from the session's goroutine.
type Sink interface {
	Emit(Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Event)

func (f SinkFunc) Emit(e Event) { f(e) }

// Listener holds optional callbacks for Serve. Nil callbacks are skipped.
type Listener struct {
	OnMatch      func(Event)
	OnProgress   func(Event)
	OnFrameError func(Event)
	OnFinished   func(Event)
}

func (l Listener) dispatch(e Event) {
	var fn func(Event)
	switch e.Type {
	case EventMatch:
		fn = l.OnMatch
	case EventProgress:
		fn = l.OnProgress
	case EventFrameError:
		fn = l.OnFrameError
	case EventFinished:
		fn = l.OnFinished
	}
	if fn != nil {
		fn(e)
	}
}

// Serve delivers events to the listener on the calling goroutine until the
// channel is closed or ctx is done. Hosts with a single event-handling
// goroutine run Serve there so listeners never race with each other.
func Serve(ctx context.Context, events <-chan Event, l Listener) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			l.dispatch(e)
		}
	}
}
