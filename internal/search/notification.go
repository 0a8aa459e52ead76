package search

import (
	"fmt"

	"github.com/heimdex/framescout/internal/scan"
)

const (
	NotifyStarted    = "started"
	NotifyMatch      = "match"
	NotifyProgress   = "progress"
	NotifyFrameError = "frame_error"
	NotifyFinished   = "finished"
)

// Notification is the JSON-friendly form of a session event pushed to
// publishers such as the websocket hub and the tray.
type Notification struct {
	Type      string   `json:"type"`
	SessionID string   `json:"session_id"`
	Second    int      `json:"second"`
	Timestamp string   `json:"timestamp,omitempty"`
	Score     *int     `json:"score,omitempty"`
	Answer    string   `json:"answer,omitempty"`
	Progress  float64  `json:"progress"`
	Query     string   `json:"query,omitempty"`
	Status    string   `json:"status,omitempty"`
	Error     string   `json:"error,omitempty"`
	Summary   *Summary `json:"summary,omitempty"`
}

type Summary struct {
	ElapsedMs   int64   `json:"elapsed_ms"`
	Cancelled   bool    `json:"cancelled"`
	Duration    float64 `json:"duration"`
	Samples     int     `json:"samples"`
	Matches     int     `json:"matches"`
	FrameErrors int     `json:"frame_errors"`
}

// Publisher receives notifications. Publish is called from the service's
// event loop and from Start, so implementations must be safe for concurrent
// use and must not block for long.
type Publisher interface {
	Publish(n Notification)
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(Notification)

func (f PublisherFunc) Publish(n Notification) { f(n) }

// FormatTimestamp renders a whole second as HH:MM:SS.
func FormatTimestamp(second int) string {
	if second < 0 {
		second = 0
	}
	return fmt.Sprintf("%02d:%02d:%02d", second/3600, (second/60)%60, second%60)
}

func notificationFor(e scan.Event, status string) Notification {
	n := Notification{
		SessionID: e.SessionID,
		Second:    e.Second,
		Progress:  e.Progress,
	}
	switch e.Type {
	case scan.EventMatch:
		n.Type = NotifyMatch
		n.Timestamp = FormatTimestamp(e.Second)
		n.Answer = e.Answer
		if e.HasScore {
			score := e.Score
			n.Score = &score
		}
	case scan.EventProgress:
		n.Type = NotifyProgress
		n.Timestamp = FormatTimestamp(e.Second)
	case scan.EventFrameError:
		n.Type = NotifyFrameError
		n.Timestamp = FormatTimestamp(e.Second)
		if e.Err != nil {
			n.Error = e.Err.Error()
		}
	case scan.EventFinished:
		n.Type = NotifyFinished
		n.Status = status
		if e.Err != nil {
			n.Error = e.Err.Error()
		}
		n.Summary = &Summary{
			ElapsedMs:   e.Summary.Elapsed.Milliseconds(),
			Cancelled:   e.Summary.Cancelled,
			Duration:    e.Summary.Duration,
			Samples:     e.Summary.Samples,
			Matches:     e.Summary.Matches,
			FrameErrors: e.Summary.FrameErrors,
		}
	}
	return n
}
