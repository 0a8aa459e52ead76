package ui

import (
	"fmt"
	"math"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/heimdex/framescout/internal/history"
	"github.com/heimdex/framescout/internal/search"
)

// menuState is what the tray menu shows, derived from search notifications.
type menuState struct {
	sessionID string
	running   bool
	progress  float64
	found     int
	lastMatch string
	outcome   string
}

func newMenuState() menuState {
	return menuState{}
}

// apply folds one notification into the state. Notifications for a session
// other than the current one are ignored once that session has started.
func (s menuState) apply(n search.Notification) menuState {
	if n.Type == search.NotifyStarted {
		return menuState{sessionID: n.SessionID, running: true}
	}
	if n.SessionID != s.sessionID {
		return s
	}

	switch n.Type {
	case search.NotifyMatch:
		s.found++
		s.lastMatch = n.Timestamp
	case search.NotifyProgress:
		s.progress = n.Progress
	case search.NotifyFinished:
		s.running = false
		s.progress = n.Progress
		s.outcome = finishedLabel(n)
	}
	return s
}

func (s menuState) statusLabel() string {
	switch {
	case s.running:
		return fmt.Sprintf("Status: Scanning %d%%", int(math.Floor(s.progress*100)))
	case s.outcome != "":
		return "Status: " + s.outcome
	default:
		return "Status: Idle"
	}
}

func (s menuState) foundLabel() string {
	if s.sessionID == "" {
		return "Found: -"
	}
	label := fmt.Sprintf("Found %s", humanize.Comma(int64(s.found)))
	if s.lastMatch != "" {
		label += " (last " + s.lastMatch + ")"
	}
	return label
}

func finishedLabel(n search.Notification) string {
	var elapsed string
	if n.Summary != nil {
		elapsed = " in " + (time.Duration(n.Summary.ElapsedMs) * time.Millisecond).Round(time.Second).String()
	}
	switch n.Status {
	case history.StatusCancelled:
		return "Stopped" + elapsed
	case history.StatusFailed:
		return "Failed"
	default:
		return "Done" + elapsed
	}
}
