package scan

import (
	"context"
	"errors"
	"testing"
)

func newTestSession(v Video, a Answerer, sink Sink, policy MatchPolicy) *Session {
	return NewSession(SessionConfig{
		ID:        "sess-1",
		VideoPath: "/videos/clip.mp4",
		Prompt:    BooleanPolicy().Prompt("a door opening"),
		Policy:    policy,
		Opener:    openerFor(v),
		Answerer:  a,
		Sink:      sink,
		Logger:    testLogger(),
	})
}

func TestSession_ProgressStrictlyIncreasing(t *testing.T) {
	v := newFakeVideo(6)
	rec := &recorder{}
	s := newTestSession(v, &fakeAnswerer{}, rec, BooleanPolicy())

	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	progress := rec.ofType(EventProgress)
	if len(progress) != 6 {
		t.Fatalf("progress events = %d, want 6", len(progress))
	}
	prev := -1.0
	for _, e := range progress {
		if e.Progress <= prev {
			t.Fatalf("progress not strictly increasing: %v after %v", e.Progress, prev)
		}
		if e.Progress < 0 || e.Progress >= 1 {
			t.Fatalf("progress %v outside [0,1)", e.Progress)
		}
		prev = e.Progress
	}
	if last := progress[len(progress)-1].Progress; last != 5.0/6.0 {
		t.Fatalf("last progress = %v, want %v", last, 5.0/6.0)
	}

	if s.State() != StateFinished {
		t.Fatalf("State() = %v, want finished", s.State())
	}
	if !v.closed.Load() {
		t.Fatal("video was not closed")
	}
}

func TestSession_MatchBeforeProgress(t *testing.T) {
	v := newFakeVideo(4)
	rec := &recorder{}
	a := &fakeAnswerer{answers: map[int]string{1: "Yes, the door is open.", 3: "yes"}}
	s := newTestSession(v, a, rec, BooleanPolicy())

	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	var order []string
	for _, e := range rec.all() {
		order = append(order, e.Type.String())
	}
	want := []string{
		"progress",
		"match", "progress",
		"progress",
		"match", "progress",
		"finished",
	}
	if len(order) != len(want) {
		t.Fatalf("event order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("event order = %v, want %v", order, want)
		}
	}

	matches := rec.ofType(EventMatch)
	if matches[0].Second != 1 || matches[1].Second != 3 {
		t.Fatalf("match seconds = %d,%d; want 1,3", matches[0].Second, matches[1].Second)
	}
	if matches[0].HasScore {
		t.Fatal("boolean match carries a score")
	}

	fin := rec.ofType(EventFinished)[0]
	if fin.Summary.Matches != 2 || fin.Summary.Samples != 4 || fin.Summary.Cancelled {
		t.Fatalf("summary = %+v", fin.Summary)
	}
	if fin.SessionID != "sess-1" {
		t.Fatalf("SessionID = %q", fin.SessionID)
	}
}

func TestSession_ScoredMatchesCarryScore(t *testing.T) {
	v := newFakeVideo(3)
	rec := &recorder{}
	a := &fakeAnswerer{answers: map[int]string{0: "Confidence: 92%", 1: "40", 2: "none"}}
	policy, _ := ScoredPolicy(70)
	s := newTestSession(v, a, rec, policy)

	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	matches := rec.ofType(EventMatch)
	if len(matches) != 1 {
		t.Fatalf("matches = %d, want 1", len(matches))
	}
	if !matches[0].HasScore || matches[0].Score != 92 || matches[0].Second != 0 {
		t.Fatalf("match = %+v, want second 0 score 92", matches[0])
	}
}

func TestSession_OpenFailure(t *testing.T) {
	rec := &recorder{}
	s := NewSession(SessionConfig{
		ID:        "sess-open",
		VideoPath: "/missing.mp4",
		Policy:    BooleanPolicy(),
		Opener:    failingOpener(errors.New("no such file")),
		Answerer:  &fakeAnswerer{},
		Sink:      rec,
		Logger:    testLogger(),
	})

	err := s.Run(context.Background())
	var oerr *OpenError
	if !errors.As(err, &oerr) {
		t.Fatalf("Run() error = %v, want *OpenError", err)
	}
	if oerr.Path != "/missing.mp4" {
		t.Fatalf("OpenError.Path = %q", oerr.Path)
	}

	events := rec.all()
	if len(events) != 1 {
		t.Fatalf("events = %d, want exactly 1", len(events))
	}
	if events[0].Type != EventFinished || !errors.As(events[0].Err, &oerr) {
		t.Fatalf("event = %+v, want finished with OpenError", events[0])
	}
	if s.State() != StateFinished {
		t.Fatalf("State() = %v, want finished", s.State())
	}
}

func TestSession_InvalidFrameRateIsOpenError(t *testing.T) {
	v := &fakeVideo{fps: 0, frames: 10, decodable: -1}
	rec := &recorder{}
	a := &fakeAnswerer{}
	s := newTestSession(v, a, rec, BooleanPolicy())

	err := s.Run(context.Background())
	var oerr *OpenError
	if !errors.As(err, &oerr) {
		t.Fatalf("Run() error = %v, want *OpenError", err)
	}
	if a.calls.Load() != 0 {
		t.Fatalf("answerer called %d times, want 0", a.calls.Load())
	}
	if len(rec.ofType(EventProgress)) != 0 || len(rec.ofType(EventMatch)) != 0 {
		t.Fatal("progress or match emitted for an unopenable video")
	}
	if !v.closed.Load() {
		t.Fatal("video not closed after sampler failure")
	}
}

func TestSession_FrameErrorDoesNotHalt(t *testing.T) {
	v := newFakeVideo(5)
	rec := &recorder{}
	a := &fakeAnswerer{
		fail:    map[int]bool{2: true},
		answers: map[int]string{3: "yes"},
	}
	s := newTestSession(v, a, rec, BooleanPolicy())

	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if a.calls.Load() != 5 {
		t.Fatalf("answerer calls = %d, want 5", a.calls.Load())
	}
	if n := len(rec.ofType(EventProgress)); n != 5 {
		t.Fatalf("progress events = %d, want 5", n)
	}

	frameErrs := rec.ofType(EventFrameError)
	if len(frameErrs) != 1 || frameErrs[0].Second != 2 {
		t.Fatalf("frame errors = %+v, want one at second 2", frameErrs)
	}
	var ierr *InferenceError
	if !errors.As(frameErrs[0].Err, &ierr) || ierr.Second != 2 {
		t.Fatalf("frame error = %v, want *InferenceError at 2", frameErrs[0].Err)
	}

	fin := rec.ofType(EventFinished)[0]
	if fin.Err != nil {
		t.Fatalf("finished with error %v, want nil", fin.Err)
	}
	if fin.Summary.FrameErrors != 1 || fin.Summary.Matches != 1 {
		t.Fatalf("summary = %+v", fin.Summary)
	}
}

func TestSession_StopAfterKSamples(t *testing.T) {
	const k = 3
	v := newFakeVideo(20)
	rec := &recorder{}
	var s *Session
	a := &fakeAnswerer{}
	a.onCall = func(second int) {
		if second == k-1 {
			s.Stop()
		}
	}
	s = newTestSession(v, a, rec, BooleanPolicy())

	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if got := int(a.calls.Load()); got > k+1 {
		t.Fatalf("processed %d samples after stop at %d, want at most %d", got, k, k+1)
	}

	events := rec.all()
	last := events[len(events)-1]
	if last.Type != EventFinished {
		t.Fatalf("last event = %v, want finished", last.Type)
	}
	if !last.Summary.Cancelled {
		t.Fatal("summary.Cancelled = false after Stop")
	}
	if s.State() != StateFinished {
		t.Fatalf("State() = %v, want finished", s.State())
	}
}

func TestSession_StopStateTransition(t *testing.T) {
	v := newFakeVideo(10)
	var s *Session
	seen := make(chan State, 1)
	a := &fakeAnswerer{}
	a.onCall = func(second int) {
		if second == 0 {
			s.Stop()
			seen <- s.State()
		}
	}
	s = newTestSession(v, a, &recorder{}, BooleanPolicy())

	s.Run(context.Background())

	if got := <-seen; got != StateStopping {
		t.Fatalf("state during in-flight call after Stop = %v, want stopping", got)
	}
}

func TestSession_ContextCancelStopsLoop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	v := newFakeVideo(10)
	rec := &recorder{}
	a := &fakeAnswerer{}
	a.onCall = func(second int) {
		if second == 1 {
			cancel()
		}
	}
	s := newTestSession(v, a, rec, BooleanPolicy())

	if err := s.Run(ctx); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if a.calls.Load() != 2 {
		t.Fatalf("calls = %d, want 2", a.calls.Load())
	}
	if fin := rec.ofType(EventFinished); len(fin) != 1 || !fin[0].Summary.Cancelled {
		t.Fatalf("finished = %+v, want one cancelled", fin)
	}
}

func TestSession_SingleUse(t *testing.T) {
	s := newTestSession(newFakeVideo(1), &fakeAnswerer{}, &recorder{}, BooleanPolicy())
	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("first Run() error = %v", err)
	}
	if err := s.Run(context.Background()); !errors.Is(err, ErrSessionUsed) {
		t.Fatalf("second Run() error = %v, want ErrSessionUsed", err)
	}
}

func TestSession_EmptyVideoOnlyFinishes(t *testing.T) {
	v := &fakeVideo{fps: 30, frames: 0, decodable: -1}
	rec := &recorder{}
	s := newTestSession(v, &fakeAnswerer{}, rec, BooleanPolicy())

	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	events := rec.all()
	if len(events) != 1 || events[0].Type != EventFinished || events[0].Err != nil {
		t.Fatalf("events = %+v, want a single clean finished", events)
	}
}

func TestSession_StopOnFinishedIsNoop(t *testing.T) {
	s := newTestSession(newFakeVideo(1), &fakeAnswerer{}, &recorder{}, BooleanPolicy())
	s.Run(context.Background())
	s.Stop()
	if s.State() != StateFinished {
		t.Fatalf("State() = %v after Stop on finished session", s.State())
	}
}

func TestSession_StopOnIdleIsNoop(t *testing.T) {
	rec := &recorder{}
	s := newTestSession(newFakeVideo(5), &fakeAnswerer{}, rec, BooleanPolicy())
	s.Stop()
	if s.State() != StateIdle {
		t.Fatalf("State() = %v after Stop on idle session, want idle", s.State())
	}

	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got := len(rec.ofType(EventProgress)); got != 5 {
		t.Fatalf("progress events = %d, want 5", got)
	}
	fin := rec.ofType(EventFinished)
	if len(fin) != 1 || fin[0].Summary.Samples != 5 || fin[0].Summary.Cancelled {
		t.Fatalf("finished = %+v, want 5 samples, not cancelled", fin)
	}
}

func TestSession_BlankAnswerIsNonMatch(t *testing.T) {
	scored, _ := ScoredPolicy(0)
	for _, policy := range []MatchPolicy{BooleanPolicy(), scored} {
		t.Run(policy.String(), func(t *testing.T) {
			rec := &recorder{}
			a := &fakeAnswerer{answers: map[int]string{0: "", 1: "", 2: ""}}
			s := newTestSession(newFakeVideo(3), a, rec, policy)

			if err := s.Run(context.Background()); err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			if n := len(rec.ofType(EventMatch)); n != 0 {
				t.Fatalf("match events = %d, want 0", n)
			}
			if n := len(rec.ofType(EventFrameError)); n != 0 {
				t.Fatalf("frame error events = %d, want 0", n)
			}
			fin := rec.ofType(EventFinished)[0]
			if fin.Summary.Samples != 3 || fin.Summary.FrameErrors != 0 {
				t.Fatalf("summary = %+v", fin.Summary)
			}
		})
	}
}
