package metrics

import (
	"context"
	"errors"
	"image"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/heimdex/framescout/internal/scan"
)

func TestRecord(t *testing.T) {
	matches := testutil.ToFloat64(MatchesTotal)
	frames := testutil.ToFloat64(FramesAnalyzedTotal)
	errs := testutil.ToFloat64(FrameErrorsTotal)
	completed := testutil.ToFloat64(SessionsTotal.WithLabelValues("completed"))

	SessionStarted()
	if testutil.ToFloat64(SessionActive) != 1 {
		t.Fatal("SessionActive != 1 after SessionStarted")
	}

	Record(scan.Event{Type: scan.EventMatch}, "")
	Record(scan.Event{Type: scan.EventProgress}, "")
	Record(scan.Event{Type: scan.EventProgress}, "")
	Record(scan.Event{Type: scan.EventFrameError}, "")
	Record(scan.Event{Type: scan.EventFinished}, "completed")

	if got := testutil.ToFloat64(MatchesTotal) - matches; got != 1 {
		t.Errorf("matches delta = %v, want 1", got)
	}
	if got := testutil.ToFloat64(FramesAnalyzedTotal) - frames; got != 2 {
		t.Errorf("frames delta = %v, want 2", got)
	}
	if got := testutil.ToFloat64(FrameErrorsTotal) - errs; got != 1 {
		t.Errorf("frame errors delta = %v, want 1", got)
	}
	if got := testutil.ToFloat64(SessionsTotal.WithLabelValues("completed")) - completed; got != 1 {
		t.Errorf("completed sessions delta = %v, want 1", got)
	}
	if testutil.ToFloat64(SessionActive) != 0 {
		t.Error("SessionActive != 0 after finished")
	}
}

func TestTimedAnswerer_PassesThrough(t *testing.T) {
	wantErr := errors.New("boom")
	inner := scan.AnswererFunc(func(ctx context.Context, img image.Image, prompt string) (string, error) {
		if prompt == "fail" {
			return "", wantErr
		}
		return "yes", nil
	})
	a := TimedAnswerer(inner)

	if got, err := a.Answer(context.Background(), nil, "ok"); got != "yes" || err != nil {
		t.Fatalf("Answer() = %q, %v", got, err)
	}
	if _, err := a.Answer(context.Background(), nil, "fail"); !errors.Is(err, wantErr) {
		t.Fatalf("Answer() error = %v, want %v", err, wantErr)
	}
}

func TestHandler_ExposesMetrics(t *testing.T) {
	FramesAnalyzedTotal.Inc()

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "framescout_frames_analyzed_total") {
		t.Fatal("metrics output lacks framescout_frames_analyzed_total")
	}
}
