// Package metrics exposes Prometheus metrics for search sessions.
package metrics

import (
	"context"
	"image"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/heimdex/framescout/internal/scan"
)

var (
	SessionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "framescout_sessions_total",
		Help: "Total number of finished search sessions, by status",
	}, []string{"status"})

	FramesAnalyzedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "framescout_frames_analyzed_total",
		Help: "Total number of sampled frames sent to the model",
	})

	MatchesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "framescout_matches_total",
		Help: "Total number of matched seconds across all sessions",
	})

	FrameErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "framescout_frame_errors_total",
		Help: "Total number of frames the model failed to answer",
	})

	InferenceDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "framescout_inference_duration_seconds",
		Help:    "Duration of a single frame inference call",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
	})

	SessionActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "framescout_session_active",
		Help: "1 while a search session is running",
	})
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Record updates counters from one session event. status is the history
// status of a finished session and is ignored for other events.
func Record(e scan.Event, status string) {
	switch e.Type {
	case scan.EventMatch:
		MatchesTotal.Inc()
	case scan.EventProgress:
		FramesAnalyzedTotal.Inc()
	case scan.EventFrameError:
		FrameErrorsTotal.Inc()
	case scan.EventFinished:
		SessionsTotal.WithLabelValues(status).Inc()
		SessionActive.Set(0)
	}
}

// SessionStarted marks a session as running.
func SessionStarted() {
	SessionActive.Set(1)
}

// TimedAnswerer observes the latency of every call, failed calls included.
func TimedAnswerer(a scan.Answerer) scan.Answerer {
	return scan.AnswererFunc(func(ctx context.Context, img image.Image, prompt string) (string, error) {
		start := time.Now()
		defer func() {
			InferenceDuration.Observe(time.Since(start).Seconds())
		}()
		return a.Answer(ctx, img, prompt)
	})
}
