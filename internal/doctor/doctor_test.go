package doctor

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

type fakeModels struct {
	model   string
	pingErr error
	has     bool
	listErr error
}

func (f *fakeModels) Model() string                  { return f.model }
func (f *fakeModels) Ping(ctx context.Context) error { return f.pingErr }
func (f *fakeModels) HasModel(ctx context.Context) (bool, error) {
	return f.has, f.listErr
}

func TestParseVersion(t *testing.T) {
	tests := map[string]string{
		"ffmpeg version 6.1.1-3ubuntu5 Copyright (c) 2000-2023\nbuilt with gcc": "6.1.1-3ubuntu5",
		"ffprobe version n7.0 Copyright": "n7.0",
		"garbage":                        "",
		"":                               "",
	}
	for in, want := range tests {
		if got := parseVersion(in); got != want {
			t.Errorf("parseVersion(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestDoctor_MissingBinaries(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "no-such-ffmpeg")
	d := New(Config{
		FFmpegPath:  missing,
		FFprobePath: missing,
		Models:      &fakeModels{model: "moondream", has: true},
	})

	r, err := d.Probe(context.Background())
	if err != nil {
		t.Fatalf("Probe() error = %v", err)
	}
	if r.FFmpeg.Available || r.FFmpeg.Error == "" {
		t.Fatalf("FFmpeg = %+v, want unavailable with error", r.FFmpeg)
	}
	if !r.Ollama.Available || !r.Model.Available {
		t.Fatalf("Ollama/Model = %+v %+v, want available", r.Ollama, r.Model)
	}
	if r.AllOK || r.CanSearch() {
		t.Fatal("AllOK = true with missing ffmpeg")
	}
	if r.ProbedAt.IsZero() {
		t.Fatal("ProbedAt not set")
	}
}

func TestDoctor_OllamaStates(t *testing.T) {
	tests := []struct {
		name        string
		models      ModelChecker
		wantServer  bool
		wantModel   bool
		modelErrHas string
	}{
		{name: "unreachable", models: &fakeModels{model: "m", pingErr: errors.New("connection refused")}},
		{name: "not pulled", models: &fakeModels{model: "moondream"}, wantServer: true, modelErrHas: "ollama pull moondream"},
		{name: "list failure", models: &fakeModels{model: "m", listErr: errors.New("boom")}, wantServer: true},
		{name: "ready", models: &fakeModels{model: "m", has: true}, wantServer: true, wantModel: true},
		{name: "no client", models: nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r, err := New(Config{Models: tc.models}).Probe(context.Background())
			if err != nil {
				t.Fatalf("Probe() error = %v", err)
			}
			if r.Ollama.Available != tc.wantServer || r.Model.Available != tc.wantModel {
				t.Fatalf("ollama=%v model=%v, want %v %v", r.Ollama.Available, r.Model.Available, tc.wantServer, tc.wantModel)
			}
			if tc.modelErrHas != "" && !strings.Contains(r.Model.Error, tc.modelErrHas) {
				t.Fatalf("model error = %q, want it to mention %q", r.Model.Error, tc.modelErrHas)
			}
		})
	}
}

type countingProber struct {
	calls atomic.Int32
	fail  atomic.Bool
}

func (p *countingProber) Probe(ctx context.Context) (*Report, error) {
	p.calls.Add(1)
	if p.fail.Load() {
		return nil, errors.New("probe failed")
	}
	return &Report{AllOK: true, ProbedAt: time.Now()}, nil
}

func TestCachedDoctor_CachesWithinTTL(t *testing.T) {
	p := &countingProber{}
	d := NewCachedDoctor(p, nil)

	for i := 0; i < 3; i++ {
		if _, err := d.Get(context.Background()); err != nil {
			t.Fatalf("Get() error = %v", err)
		}
	}
	if p.calls.Load() != 1 {
		t.Fatalf("probe calls = %d, want 1", p.calls.Load())
	}

	d.Invalidate()
	if d.Peek() != nil {
		t.Fatal("Peek() after Invalidate != nil")
	}
	d.Get(context.Background())
	if p.calls.Load() != 2 {
		t.Fatalf("probe calls after invalidate = %d, want 2", p.calls.Load())
	}
}

func TestCachedDoctor_ExpiredTTL(t *testing.T) {
	p := &countingProber{}
	d := NewCachedDoctor(p, nil)
	d.ttl = time.Millisecond

	d.Get(context.Background())
	time.Sleep(5 * time.Millisecond)
	d.Get(context.Background())
	if p.calls.Load() != 2 {
		t.Fatalf("probe calls = %d, want 2 after TTL expiry", p.calls.Load())
	}
}

func TestCachedDoctor_StaleOnError(t *testing.T) {
	p := &countingProber{}
	d := NewCachedDoctor(p, nil)

	first, _ := d.Refresh(context.Background())
	p.fail.Store(true)

	got, err := d.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh() error = %v, want stale report", err)
	}
	if got != first {
		t.Fatal("Refresh() did not return the stale report")
	}

	d.Invalidate()
	if _, err := d.Refresh(context.Background()); err == nil {
		t.Fatal("Refresh() error = nil with no cache and failing probe")
	}
}
