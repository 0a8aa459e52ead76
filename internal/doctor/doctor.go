// Package doctor probes the local environment a search depends on: the ffmpeg
// binaries used for decoding and the Ollama server and model used for
// inference.
package doctor

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

// Check is the result of probing one dependency.
type Check struct {
	Name      string `json:"name"`
	Available bool   `json:"available"`
	Version   string `json:"version,omitempty"`
	Path      string `json:"path,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Report is a full environment probe.
type Report struct {
	FFmpeg   Check     `json:"ffmpeg"`
	FFprobe  Check     `json:"ffprobe"`
	Ollama   Check     `json:"ollama"`
	Model    Check     `json:"model"`
	AllOK    bool      `json:"all_ok"`
	ProbedAt time.Time `json:"probed_at"`
}

// CanSearch reports whether every dependency of a search is available.
func (r *Report) CanSearch() bool {
	return r.FFmpeg.Available && r.FFprobe.Available && r.Ollama.Available && r.Model.Available
}

// Prober produces a Report.
type Prober interface {
	Probe(ctx context.Context) (*Report, error)
}

// ModelChecker is the part of the inference client the doctor needs.
type ModelChecker interface {
	Model() string
	Ping(ctx context.Context) error
	HasModel(ctx context.Context) (bool, error)
}

// Config holds the doctor's configuration.
type Config struct {
	FFmpegPath  string
	FFprobePath string
	Models      ModelChecker
	Timeout     time.Duration
	Logger      *slog.Logger
}

// Doctor probes the environment on every call.
type Doctor struct {
	cfg Config
}

func New(cfg Config) *Doctor {
	if cfg.FFmpegPath == "" {
		cfg.FFmpegPath = "ffmpeg"
	}
	if cfg.FFprobePath == "" {
		cfg.FFprobePath = "ffprobe"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	return &Doctor{cfg: cfg}
}

// Probe checks every dependency. Individual failures are recorded in the
// report; an error is returned only when ctx ends before the probe completes.
func (d *Doctor) Probe(ctx context.Context) (*Report, error) {
	ctx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
	defer cancel()

	r := &Report{
		FFmpeg:  probeBinary(ctx, "ffmpeg", d.cfg.FFmpegPath),
		FFprobe: probeBinary(ctx, "ffprobe", d.cfg.FFprobePath),
	}
	r.Ollama, r.Model = d.probeOllama(ctx)

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("doctor probe: %w", err)
	}

	r.AllOK = r.CanSearch()
	r.ProbedAt = time.Now()

	d.cfg.Logger.Info("doctor probe complete",
		"ffmpeg", r.FFmpeg.Available,
		"ffprobe", r.FFprobe.Available,
		"ollama", r.Ollama.Available,
		"model", r.Model.Name,
		"model_available", r.Model.Available,
	)
	return r, nil
}

func (d *Doctor) probeOllama(ctx context.Context) (Check, Check) {
	server := Check{Name: "ollama"}
	model := Check{Name: "model"}
	if d.cfg.Models == nil {
		server.Error = "inference client not configured"
		model.Error = server.Error
		return server, model
	}
	model.Name = d.cfg.Models.Model()

	if err := d.cfg.Models.Ping(ctx); err != nil {
		server.Error = err.Error()
		model.Error = "ollama unreachable"
		return server, model
	}
	server.Available = true

	ok, err := d.cfg.Models.HasModel(ctx)
	switch {
	case err != nil:
		model.Error = err.Error()
	case !ok:
		model.Error = fmt.Sprintf("model not pulled; run: ollama pull %s", model.Name)
	default:
		model.Available = true
	}
	return server, model
}

// probeBinary resolves a binary and reads its version from `-version`.
func probeBinary(ctx context.Context, name, bin string) Check {
	c := Check{Name: name}
	path, err := exec.LookPath(bin)
	if err != nil {
		c.Error = err.Error()
		return c
	}
	c.Path = path

	var stdout bytes.Buffer
	cmd := exec.CommandContext(ctx, path, "-version")
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		c.Error = err.Error()
		return c
	}

	c.Available = true
	c.Version = parseVersion(stdout.String())
	return c
}

// parseVersion extracts "6.1.1" from "ffmpeg version 6.1.1 Copyright ...".
func parseVersion(out string) string {
	line, _, _ := strings.Cut(out, "\n")
	fields := strings.Fields(line)
	for i, f := range fields {
		if f == "version" && i+1 < len(fields) {
			return fields[i+1]
		}
	}
	return ""
}
