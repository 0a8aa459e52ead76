// Package inference answers questions about video frames with a local
// vision model served by Ollama.
package inference

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
)

const (
	DefaultModel   = "moondream"
	DefaultTimeout = 60 * time.Second
	jpegQuality    = 90
)

// Config holds the answerer's configuration.
type Config struct {
	Host    string // e.g. http://127.0.0.1:11434; empty uses OLLAMA_HOST
	Model   string
	Timeout time.Duration // per frame
	Logger  *slog.Logger
}

// OllamaAnswerer sends one frame and one prompt per call to /api/generate.
type OllamaAnswerer struct {
	client  *api.Client
	model   string
	timeout time.Duration
	logger  *slog.Logger
}

func NewOllamaAnswerer(cfg Config) (*OllamaAnswerer, error) {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}

	var client *api.Client
	if cfg.Host == "" {
		c, err := api.ClientFromEnvironment()
		if err != nil {
			return nil, fmt.Errorf("ollama client: %w", err)
		}
		client = c
	} else {
		base, err := url.Parse(cfg.Host)
		if err != nil {
			return nil, fmt.Errorf("invalid ollama host %q: %w", cfg.Host, err)
		}
		if base.Scheme == "" || base.Host == "" {
			return nil, fmt.Errorf("invalid ollama host %q: want scheme://host:port", cfg.Host)
		}
		client = api.NewClient(base, http.DefaultClient)
	}

	return &OllamaAnswerer{
		client:  client,
		model:   cfg.Model,
		timeout: cfg.Timeout,
		logger:  cfg.Logger,
	}, nil
}

func (a *OllamaAnswerer) Model() string { return a.model }

// Answer asks the model about img. Sampling is deterministic so the same
// frame and prompt give the same answer.
func (a *OllamaAnswerer) Answer(ctx context.Context, img image.Image, prompt string) (string, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return "", fmt.Errorf("encode frame: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	stream := false
	req := &api.GenerateRequest{
		Model:  a.model,
		Prompt: prompt,
		Images: []api.ImageData{buf.Bytes()},
		Stream: &stream,
		Options: map[string]any{
			"temperature": 0,
		},
	}

	start := time.Now()
	var sb strings.Builder
	err := a.client.Generate(ctx, req, func(resp api.GenerateResponse) error {
		sb.WriteString(resp.Response)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("generate with %s: %w", a.model, err)
	}

	answer := strings.TrimSpace(sb.String())
	a.logger.Debug("model answered",
		"model", a.model,
		"duration_ms", time.Since(start).Milliseconds(),
		"answer", answer,
	)
	return answer, nil
}

// Ping checks that the Ollama server is reachable.
func (a *OllamaAnswerer) Ping(ctx context.Context) error {
	return a.client.Heartbeat(ctx)
}

// HasModel reports whether the configured model has been pulled. A bare name
// matches its ":latest" tag.
func (a *OllamaAnswerer) HasModel(ctx context.Context) (bool, error) {
	resp, err := a.client.List(ctx)
	if err != nil {
		return false, fmt.Errorf("list models: %w", err)
	}
	for _, m := range resp.Models {
		if modelMatches(a.model, m.Name) || modelMatches(a.model, m.Model) {
			return true, nil
		}
	}
	return false, nil
}

func modelMatches(want, have string) bool {
	if have == "" {
		return false
	}
	if want == have {
		return true
	}
	if !strings.Contains(want, ":") {
		return want+":latest" == have
	}
	return false
}
