// Package translate turns a query typed in any language into the target
// language the vision model understands best.
package translate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultBaseURL = "https://translate.googleapis.com"
	AutoDetect     = "auto"
	maxBodyBytes   = 1 << 20
)

// Translator translates text between languages. source may be "auto".
type Translator interface {
	Translate(ctx context.Context, text, source, target string) (string, error)
}

// Error is a non-2xx response from the translation endpoint.
type Error struct {
	StatusCode int
	Body       string
}

func (e *Error) Error() string {
	return fmt.Sprintf("translate failed: HTTP %d: %s", e.StatusCode, e.Body)
}

// IsRetryable returns true for server errors (5xx). Client errors (4xx) are
// considered permanent.
func (e *Error) IsRetryable() bool {
	return e.StatusCode >= 500
}

// GoogleTranslator calls the public gtx endpoint of Google Translate, which
// needs no API key.
type GoogleTranslator struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewGoogleTranslator(baseURL string, logger *slog.Logger) *GoogleTranslator {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &GoogleTranslator{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger,
	}
}

func (g *GoogleTranslator) Translate(ctx context.Context, text, source, target string) (string, error) {
	if source == "" {
		source = AutoDetect
	}
	q := url.Values{}
	q.Set("client", "gtx")
	q.Set("sl", source)
	q.Set("tl", target)
	q.Set("dt", "t")
	q.Set("q", text)
	endpoint := g.baseURL + "/translate_a/single?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &Error{StatusCode: resp.StatusCode, Body: truncate(string(body), 512)}
	}

	out, err := parseGTX(body)
	if err != nil {
		return "", err
	}
	g.logger.Debug("query translated", "source", source, "target", target, "chars", len(text))
	return out, nil
}

// parseGTX concatenates the translated segments of a gtx response, whose
// first element is a list of [translated, original, ...] arrays.
func parseGTX(body []byte) (string, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return "", fmt.Errorf("cannot parse translation: %w", err)
	}
	if len(raw) == 0 {
		return "", fmt.Errorf("cannot parse translation: empty response")
	}

	var segments [][]any
	if err := json.Unmarshal(raw[0], &segments); err != nil {
		return "", fmt.Errorf("cannot parse translation segments: %w", err)
	}

	var sb strings.Builder
	for _, seg := range segments {
		if len(seg) == 0 {
			continue
		}
		if s, ok := seg[0].(string); ok {
			sb.WriteString(s)
		}
	}
	return sb.String(), nil
}

// Prepare returns the text to put into the prompt. Translation is best
// effort: a 5xx is retried once, then any failure falls back to the original
// text.
func Prepare(ctx context.Context, tr Translator, text, source, target string, logger *slog.Logger) string {
	text = strings.TrimSpace(text)
	if text == "" || tr == nil || target == "" {
		return text
	}
	if source != "" && source != AutoDetect && strings.EqualFold(source, target) {
		return text
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	out, err := tr.Translate(ctx, text, source, target)
	var terr *Error
	if errors.As(err, &terr) && terr.IsRetryable() && ctx.Err() == nil {
		logger.Debug("translation failed, retrying once", "status", terr.StatusCode)
		out, err = tr.Translate(ctx, text, source, target)
	}
	if err != nil {
		logger.Warn("translation failed, using original query", "error", err)
		return text
	}
	out = strings.TrimSpace(out)
	if out == "" {
		logger.Warn("translation was empty, using original query")
		return text
	}
	if out != text {
		logger.Info("query translated", "original", text, "translated", out)
	}
	return out
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
