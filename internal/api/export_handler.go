package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/heimdex/framescout/internal/export"
	"github.com/heimdex/framescout/internal/history"
)

const maxGapSeconds = 60

func exportHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ExportRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		if req.Gap < 0 || req.Gap > maxGapSeconds || req.Handle < 0 || req.Handle > maxGapSeconds {
			WriteError(w, http.StatusBadRequest, "gap and handle must be between 0 and 60 seconds", "BAD_REQUEST")
			return
		}
		if req.FrameRate < 0 || req.FrameRate > 240 {
			WriteError(w, http.StatusBadRequest, "frame_rate out of range", "BAD_REQUEST")
			return
		}

		id := chi.URLParam(r, "id")
		sess, err := cfg.Search.Session(r.Context(), id)
		if errors.Is(err, history.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "search not found", "NOT_FOUND")
			return
		}
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		if sess.Status == history.StatusRunning {
			WriteError(w, http.StatusConflict, "search is still running", "SEARCH_ACTIVE")
			return
		}

		outputDir, err := export.ResolveOutputDir(req.OutputDir, cfg.ExportDir)
		if err != nil {
			WriteError(w, http.StatusBadRequest, err.Error(), "INVALID_OUTPUT_DIR")
			return
		}

		matches, err := cfg.Search.Matches(r.Context(), id)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list matches", "INTERNAL_ERROR")
			return
		}
		in := make([]export.Match, len(matches))
		for i, m := range matches {
			in[i] = export.Match{Second: m.Second, Score: m.Score, HasScore: m.HasScore}
		}

		title := req.Title
		if title == "" {
			title = "framescout " + sess.Query
		}

		res, err := export.WriteEDL(in, sess.VideoPath, sess.Duration, export.Options{
			Title:     title,
			OutputDir: outputDir,
			FrameRate: req.FrameRate,
			Gap:       req.Gap,
			Handle:    req.Handle,
		})
		if errors.Is(err, export.ErrNoMatches) {
			WriteError(w, http.StatusUnprocessableEntity, err.Error(), "NO_MATCHES")
			return
		}
		if err != nil {
			cfg.Logger.Error("export failed", "error", err, "session_id", id)
			WriteError(w, http.StatusInternalServerError, "failed to write export", "INTERNAL_ERROR")
			return
		}

		cfg.Logger.Info("export written", "session_id", id, "path", res.OutputPath, "clips", res.ClipCount)
		WriteJSON(w, http.StatusOK, res)
	}
}
