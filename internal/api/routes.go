package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/heimdex/framescout/internal/history"
	"github.com/heimdex/framescout/internal/metrics"
	"github.com/heimdex/framescout/internal/scan"
	"github.com/heimdex/framescout/internal/search"
	"github.com/heimdex/framescout/internal/translate"
	"github.com/heimdex/framescout/internal/video"
)

const maxListLimit = 200

func NewRouter(cfg ServerConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(CORSAllowlist())

	r.Get("/health", healthHandler(cfg))
	r.Handle("/metrics", metrics.Handler())

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.Repository, cfg.Logger, false))

		r.Get("/status", statusHandler(cfg))
		r.Get("/doctor", doctorHandler(cfg))
		r.Post("/translate", translateHandler(cfg))

		r.Post("/searches", startSearchHandler(cfg))
		r.Get("/searches", listSearchesHandler(cfg))
		r.Delete("/searches/active", stopSearchHandler(cfg))
		r.Get("/searches/{id}", getSearchHandler(cfg))
		r.Get("/searches/{id}/matches", listMatchesHandler(cfg))
		r.Post("/searches/{id}/export", exportHandler(cfg))

		r.Group(func(r chi.Router) {
			r.Use(LoopbackGuard())
			r.Get("/searches/{id}/frame", frameHandler(cfg))
			r.Get("/searches/{id}/video", videoHandler(cfg))
			r.Head("/searches/{id}/video", videoHandler(cfg))
		})
	})

	if cfg.Hub != nil {
		r.With(AuthMiddleware(cfg.Repository, cfg.Logger, true)).Get("/events", cfg.Hub.ServeHTTP)
	}

	return r
}

func healthHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uptime := int64(time.Since(cfg.StartTime).Seconds())
		WriteJSON(w, http.StatusOK, HealthResponse{
			Status:  "ok",
			Version: cfg.Version,
			UptimeS: uptime,
		})
	}
}

func statusHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		live := cfg.Search.Status()
		resp := StatusResponse{State: "idle", Search: live}

		if live.Running {
			resp.State = "searching"
		} else if recent, err := cfg.Search.Sessions(r.Context(), 1); err == nil && len(recent) > 0 {
			if recent[0].Status == history.StatusFailed {
				resp.State = "error"
				resp.LastError = recent[0].Error
			}
		}

		if cfg.Hub != nil {
			resp.Clients = cfg.Hub.ClientCount()
		}
		// Only a cached probe is reported; /doctor runs a fresh one.
		if cfg.Doctor != nil {
			if report := cfg.Doctor.Peek(); report != nil && !report.ProbedAt.IsZero() {
				resp.Environment = ReportToResponse(report)
			}
		}

		WriteJSON(w, http.StatusOK, resp)
	}
}

func doctorHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cfg.Doctor == nil {
			WriteError(w, http.StatusServiceUnavailable, "doctor not configured", "UNAVAILABLE")
			return
		}
		if r.URL.Query().Get("refresh") == "true" {
			cfg.Doctor.Invalidate()
		}
		report, err := cfg.Doctor.Get(r.Context())
		if err != nil || report == nil {
			WriteError(w, http.StatusServiceUnavailable, "environment probe failed", "UNAVAILABLE")
			return
		}
		WriteJSON(w, http.StatusOK, report)
	}
}

func translateHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req TranslateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		if strings.TrimSpace(req.Text) == "" {
			WriteError(w, http.StatusBadRequest, "text is required", "BAD_REQUEST")
			return
		}
		if req.Source == "" {
			req.Source = cfg.SourceLang
		}
		if req.Target == "" {
			req.Target = cfg.TargetLang
		}

		translated := translate.Prepare(r.Context(), cfg.Translator, req.Text, req.Source, req.Target, cfg.Logger)
		WriteJSON(w, http.StatusOK, TranslateResponse{
			Text:       req.Text,
			Translated: translated,
			Source:     req.Source,
			Target:     req.Target,
		})
	}
}

func startSearchHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req StartSearchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		policy, err := scan.ParsePolicy(req.Policy, req.Threshold)
		if err != nil {
			WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
			return
		}

		sess, err := cfg.Search.Start(r.Context(), search.Request{
			VideoPath:  req.VideoPath,
			Query:      req.Query,
			SourceLang: req.SourceLang,
			Policy:     policy,
		})
		switch {
		case errors.Is(err, search.ErrSearchActive):
			WriteError(w, http.StatusConflict, err.Error(), "SEARCH_ACTIVE")
			return
		case errors.Is(err, search.ErrInvalidRequest):
			WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
			return
		case err != nil:
			cfg.Logger.Error("failed to start search", "error", err)
			WriteError(w, http.StatusInternalServerError, "failed to start search", "INTERNAL_ERROR")
			return
		}

		WriteJSON(w, http.StatusAccepted, SessionToResponse(sess))
	}
}

func stopSearchHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, StopResponse{Stopped: cfg.Search.Stop()})
	}
}

func listSearchesHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 50
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 || n > maxListLimit {
				WriteError(w, http.StatusBadRequest, "limit must be between 1 and 200", "BAD_REQUEST")
				return
			}
			limit = n
		}

		sessions, err := cfg.Search.Sessions(r.Context(), limit)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list searches", "INTERNAL_ERROR")
			return
		}

		resp := SessionsResponse{Sessions: make([]SessionResponse, len(sessions))}
		for i, s := range sessions {
			resp.Sessions[i] = SessionToResponse(s)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func getSearchHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := loadSession(w, r, cfg)
		if !ok {
			return
		}
		WriteJSON(w, http.StatusOK, SessionToResponse(sess))
	}
}

func listMatchesHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		matches, err := cfg.Search.Matches(r.Context(), id)
		if errors.Is(err, history.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "search not found", "NOT_FOUND")
			return
		}
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list matches", "INTERNAL_ERROR")
			return
		}

		resp := MatchesResponse{SessionID: id, Matches: make([]MatchResponse, len(matches))}
		for i, m := range matches {
			resp.Matches[i] = MatchToResponse(m)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func frameHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		second, err := strconv.Atoi(r.URL.Query().Get("t"))
		if err != nil {
			WriteError(w, http.StatusBadRequest, "t must be a whole second", "BAD_REQUEST")
			return
		}

		data, err := cfg.Search.Frame(r.Context(), chi.URLParam(r, "id"), second)
		var openErr *scan.OpenError
		switch {
		case errors.Is(err, history.ErrNotFound):
			WriteError(w, http.StatusNotFound, "search not found", "NOT_FOUND")
			return
		case errors.Is(err, search.ErrInvalidRequest), errors.Is(err, video.ErrNoFrame):
			WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
			return
		case errors.As(err, &openErr):
			WriteError(w, http.StatusNotFound, openErr.Error(), "VIDEO_UNAVAILABLE")
			return
		case err != nil:
			cfg.Logger.Error("frame extraction failed", "error", err)
			WriteError(w, http.StatusInternalServerError, "failed to extract frame", "INTERNAL_ERROR")
			return
		}

		w.Header().Set("Content-Type", "image/jpeg")
		w.Header().Set("Cache-Control", "private, max-age=3600")
		w.WriteHeader(http.StatusOK)
		w.Write(data)
	}
}

func videoHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := loadSession(w, r, cfg)
		if !ok {
			return
		}
		if err := cfg.Preview.ServeVideo(w, r, sess.VideoPath); err != nil {
			cfg.Logger.Error("preview error", "error", err, "session_id", sess.ID)
		}
	}
}

func loadSession(w http.ResponseWriter, r *http.Request, cfg ServerConfig) (*history.Session, bool) {
	id := chi.URLParam(r, "id")
	if id == "" {
		WriteError(w, http.StatusBadRequest, "search id required", "BAD_REQUEST")
		return nil, false
	}
	sess, err := cfg.Search.Session(r.Context(), id)
	if errors.Is(err, history.ErrNotFound) {
		WriteError(w, http.StatusNotFound, "search not found", "NOT_FOUND")
		return nil, false
	}
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
		return nil, false
	}
	return sess, true
}
