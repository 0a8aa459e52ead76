package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/heimdex/framescout/internal/doctor"
	"github.com/heimdex/framescout/internal/history"
	"github.com/heimdex/framescout/internal/preview"
	"github.com/heimdex/framescout/internal/search"
	"github.com/heimdex/framescout/internal/translate"
)

// Searcher is the part of the search service the API drives.
type Searcher interface {
	Start(ctx context.Context, req search.Request) (*history.Session, error)
	Stop() bool
	Status() search.Status
	Sessions(ctx context.Context, limit int) ([]*history.Session, error)
	Session(ctx context.Context, id string) (*history.Session, error)
	Matches(ctx context.Context, id string) ([]*history.Match, error)
	Frame(ctx context.Context, id string, second int) ([]byte, error)
}

type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

type ServerConfig struct {
	Port       int
	Search     Searcher
	Repository history.Repository
	Doctor     *doctor.CachedDoctor
	Hub        *Hub
	Preview    *preview.Server
	Translator translate.Translator
	SourceLang string
	TargetLang string
	ExportDir  string
	Version    string
	Logger     *slog.Logger
	StartTime  time.Time
}

func NewServer(cfg ServerConfig) *Server {
	router := NewRouter(cfg)

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf("127.0.0.1:%d", cfg.Port),
			Handler:      router,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 0,
			IdleTimeout:  60 * time.Second,
		},
		logger: cfg.Logger,
	}
}

func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
	err := s.httpServer.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) Addr() string {
	return s.httpServer.Addr
}
