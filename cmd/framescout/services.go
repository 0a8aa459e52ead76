package main

import (
	"log/slog"

	"github.com/heimdex/framescout/internal/config"
	"github.com/heimdex/framescout/internal/history"
	"github.com/heimdex/framescout/internal/inference"
	"github.com/heimdex/framescout/internal/search"
	"github.com/heimdex/framescout/internal/translate"
)

func newAnswerer(cfg config.Config, logger *slog.Logger) (*inference.OllamaAnswerer, error) {
	return inference.NewOllamaAnswerer(inference.Config{
		Host:    cfg.OllamaHost(),
		Model:   cfg.Model(),
		Timeout: cfg.InferenceTimeout(),
		Logger:  logger,
	})
}

func newTranslator(cfg config.Config, logger *slog.Logger) translate.Translator {
	if !cfg.TranslateEnabled() {
		return nil
	}
	return translate.NewGoogleTranslator(cfg.TranslateURL(), logger)
}

func newSearchService(cfg config.Config, repo history.Repository, answerer *inference.OllamaAnswerer, logger *slog.Logger) *search.Service {
	return search.New(search.Config{
		Repo:        repo,
		Opener:      newOpener(cfg, logger),
		Answerer:    answerer,
		Translator:  newTranslator(cfg, logger),
		SourceLang:  cfg.SourceLang(),
		TargetLang:  cfg.TargetLang(),
		EventBuffer: cfg.EventBuffer(),
		Logger:      logger,
	})
}
