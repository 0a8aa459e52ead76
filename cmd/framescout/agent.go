package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/heimdex/framescout/internal/api"
	"github.com/heimdex/framescout/internal/config"
	"github.com/heimdex/framescout/internal/doctor"
	"github.com/heimdex/framescout/internal/logging"
	"github.com/heimdex/framescout/internal/preview"
	"github.com/heimdex/framescout/internal/ui"
)

func runAgent(cfg config.Config) error {
	startTime := time.Now()

	logger := logging.NewLogger(cfg.LogLevel(), cfg.LogFormat())
	logger.Info("starting framescout agent",
		"version", config.Version,
		"data_dir", logging.SanitizePath(cfg.DataDir()),
		"decoder", decoderName,
		"model", cfg.Model(),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	repo, closeRepo, err := openRepository(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeRepo()

	authToken, err := ensureAuthToken(ctx, repo)
	if err != nil {
		return fmt.Errorf("failed to ensure auth token: %w", err)
	}

	fmt.Println()
	fmt.Println("╔═══════════════════════════════════════════════════════════╗")
	fmt.Printf("║  FRAMESCOUT %-45s ║\n", "v"+config.Version)
	fmt.Println("╠═══════════════════════════════════════════════════════════╣")
	fmt.Printf("║  API URL:    http://127.0.0.1:%-27d ║\n", cfg.Port())
	fmt.Printf("║  Auth Token: %-45s ║\n", authToken)
	fmt.Printf("║  Model:      %-45s ║\n", cfg.Model())
	fmt.Println("╚═══════════════════════════════════════════════════════════╝")
	fmt.Println()

	answerer, err := newAnswerer(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create inference client: %w", err)
	}

	doc := doctor.NewCachedDoctor(doctor.New(doctor.Config{
		FFmpegPath:  cfg.FFmpegPath(),
		FFprobePath: cfg.FFprobePath(),
		Models:      answerer,
		Timeout:     cfg.DoctorTimeout(),
		Logger:      logger,
	}), logger)

	go func() {
		probeCtx, probeCancel := context.WithTimeout(ctx, cfg.DoctorTimeout())
		defer probeCancel()
		report, err := doc.Refresh(probeCtx)
		if err != nil {
			logger.Warn("initial environment probe failed", "error", err)
			return
		}
		if !report.CanSearch() {
			logger.Warn("environment incomplete, searches will fail until fixed",
				"ffmpeg", report.FFmpeg.Available,
				"ollama", report.Ollama.Available,
				"model", report.Model.Name,
				"model_available", report.Model.Available,
			)
		}
	}()

	svc := newSearchService(cfg, repo, answerer, logger)

	hub := api.NewHub(logging.WithComponent(logger, "events"))
	defer svc.Subscribe(hub)()

	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		svc.Run(ctx)
	}()

	apiServer := api.NewServer(api.ServerConfig{
		Port:       cfg.Port(),
		Search:     svc,
		Repository: repo,
		Doctor:     doc,
		Hub:        hub,
		Preview:    preview.NewServer(logger),
		Translator: newTranslator(cfg, logger),
		SourceLang: cfg.SourceLang(),
		TargetLang: cfg.TargetLang(),
		ExportDir:  cfg.ExportDir(),
		Version:    config.Version,
		Logger:     logger,
		StartTime:  startTime,
	})

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- apiServer.Start()
	}()

	quitCh := make(chan struct{})
	var quitOnce sync.Once
	quit := func() { quitOnce.Do(func() { close(quitCh) }) }

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("received shutdown signal", "signal", sig)
			quit()
		case err := <-serverErr:
			if err != nil {
				logger.Error("HTTP server error", "error", err)
			}
			quit()
		case <-quitCh:
		}
	}()

	var tray *ui.Tray
	if cfg.Headless() {
		logger.Info("running in headless mode (no system tray)")
	} else {
		tray = ui.NewTray(ui.TrayConfig{
			Search: svc,
			Logger: logging.WithComponent(logger, "tray"),
			OnQuit: quit,
		})
		defer svc.Subscribe(tray)()
		go tray.Run()
	}

	<-quitCh

	logger.Info("initiating graceful shutdown")
	cancel()

	select {
	case <-runDone:
	case <-time.After(10 * time.Second):
		logger.Warn("search loop did not stop in time")
	}
	hub.Close()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown HTTP server", "error", err)
	}
	if tray != nil {
		tray.Quit()
	}

	logger.Info("shutdown complete")
	return nil
}
