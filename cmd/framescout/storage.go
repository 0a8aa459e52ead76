package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"

	"github.com/heimdex/framescout/internal/api"
	"github.com/heimdex/framescout/internal/config"
	"github.com/heimdex/framescout/internal/db"
	"github.com/heimdex/framescout/internal/history"
)

// openRepository opens Postgres when a database URL is configured and the
// local SQLite file otherwise. The returned func releases it.
func openRepository(ctx context.Context, cfg config.Config, logger *slog.Logger) (history.Repository, func(), error) {
	if url := cfg.DatabaseURL(); url != "" {
		repo, err := history.NewPostgresRepository(ctx, url)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		logger.Info("using postgres history store")
		return repo, repo.Close, nil
	}

	if err := os.MkdirAll(cfg.DataDir(), 0755); err != nil {
		return nil, nil, fmt.Errorf("failed to create data dir: %w", err)
	}
	database, err := db.New(cfg.DBPath(), logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return history.NewSQLiteRepository(database.Conn()), func() { database.Close() }, nil
}

func ensureAuthToken(ctx context.Context, repo history.Repository) (string, error) {
	existing, err := repo.GetConfig(ctx, api.AuthTokenKey)
	if err == nil && existing != "" {
		return existing, nil
	}

	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", err
	}
	token := hex.EncodeToString(tokenBytes)

	if err := repo.SetConfig(ctx, api.AuthTokenKey, token); err != nil {
		return "", err
	}
	return token, nil
}
