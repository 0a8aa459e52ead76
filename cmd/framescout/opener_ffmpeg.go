//go:build !opencv

package main

import (
	"log/slog"

	"github.com/heimdex/framescout/internal/config"
	"github.com/heimdex/framescout/internal/scan"
	"github.com/heimdex/framescout/internal/video"
)

const decoderName = "ffmpeg"

func newOpener(cfg config.Config, logger *slog.Logger) scan.Opener {
	return video.NewFFmpegOpener(video.Config{
		FFmpegPath:  cfg.FFmpegPath(),
		FFprobePath: cfg.FFprobePath(),
		Logger:      logger,
	})
}
