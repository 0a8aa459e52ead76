//go:build opencv

package main

import (
	"log/slog"

	"github.com/heimdex/framescout/internal/config"
	"github.com/heimdex/framescout/internal/scan"
	"github.com/heimdex/framescout/internal/video/opencv"
)

const decoderName = "opencv"

func newOpener(cfg config.Config, logger *slog.Logger) scan.Opener {
	return opencv.NewOpener()
}
