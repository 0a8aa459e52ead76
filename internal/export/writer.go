package export

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrNoMatches is returned when there is nothing to export.
var ErrNoMatches = errors.New("search has no matches to export")

// WriteEDL merges matches into clips and writes them as <title>.edl. The
// output directory must already have been resolved with ResolveOutputDir.
func WriteEDL(matches []Match, mediaPath string, duration float64, opts Options) (Result, error) {
	clips := Pad(MergeMatches(matches, opts.Gap), opts.Handle, duration)
	if len(clips) == 0 {
		return Result{}, ErrNoMatches
	}

	title := SanitizeTitle(opts.Title)
	if title == "" {
		title = "framescout_export"
	}
	frameRate := opts.FrameRate
	if frameRate <= 0 {
		frameRate = DefaultFrameRate
	}

	edl := GenerateEDL(clips, mediaPath, title, frameRate)
	outputPath := filepath.Join(opts.OutputDir, title+".edl")
	if err := os.WriteFile(outputPath, []byte(edl), 0o644); err != nil {
		return Result{}, fmt.Errorf("write export file: %w", err)
	}

	return Result{
		Status:     "ok",
		Format:     "edl",
		OutputPath: outputPath,
		ClipCount:  len(clips),
		Clips:      clips,
	}, nil
}
