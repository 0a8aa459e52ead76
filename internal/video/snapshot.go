package video

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"

	"github.com/heimdex/framescout/internal/scan"
)

// ErrNoFrame means the video has no frame at the requested second.
var ErrNoFrame = errors.New("no frame at that position")

// Snapshot decodes the frame at the given whole second, the same frame the
// sampler analysed for that second.
func Snapshot(ctx context.Context, opener scan.Opener, path string, second int) (image.Image, error) {
	if second < 0 {
		return nil, fmt.Errorf("negative second %d", second)
	}
	v, err := opener.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer v.Close()

	if err := v.SeekMilliseconds(int64(second) * 1000); err != nil {
		return nil, fmt.Errorf("seek to %ds: %w", second, err)
	}
	img, err := v.ReadFrame()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %ds", ErrNoFrame, second)
	}
	if err != nil {
		return nil, fmt.Errorf("read frame at %ds: %w", second, err)
	}
	return img, nil
}
