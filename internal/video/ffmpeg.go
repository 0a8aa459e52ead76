package video

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/png"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"time"

	"github.com/heimdex/framescout/internal/logging"
	"github.com/heimdex/framescout/internal/scan"
)

const (
	maxStderrBytes      = 8 * 1024
	defaultProbeTimeout = 30 * time.Second
	defaultFrameTimeout = 30 * time.Second
)

// Config holds the opener's configuration.
type Config struct {
	FFmpegPath   string // default "ffmpeg"
	FFprobePath  string // default "ffprobe"
	ProbeTimeout time.Duration
	FrameTimeout time.Duration
	Logger       *slog.Logger
}

// FFmpegOpener opens videos through the ffprobe and ffmpeg binaries. Each
// ReadFrame is a single ffmpeg invocation with an input seek, which keeps
// memory flat regardless of resolution or length.
type FFmpegOpener struct {
	cfg Config
}

func NewFFmpegOpener(cfg Config) *FFmpegOpener {
	if cfg.FFmpegPath == "" {
		cfg.FFmpegPath = "ffmpeg"
	}
	if cfg.FFprobePath == "" {
		cfg.FFprobePath = "ffprobe"
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = defaultProbeTimeout
	}
	if cfg.FrameTimeout <= 0 {
		cfg.FrameTimeout = defaultFrameTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	return &FFmpegOpener{cfg: cfg}
}

// Open probes the file. Missing files, directories and files without a
// video stream are reported as *scan.OpenError.
func (o *FFmpegOpener) Open(ctx context.Context, path string) (scan.Video, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, &scan.OpenError{Path: path, Err: err}
	}
	if info.IsDir() {
		return nil, &scan.OpenError{Path: path, Reason: "is a directory"}
	}

	probe, err := o.Probe(ctx, path)
	if err != nil {
		return nil, &scan.OpenError{Path: path, Err: err}
	}

	o.cfg.Logger.Debug("video probed",
		"path", logging.SanitizePath(path),
		"fps", probe.FrameRate,
		"frames", probe.FrameCount,
		"codec", probe.Codec,
		"width", probe.Width,
		"height", probe.Height,
	)

	return &ffmpegVideo{
		opener: o,
		ctx:    ctx,
		path:   path,
		probe:  probe,
	}, nil
}

// Probe runs ffprobe on the first video stream.
func (o *FFmpegOpener) Probe(ctx context.Context, path string) (ProbeResult, error) {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.ProbeTimeout)
	defer cancel()

	stdout, err := o.run(ctx, o.cfg.FFprobePath,
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=codec_name,width,height,avg_frame_rate,r_frame_rate,nb_frames,duration:format=duration",
		"-of", "json",
		path,
	)
	if err != nil {
		return ProbeResult{}, err
	}
	return ParseProbe(stdout)
}

// frameAt decodes the first frame at or after ms. An empty result means the
// position is past the last decodable frame.
func (o *FFmpegOpener) frameAt(ctx context.Context, path string, ms int64) (image.Image, error) {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.FrameTimeout)
	defer cancel()

	stdout, err := o.run(ctx, o.cfg.FFmpegPath,
		"-v", "error",
		"-ss", formatSeconds(ms),
		"-i", path,
		"-frames:v", "1",
		"-f", "image2pipe",
		"-vcodec", "png",
		"-",
	)
	if err != nil {
		return nil, err
	}
	if len(stdout) == 0 {
		return nil, io.EOF
	}

	img, _, err := image.Decode(bytes.NewReader(stdout))
	if err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	return img, nil
}

// run executes a binary and returns stdout, keeping a bounded stderr tail for
// the error message.
func (o *FFmpegOpener) run(ctx context.Context, bin string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, bin, args...)

	var stdout, stderrBuf bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &limitedWriter{w: &stderrBuf, limit: maxStderrBytes}

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, fmt.Errorf("%s exited %d: %s", bin, exitErr.ExitCode(), truncate(stderrBuf.String(), 512))
		}
		return nil, fmt.Errorf("run %s: %w", bin, err)
	}
	return stdout.Bytes(), nil
}

type ffmpegVideo struct {
	opener *FFmpegOpener
	ctx    context.Context
	path   string
	probe  ProbeResult
	posMs  int64
	closed bool
}

func (v *ffmpegVideo) FrameRate() float64 { return v.probe.FrameRate }
func (v *ffmpegVideo) FrameCount() int    { return v.probe.FrameCount }

func (v *ffmpegVideo) SeekMilliseconds(ms int64) error {
	if v.closed {
		return errors.New("video closed")
	}
	if ms < 0 {
		return fmt.Errorf("negative position %dms", ms)
	}
	v.posMs = ms
	return nil
}

func (v *ffmpegVideo) ReadFrame() (image.Image, error) {
	if v.closed {
		return nil, errors.New("video closed")
	}
	return v.opener.frameAt(v.ctx, v.path, v.posMs)
}

func (v *ffmpegVideo) Close() error {
	v.closed = true
	return nil
}

func formatSeconds(ms int64) string {
	return strconv.FormatFloat(float64(ms)/1000, 'f', 3, 64)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return "..." + s[len(s)-maxLen:]
}

// limitedWriter is an io.Writer that keeps only the last `limit` bytes.
type limitedWriter struct {
	w     *bytes.Buffer
	limit int
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	n := len(p)
	lw.w.Write(p)
	if lw.w.Len() > lw.limit {
		b := lw.w.Bytes()
		lw.w.Reset()
		lw.w.Write(b[len(b)-lw.limit:])
	}
	return n, nil
}
