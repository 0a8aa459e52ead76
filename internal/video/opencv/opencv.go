//go:build opencv

// Package opencv decodes videos in-process with OpenCV. Build with
// -tags opencv; it requires the OpenCV shared libraries at runtime.
package opencv

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os"

	"gocv.io/x/gocv"

	"github.com/heimdex/framescout/internal/scan"
)

// Opener opens videos with gocv.VideoCapture.
type Opener struct{}

func NewOpener() *Opener {
	return &Opener{}
}

func (o *Opener) Open(ctx context.Context, path string) (scan.Video, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, &scan.OpenError{Path: path, Err: err}
	}
	if info.IsDir() {
		return nil, &scan.OpenError{Path: path, Reason: "is a directory"}
	}

	capture, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return nil, &scan.OpenError{Path: path, Err: err}
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, &scan.OpenError{Path: path, Reason: "cannot be decoded"}
	}

	return &video{capture: capture, frame: gocv.NewMat()}, nil
}

type video struct {
	capture *gocv.VideoCapture
	frame   gocv.Mat
	closed  bool
}

func (v *video) FrameRate() float64 {
	return v.capture.Get(gocv.VideoCaptureFPS)
}

func (v *video) FrameCount() int {
	return int(v.capture.Get(gocv.VideoCaptureFrameCount))
}

func (v *video) SeekMilliseconds(ms int64) error {
	if v.closed {
		return errors.New("video closed")
	}
	if ms < 0 {
		return fmt.Errorf("negative position %dms", ms)
	}
	v.capture.Set(gocv.VideoCapturePosMsec, float64(ms))
	return nil
}

// ReadFrame converts OpenCV's BGR layout into a Go image.
func (v *video) ReadFrame() (image.Image, error) {
	if v.closed {
		return nil, errors.New("video closed")
	}
	if ok := v.capture.Read(&v.frame); !ok || v.frame.Empty() {
		return nil, io.EOF
	}
	img, err := v.frame.ToImage()
	if err != nil {
		return nil, fmt.Errorf("convert frame: %w", err)
	}
	return img, nil
}

func (v *video) Close() error {
	if v.closed {
		return nil
	}
	v.closed = true
	v.frame.Close()
	return v.capture.Close()
}
