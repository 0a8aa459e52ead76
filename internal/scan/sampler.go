package scan

import (
	"context"
	"fmt"
	"image"
	"image/draw"
	"math"
)

// Video is an opened, seekable video source. Implementations are not safe for
// concurrent use; a session owns its Video exclusively.
type Video interface {
	FrameRate() float64
	FrameCount() int
	SeekMilliseconds(ms int64) error
	// ReadFrame decodes the frame at the current position. It returns io.EOF
	// once the stream has no more decodable frames.
	ReadFrame() (image.Image, error)
	Close() error
}

// Opener is the video decoding collaborator.
type Opener interface {
	Open(ctx context.Context, path string) (Video, error)
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(ctx context.Context, path string) (Video, error)

func (f OpenerFunc) Open(ctx context.Context, path string) (Video, error) {
	return f(ctx, path)
}

// SamplePoint is one decoded frame and the whole second it was taken at.
type SamplePoint struct {
	Second int
	Image  *image.RGBA
}

// Sampler yields one frame per second of video, in order, exactly once.
type Sampler struct {
	video    Video
	duration float64
	next     int
	done     bool
	err      error
}

// NewSampler binds a sampler to an opened video.
func NewSampler(v Video) (*Sampler, error) {
	fps := v.FrameRate()
	if fps <= 0 || math.IsNaN(fps) || math.IsInf(fps, 0) {
		return nil, &OpenError{Reason: fmt.Sprintf("invalid frame rate %v", fps)}
	}
	frames := v.FrameCount()
	if frames < 0 {
		return nil, &OpenError{Reason: fmt.Sprintf("invalid frame count %d", frames)}
	}

	return &Sampler{
		video:    v,
		duration: float64(frames) / fps,
	}, nil
}

// Duration is the container duration in seconds.
func (s *Sampler) Duration() float64 {
	return s.duration
}

// Expected is the number of seconds the sampler will attempt.
func (s *Sampler) Expected() int {
	return int(math.Ceil(s.duration))
}

// Err reports why the sequence ended early, if it did. It is informational:
// containers often overstate how many frames are decodable.
func (s *Sampler) Err() error {
	return s.err
}

// Next seeks to the next whole second and decodes one frame. It returns false
// when the video is exhausted or a frame could not be read.
func (s *Sampler) Next() (SamplePoint, bool) {
	if s.done {
		return SamplePoint{}, false
	}
	if float64(s.next) >= s.duration {
		s.done = true
		return SamplePoint{}, false
	}

	second := s.next
	if err := s.video.SeekMilliseconds(int64(second) * 1000); err != nil {
		s.stop(fmt.Errorf("seek to %ds: %w", second, err))
		return SamplePoint{}, false
	}

	frame, err := s.video.ReadFrame()
	if err != nil {
		s.stop(fmt.Errorf("read frame at %ds: %w", second, err))
		return SamplePoint{}, false
	}
	if frame == nil {
		s.stop(fmt.Errorf("read frame at %ds: empty frame", second))
		return SamplePoint{}, false
	}

	s.next++
	return SamplePoint{Second: second, Image: toRGBA(frame)}, true
}

func (s *Sampler) stop(err error) {
	s.done = true
	s.err = err
}

// toRGBA normalises any decoded layout to 8-bit RGBA.
func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Rect.Min == (image.Point{}) {
		return rgba
	}
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}
