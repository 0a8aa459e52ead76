package scan

import (
	"context"
	"errors"
	"image"
	"image/color"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// fakeVideo serves solid-colour frames whose red channel encodes the second
// the video was last seeked to.
type fakeVideo struct {
	fps       float64
	frames    int
	decodable int // seconds with a readable frame; -1 means all

	mu      sync.Mutex
	posMs   int64
	seeks   []int64
	closed  atomic.Bool
	seekErr error
}

func newFakeVideo(seconds int) *fakeVideo {
	return &fakeVideo{fps: 25, frames: seconds * 25, decodable: -1}
}

func (v *fakeVideo) FrameRate() float64 { return v.fps }
func (v *fakeVideo) FrameCount() int    { return v.frames }

func (v *fakeVideo) SeekMilliseconds(ms int64) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.seekErr != nil {
		return v.seekErr
	}
	v.posMs = ms
	v.seeks = append(v.seeks, ms)
	return nil
}

func (v *fakeVideo) ReadFrame() (image.Image, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	second := int(v.posMs / 1000)
	if v.decodable >= 0 && second >= v.decodable {
		return nil, io.EOF
	}
	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(second), G: 10, B: 20, A: 255})
		}
	}
	return img, nil
}

func (v *fakeVideo) Close() error {
	v.closed.Store(true)
	return nil
}

func (v *fakeVideo) seekLog() []int64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]int64(nil), v.seeks...)
}

func openerFor(v Video) Opener {
	return OpenerFunc(func(ctx context.Context, path string) (Video, error) {
		return v, nil
	})
}

func failingOpener(err error) Opener {
	return OpenerFunc(func(ctx context.Context, path string) (Video, error) {
		return nil, err
	})
}

// fakeAnswerer answers from a per-second script and counts calls.
type fakeAnswerer struct {
	calls   atomic.Int32
	answers map[int]string
	fail    map[int]bool
	onCall  func(second int)
}

func (a *fakeAnswerer) Answer(ctx context.Context, img image.Image, prompt string) (string, error) {
	a.calls.Add(1)
	second := int(img.(*image.RGBA).RGBAAt(0, 0).R)
	if a.onCall != nil {
		a.onCall(second)
	}
	if a.fail[second] {
		return "", errors.New("model crashed")
	}
	if ans, ok := a.answers[second]; ok {
		return ans, nil
	}
	return "no", nil
}

// recorder is a thread-safe Sink.
type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) Emit(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) all() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func (r *recorder) ofType(t EventType) []Event {
	var out []Event
	for _, e := range r.all() {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}
