package search

import (
	"context"
	"image"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/heimdex/framescout/internal/db"
	"github.com/heimdex/framescout/internal/history"
	"github.com/heimdex/framescout/internal/scan"
)

// stubVideo serves frames whose red channel is the second sought.
type stubVideo struct {
	seconds int
	posMs   int64
}

func (v *stubVideo) FrameRate() float64 { return 1 }
func (v *stubVideo) FrameCount() int    { return v.seconds }

func (v *stubVideo) SeekMilliseconds(ms int64) error {
	v.posMs = ms
	return nil
}

func (v *stubVideo) ReadFrame() (image.Image, error) {
	second := int(v.posMs / 1000)
	if second >= v.seconds {
		return nil, io.EOF
	}
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	for y := 0; y < 2; y++ {
		for x := 0; x < 2; x++ {
			img.Set(x, y, color.RGBA{R: uint8(second), A: 255})
		}
	}
	return img, nil
}

func (v *stubVideo) Close() error { return nil }

func stubOpener(seconds int) scan.Opener {
	return scan.OpenerFunc(func(ctx context.Context, path string) (scan.Video, error) {
		return &stubVideo{seconds: seconds}, nil
	})
}

// scriptedAnswerer says yes for the listed seconds and can hold every call
// until released.
type scriptedAnswerer struct {
	yes     map[int]bool
	calls   atomic.Int32
	prompts chan string
	gate    chan struct{}
}

func (a *scriptedAnswerer) Answer(ctx context.Context, img image.Image, prompt string) (string, error) {
	a.calls.Add(1)
	if a.prompts != nil {
		select {
		case a.prompts <- prompt:
		default:
		}
	}
	if a.gate != nil {
		select {
		case <-a.gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	second := int(img.(*image.RGBA).RGBAAt(0, 0).R)
	if a.yes[second] {
		return "yes", nil
	}
	return "no", nil
}

// collector records notifications and signals finished ones.
type collector struct {
	mu       sync.Mutex
	all      []Notification
	finished chan Notification
}

func newCollector() *collector {
	return &collector{finished: make(chan Notification, 8)}
}

func (c *collector) Publish(n Notification) {
	c.mu.Lock()
	c.all = append(c.all, n)
	c.mu.Unlock()
	if n.Type == NotifyFinished {
		c.finished <- n
	}
}

func (c *collector) types() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for _, n := range c.all {
		out = append(out, n.Type)
	}
	return out
}

func (c *collector) wait(t *testing.T) Notification {
	t.Helper()
	select {
	case n := <-c.finished:
		return n
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for finished notification")
		return Notification{}
	}
}

func newTestRepo(t *testing.T) history.Repository {
	t.Helper()
	database, err := db.New(filepath.Join(t.TempDir(), "test.db"), nil)
	if err != nil {
		t.Fatalf("db.New() error = %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return history.NewSQLiteRepository(database.Conn())
}

func touchVideo(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clip.mp4")
	if err := os.WriteFile(path, []byte("not really a video"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

type fakeTranslator struct {
	out string
}

func (f fakeTranslator) Translate(ctx context.Context, text, source, target string) (string, error) {
	return f.out, nil
}
