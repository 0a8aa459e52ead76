package video

import (
	"bytes"
	"math"
	"testing"
)

func TestParseRate(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"25/1", 25},
		{"30000/1001", 30000.0 / 1001.0},
		{"24", 24},
		{"0/0", 0},
		{"", 0},
		{"abc", 0},
		{" 50/2 ", 25},
	}
	for _, tc := range tests {
		if got := ParseRate(tc.in); math.Abs(got-tc.want) > 1e-9 {
			t.Errorf("ParseRate(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestParseProbe_WithFrameCount(t *testing.T) {
	data := []byte(`{
		"streams": [{
			"codec_name": "h264", "width": 1920, "height": 1080,
			"avg_frame_rate": "30000/1001", "r_frame_rate": "30000/1001",
			"nb_frames": "300", "duration": "10.010000"
		}],
		"format": {"duration": "10.050000"}
	}`)
	res, err := ParseProbe(data)
	if err != nil {
		t.Fatalf("ParseProbe() error = %v", err)
	}
	if res.FrameCount != 300 || res.Width != 1920 || res.Codec != "h264" {
		t.Fatalf("ParseProbe() = %+v", res)
	}
	if math.Abs(res.FrameRate-29.97) > 0.01 {
		t.Fatalf("FrameRate = %v", res.FrameRate)
	}
	if res.Duration != 10.01 {
		t.Fatalf("Duration = %v, want stream duration", res.Duration)
	}
}

func TestParseProbe_DerivesFrameCount(t *testing.T) {
	// Matroska files usually carry neither nb_frames nor a stream duration.
	data := []byte(`{
		"streams": [{"codec_name": "vp9", "avg_frame_rate": "0/0", "r_frame_rate": "25/1"}],
		"format": {"duration": "4.000000"}
	}`)
	res, err := ParseProbe(data)
	if err != nil {
		t.Fatalf("ParseProbe() error = %v", err)
	}
	if res.FrameRate != 25 || res.FrameCount != 100 || res.Duration != 4 {
		t.Fatalf("ParseProbe() = %+v", res)
	}
}

func TestParseProbe_NoStream(t *testing.T) {
	if _, err := ParseProbe([]byte(`{"streams": [], "format": {}}`)); err == nil {
		t.Fatal("expected error for file without video stream")
	}
	if _, err := ParseProbe([]byte(`not json`)); err == nil {
		t.Fatal("expected error for malformed output")
	}
}

func TestFormatSeconds(t *testing.T) {
	if got := formatSeconds(61500); got != "61.500" {
		t.Fatalf("formatSeconds(61500) = %q", got)
	}
}

func TestLimitedWriter_KeepsTail(t *testing.T) {
	lw := &limitedWriter{w: new(bytes.Buffer), limit: 4}
	lw.Write([]byte("abcdef"))
	lw.Write([]byte("gh"))
	if got := lw.w.String(); got != "efgh" {
		t.Fatalf("tail = %q, want efgh", got)
	}
}
