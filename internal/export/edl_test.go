package export

import (
	"strings"
	"testing"
)

func TestGenerateEDL_SingleClip(t *testing.T) {
	clips := []Clip{{StartSecond: 0, EndSecond: 2, Matches: 2}}

	edl := GenerateEDL(clips, "/media/intro.mp4", "Project One", 30.0)

	if !strings.Contains(edl, "TITLE: Project One") {
		t.Fatalf("missing title in EDL: %q", edl)
	}
	if !strings.Contains(edl, "FCM: NON-DROP FRAME") {
		t.Fatalf("missing non-drop-frame FCM: %q", edl)
	}
	if !strings.Contains(edl, "001  AX       V     C        00:00:00:00 00:00:02:00 00:00:00:00 00:00:02:00") {
		t.Fatalf("missing event line: %q", edl)
	}
	if !strings.Contains(edl, "* FROM CLIP NAME:  match 00:00:00-00:00:02") {
		t.Fatalf("missing clip name comment: %q", edl)
	}
	if !strings.Contains(edl, "* MEDIA PATH:  /media/intro.mp4") {
		t.Fatalf("missing media path comment: %q", edl)
	}
}

func TestGenerateEDL_RecordTimecodesAreContiguous(t *testing.T) {
	clips := []Clip{
		{StartSecond: 10, EndSecond: 12, Matches: 2},
		{StartSecond: 3600, EndSecond: 3605, Matches: 5, BestScore: 91},
	}

	edl := GenerateEDL(clips, "/a.mp4", "Two", 25.0)

	if !strings.Contains(edl, "001  AX       V     C        00:00:10:00 00:00:12:00 00:00:00:00 00:00:02:00") {
		t.Fatalf("missing first event: %q", edl)
	}
	if !strings.Contains(edl, "002  AX       V     C        01:00:00:00 01:00:05:00 00:00:02:00 00:00:07:00") {
		t.Fatalf("missing second event: %q", edl)
	}
	if !strings.Contains(edl, "match 01:00:00-01:00:05 (score 91)") {
		t.Fatalf("missing scored clip name: %q", edl)
	}
}

func TestGenerateEDL_DropFrame(t *testing.T) {
	edl := GenerateEDL([]Clip{{StartSecond: 0, EndSecond: 1}}, "/a.mp4", "DF", 29.97)
	if !strings.Contains(edl, "FCM: DROP FRAME") {
		t.Fatalf("expected drop frame header: %q", edl)
	}
}

func TestGenerateEDL_DefaultFrameRate(t *testing.T) {
	edl := GenerateEDL([]Clip{{StartSecond: 1, EndSecond: 2}}, "/a.mp4", "T", 0)
	if !strings.Contains(edl, "00:00:01:00 00:00:02:00") {
		t.Fatalf("zero frame rate should fall back to default: %q", edl)
	}
}

func TestMsToTimecode(t *testing.T) {
	tests := []struct {
		ms   int
		fps  int
		want string
	}{
		{0, 30, "00:00:00:00"},
		{500, 30, "00:00:00:15"},
		{61_000, 24, "00:01:01:00"},
		{3_723_040, 25, "01:02:03:01"},
	}
	for _, tc := range tests {
		if got := msToTimecode(tc.ms, tc.fps); got != tc.want {
			t.Errorf("msToTimecode(%d, %d) = %q, want %q", tc.ms, tc.fps, got, tc.want)
		}
	}
}
