// Package video opens videos for frame sampling by shelling out to ffprobe
// and ffmpeg. The opencv subpackage provides an in-process alternative.
package video

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ProbeResult is the subset of ffprobe output the sampler needs.
type ProbeResult struct {
	FrameRate  float64
	FrameCount int
	Duration   float64
	Width      int
	Height     int
	Codec      string
}

type ffprobeOutput struct {
	Streams []struct {
		CodecName    string `json:"codec_name"`
		Width        int    `json:"width"`
		Height       int    `json:"height"`
		AvgFrameRate string `json:"avg_frame_rate"`
		RFrameRate   string `json:"r_frame_rate"`
		NbFrames     string `json:"nb_frames"`
		Duration     string `json:"duration"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// ParseProbe decodes `ffprobe -of json` output for the first video stream.
// When the container does not record a frame count it is derived from the
// duration.
func ParseProbe(data []byte) (ProbeResult, error) {
	var out ffprobeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return ProbeResult{}, fmt.Errorf("cannot parse ffprobe JSON: %w", err)
	}
	if len(out.Streams) == 0 {
		return ProbeResult{}, fmt.Errorf("no video stream")
	}
	st := out.Streams[0]

	res := ProbeResult{
		Width:  st.Width,
		Height: st.Height,
		Codec:  st.CodecName,
	}

	res.FrameRate = ParseRate(st.AvgFrameRate)
	if res.FrameRate <= 0 {
		res.FrameRate = ParseRate(st.RFrameRate)
	}

	res.Duration = parseFloat(st.Duration)
	if res.Duration <= 0 {
		res.Duration = parseFloat(out.Format.Duration)
	}

	if n, err := strconv.Atoi(strings.TrimSpace(st.NbFrames)); err == nil && n >= 0 {
		res.FrameCount = n
	} else if res.FrameRate > 0 && res.Duration > 0 {
		res.FrameCount = int(math.Round(res.Duration * res.FrameRate))
	}

	return res, nil
}

// ParseRate parses ffprobe rates such as "30000/1001" or "25". It returns 0
// for anything unusable, including "0/0".
func ParseRate(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	num, den, found := strings.Cut(s, "/")
	n := parseFloat(num)
	if !found {
		return n
	}
	d := parseFloat(den)
	if d == 0 {
		return 0
	}
	return n / d
}

func parseFloat(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}
