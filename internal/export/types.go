// Package export turns the matched seconds of a search into an edit decision
// list that NLEs such as Premiere and Resolve can import.
package export

// Clip is a run of matched seconds, [StartSecond, EndSecond).
type Clip struct {
	StartSecond int `json:"start_second"`
	EndSecond   int `json:"end_second"`
	Matches     int `json:"matches"`
	BestScore   int `json:"best_score,omitempty"`
}

// Options controls how matches become clips and where the file goes.
type Options struct {
	Title     string  `json:"title"`
	OutputDir string  `json:"output_dir"`
	FrameRate float64 `json:"frame_rate"`
	// Gap merges matches up to this many seconds apart into one clip.
	Gap int `json:"gap"`
	// Handle pads every clip on both sides by this many seconds.
	Handle int `json:"handle"`
}

// Result describes a written export.
type Result struct {
	Status     string `json:"status"`
	Format     string `json:"format"`
	OutputPath string `json:"output_path"`
	ClipCount  int    `json:"clip_count"`
	Clips      []Clip `json:"clips"`
}

// Match is the minimal view of a matched second the exporter needs.
type Match struct {
	Second   int
	Score    int
	HasScore bool
}
