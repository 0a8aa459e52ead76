package export

import "sort"

// MergeMatches groups matched seconds into clips. Seconds whose distance to
// the previous clip's last second is at most gap+1 join that clip; duplicates
// are counted once. The result is ordered and non-overlapping.
func MergeMatches(matches []Match, gap int) []Clip {
	if len(matches) == 0 {
		return nil
	}
	if gap < 0 {
		gap = 0
	}

	sorted := make([]Match, len(matches))
	copy(sorted, matches)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Second < sorted[j].Second })

	var clips []Clip
	for _, m := range sorted {
		if m.Second < 0 {
			continue
		}
		if n := len(clips); n > 0 {
			last := &clips[n-1]
			if m.Second < last.EndSecond {
				continue
			}
			if m.Second-(last.EndSecond-1) <= gap+1 {
				last.EndSecond = m.Second + 1
				last.Matches++
				if m.HasScore && m.Score > last.BestScore {
					last.BestScore = m.Score
				}
				continue
			}
		}
		c := Clip{StartSecond: m.Second, EndSecond: m.Second + 1, Matches: 1}
		if m.HasScore {
			c.BestScore = m.Score
		}
		clips = append(clips, c)
	}
	return clips
}

// Pad widens every clip by handle seconds on each side, clamped to
// [0, duration) when duration is known, and re-merges clips that now touch.
func Pad(clips []Clip, handle int, duration float64) []Clip {
	if handle <= 0 || len(clips) == 0 {
		return clips
	}
	limit := -1
	if duration > 0 {
		limit = int(duration)
		if float64(limit) < duration {
			limit++
		}
	}

	var out []Clip
	for _, c := range clips {
		c.StartSecond -= handle
		if c.StartSecond < 0 {
			c.StartSecond = 0
		}
		c.EndSecond += handle
		if limit > 0 && c.EndSecond > limit {
			c.EndSecond = limit
		}
		if n := len(out); n > 0 && c.StartSecond <= out[n-1].EndSecond {
			prev := &out[n-1]
			prev.EndSecond = c.EndSecond
			prev.Matches += c.Matches
			if c.BestScore > prev.BestScore {
				prev.BestScore = c.BestScore
			}
			continue
		}
		out = append(out, c)
	}
	return out
}
