package export

import (
	"fmt"
	"math"
	"strings"
)

const DefaultFrameRate = 30.0

// GenerateEDL renders clips of one source video as a CMX3600 EDL. Record
// timecodes are laid end to end from zero.
func GenerateEDL(clips []Clip, mediaPath, title string, frameRate float64) string {
	fps := int(math.Round(frameRate))
	if fps <= 0 {
		fps = int(DefaultFrameRate)
	}

	isDropFrame := math.Abs(frameRate-29.97) < 0.01 || math.Abs(frameRate-59.94) < 0.01

	lines := []string{fmt.Sprintf("TITLE: %s", title)}
	if isDropFrame {
		lines = append(lines, "FCM: DROP FRAME")
	} else {
		lines = append(lines, "FCM: NON-DROP FRAME")
	}
	lines = append(lines, "")

	recordOffset := 0
	for i, clip := range clips {
		length := clip.EndSecond - clip.StartSecond
		lines = append(lines,
			fmt.Sprintf("%03d  %-8s %-5s C        %s %s %s %s", i+1, "AX", "V",
				secondsToTimecode(clip.StartSecond, fps),
				secondsToTimecode(clip.EndSecond, fps),
				secondsToTimecode(recordOffset, fps),
				secondsToTimecode(recordOffset+length, fps)),
			fmt.Sprintf("* FROM CLIP NAME:  %s", clipName(clip)),
			fmt.Sprintf("* MEDIA PATH:  %s", mediaPath),
		)
		recordOffset += length
	}

	lines = append(lines, "")
	return strings.Join(lines, "\n")
}

func clipName(c Clip) string {
	name := fmt.Sprintf("match %s-%s", clockTime(c.StartSecond), clockTime(c.EndSecond))
	if c.BestScore > 0 {
		name += fmt.Sprintf(" (score %d)", c.BestScore)
	}
	return name
}

func clockTime(second int) string {
	return fmt.Sprintf("%02d:%02d:%02d", second/3600, (second/60)%60, second%60)
}

// secondsToTimecode renders whole seconds as HH:MM:SS:FF; the frame field is
// always zero because clips are cut on second boundaries.
func secondsToTimecode(second int, fps int) string {
	return msToTimecode(second*1000, fps)
}

func msToTimecode(ms int, fps int) string {
	totalFrames := int(math.Round(float64(ms) * float64(fps) / 1000.0))
	frames := totalFrames % fps
	totalSeconds := totalFrames / fps
	seconds := totalSeconds % 60
	totalMinutes := totalSeconds / 60
	minutes := totalMinutes % 60
	hours := totalMinutes / 60
	return fmt.Sprintf("%02d:%02d:%02d:%02d", hours, minutes, seconds, frames)
}
