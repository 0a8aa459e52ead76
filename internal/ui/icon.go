package ui

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
)

var iconBytes = renderIcon(22)

// renderIcon draws a magnifier ring on a transparent square.
func renderIcon(size int) []byte {
	img := image.NewNRGBA(image.Rect(0, 0, size, size))
	fg := color.NRGBA{R: 0x1f, G: 0x6f, B: 0xeb, A: 0xff}

	c := float64(size) * 0.42
	outer := float64(size) * 0.36
	inner := outer - float64(size)*0.12
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			dx, dy := float64(x)+0.5-c, float64(y)+0.5-c
			d := dx*dx + dy*dy
			if d <= outer*outer && d >= inner*inner {
				img.SetNRGBA(x, y, fg)
			}
			// handle
			if x == y && float64(x) > c+inner*0.7 {
				img.SetNRGBA(x, y, fg)
				if x+1 < size {
					img.SetNRGBA(x+1, y, fg)
				}
			}
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil
	}
	return buf.Bytes()
}
