package moderation

import (
	"image"
	"image/color"
)

// solidGray builds a uniform grayscale test image, used by motion/blur tests
// that need a concrete image.Image without decoding real video.
func solidGray(w, h int, v uint8) image.Image {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetGray(x, y, color.Gray{Y: v})
		}
	}
	return img
}
