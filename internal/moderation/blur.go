package moderation

import (
	"image"
	"image/color"
	"image/draw"

	xdraw "golang.org/x/image/draw"
)

const blurKernelSize = 35

// ApplyBlur renders a copy of img with a box (mean) blur applied inside each
// detection's clamped bounding box (§4.2 Blur algorithm). Box blur is chosen
// over Gaussian for cost; visual quality is adequate for redaction.
func ApplyBlur(img image.Image, dets []Detection) *image.NRGBA {
	bounds := img.Bounds()
	out := image.NewNRGBA(bounds)
	draw.Draw(out, bounds, img, bounds.Min, draw.Src)

	kernel := blurKernelSize
	if kernel%2 == 0 {
		kernel++
	}

	for _, d := range dets {
		x1, y1, x2, y2 := clampBox(d.X1, d.Y1, d.X2, d.Y2, bounds)
		if x2 <= x1 || y2 <= y1 {
			continue
		}
		boxBlurRegion(out, x1, y1, x2, y2, kernel)
	}
	return out
}

func clampBox(x1, y1, x2, y2 int, b image.Rectangle) (int, int, int, int) {
	if x1 < b.Min.X {
		x1 = b.Min.X
	}
	if y1 < b.Min.Y {
		y1 = b.Min.Y
	}
	if x2 > b.Max.X {
		x2 = b.Max.X
	}
	if y2 > b.Max.Y {
		y2 = b.Max.Y
	}
	return x1, y1, x2, y2
}

// boxBlurRegion applies a separable mean filter of the given odd kernel size
// to the [x1,x2)x[y1,y2) region of img, in place. Separable (horizontal pass
// then vertical pass) keeps the cost linear in kernel size rather than
// quadratic.
func boxBlurRegion(img *image.NRGBA, x1, y1, x2, y2, kernel int) {
	w, h := x2-x1, y2-y1
	if w <= 0 || h <= 0 {
		return
	}
	r := kernel / 2

	src := make([][4]int, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			pr, pg, pb, pa := img.At(x1+x, y1+y).RGBA()
			src[y*w+x] = [4]int{int(pr >> 8), int(pg >> 8), int(pb >> 8), int(pa >> 8)}
		}
	}

	tmp := make([][4]int, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var sum [4]int
			n := 0
			for dx := -r; dx <= r; dx++ {
				sx := x + dx
				if sx < 0 || sx >= w {
					continue
				}
				p := src[y*w+sx]
				sum[0] += p[0]
				sum[1] += p[1]
				sum[2] += p[2]
				sum[3] += p[3]
				n++
			}
			tmp[y*w+x] = [4]int{sum[0] / n, sum[1] / n, sum[2] / n, sum[3] / n}
		}
	}

	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			var sum [4]int
			n := 0
			for dy := -r; dy <= r; dy++ {
				sy := y + dy
				if sy < 0 || sy >= h {
					continue
				}
				p := tmp[sy*w+x]
				sum[0] += p[0]
				sum[1] += p[1]
				sum[2] += p[2]
				sum[3] += p[3]
				n++
			}
			img.SetNRGBA(x1+x, y1+y, color.NRGBA{
				R: uint8(sum[0] / n), G: uint8(sum[1] / n), B: uint8(sum[2] / n), A: uint8(sum[3] / n),
			})
		}
	}
}

// ResizeTo scales img to the given dimensions using bilinear interpolation
// before egress, via golang.org/x/image/draw.
func ResizeTo(img image.Image, width, height int) *image.NRGBA {
	dst := image.NewNRGBA(image.Rect(0, 0, width, height))
	xdraw.BiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), xdraw.Over, nil)
	return dst
}
