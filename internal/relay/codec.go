package relay

import (
	"image"
	"image/color"
)

// VideoDecoder turns one encoded video sample (e.g. a depacketized VP8
// frame) into a decoded image. The moderation core only ever consumes
// image.Image (SPEC_FULL.md §1: "we specify only the interfaces the core
// consumes — raw decoded frames"); the relay is where a real VP8/H264
// decoder binding plugs in. No pure-Go video codec decoder appears anywhere
// in the example pack, so this is left as an injectable seam (see
// DESIGN.md) rather than a vendored implementation.
type VideoDecoder interface {
	Decode(sample []byte) (image.Image, error)
}

// VideoEncoder turns a processed image.Image back into an encoded sample
// suitable for TrackLocalStaticSample.WriteSample, the egress-side mirror
// of VideoDecoder.
type VideoEncoder interface {
	Encode(img image.Image) ([]byte, error)
}

// AudioDecoder turns one encoded audio sample (e.g. a depacketized Opus
// frame) into PCM.
type AudioDecoder interface {
	Decode(sample []byte) (pcm []int16, sampleRate, channels int, err error)
}

// AudioEncoder turns PCM back into an encoded sample for egress.
type AudioEncoder interface {
	Encode(pcm []int16, sampleRate, channels int) ([]byte, error)
}

// PassthroughVideoCodec is a placeholder decoder/encoder pair used when no
// real codec binding is configured: it treats "samples" as already being
// raw NRGBA bytes of a fixed size (useful for local testing harnesses that
// feed synthetic frames) and otherwise reports a neutral gray frame rather
// than failing the session (§7 disposition: degrade, never abort).
type PassthroughVideoCodec struct {
	Width, Height int
}

// Decode implements VideoDecoder.
func (p PassthroughVideoCodec) Decode(sample []byte) (image.Image, error) {
	w, h := p.Width, p.Height
	if w <= 0 || h <= 0 {
		w, h = 1280, 720
	}
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	if len(sample) == w*h*4 {
		copy(img.Pix, sample)
		return img, nil
	}
	gray := color.NRGBA{R: 128, G: 128, B: 128, A: 255}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, gray)
		}
	}
	return img, nil
}

// Encode implements VideoEncoder by emitting raw NRGBA bytes.
func (p PassthroughVideoCodec) Encode(img image.Image) ([]byte, error) {
	b := img.Bounds()
	out := image.NewNRGBA(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			out.Set(x, y, img.At(x, y))
		}
	}
	return out.Pix, nil
}

// PassthroughAudioCodec treats samples as already being little-endian
// int16 PCM, used the same way as PassthroughVideoCodec.
type PassthroughAudioCodec struct {
	SampleRate, Channels int
}

// Decode implements AudioDecoder.
func (p PassthroughAudioCodec) Decode(sample []byte) ([]int16, int, int, error) {
	n := len(sample) / 2
	pcm := make([]int16, n)
	for i := 0; i < n; i++ {
		pcm[i] = int16(sample[2*i]) | int16(sample[2*i+1])<<8
	}
	sr, ch := p.SampleRate, p.Channels
	if sr == 0 {
		sr = 48000
	}
	if ch == 0 {
		ch = 2
	}
	return pcm, sr, ch, nil
}

// Encode implements AudioEncoder.
func (p PassthroughAudioCodec) Encode(pcm []int16, sampleRate, channels int) ([]byte, error) {
	out := make([]byte, len(pcm)*2)
	for i, s := range pcm {
		out[2*i] = byte(s)
		out[2*i+1] = byte(s >> 8)
	}
	return out, nil
}
