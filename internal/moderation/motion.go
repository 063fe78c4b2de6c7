package moderation

import (
	"image"

	xdraw "golang.org/x/image/draw"
)

const (
	motionWidth      = 160
	motionHeight     = 90
	motionDiffThresh = 20
	motionEMAAlpha   = 0.3
	motionTrigger    = 0.02
	strideMin        = 1
	strideMax        = 10
	strideCooldown   = 5
	burstFrames      = 3
	emaStrideUp      = 0.05
	emaStrideDown    = 0.01
	blurCacheEvery   = 5
)

// motionState tracks the rolling motion/stride state for one session's
// video analysis worker (§4.2 Motion estimation / EMA / Stride / Detection
// gating). It is owned exclusively by the video worker goroutine.
type motionState struct {
	prevGray []byte // 160x90 grayscale, nil until first frame

	ema            float64
	stride         int
	maxSkip        int
	sinceDet       int
	framesSinceStrideChange int
	burstRemaining int
	prevTrigger    bool

	framesSinceBlur int
	lastBlurred     *image.NRGBA
	hasBlurCache    bool
}

func newMotionState() *motionState {
	m := &motionState{stride: 3}
	m.sinceDet = m.stride
	m.maxSkip = clampStrideSkip(m.stride)
	m.framesSinceStrideChange = strideCooldown
	return m
}

func clampStrideSkip(stride int) int {
	v := stride * 2
	lo, hi := stride*5, 30
	if lo > hi {
		lo, hi = hi, lo
	}
	if v < lo {
		v = lo
	}
	if v > hi {
		v = hi
	}
	if v > 30 {
		v = 30
	}
	return v
}

// downscaleGray converts img to a 160x90 grayscale byte buffer.
func downscaleGray(img image.Image) []byte {
	small := image.NewGray(image.Rect(0, 0, motionWidth, motionHeight))
	xdraw.ApproxBiLinear.Scale(small, small.Bounds(), img, img.Bounds(), xdraw.Over, nil)
	return small.Pix
}

// motionRatio computes the fraction of pixels whose absolute inter-frame
// difference exceeds the threshold (§4.2 Motion estimation).
func motionRatio(prev, cur []byte) float64 {
	if len(prev) != len(cur) || len(cur) == 0 {
		return 1.0
	}
	above := 0
	for i := range cur {
		diff := int(cur[i]) - int(prev[i])
		if diff < 0 {
			diff = -diff
		}
		if diff > motionDiffThresh {
			above++
		}
	}
	return float64(above) / float64(len(cur))
}

// step advances the motion/stride/gating state for one incoming frame and
// returns whether detection should run this frame (§4.2 Detection gating).
func (m *motionState) step(img image.Image) (runDetection bool, ratio float64) {
	gray := downscaleGray(img)

	if m.prevGray == nil {
		ratio = 1.0
	} else {
		ratio = motionRatio(m.prevGray, gray)
	}
	m.prevGray = gray

	m.ema = motionEMAAlpha*ratio + (1-motionEMAAlpha)*m.ema

	// Stride adaptation under a 5-frame cooldown.
	m.framesSinceStrideChange++
	if m.framesSinceStrideChange >= strideCooldown {
		changed := false
		if m.ema >= emaStrideUp {
			if m.stride > strideMin {
				m.stride--
				changed = true
			}
		} else if m.ema <= emaStrideDown {
			if m.stride < strideMax {
				m.stride++
				changed = true
			}
		}
		if changed {
			m.maxSkip = clampStrideSkip(m.stride)
			m.framesSinceStrideChange = 0
		}
	}

	trigger := ratio >= motionTrigger
	if trigger && !m.prevTrigger {
		m.burstRemaining = burstFrames
	}
	m.prevTrigger = trigger

	inBurst := m.burstRemaining > 0
	windowThresh := m.stride
	if trigger {
		windowThresh = 1
	}
	windowOK := m.sinceDet >= windowThresh
	safetyDue := m.sinceDet >= m.maxSkip

	runDetection = (trigger && windowOK) || inBurst || safetyDue

	if runDetection {
		m.sinceDet = 0
		if inBurst {
			m.burstRemaining--
		}
	} else {
		m.sinceDet++
	}

	return runDetection, ratio
}

// Stride exposes the current detection_stride, for tests and debug status.
func (m *motionState) Stride() int { return m.stride }

// EMA exposes the current rolling motion EMA, for debug status reporting.
func (m *motionState) EMA() float64 { return m.ema }

// shouldRenderBlur implements the blur-sampling amortization (§4.2 Blur
// sampling): returns true when a fresh blurred frame must be rendered this
// call, given the current motion trigger state.
func (m *motionState) shouldRenderBlur(trigger bool) bool {
	if !m.hasBlurCache {
		return true
	}
	if trigger || m.framesSinceBlur >= blurCacheEvery {
		return true
	}
	return false
}

// recordBlur caches the freshly rendered blurred frame and resets the
// amortization counter.
func (m *motionState) recordBlur(img *image.NRGBA) {
	m.lastBlurred = img
	m.hasBlurCache = true
	m.framesSinceBlur = 0
}

// recordBlurSkipped increments the amortization counter without touching
// the cache (the cached frame is reused as-is).
func (m *motionState) recordBlurSkipped() {
	m.framesSinceBlur++
}
