package moderation

import (
	"context"
	"time"

	"github.com/petervdpas/modrelay/internal/util"
)

const (
	windowDuration  = 3 * time.Second
	windowQueueCap  = 30
	targetSampleRate = 16000
	peakClipLimit   = 32767
	peakClipScale   = 32767 * 0.95
)

// AudioAccumulator implements C5's windowing (§4.5): it buffers incoming PCM
// until 3.0s of wall-clock time has elapsed, then slices off exactly one
// window's worth of samples and discards whatever is left (no overlap).
// Single-writer: only the session's audio ingress path touches it.
type AudioAccumulator struct {
	started         bool
	windowStartWall time.Time
	sampleRate      int
	buf             []int16
}

// NewAudioAccumulator creates an empty accumulator.
func NewAudioAccumulator() *AudioAccumulator { return &AudioAccumulator{} }

// Push appends one incoming PCM chunk (possibly multi-channel, downmixed to
// mono here) and returns zero or more completed windows.
func (a *AudioAccumulator) Push(samples []int16, channels, sampleRate int, now time.Time) []AudioWindow {
	mono := downmixMono(samples, channels)

	if !a.started {
		a.started = true
		a.windowStartWall = now
		a.sampleRate = sampleRate
	}
	a.buf = append(a.buf, mono...)

	var windows []AudioWindow
	for now.Sub(a.windowStartWall) >= windowDuration {
		n := int(float64(a.sampleRate) * windowDuration.Seconds())
		if len(a.buf) < n {
			break // time elapsed but source hasn't delivered enough samples yet
		}
		window := make([]int16, n)
		copy(window, a.buf[:n])
		a.buf = nil // discard the remainder — windows never overlap (§4.5)

		windows = append(windows, AudioWindow{
			Samples:    window,
			SampleRate: a.sampleRate,
			StartWall:  a.windowStartWall,
		})
		a.windowStartWall = a.windowStartWall.Add(windowDuration)
	}
	return windows
}

// downmixMono forces mono by averaging channels, if needed (§4.5).
func downmixMono(samples []int16, channels int) []int16 {
	if channels <= 1 {
		return samples
	}
	n := len(samples) / channels
	out := make([]int16, n)
	for i := 0; i < n; i++ {
		var sum int32
		for c := 0; c < channels; c++ {
			sum += int32(samples[i*channels+c])
		}
		out[i] = int16(sum / int32(channels))
	}
	return out
}

// NormalizeAndResample implements §4.5's "Normalization & resample": peak
// clip-safe scaling, linear-interpolation resample to 16kHz (no resampling
// library exists anywhere in the example pack — see DESIGN.md), and
// conversion to float32 in [-1, 1].
func NormalizeAndResample(window AudioWindow) []float32 {
	samples := clipSafeNormalize(window.Samples)
	resampled := resampleLinear(samples, window.SampleRate, targetSampleRate)
	out := make([]float32, len(resampled))
	for i, s := range resampled {
		out[i] = float32(s) / 32767.0
	}
	return out
}

func clipSafeNormalize(samples []int16) []int16 {
	var peak float64
	for _, s := range samples {
		v := float64(s)
		if v < 0 {
			v = -v
		}
		if v > peak {
			peak = v
		}
	}
	if peak <= peakClipLimit {
		return samples
	}
	scale := peakClipScale / peak
	out := make([]int16, len(samples))
	for i, s := range samples {
		out[i] = int16(float64(s) * scale)
	}
	return out
}

func resampleLinear(samples []int16, srcRate, dstRate int) []int16 {
	if srcRate == dstRate || len(samples) == 0 {
		return samples
	}
	ratio := float64(srcRate) / float64(dstRate)
	n := int(float64(len(samples)) / ratio)
	out := make([]int16, n)
	for i := 0; i < n; i++ {
		srcPos := float64(i) * ratio
		idx := int(srcPos)
		frac := srcPos - float64(idx)
		if idx+1 >= len(samples) {
			out[i] = samples[len(samples)-1]
			continue
		}
		a, b := float64(samples[idx]), float64(samples[idx+1])
		out[i] = int16(a + (b-a)*frac)
	}
	return out
}

// AudioWorker is C5: windows incoming PCM, hands completed windows to the
// transcription queue (capacity 30, newest-wins overflow, §4.5
// Backpressure), and for each transcription result runs lexicon matching
// (§4.5 Matching order and priority), emitting at most one voice event per
// window.
type AudioWorker struct {
	acc      *AudioAccumulator
	windows  *Queue[AudioWindow]
	transcriber Transcriber
	lexicon  *Lexicon
	policy   *PolicyView
	sink     EventSink
	log      *RateLimitedLogger
}

// NewAudioWorker wires C5 against its neighbors. transcriber may be a
// NullTranscriber when STT is unavailable; lexicon may be nil when the
// lexicon file failed to load (§7 "Missing lexicon file").
func NewAudioWorker(transcriber Transcriber, lexicon *Lexicon, policy *PolicyView, sink EventSink) *AudioWorker {
	return &AudioWorker{
		acc:         NewAudioAccumulator(),
		windows:     NewQueue[AudioWindow](windowQueueCap),
		transcriber: transcriber,
		lexicon:     lexicon,
		policy:      policy,
		sink:        sink,
		log:         NewRateLimitedLogger("STT", time.Minute),
	}
}

// PushSamples feeds raw PCM into the windowing accumulator and enqueues any
// resulting completed windows (§4.5 Backpressure).
func (w *AudioWorker) PushSamples(samples []int16, channels, sampleRate int, now time.Time) {
	for _, win := range w.acc.Push(samples, channels, sampleRate, now) {
		w.windows.TryPush(win)
	}
}

// Run dequeues windows and transcribes+matches them until ctx is cancelled.
func (w *AudioWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		popCtx, cancel := context.WithTimeout(ctx, time.Second)
		win, ok := w.windows.Pop(popCtx)
		cancel()
		if !ok {
			if ctx.Err() != nil {
				return nil
			}
			continue
		}

		transcribeCtx, cancelTranscribe := context.WithTimeout(ctx, util.TranscriptionTimeout)
		result, err := w.transcriber.Transcribe(transcribeCtx, win)
		cancelTranscribe()
		if err != nil {
			w.log.Printf("transcription failed: %v", err)
			continue
		}
		if result.Text == "" {
			continue
		}

		policy := w.policy.Get()
		if event, matched := MatchTranscript(w.lexicon, policy.BannedWords, policy.ProfanityLevel, result.Text); matched {
			w.sink.Emit(event)
		}
	}
}
