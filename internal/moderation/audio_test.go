package moderation

import (
	"testing"
	"time"
)

func TestDownmixMonoAveragesChannels(t *testing.T) {
	stereo := []int16{100, 200, 300, 400} // two frames, L/R
	mono := downmixMono(stereo, 2)
	if len(mono) != 2 {
		t.Fatalf("downmixMono() len = %d, want 2", len(mono))
	}
	if mono[0] != 150 || mono[1] != 350 {
		t.Fatalf("downmixMono() = %v, want [150 350]", mono)
	}
}

func TestDownmixMonoPassthroughForMono(t *testing.T) {
	samples := []int16{1, 2, 3}
	out := downmixMono(samples, 1)
	if len(out) != 3 || out[0] != 1 {
		t.Fatalf("mono input should pass through unchanged, got %v", out)
	}
}

func TestClipSafeNormalizeLeavesInRangeSamplesUnchanged(t *testing.T) {
	// Already within range: untouched.
	in := []int16{100, -200, 300}
	out := clipSafeNormalize(in)
	if out[0] != 100 || out[1] != -200 || out[2] != 300 {
		t.Fatalf("in-range samples should be unchanged, got %v", out)
	}
}

func TestResampleLinearSameRateIsNoop(t *testing.T) {
	in := []int16{1, 2, 3}
	out := resampleLinear(in, 16000, 16000)
	if len(out) != len(in) {
		t.Fatalf("same-rate resample should be a no-op, got len %d", len(out))
	}
}

func TestResampleLinearDownsamplesHalvesLength(t *testing.T) {
	in := make([]int16, 100)
	out := resampleLinear(in, 32000, 16000)
	if len(out) != 50 {
		t.Fatalf("resampling 32kHz->16kHz should roughly halve sample count, got %d", len(out))
	}
}

func TestAudioAccumulatorProducesNonOverlappingWindows(t *testing.T) {
	acc := NewAudioAccumulator()
	start := time.Now()

	sampleRate := 1000 // small rate to keep the test buffer tiny
	samplesPerWindow := sampleRate * 3

	chunk := make([]int16, samplesPerWindow)
	acc.Push(chunk, 1, sampleRate, start) // the first push marks the window start
	windows := acc.Push(nil, 1, sampleRate, start.Add(windowDuration))
	if len(windows) != 1 {
		t.Fatalf("expected exactly one completed window once 3s elapsed with enough samples, got %d", len(windows))
	}
	if len(windows[0].Samples) != samplesPerWindow {
		t.Fatalf("window should contain exactly one window's worth of samples, got %d want %d", len(windows[0].Samples), samplesPerWindow)
	}

	// A second push before another 3s elapses should yield no further window.
	more := acc.Push(make([]int16, 10), 1, sampleRate, start.Add(windowDuration+time.Millisecond))
	if len(more) != 0 {
		t.Fatalf("no new window should complete before another full 3s elapses, got %d", len(more))
	}
}

func TestAudioAccumulatorWaitsForEnoughSamples(t *testing.T) {
	acc := NewAudioAccumulator()
	start := time.Now()

	// Time has elapsed but far fewer samples than the window needs arrived.
	acc.Push(make([]int16, 5), 1, 16000, start) // the first push marks the window start
	windows := acc.Push(nil, 1, 16000, start.Add(windowDuration))
	if len(windows) != 0 {
		t.Fatal("a window should not complete until enough samples have actually arrived, even past the wallclock duration")
	}
}

func TestNormalizeAndResampleProducesFloatsInRange(t *testing.T) {
	win := AudioWindow{Samples: []int16{0, 16000, -16000, 32767, -32768}, SampleRate: 16000}
	out := NormalizeAndResample(win)
	for _, v := range out {
		if v > 1.01 || v < -1.01 {
			t.Fatalf("normalized sample out of expected [-1,1] range: %f", v)
		}
	}
}
