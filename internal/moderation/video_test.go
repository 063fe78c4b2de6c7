package moderation

import (
	"image"
	"testing"
)

type stubDetector struct {
	dets []Detection
}

func (s stubDetector) Detect(image.Image) ([]Detection, error) {
	return append([]Detection(nil), s.dets...), nil
}

func TestVideoWorkerFailsClosedWithEmptyPolicy(t *testing.T) {
	ingress := NewIngressQueue()
	egress := NewEgressQueue()
	detector := stubDetector{dets: []Detection{{ClassID: 0, Confidence: 0.9, X1: 0, Y1: 0, X2: 50, Y2: 50}}}
	policy := NewPolicyView()
	seen := NewSeenIDs()

	var emitted []Event
	sink := FuncSink(func(e Event) { emitted = append(emitted, e) })

	w := NewVideoWorker(ingress, egress, detector, policy, seen, sink)
	frame := VideoFrame{Image: solidGray(320, 180, 100), PTS: 0, TimeBase: TimeBase{Num: 1, Den: 30}}
	w.processFrame(frame)

	if len(emitted) != 0 {
		t.Fatalf("with every video category disabled (fail-closed), no event should be emitted, got %d", len(emitted))
	}
}

func TestVideoWorkerEmitsOncePerNewTrack(t *testing.T) {
	ingress := NewIngressQueue()
	egress := NewEgressQueue()
	detector := stubDetector{dets: []Detection{{ClassID: 3, Confidence: 0.9, X1: 0, Y1: 0, X2: 50, Y2: 50}}}
	policy := NewPolicyView()
	policy.Set(&Policy{VideoCategories: map[string]bool{"smoke": true}})
	seen := NewSeenIDs()

	var emitted []Event
	sink := FuncSink(func(e Event) { emitted = append(emitted, e) })

	w := NewVideoWorker(ingress, egress, detector, policy, seen, sink)
	frame := VideoFrame{Image: solidGray(320, 180, 100), PTS: 0, TimeBase: TimeBase{Num: 1, Den: 30}}

	// First frame always runs detection (motion gate), and the class is allowed.
	w.processFrame(frame)
	if len(emitted) != 1 {
		t.Fatalf("expected exactly one emitted event for the first sighting of class 3, got %d", len(emitted))
	}
	if emitted[0].Category != "흡연" {
		t.Fatalf("unexpected category %q", emitted[0].Category)
	}
}

func TestVideoWorkerOutputIsResized(t *testing.T) {
	ingress := NewIngressQueue()
	egress := NewEgressQueue()
	policy := NewPolicyView()
	seen := NewSeenIDs()
	sink := FuncSink(func(Event) {})

	w := NewVideoWorker(ingress, egress, NullDetector{}, policy, seen, sink)
	frame := VideoFrame{Image: solidGray(640, 360, 10), PTS: 0, TimeBase: TimeBase{Num: 1, Den: 30}}

	out := w.processFrame(frame)
	b := out.Image.Bounds()
	if b.Dx() != outputWidth || b.Dy() != outputHeight {
		t.Fatalf("processFrame() output bounds = %v, want %dx%d", b, outputWidth, outputHeight)
	}
}

func TestIngressOverflowEvictsOldestFrame(t *testing.T) {
	q := NewIngressQueue()
	for i := 0; i < 20; i++ {
		Ingress(q, VideoFrame{PTS: int64(i)})
	}
	if q.Overflows() == 0 {
		t.Fatal("pushing more frames than capacity should record overflow evictions")
	}
}
