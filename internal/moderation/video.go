package moderation

import (
	"context"
	"time"
)

const (
	ingressQueueCap = 10
	egressQueueCap  = 120
	outputWidth     = 1280
	outputHeight    = 720
)

// VideoWorker is C2: the per-session video analysis loop. It owns the
// motion/stride state, the "current detections" vector, and the blur
// amortization cache — none of which are observed by any other component
// (§9 "per-frame mutation of shared image buffers").
type VideoWorker struct {
	ingress *Queue[VideoFrame]
	egress  *Queue[VideoFrame]

	detector Detector
	tracker  *Tracker
	policy   *PolicyView
	seen     *SeenIDs
	sink     EventSink

	filterCfg DetectionFilterConfig

	motion    *motionState
	curDets   []Detection
	lastFrame *VideoFrame

	log *RateLimitedLogger
}

// NewVideoWorker wires C2 against its neighbors. detector may be NullDetector
// when no model is available (§7 "Missing model").
func NewVideoWorker(ingress, egress *Queue[VideoFrame], detector Detector, policy *PolicyView, seen *SeenIDs, sink EventSink) *VideoWorker {
	return &VideoWorker{
		ingress:   ingress,
		egress:    egress,
		detector:  detector,
		tracker:   NewTracker(0.3),
		policy:    policy,
		seen:      seen,
		sink:      sink,
		filterCfg: DefaultDetectionFilterConfig(),
		motion:    newMotionState(),
		log:       NewRateLimitedLogger("MOD", time.Minute),
	}
}

// Run pops frames off the ingress queue until ctx is cancelled, processing
// each through motion gating, detection, blur, and resize (§4.2), then
// enqueues the result for egress.
func (w *VideoWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		popCtx, cancel := context.WithTimeout(ctx, time.Second)
		frame, ok := w.ingress.Pop(popCtx)
		cancel()
		if !ok {
			if ctx.Err() != nil {
				return nil
			}
			continue // 1s pop timeout; loop to re-check ctx (§5 suspension points)
		}

		out := w.processFrame(frame)
		w.egress.TryPush(out)
		w.lastFrame = &out
	}
}

func (w *VideoWorker) processFrame(frame VideoFrame) VideoFrame {
	runDetection, ratio := w.motion.step(frame.Image)
	trigger := ratio >= motionTrigger

	policy := w.policy.Get()
	classFilterEnabled := true
	allowed := AllowedClassIDs(policy.VideoCategories)

	if runDetection {
		raw, err := w.detector.Detect(frame.Image)
		if err != nil {
			w.log.Printf("detection error: %v", err)
			raw = nil
		}
		raw = w.tracker.Assign(raw)
		w.curDets = FilterDetections(raw, allowed, classFilterEnabled, w.filterCfg)
		w.emitVideoEvents(w.curDets)
	}

	img := frame.Image
	if policy.BlurEnabled && len(w.curDets) > 0 {
		if w.motion.shouldRenderBlur(trigger) {
			blurred := ApplyBlur(img, w.curDets)
			w.motion.recordBlur(blurred)
		} else {
			w.motion.recordBlurSkipped()
		}
		img = w.motion.lastBlurred
	}

	resized := ResizeTo(img, outputWidth, outputHeight)
	return VideoFrame{Image: resized, PTS: frame.PTS, TimeBase: frame.TimeBase}
}

// emitVideoEvents applies the Seen-IDs de-dup and emits one event per newly
// observed (class_id, track_id) pair (§4.2.2).
func (w *VideoWorker) emitVideoEvents(dets []Detection) {
	for _, d := range dets {
		if d.TrackID == nil {
			continue
		}
		if !w.seen.CheckAndAdd(d.ClassID, *d.TrackID) {
			continue
		}
		w.sink.Emit(Event{
			Type:     "video",
			Category: ClassCategory(d.ClassID),
			Detail:   ClassDisplayName(d.ClassID),
			Time:     nowHHMMSS(),
		})
	}
}

func nowHHMMSS() string {
	return time.Now().Format("15:04:05")
}

// Stride exposes the current detection_stride for debug/status reporting.
func (w *VideoWorker) Stride() int { return w.motion.Stride() }

// EMA exposes the current rolling motion EMA for debug/status reporting.
func (w *VideoWorker) EMA() float64 { return w.motion.EMA() }

// LastFrame returns the most recently processed output frame, or nil before
// the first frame. Exposed for debug/status reporting.
func (w *VideoWorker) LastFrame() *VideoFrame { return w.lastFrame }

// Ingress is C1: it enqueues a decoded frame into the bounded queue feeding
// C2 (capacity 10, newest-wins overflow, §4.1). Ingress never blocks longer
// than one bounded enqueue — TryPush is O(1).
func Ingress(q *Queue[VideoFrame], frame VideoFrame) {
	q.TryPush(frame)
}

// NewIngressQueue creates the bounded queue between C1 and C2.
func NewIngressQueue() *Queue[VideoFrame] { return NewQueue[VideoFrame](ingressQueueCap) }

// NewEgressQueue creates the bounded buffer between C2 and C4.
func NewEgressQueue() *Queue[VideoFrame] { return NewQueue[VideoFrame](egressQueueCap) }
