package moderation

import "image"

// Detector is the detection backend's capability (§9 design notes: "dynamic
// dispatch in the detector" — a tagged variant rather than an error-throwing
// stub). Detect must be safe for concurrent use across sessions, or callers
// must serialize access themselves (§5 Shared resources).
type Detector interface {
	// Detect returns raw detections (no track_id assigned — tracking is a
	// separate stage, §4.3) for one frame. A detector that has no model
	// loaded returns an empty slice and a nil error.
	Detect(img image.Image) ([]Detection, error)
}

// NullDetector is the "model missing" first-class value (§7 "missing
// model" disposition and §9's tagged-variant design note): detection
// silently returns empty, and video detection (and therefore blur) is
// disabled for the session without any error path.
type NullDetector struct{}

// Detect always returns no detections.
func (NullDetector) Detect(image.Image) ([]Detection, error) { return nil, nil }

// DetectionFilterConfig holds the bounds applied after a raw detection
// backend call (§4.2.1).
type DetectionFilterConfig struct {
	MinConfidence float64
	MaxConfidence float64
	MinArea       int
	MaxArea       int // 0 means unbounded
}

// DefaultDetectionFilterConfig matches the spec's stated defaults.
func DefaultDetectionFilterConfig() DetectionFilterConfig {
	return DetectionFilterConfig{MinConfidence: 0, MaxConfidence: 1, MinArea: 0, MaxArea: 0}
}

// FilterDetections applies the class/confidence/area filter (§4.2.1). When
// classFilterEnabled is true and allowed is empty, no detection passes —
// this is the deliberate fail-closed behavior on session start before any
// video category has been enabled.
func FilterDetections(dets []Detection, allowed map[int]struct{}, classFilterEnabled bool, cfg DetectionFilterConfig) []Detection {
	if classFilterEnabled && len(allowed) == 0 {
		return nil
	}
	out := make([]Detection, 0, len(dets))
	for _, d := range dets {
		if classFilterEnabled {
			if _, ok := allowed[d.ClassID]; !ok {
				continue
			}
		}
		if d.Confidence < cfg.MinConfidence || d.Confidence > cfg.MaxConfidence {
			continue
		}
		area := d.Area()
		if area < cfg.MinArea {
			continue
		}
		if cfg.MaxArea > 0 && area > cfg.MaxArea {
			continue
		}
		out = append(out, d)
	}
	return out
}
