package moderation

import "testing"

func TestNullDetectorReturnsEmpty(t *testing.T) {
	dets, err := NullDetector{}.Detect(nil)
	if err != nil || dets != nil {
		t.Fatalf("NullDetector.Detect() = %v, %v, want nil, nil", dets, err)
	}
}

func TestFilterDetectionsFailClosedWhenNoCategoryAllowed(t *testing.T) {
	dets := []Detection{{ClassID: 0, Confidence: 0.9, X1: 0, Y1: 0, X2: 10, Y2: 10}}
	out := FilterDetections(dets, map[int]struct{}{}, true, DefaultDetectionFilterConfig())
	if len(out) != 0 {
		t.Fatalf("expected no detections to pass with an empty allow-set, got %d", len(out))
	}
}

func TestFilterDetectionsByClass(t *testing.T) {
	dets := []Detection{
		{ClassID: 0, Confidence: 0.9, X1: 0, Y1: 0, X2: 10, Y2: 10},
		{ClassID: 3, Confidence: 0.9, X1: 0, Y1: 0, X2: 10, Y2: 10},
	}
	allowed := map[int]struct{}{3: {}}
	out := FilterDetections(dets, allowed, true, DefaultDetectionFilterConfig())
	if len(out) != 1 || out[0].ClassID != 3 {
		t.Fatalf("expected only class 3 to pass, got %+v", out)
	}
}

func TestFilterDetectionsByAreaBounds(t *testing.T) {
	dets := []Detection{
		{ClassID: 0, Confidence: 0.9, X1: 0, Y1: 0, X2: 2, Y2: 2},   // area 4
		{ClassID: 0, Confidence: 0.9, X1: 0, Y1: 0, X2: 100, Y2: 100}, // area 10000
	}
	cfg := DetectionFilterConfig{MinConfidence: 0, MaxConfidence: 1, MinArea: 10, MaxArea: 5000}
	out := FilterDetections(dets, map[int]struct{}{0: {}}, true, cfg)
	if len(out) != 0 {
		t.Fatalf("both detections fall outside [10,5000] area bounds, got %d passing", len(out))
	}
}

func TestAllowedClassIDsEmptyWhenAllCategoriesDisabled(t *testing.T) {
	allowed := AllowedClassIDs(EmptyPolicy().VideoCategories)
	if len(allowed) != 0 {
		t.Fatalf("empty policy should allow no class ids, got %v", allowed)
	}
}

func TestAllowedClassIDsMapsCategoryToClasses(t *testing.T) {
	allowed := AllowedClassIDs(map[string]bool{"drink": true})
	if _, ok := allowed[0]; !ok {
		t.Fatal("enabling \"drink\" should allow class id 0")
	}
	if _, ok := allowed[1]; !ok {
		t.Fatal("enabling \"drink\" should allow class id 1")
	}
	if _, ok := allowed[3]; ok {
		t.Fatal("enabling \"drink\" should not allow class id 3 (smoke)")
	}
}
