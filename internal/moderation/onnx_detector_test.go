package moderation

import "testing"

func TestDecodeYOLOOutputFiltersByConfidence(t *testing.T) {
	const numClasses = 2
	const numBoxes = 2
	// layout: [cx,cy,w,h, class0, class1] x numBoxes, row-major by attribute.
	data := make([]float32, (4+numClasses)*numBoxes)
	// box 0: centered, low confidence for both classes.
	data[0*numBoxes+0] = 100
	data[1*numBoxes+0] = 100
	data[2*numBoxes+0] = 20
	data[3*numBoxes+0] = 20
	data[4*numBoxes+0] = 0.1
	data[5*numBoxes+0] = 0.05
	// box 1: centered, high confidence for class 1.
	data[0*numBoxes+1] = 200
	data[1*numBoxes+1] = 200
	data[2*numBoxes+1] = 40
	data[3*numBoxes+1] = 40
	data[4*numBoxes+1] = 0.2
	data[5*numBoxes+1] = 0.9

	boxes := decodeYOLOOutput(data, numClasses, 640, 0.5)
	if len(boxes) != 1 {
		t.Fatalf("expected only the high-confidence box to pass, got %d", len(boxes))
	}
	if boxes[0].classID != 1 {
		t.Fatalf("expected class 1 to win, got %d", boxes[0].classID)
	}
}

func TestNonMaxSuppressionDropsOverlappingLowerScore(t *testing.T) {
	boxes := []rawBox{
		{classID: 0, score: 0.9, x1: 0, y1: 0, x2: 100, y2: 100},
		{classID: 0, score: 0.5, x1: 5, y1: 5, x2: 105, y2: 105}, // heavy overlap, same class
	}
	kept := nonMaxSuppression(boxes, 0.45)
	if len(kept) != 1 {
		t.Fatalf("expected NMS to suppress the overlapping lower-score box, got %d kept", len(kept))
	}
	if kept[0].score != 0.9 {
		t.Fatalf("expected the higher-score box to survive, got score %f", kept[0].score)
	}
}

func TestNonMaxSuppressionKeepsDifferentClasses(t *testing.T) {
	boxes := []rawBox{
		{classID: 0, score: 0.9, x1: 0, y1: 0, x2: 100, y2: 100},
		{classID: 1, score: 0.8, x1: 0, y1: 0, x2: 100, y2: 100}, // identical box, different class
	}
	kept := nonMaxSuppression(boxes, 0.45)
	if len(kept) != 2 {
		t.Fatalf("NMS should not suppress across different classes, got %d kept", len(kept))
	}
}

func TestRawBoxIOUIdenticalBoxes(t *testing.T) {
	a := rawBox{x1: 0, y1: 0, x2: 10, y2: 10}
	if iou := rawBoxIOU(a, a); iou != 1.0 {
		t.Fatalf("identical boxes should have IOU 1.0, got %f", iou)
	}
}

func TestClampIntAndClampFloat(t *testing.T) {
	if v := clampInt(-5, 0, 10); v != 0 {
		t.Fatalf("clampInt(-5,0,10) = %d, want 0", v)
	}
	if v := clampInt(15, 0, 10); v != 10 {
		t.Fatalf("clampInt(15,0,10) = %d, want 10", v)
	}
	if v := clampFloat(-1.5, 0, 1); v != 0 {
		t.Fatalf("clampFloat(-1.5,0,1) = %f, want 0", v)
	}
}
