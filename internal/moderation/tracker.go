package moderation

import "sync"

// Tracker assigns stable track_ids to detections across calls within a
// session (§4.3). The reference implementation uses ByteTrack
// (`model.track(..., tracker="bytetrack.yaml")`); no Go port of ByteTrack
// exists anywhere in the example pack, so this is a greedy IOU tracker —
// good enough to satisfy the spec's actual requirement ("IDs are monotonic
// within a tracker instance... stable across calls"), without pulling in a
// Kalman-filter dependency that doesn't exist for this ecosystem.
type Tracker struct {
	mu          sync.Mutex
	nextID      int64
	iouThresh   float64
	prevTracks  []trackedBox
}

type trackedBox struct {
	classID int
	trackID int64
	x1, y1  int
	x2, y2  int
}

// NewTracker creates a tracker with the given IOU match threshold (0.3 is a
// reasonable default for frame-to-frame continuity at typical frame rates).
func NewTracker(iouThresh float64) *Tracker {
	if iouThresh <= 0 {
		iouThresh = 0.3
	}
	return &Tracker{iouThresh: iouThresh}
}

// Assign mutates dets in place, setting TrackID on each, and returns them.
// Matching is greedy: each new box is paired with the highest-IOU previous
// box of the same class above the threshold that hasn't already been
// claimed this call; unmatched boxes get a new monotonic id.
func (t *Tracker) Assign(dets []Detection) []Detection {
	t.mu.Lock()
	defer t.mu.Unlock()

	claimed := make([]bool, len(t.prevTracks))
	next := make([]trackedBox, 0, len(dets))

	for i := range dets {
		bestIdx := -1
		bestIOU := t.iouThresh
		for j, prev := range t.prevTracks {
			if claimed[j] || prev.classID != dets[i].ClassID {
				continue
			}
			iou := boxIOU(dets[i].X1, dets[i].Y1, dets[i].X2, dets[i].Y2, prev.x1, prev.y1, prev.x2, prev.y2)
			if iou > bestIOU {
				bestIOU = iou
				bestIdx = j
			}
		}

		var id int64
		if bestIdx >= 0 {
			claimed[bestIdx] = true
			id = t.prevTracks[bestIdx].trackID
		} else {
			t.nextID++
			id = t.nextID
		}
		tid := id
		dets[i].TrackID = &tid
		next = append(next, trackedBox{
			classID: dets[i].ClassID,
			trackID: id,
			x1:      dets[i].X1, y1: dets[i].Y1, x2: dets[i].X2, y2: dets[i].Y2,
		})
	}

	t.prevTracks = next
	return dets
}

func boxIOU(ax1, ay1, ax2, ay2, bx1, by1, bx2, by2 int) float64 {
	ix1, iy1 := max(ax1, bx1), max(ay1, by1)
	ix2, iy2 := min(ax2, bx2), min(ay2, by2)
	if ix2 <= ix1 || iy2 <= iy1 {
		return 0
	}
	inter := float64((ix2 - ix1) * (iy2 - iy1))
	areaA := float64((ax2 - ax1) * (ay2 - ay1))
	areaB := float64((bx2 - bx1) * (by2 - by1))
	union := areaA + areaB - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}
