// Package moderation implements the per-session media analysis pipeline:
// motion-gated video detection with tracker de-duplication and region blur,
// windowed audio transcription with lexicon matching, and PTS-paced egress.
package moderation

import (
	"image"
	"time"
)

// TimeBase is a rational seconds-per-tick, e.g. {1, 90000} for a 90kHz clock.
type TimeBase struct {
	Num int64
	Den int64
}

// Seconds converts a tick count to seconds using this time base.
func (tb TimeBase) Seconds(ticks int64) float64 {
	if tb.Den == 0 {
		return 0
	}
	return float64(ticks) * float64(tb.Num) / float64(tb.Den)
}

// VideoFrame is a decoded video frame with its original presentation timing.
// Ownership: once pushed into a queue, the pixel buffer belongs to whichever
// worker pops it; no other component observes it mid-mutation (§9 design notes).
type VideoFrame struct {
	Image    image.Image
	PTS      int64
	TimeBase TimeBase
}

// Clone returns a shallow copy of f carrying a new PTS/time_base, used by the
// egress pacer's starvation fallback (§4.4.3) — it reuses the same pixels but
// advances the timeline so the downstream clock keeps moving.
func (f VideoFrame) Clone(pts int64, tb TimeBase) VideoFrame {
	return VideoFrame{Image: f.Image, PTS: pts, TimeBase: tb}
}

// AudioWindow is a fixed 3.0s non-overlapping buffer of mono PCM samples at
// the source sample rate, plus the window's wall-clock start time.
type AudioWindow struct {
	Samples     []int16
	SampleRate  int
	StartWall   time.Time
}

// Detection is one object detector result for a single frame.
type Detection struct {
	ClassID    int
	Confidence float64
	X1, Y1     int
	X2, Y2     int
	TrackID    *int64
}

// CenterX returns the horizontal center of the bounding box.
func (d Detection) CenterX() int { return (d.X1 + d.X2) / 2 }

// CenterY returns the vertical center of the bounding box.
func (d Detection) CenterY() int { return (d.Y1 + d.Y2) / 2 }

// Area returns the bounding box's pixel area.
func (d Detection) Area() int { return (d.X2 - d.X1) * (d.Y2 - d.Y1) }

// Event is a structured moderation event serialized to the side channel.
type Event struct {
	Type     string `json:"type"` // "video" | "voice"
	Category string `json:"category"`
	Detail   string `json:"detail"`
	Time     string `json:"time"`
}

// TranscriptionResult is the text recognized for one audio window.
type TranscriptionResult struct {
	Text      string
	StartWall time.Time
}
