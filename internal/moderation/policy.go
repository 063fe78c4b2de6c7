package moderation

import (
	"sync/atomic"
	"time"
)

// ProfanityLevel is the session's configured audio severity tolerance.
type ProfanityLevel string

const (
	ProfanityNone ProfanityLevel = ""
	ProfanityHigh ProfanityLevel = "high"
	ProfanityMid  ProfanityLevel = "mid"
	ProfanityLow  ProfanityLevel = "low"
)

// Policy is an immutable per-session configuration snapshot (§3). Every
// field is set once at construction and never mutated — replacement is
// always a whole new value, so there is no torn-read window for readers.
type Policy struct {
	VideoCategories map[string]bool `json:"video_categories"`
	BlurEnabled     bool            `json:"blur_enabled"`
	ProfanityLevel  ProfanityLevel  `json:"profanity_level"`
	BannedWords     []string        `json:"banned_words"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// EmptyPolicy is the fail-closed snapshot installed on bind(): all
// categories false, blur off, profanity unset, no banned words.
func EmptyPolicy() *Policy {
	return &Policy{
		VideoCategories: map[string]bool{
			"smoke": false, "drink": false, "sharpObjects": false,
			"flammables": false, "firearms": false, "exposure": false,
		},
		BlurEnabled:    false,
		ProfanityLevel: ProfanityNone,
		BannedWords:    nil,
		UpdatedAt:      time.Now(),
	}
}

// PolicyView is C6's policy half: get_snapshot/set_snapshot over an atomic
// pointer, so reads are lock-free and writes are a single atomic store —
// matching the "no torn reads" invariant (§3) exactly.
type PolicyView struct {
	snapshot atomic.Pointer[Policy]
}

// NewPolicyView creates a view pre-populated with the empty/fail-closed
// policy, matching bind()'s initialization contract (§6).
func NewPolicyView() *PolicyView {
	v := &PolicyView{}
	v.snapshot.Store(EmptyPolicy())
	return v
}

// Get returns the current snapshot. Treat the returned *Policy as read-only.
func (v *PolicyView) Get() *Policy {
	if p := v.snapshot.Load(); p != nil {
		return p
	}
	return EmptyPolicy()
}

// Set atomically replaces the snapshot. Takes effect on the next frame or
// window a worker happens to read it (§6 update_policy).
func (v *PolicyView) Set(p *Policy) {
	v.snapshot.Store(p)
}

// ActiveSeverityBuckets maps a profanity level to the set of severity
// buckets that should be scanned (§4.5). Unset defaults to permissive
// detection — every bucket is active.
func ActiveSeverityBuckets(level ProfanityLevel) map[string]bool {
	switch level {
	case ProfanityHigh:
		return map[string]bool{"high": true, "mid": true, "low": true}
	case ProfanityMid:
		return map[string]bool{"high": true, "mid": true}
	case ProfanityLow:
		return map[string]bool{"high": true}
	default:
		return map[string]bool{"high": true, "mid": true, "low": true}
	}
}
