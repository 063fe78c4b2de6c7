package moderation

import "sync"

// SeenIDs is the per-session (class_id, track_id) de-dup memo (§3). It is
// single-writer (only the video analysis worker mutates it) but Status/debug
// endpoints may read its size concurrently, so access is still guarded.
type SeenIDs struct {
	mu   sync.Mutex
	seen map[int]map[int64]struct{}
}

// NewSeenIDs creates an empty table, matching bind()'s lifecycle (§3): it is
// created empty and only grows for the life of the session.
func NewSeenIDs() *SeenIDs {
	return &SeenIDs{seen: make(map[int]map[int64]struct{})}
}

// CheckAndAdd reports whether (classID, trackID) is new, adding it if so.
// Returns false (already seen) for a repeat — callers use this to decide
// at-most-once event emission (§4.2.2).
func (s *SeenIDs) CheckAndAdd(classID int, trackID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	tracks, ok := s.seen[classID]
	if !ok {
		tracks = make(map[int64]struct{})
		s.seen[classID] = tracks
	}
	if _, seen := tracks[trackID]; seen {
		return false
	}
	tracks[trackID] = struct{}{}
	return true
}

// Count returns the total number of distinct (class_id, track_id) pairs
// recorded so far, for debug/status reporting.
func (s *SeenIDs) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, tracks := range s.seen {
		n += len(tracks)
	}
	return n
}
