package moderation

import "testing"

func TestSeenIDsFirstSeenThenDuplicate(t *testing.T) {
	seen := NewSeenIDs()

	if !seen.CheckAndAdd(3, 1) {
		t.Fatal("first sighting of (3,1) should report new")
	}
	if seen.CheckAndAdd(3, 1) {
		t.Fatal("second sighting of (3,1) should report already seen")
	}
	if !seen.CheckAndAdd(3, 2) {
		t.Fatal("different track_id under the same class should be new")
	}
	if seen.Count() != 2 {
		t.Fatalf("Count() = %d, want 2", seen.Count())
	}
}

func TestSeenIDsDistinctClassesIndependent(t *testing.T) {
	seen := NewSeenIDs()
	if !seen.CheckAndAdd(0, 1) {
		t.Fatal("(0,1) should be new")
	}
	if !seen.CheckAndAdd(1, 1) {
		t.Fatal("(1,1) should be independent of (0,1)")
	}
}
