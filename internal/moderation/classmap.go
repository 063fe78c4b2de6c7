package moderation

// Fixed class-id tables (§6 / §3) — reproduced byte-for-byte from the spec.
// class_id -> display name (the event's "detail" field).
var classDisplayNames = map[int]string{
	0: "술",
	1: "술잔",
	2: "드라이버",
	3: "담배",
	4: "커터칼",
	5: "칼",
	6: "불",
	7: "총",
	8: "라이터",
}

// class_id -> event category.
var classCategories = map[int]string{
	0: "음주",
	1: "음주",
	2: "날카로운 도구",
	3: "흡연",
	4: "날카로운 도구",
	5: "날카로운 도구",
	6: "화기류",
	7: "총기류",
	8: "화기류",
}

// categoryToClassIDs is the fixed category-key -> class-id set map (§3).
var categoryToClassIDs = map[string][]int{
	"smoke":        {3},
	"drink":        {0, 1},
	"sharpObjects": {2, 4, 5},
	"flammables":   {6, 8},
	"firearms":     {7},
	"exposure":     {},
}

// ClassDisplayName returns the fixed display name for a class id, or "기타"
// (the external interface's fallback "detail") if the class is unknown.
func ClassDisplayName(classID int) string {
	if name, ok := classDisplayNames[classID]; ok {
		return name
	}
	return "기타"
}

// ClassCategory returns the fixed event category for a class id, or "기타".
func ClassCategory(classID int) string {
	if cat, ok := classCategories[classID]; ok {
		return cat
	}
	return "기타"
}

// AllowedClassIDs derives the set of allowed class ids from the current
// video-category flags via the fixed category map (§3). The returned set is
// empty (not nil) when every category is false — fail-closed behavior is the
// caller's responsibility (see FilterDetections).
func AllowedClassIDs(categories map[string]bool) map[int]struct{} {
	out := make(map[int]struct{})
	for cat, enabled := range categories {
		if !enabled {
			continue
		}
		for _, id := range categoryToClassIDs[cat] {
			out[id] = struct{}{}
		}
	}
	return out
}
