package idhash

import "fmt"

// ComputeLessonID computes a deterministic lesson id.
// Formula: SHA256(kind|pattern_key|category|canonical_scope)
// A re-mine of the same cell yields the same id, so stores upsert.
func ComputeLessonID(kind, patternKey, category, canonicalScope string) string {
	return sum(fmt.Sprintf("%s|%s|%s|%s", kind, patternKey, category, canonicalScope))
}

// ComputeOverrideID computes a deterministic override id.
// Formula: SHA256(override_kind|lesson_id|target)
func ComputeOverrideID(overrideKind, lessonID, target string) string {
	return sum(fmt.Sprintf("%s|%s|%s", overrideKind, lessonID, target))
}
