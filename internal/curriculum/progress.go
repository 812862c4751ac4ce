package curriculum

// NextConcept returns the id of the next recommended concept: the first
// concept in the sortOrder-ordered list that is not yet completed and whose
// entire prerequisite set is completed. Returns "" when nothing qualifies —
// the learner finished everything, or a prerequisite gap/cycle blocks all
// remaining concepts.
//
// Deterministic: depends only on the list order and completed-set
// membership.
func NextConcept(ordered []Concept, completed map[string]bool) string {
	for _, c := range ordered {
		if completed[c.ID] {
			continue
		}
		if prerequisitesMet(c, completed) {
			return c.ID
		}
	}
	return ""
}

func prerequisitesMet(c Concept, completed map[string]bool) bool {
	for _, pid := range c.PrerequisiteConceptIDs {
		if !completed[pid] {
			return false
		}
	}
	return true
}

// CompletedSet converts a completed-concept id list into the membership set
// NextConcept consumes.
func CompletedSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}
