package curriculum

import "testing"

func orderedConcepts() []Concept {
	return []Concept{
		{ID: "caching-basics", SortOrder: 1, PrerequisiteConceptIDs: []string{}},
		{ID: "cache-invalidation", SortOrder: 2, PrerequisiteConceptIDs: []string{"caching-basics"}},
		{ID: "distributed-caching", SortOrder: 3, PrerequisiteConceptIDs: []string{"caching-basics", "cache-invalidation"}},
	}
}

func TestNextConcept(t *testing.T) {
	tests := []struct {
		name      string
		completed []string
		want      string
	}{
		{"nothing completed", nil, "caching-basics"},
		{"first completed unlocks second", []string{"caching-basics"}, "cache-invalidation"},
		{"skipping ahead stays gated", []string{"cache-invalidation"}, "caching-basics"},
		{"all completed", []string{"caching-basics", "cache-invalidation", "distributed-caching"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NextConcept(orderedConcepts(), CompletedSet(tt.completed))
			if got != tt.want {
				t.Errorf("NextConcept() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNextConceptDanglingPrerequisiteBlocks(t *testing.T) {
	concepts := []Concept{
		{ID: "advanced-only", SortOrder: 1, PrerequisiteConceptIDs: []string{"never-published"}},
	}
	if got := NextConcept(concepts, CompletedSet(nil)); got != "" {
		t.Errorf("NextConcept() = %q, want no recommendation while prerequisite is missing", got)
	}
}

// Completing concepts must never move the recommendation backwards in the
// ordered list.
func TestNextConceptMonotonic(t *testing.T) {
	concepts := orderedConcepts()
	completed := map[string]bool{}

	prevIndex := -1
	for range concepts {
		next := NextConcept(concepts, completed)
		if next == "" {
			t.Fatal("NextConcept() returned nothing before the list was exhausted")
		}
		index := -1
		for i, c := range concepts {
			if c.ID == next {
				index = i
			}
		}
		if index <= prevIndex {
			t.Fatalf("recommendation moved backwards: index %d after %d", index, prevIndex)
		}
		prevIndex = index
		completed[next] = true
	}
	if got := NextConcept(concepts, completed); got != "" {
		t.Errorf("NextConcept() = %q after completing everything, want \"\"", got)
	}
}
