package lesson

import "sort"

// State is an immutable snapshot of a controller's progress. The zero value
// describes an empty module.
type State struct {
	// ActiveIndex is the active position, or -1 when the module is empty.
	ActiveIndex int
	completed   map[string]struct{}
	total       int
}

// IsCompleted reports whether the unit was completed when the snapshot was taken.
func (s State) IsCompleted(id string) bool {
	_, ok := s.completed[id]
	return ok
}

// CompletedCount returns the number of completed units.
func (s State) CompletedCount() int {
	return len(s.completed)
}

// Total returns the number of units in the module.
func (s State) Total() int {
	return s.total
}

// CompletedIDs returns the completed unit ids in lexical order.
func (s State) CompletedIDs() []string {
	ids := make([]string, 0, len(s.completed))
	for id := range s.completed {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// IsModuleComplete reports whether every unit is completed.
func (s State) IsModuleComplete() bool {
	return s.total > 0 && len(s.completed) == s.total
}

// ProgressPercent returns the completed share of units in [0, 100].
func (s State) ProgressPercent() float64 {
	return percent(len(s.completed), s.total)
}
