package canvas

import "sort"

// Synthetic delta categories for the auxiliary lists, alongside the nine
// canvas blocks.
const (
	DeltaConstraints   = "constraints"
	DeltaPendingTopics = "pending_topics"
)

// MemoryDelta reports what changed between two insight snapshots. It is
// derived per turn and never persisted. Categories with an empty difference
// are absent from the maps; callers treat "absent" and "empty" alike.
type MemoryDelta struct {
	Added   map[string][]string `json:"added"`
	Removed map[string][]string `json:"removed"`
}

// HasChanges reports whether anything was added or removed.
func (d MemoryDelta) HasChanges() bool {
	return len(d.Added) > 0 || len(d.Removed) > 0
}

// AddedIn returns the additions for a category, nil when unchanged.
func (d MemoryDelta) AddedIn(category string) []string {
	return d.Added[category]
}

// ComputeDelta diffs two snapshots as sets, per canvas block plus the
// constraints and pending_topics lists. Reordering an unchanged list yields
// an empty delta.
func ComputeDelta(old, new BusinessInsights) MemoryDelta {
	delta := MemoryDelta{
		Added:   make(map[string][]string),
		Removed: make(map[string][]string),
	}

	for _, block := range allBlockKeys(old.CanvasState, new.CanvasState) {
		diffInto(&delta, block, old.CanvasState[block], new.CanvasState[block])
	}
	diffInto(&delta, DeltaConstraints, old.Constraints, new.Constraints)
	diffInto(&delta, DeltaPendingTopics, old.PendingTopics, new.PendingTopics)

	return delta
}

func diffInto(delta *MemoryDelta, category string, old, new []string) {
	added := setDifference(new, old)
	removed := setDifference(old, new)
	if len(added) > 0 {
		delta.Added[category] = added
	}
	if len(removed) > 0 {
		delta.Removed[category] = removed
	}
}

// setDifference returns the members of a not present in b, sorted for
// deterministic output.
func setDifference(a, b []string) []string {
	inB := make(map[string]bool, len(b))
	for _, s := range b {
		inB[s] = true
	}
	seen := make(map[string]bool, len(a))
	var out []string
	for _, s := range a {
		if !inB[s] && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}
