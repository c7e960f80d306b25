package canvas

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// The nine Business Model Canvas blocks. Every CanvasState carries all of
// them, even when empty.
const (
	CustomerSegments      = "customer_segments"
	ValuePropositions     = "value_propositions"
	Channels              = "channels"
	CustomerRelationships = "customer_relationships"
	RevenueStreams        = "revenue_streams"
	KeyResources          = "key_resources"
	KeyActivities         = "key_activities"
	KeyPartnerships       = "key_partnerships"
	CostStructure         = "cost_structure"
)

// Blocks lists the canvas categories in canonical order.
var Blocks = []string{
	CustomerSegments,
	ValuePropositions,
	Channels,
	CustomerRelationships,
	RevenueStreams,
	KeyResources,
	KeyActivities,
	KeyPartnerships,
	CostStructure,
}

// IsBlock reports whether name is one of the nine canvas categories.
func IsBlock(name string) bool {
	for _, b := range Blocks {
		if b == name {
			return true
		}
	}
	return false
}

// SuggestionPrefix marks pending_topics entries that originate from the
// proactive advisor rather than from the user's own open questions.
const SuggestionPrefix = "[SYS] "

// TagSuggestion prefixes a suggestion so its provenance survives in
// pending_topics.
func TagSuggestion(text string) string {
	return SuggestionPrefix + text
}

// IsSuggestion reports whether a pending_topics entry is system-generated.
func IsSuggestion(entry string) bool {
	return strings.HasPrefix(entry, SuggestionPrefix)
}

// CanvasState maps each canvas block to its ordered fact list. Order is
// insertion order; value_propositions converges to a single entry.
type CanvasState map[string][]string

// NewCanvasState returns a state with all nine blocks present and empty.
func NewCanvasState() CanvasState {
	cs := make(CanvasState, len(Blocks))
	for _, b := range Blocks {
		cs[b] = []string{}
	}
	return cs
}

// BusinessInsights is the structured semantic memory for one business user:
// the canvas itself plus constraints (hard negative facts), interaction
// preferences, and unresolved pending topics.
type BusinessInsights struct {
	CanvasState   CanvasState `json:"canvas_state"`
	Constraints   []string    `json:"constraints"`
	Preferences   []string    `json:"preferences"`
	PendingTopics []string    `json:"pending_topics"`
}

// NewInsights returns a default-empty BusinessInsights.
func NewInsights() BusinessInsights {
	return BusinessInsights{
		CanvasState:   NewCanvasState(),
		Constraints:   []string{},
		Preferences:   []string{},
		PendingTopics: []string{},
	}
}

// Clone returns a deep copy.
func (bi BusinessInsights) Clone() BusinessInsights {
	out := BusinessInsights{
		CanvasState:   make(CanvasState, len(bi.CanvasState)),
		Constraints:   append([]string{}, bi.Constraints...),
		Preferences:   append([]string{}, bi.Preferences...),
		PendingTopics: append([]string{}, bi.PendingTopics...),
	}
	for block, items := range bi.CanvasState {
		out.CanvasState[block] = append([]string{}, items...)
	}
	return out
}

// Equal compares two snapshots, treating nil and empty lists as the same.
// Used to detect no-op extraction results.
func (bi BusinessInsights) Equal(other BusinessInsights) bool {
	if !listsEqual(bi.Constraints, other.Constraints) ||
		!listsEqual(bi.Preferences, other.Preferences) ||
		!listsEqual(bi.PendingTopics, other.PendingTopics) {
		return false
	}
	for _, b := range allBlockKeys(bi.CanvasState, other.CanvasState) {
		if !listsEqual(bi.CanvasState[b], other.CanvasState[b]) {
			return false
		}
	}
	return true
}

func listsEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func allBlockKeys(states ...CanvasState) []string {
	seen := make(map[string]bool)
	var keys []string
	for _, cs := range states {
		for b := range cs {
			if !seen[b] {
				seen[b] = true
				keys = append(keys, b)
			}
		}
	}
	sort.Strings(keys)
	return keys
}

// ParseInsights decodes a JSON document into BusinessInsights under the flat
// schema contract: every canvas value must be a list of strings. Nested
// objects or non-string entries are a parse failure, never coerced. Missing
// blocks are filled in empty so the result is always fully populated.
func ParseInsights(data []byte) (BusinessInsights, error) {
	var raw struct {
		CanvasState   map[string]json.RawMessage `json:"canvas_state"`
		Constraints   json.RawMessage            `json:"constraints"`
		Preferences   json.RawMessage            `json:"preferences"`
		PendingTopics json.RawMessage            `json:"pending_topics"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return BusinessInsights{}, fmt.Errorf("decode insights: %w", err)
	}

	out := NewInsights()
	for block, rawItems := range raw.CanvasState {
		items, err := decodeStringList(rawItems)
		if err != nil {
			return BusinessInsights{}, fmt.Errorf("canvas block %q: %w", block, err)
		}
		out.CanvasState[block] = items
	}

	var err error
	if out.Constraints, err = decodeOptionalList(raw.Constraints); err != nil {
		return BusinessInsights{}, fmt.Errorf("constraints: %w", err)
	}
	if out.Preferences, err = decodeOptionalList(raw.Preferences); err != nil {
		return BusinessInsights{}, fmt.Errorf("preferences: %w", err)
	}
	if out.PendingTopics, err = decodeOptionalList(raw.PendingTopics); err != nil {
		return BusinessInsights{}, fmt.Errorf("pending_topics: %w", err)
	}
	return out, nil
}

// decodeStringList enforces the list-of-strings shape. A JSON array whose
// elements are anything but strings fails.
func decodeStringList(raw json.RawMessage) ([]string, error) {
	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return nil, fmt.Errorf("expected a list of strings: %w", err)
	}
	items := make([]string, 0, len(elems))
	for _, e := range elems {
		var s string
		if err := json.Unmarshal(e, &s); err != nil {
			return nil, fmt.Errorf("expected a string entry, got %s", truncate(string(e), 60))
		}
		items = append(items, s)
	}
	return items, nil
}

func decodeOptionalList(raw json.RawMessage) ([]string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return []string{}, nil
	}
	return decodeStringList(raw)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

// MarshalJSON keeps block order stable by emitting the canonical nine blocks
// first, then any extra keys sorted.
func (cs CanvasState) MarshalJSON() ([]byte, error) {
	var b strings.Builder
	b.WriteByte('{')
	first := true
	write := func(block string, items []string) error {
		if !first {
			b.WriteByte(',')
		}
		first = false
		key, err := json.Marshal(block)
		if err != nil {
			return err
		}
		if items == nil {
			items = []string{}
		}
		val, err := json.Marshal(items)
		if err != nil {
			return err
		}
		b.Write(key)
		b.WriteByte(':')
		b.Write(val)
		return nil
	}
	for _, block := range Blocks {
		if items, ok := cs[block]; ok {
			if err := write(block, items); err != nil {
				return nil, err
			}
		}
	}
	var extra []string
	for block := range cs {
		if !IsBlock(block) {
			extra = append(extra, block)
		}
	}
	sort.Strings(extra)
	for _, block := range extra {
		if err := write(block, cs[block]); err != nil {
			return nil, err
		}
	}
	b.WriteByte('}')
	return []byte(b.String()), nil
}
