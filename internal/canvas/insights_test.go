package canvas

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestNewInsightsHasAllBlocks(t *testing.T) {
	bi := NewInsights()
	if len(bi.CanvasState) != len(Blocks) {
		t.Fatalf("got %d blocks, want %d", len(bi.CanvasState), len(Blocks))
	}
	for _, b := range Blocks {
		items, ok := bi.CanvasState[b]
		if !ok {
			t.Errorf("block %s missing", b)
		}
		if len(items) != 0 {
			t.Errorf("block %s not empty: %v", b, items)
		}
	}
}

func TestParseInsightsRoundTrip(t *testing.T) {
	bi := NewInsights()
	bi.CanvasState[CustomerSegments] = []string{"Small business owners in the US"}
	bi.Constraints = []string{"No subscription model"}
	bi.PendingTopics = []string{TagSuggestion("Consider 'Direct Sales' in Channels")}

	data, err := json.Marshal(bi)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	parsed, err := ParseInsights(data)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !parsed.Equal(bi) {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", parsed, bi)
	}
}

func TestParseInsightsRejectsNonJSON(t *testing.T) {
	if _, err := ParseInsights([]byte("I could not produce JSON, sorry")); err == nil {
		t.Fatal("expected parse error for non-JSON input")
	}
}

func TestParseInsightsRejectsNestedObjects(t *testing.T) {
	payload := `{
		"canvas_state": {
			"customer_segments": [{"segment": "Gen Z", "size": "large"}]
		}
	}`
	_, err := ParseInsights([]byte(payload))
	if err == nil {
		t.Fatal("nested object inside a canvas list must be rejected, not coerced")
	}
	if !strings.Contains(err.Error(), "customer_segments") {
		t.Errorf("error should name the offending block, got: %v", err)
	}
}

func TestParseInsightsRejectsNonListBlock(t *testing.T) {
	payload := `{"canvas_state": {"channels": "Instagram"}}`
	if _, err := ParseInsights([]byte(payload)); err == nil {
		t.Fatal("expected error for a block that is not a list")
	}
}

func TestParseInsightsFillsMissingBlocks(t *testing.T) {
	payload := `{"canvas_state": {"channels": ["Instagram"]}, "constraints": null}`
	bi, err := ParseInsights([]byte(payload))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	for _, b := range Blocks {
		if _, ok := bi.CanvasState[b]; !ok {
			t.Errorf("block %s should be filled in empty", b)
		}
	}
	if got := bi.CanvasState[Channels]; len(got) != 1 || got[0] != "Instagram" {
		t.Errorf("channels = %v", got)
	}
	if bi.Constraints == nil || len(bi.Constraints) != 0 {
		t.Errorf("null constraints should decode to empty list, got %v", bi.Constraints)
	}
}

func TestEqualIgnoresNilVsEmpty(t *testing.T) {
	a := NewInsights()
	b := NewInsights()
	b.Constraints = nil
	if !a.Equal(b) {
		t.Error("nil and empty constraint lists should compare equal")
	}
}

func TestSuggestionTagging(t *testing.T) {
	tagged := TagSuggestion("Add 'Direct Sales' to Channels")
	if !IsSuggestion(tagged) {
		t.Errorf("tagged entry not recognized: %q", tagged)
	}
	if IsSuggestion("Decide between corporate gifting vs personal use") {
		t.Error("plain pending topic misidentified as system suggestion")
	}
}

func TestCanvasStateMarshalOrder(t *testing.T) {
	bi := NewInsights()
	data, err := json.Marshal(bi.CanvasState)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	s := string(data)
	prev := -1
	for _, b := range Blocks {
		idx := strings.Index(s, `"`+b+`"`)
		if idx < 0 {
			t.Fatalf("block %s missing from output", b)
		}
		if idx < prev {
			t.Errorf("block %s out of canonical order", b)
		}
		prev = idx
	}
}
