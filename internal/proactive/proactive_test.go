package proactive

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/tidewater/bmc/internal/canvas"
	"github.com/tidewater/bmc/internal/provider"
)

type stubOracle struct {
	content string
	err     error
	calls   int
}

func (s *stubOracle) Route(_ context.Context, _ string, _ *provider.ChatRequest) (*provider.ChatResponse, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &provider.ChatResponse{Content: s.content}, nil
}

func deltaWithAdded(category string, items ...string) canvas.MemoryDelta {
	return canvas.MemoryDelta{
		Added:   map[string][]string{category: items},
		Removed: map[string][]string{},
	}
}

func TestGenerateSkipsOracleWhenNothingAdded(t *testing.T) {
	oracle := &stubOracle{}
	e := NewEngine(oracle, "test-model", zap.NewNop())

	delta := canvas.MemoryDelta{
		Added:   map[string][]string{},
		Removed: map[string][]string{canvas.Channels: {"Instagram"}},
	}
	s := e.Generate(context.Background(), delta, canvas.NewCanvasState(), "Retail")
	if s.ShouldShow() {
		t.Error("removal-only delta must not produce a suggestion")
	}
	if oracle.calls != 0 {
		t.Errorf("oracle calls = %d, want 0 (gate must reject before calling)", oracle.calls)
	}
}

func TestGenerateSkipsOracleForUnmappedCategory(t *testing.T) {
	oracle := &stubOracle{}
	e := NewEngine(oracle, "test-model", zap.NewNop())

	s := e.Generate(context.Background(),
		deltaWithAdded(canvas.DeltaConstraints, "No subscription model"),
		canvas.NewCanvasState(), "Retail")
	if s.ShouldShow() {
		t.Error("constraints-only delta must not produce a suggestion")
	}
	if oracle.calls != 0 {
		t.Errorf("oracle calls = %d, want 0", oracle.calls)
	}
}

func TestGenerateCallsOracleForCanvasAddition(t *testing.T) {
	oracle := &stubOracle{content: `{
		"suggestion": "Add 'Direct Sales' to Channels - enterprise customers typically need dedicated sales reps.",
		"target_block": "channels",
		"confidence": 0.85
	}`}
	e := NewEngine(oracle, "test-model", zap.NewNop())

	s := e.Generate(context.Background(),
		deltaWithAdded(canvas.CustomerSegments, "Enterprise customers"),
		canvas.NewCanvasState(), "SaaS")
	if oracle.calls != 1 {
		t.Fatalf("oracle calls = %d, want 1", oracle.calls)
	}
	if !s.ShouldShow() {
		t.Fatalf("suggestion should be showable: %+v", s)
	}
	if s.TargetBlock != canvas.Channels {
		t.Errorf("target block = %q", s.TargetBlock)
	}
	want := "[SYS] Add 'Direct Sales' to Channels - enterprise customers typically need dedicated sales reps."
	if s.Tagged() != want {
		t.Errorf("tagged = %q, want %q", s.Tagged(), want)
	}
}

func TestShouldShowConfidenceBoundary(t *testing.T) {
	at := Suggestion{Suggestion: "Add 'X' to Channels", Confidence: 0.6}
	if !at.ShouldShow() {
		t.Error("confidence exactly at the threshold must show")
	}
	below := Suggestion{Suggestion: "Add 'X' to Channels", Confidence: 0.5999}
	if below.ShouldShow() {
		t.Error("confidence below the threshold must not show")
	}
	empty := Suggestion{Confidence: 0.9}
	if empty.ShouldShow() {
		t.Error("empty suggestion text must never show")
	}
}

func TestGenerateNullSuggestion(t *testing.T) {
	oracle := &stubOracle{content: `{"suggestion": null, "target_block": null, "confidence": 0.0}`}
	e := NewEngine(oracle, "test-model", zap.NewNop())

	s := e.Generate(context.Background(),
		deltaWithAdded(canvas.Channels, "Instagram"),
		canvas.NewCanvasState(), "")
	if s.ShouldShow() {
		t.Errorf("null suggestion must not show: %+v", s)
	}
}

func TestGenerateMalformedOutputDegrades(t *testing.T) {
	oracle := &stubOracle{content: "I think you should consider channels."}
	e := NewEngine(oracle, "test-model", zap.NewNop())

	s := e.Generate(context.Background(),
		deltaWithAdded(canvas.Channels, "Instagram"),
		canvas.NewCanvasState(), "Retail")
	if s.ShouldShow() {
		t.Errorf("unparseable output must degrade to no suggestion: %+v", s)
	}
}

func TestGenerateOracleErrorDegrades(t *testing.T) {
	oracle := &stubOracle{err: errors.New("upstream down")}
	e := NewEngine(oracle, "test-model", zap.NewNop())

	s := e.Generate(context.Background(),
		deltaWithAdded(canvas.ValuePropositions, "FOR x, WE DELIVER y, BY z, SO THAT w"),
		canvas.NewCanvasState(), "Retail")
	if s.ShouldShow() {
		t.Error("oracle failure must degrade to no suggestion")
	}
}

func TestImplicationsTable(t *testing.T) {
	for _, b := range canvas.Blocks {
		if len(Implications(b)) == 0 {
			t.Errorf("block %s has no implications mapped", b)
		}
	}
	if Implications(canvas.DeltaConstraints) != nil {
		t.Error("constraints must not appear in the implication table")
	}
}
