// Package proactive generates cross-canvas suggestions from memory deltas.
// When a user commits a fact to one canvas block, related blocks often have
// an obvious follow-on; the engine surfaces those as tagged pending topics
// without mixing into any expert persona.
package proactive

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/tidewater/bmc/internal/canvas"
	"github.com/tidewater/bmc/internal/provider"
)

// MinConfidence is the display threshold. Suggestions at or above it are
// shown; exactly at the boundary counts as showable.
const MinConfidence = 0.6

// implications maps each canvas block to the blocks a change there most
// often affects. A delta touching none of these never reaches the oracle.
var implications = map[string][]string{
	canvas.CustomerSegments:      {canvas.Channels, canvas.CustomerRelationships, canvas.ValuePropositions},
	canvas.ValuePropositions:     {canvas.CustomerSegments, canvas.RevenueStreams, canvas.KeyActivities},
	canvas.Channels:              {canvas.CustomerRelationships, canvas.KeyPartnerships},
	canvas.CustomerRelationships: {canvas.Channels, canvas.KeyResources},
	canvas.RevenueStreams:        {canvas.ValuePropositions, canvas.CostStructure},
	canvas.KeyResources:          {canvas.KeyActivities, canvas.KeyPartnerships, canvas.CostStructure},
	canvas.KeyActivities:         {canvas.KeyResources, canvas.KeyPartnerships, canvas.CostStructure},
	canvas.KeyPartnerships:       {canvas.KeyActivities, canvas.KeyResources, canvas.Channels},
	canvas.CostStructure:         {canvas.KeyResources, canvas.KeyActivities, canvas.RevenueStreams},
}

// Implications returns the blocks related to a canvas block, nil when the
// block has no mapped implications.
func Implications(block string) []string {
	return implications[block]
}

// Suggestion is one proactive hint. Suggestion and TargetBlock are empty
// when the engine decided there is nothing worth saying.
type Suggestion struct {
	Suggestion  string  `json:"suggestion"`
	TargetBlock string  `json:"target_block"`
	Confidence  float64 `json:"confidence"`
}

// ShouldShow reports whether the suggestion clears the display threshold.
func (s Suggestion) ShouldShow() bool {
	return s.Suggestion != "" && s.Confidence >= MinConfidence
}

// Tagged returns the suggestion text with the system prefix, ready to be
// appended to pending_topics.
func (s Suggestion) Tagged() string {
	return canvas.TagSuggestion(s.Suggestion)
}

// Oracle routes a chat request by caller role. Satisfied by *provider.Router.
type Oracle interface {
	Route(ctx context.Context, role string, req *provider.ChatRequest) (*provider.ChatResponse, error)
}

// Engine turns deltas into suggestions via the suggestion oracle.
type Engine struct {
	oracle Oracle
	model  string
	logger *zap.Logger
}

// NewEngine creates a suggestion engine.
func NewEngine(oracle Oracle, model string, logger *zap.Logger) *Engine {
	return &Engine{oracle: oracle, model: model, logger: logger}
}

// hasCrossCanvasPotential gates the oracle: only additions to blocks with
// mapped implications justify a call. Removals alone never trigger one.
func hasCrossCanvasPotential(delta canvas.MemoryDelta) bool {
	for block := range delta.Added {
		if _, ok := implications[block]; ok {
			return true
		}
	}
	return false
}

// Generate produces a suggestion for the given delta, or an empty one when
// the delta has no cross-canvas potential or the oracle output is unusable.
// Errors never propagate; a failed suggestion is simply not shown.
func (e *Engine) Generate(ctx context.Context, delta canvas.MemoryDelta, state canvas.CanvasState, sector string) Suggestion {
	none := Suggestion{}
	if !hasCrossCanvasPotential(delta) {
		return none
	}

	deltaJSON, err := json.MarshalIndent(delta, "", "  ")
	if err != nil {
		return none
	}
	stateJSON, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return none
	}
	if sector == "" {
		sector = "General"
	}

	req := &provider.ChatRequest{
		Model:       e.model,
		Temperature: 0.3,
		Messages: []provider.Message{
			{Role: "user", Content: fmt.Sprintf(suggestionPrompt, deltaJSON, stateJSON, sector)},
		},
		JSONMode: true,
	}

	resp, err := e.oracle.Route(ctx, provider.RoleSuggester, req)
	if err != nil {
		e.logger.Warn("suggestion oracle failed", zap.Error(err))
		return none
	}

	var raw struct {
		Suggestion  *string  `json:"suggestion"`
		TargetBlock *string  `json:"target_block"`
		Confidence  *float64 `json:"confidence"`
	}
	content := stripFences(resp.Content)
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		e.logger.Warn("suggestion output not valid JSON", zap.Error(err))
		return none
	}

	s := Suggestion{Confidence: 0.5}
	if raw.Suggestion != nil {
		s.Suggestion = *raw.Suggestion
	}
	if raw.TargetBlock != nil {
		s.TargetBlock = *raw.TargetBlock
	}
	if raw.Confidence != nil {
		s.Confidence = *raw.Confidence
	}

	if s.ShouldShow() {
		e.logger.Info("generated proactive suggestion",
			zap.String("target_block", s.TargetBlock),
			zap.Float64("confidence", s.Confidence))
	} else {
		e.logger.Debug("suggestion below confidence threshold",
			zap.Float64("confidence", s.Confidence))
	}
	return s
}

func stripFences(s string) string {
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}
