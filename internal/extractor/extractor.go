// Package extractor turns recent conversation turns into updates to a
// user's structured business memory. The extraction oracle proposes a full
// replacement document; the extractor validates it and computes the delta
// against the previous snapshot. On any failure the previous snapshot is
// returned untouched.
package extractor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/tidewater/bmc/internal/canvas"
	"github.com/tidewater/bmc/internal/provider"
)

// ErrMalformedOutput marks oracle responses that failed schema validation.
var ErrMalformedOutput = errors.New("extractor: malformed oracle output")

// Oracle routes a chat request to a provider by caller role. Satisfied by
// *provider.Router.
type Oracle interface {
	Route(ctx context.Context, role string, req *provider.ChatRequest) (*provider.ChatResponse, error)
}

// Result carries the updated snapshot plus what changed. When HasChanges is
// false, Updated is the existing snapshot.
type Result struct {
	Updated    canvas.BusinessInsights
	Delta      canvas.MemoryDelta
	HasChanges bool
}

// Extractor calls the extraction oracle and validates its output.
type Extractor struct {
	oracle Oracle
	model  string
	logger *zap.Logger
}

// New creates an Extractor. model may be empty when the bound provider has
// a default.
func New(oracle Oracle, model string, logger *zap.Logger) *Extractor {
	return &Extractor{oracle: oracle, model: model, logger: logger}
}

// Extract merges facts from the conversation window into existing memory.
// The returned Result always holds a usable snapshot: when the oracle fails
// or returns an invalid document, Extract returns a no-change Result together
// with the error so callers can degrade to a no-op.
func (e *Extractor) Extract(ctx context.Context, existing canvas.BusinessInsights, conversation string) (Result, error) {
	noChange := Result{Updated: existing}

	existingJSON, err := json.Marshal(existing)
	if err != nil {
		return noChange, fmt.Errorf("marshal existing memory: %w", err)
	}

	req := &provider.ChatRequest{
		Model: e.model,
		Messages: []provider.Message{
			{Role: "user", Content: buildPrompt(string(existingJSON), conversation)},
		},
		JSONMode: true,
	}

	resp, err := e.oracle.Route(ctx, provider.RoleExtractor, req)
	if err != nil {
		return noChange, fmt.Errorf("extraction oracle: %w", err)
	}

	updated, err := canvas.ParseInsights([]byte(stripFences(resp.Content)))
	if err != nil {
		e.logger.Warn("extraction output rejected",
			zap.Error(err),
			zap.String("output", previewOutput(resp.Content)))
		return noChange, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}

	delta := canvas.ComputeDelta(existing, updated)
	if !delta.HasChanges() {
		return noChange, nil
	}
	return Result{Updated: updated, Delta: delta, HasChanges: true}, nil
}

// stripFences removes markdown code fences the oracle sometimes wraps
// around its JSON despite instructions.
func stripFences(s string) string {
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}

func previewOutput(s string) string {
	if len(s) > 200 {
		return s[:200] + "..."
	}
	return s
}
