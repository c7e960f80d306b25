package evals

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tidewater/bmc/internal/provider"
)

const judgePrompt = `
You are a Fact Extraction Auditor.

## Input 1: CONVERSATION
%s

## Input 2: EXISTING MEMORY
%s

## Input 3: EXTRACTED OUTPUT
%s

---

## Your Task

### Step 1: List Conversation Facts
List ALL business facts that the USER explicitly stated or agreed to in the conversation.
Only include facts where the user made a clear statement or gave explicit confirmation.
Do NOT include expert suggestions that the user didn't confirm.

Format each fact as: "category: fact_content"
Categories: customer_segments, value_propositions, channels, customer_relationships,
revenue_streams, key_resources, key_activities, key_partnerships, cost_structure,
constraint, preference, pending_topic

### Step 2: List Extracted Facts
List ALL facts present in the EXTRACTED OUTPUT that are NEW (not already in EXISTING MEMORY).
Use the same format: "category: fact_content"

### Step 3: Identify Issues
- **Missed Facts**: Facts from Step 1 that are NOT captured in Step 2
- **Hallucinations**: Facts in Step 2 that are NOT supported by the conversation in Step 1

Output as JSON only, no markdown:
{
  "conversation_facts": ["fact1", "fact2"],
  "extracted_facts": ["fact1", "fact3"],
  "missed_facts": ["fact2"],
  "hallucinated_facts": ["fact3"],
  "reasoning": "Brief explanation of your analysis"
}
`

// JudgeResult is the judge's fact enumeration for one extraction.
type JudgeResult struct {
	ConversationFacts []string `json:"conversation_facts"`
	ExtractedFacts    []string `json:"extracted_facts"`
	MissedFacts       []string `json:"missed_facts"`
	HallucinatedFacts []string `json:"hallucinated_facts"`
	Reasoning         string   `json:"reasoning"`
}

// Metrics computes precision, recall, and F1 from the enumeration. The
// judge only lists facts; the scoring is programmatic.
func (r JudgeResult) Metrics() Metrics {
	tp := len(r.ExtractedFacts) - len(r.HallucinatedFacts)
	return ComputeMetrics(tp, len(r.HallucinatedFacts), len(r.MissedFacts))
}

// Oracle routes a chat request by caller role. Satisfied by *provider.Router.
type Oracle interface {
	Route(ctx context.Context, role string, req *provider.ChatRequest) (*provider.ChatResponse, error)
}

// Judge asks an oracle to enumerate facts for scoring. Runs offline only,
// so it retries transient failures with backoff, unlike the live pipeline.
type Judge struct {
	oracle  Oracle
	model   string
	retries int
	backoff time.Duration
	logger  *zap.Logger
}

// NewJudge creates a judge with default retry behavior.
func NewJudge(oracle Oracle, model string, logger *zap.Logger) *Judge {
	return &Judge{oracle: oracle, model: model, retries: 3, backoff: 2 * time.Second, logger: logger}
}

// Evaluate enumerates the facts in one extraction run.
func (j *Judge) Evaluate(ctx context.Context, conversation, existingJSON, extractedJSON string) (JudgeResult, error) {
	req := &provider.ChatRequest{
		Model: j.model,
		Messages: []provider.Message{
			{Role: "user", Content: fmt.Sprintf(judgePrompt, conversation, existingJSON, extractedJSON)},
		},
		JSONMode: true,
	}

	var lastErr error
	for attempt := 0; attempt < j.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return JudgeResult{}, ctx.Err()
			case <-time.After(j.backoff * time.Duration(attempt)):
			}
		}

		resp, err := j.oracle.Route(ctx, provider.RoleJudge, req)
		if err != nil {
			lastErr = err
			j.logger.Warn("judge call failed", zap.Int("attempt", attempt+1), zap.Error(err))
			continue
		}

		var result JudgeResult
		if err := json.Unmarshal([]byte(stripFences(resp.Content)), &result); err != nil {
			lastErr = fmt.Errorf("parse judge output: %w", err)
			j.logger.Warn("judge output unparseable", zap.Int("attempt", attempt+1), zap.Error(err))
			continue
		}
		return result, nil
	}
	return JudgeResult{}, fmt.Errorf("judge failed after %d attempts: %w", j.retries, lastErr)
}

func stripFences(s string) string {
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}
