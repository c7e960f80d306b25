// Package evals scores the memory extraction pipeline offline. Fact-level
// precision and recall come either from an oracle judge that enumerates
// facts, or from a cheap structural overlap for fast local runs. Reply
// quality is covered by deterministic rule checks.
package evals

import (
	"fmt"
	"strings"

	"github.com/tidewater/bmc/internal/canvas"
)

// Metrics holds fact-level scores for one extraction.
type Metrics struct {
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	TP        int     `json:"tp"`
	FP        int     `json:"fp"`
	FN        int     `json:"fn"`
}

// ComputeMetrics derives precision, recall, and F1 from raw counts. With no
// positives at all, precision and recall default to 1.0 (an empty extraction
// of an empty conversation is correct).
func ComputeMetrics(tp, fp, fn int) Metrics {
	if tp < 0 {
		tp = 0
	}
	m := Metrics{TP: tp, FP: fp, FN: fn, Precision: 1.0, Recall: 1.0}
	if tp+fp > 0 {
		m.Precision = float64(tp) / float64(tp+fp)
	}
	if tp+fn > 0 {
		m.Recall = float64(tp) / float64(tp+fn)
	}
	if m.Precision+m.Recall > 0 {
		m.F1 = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
	}
	return m
}

// FlattenFacts renders a snapshot as "category: fact" strings, the format
// both the judge and the overlap metric work in.
func FlattenFacts(bi canvas.BusinessInsights) []string {
	var facts []string
	for _, block := range canvas.Blocks {
		for _, item := range bi.CanvasState[block] {
			facts = append(facts, fmt.Sprintf("%s: %s", block, item))
		}
	}
	for _, c := range bi.Constraints {
		facts = append(facts, "constraint: "+c)
	}
	for _, p := range bi.Preferences {
		facts = append(facts, "preference: "+p)
	}
	for _, t := range bi.PendingTopics {
		facts = append(facts, "pending_topic: "+t)
	}
	return facts
}

// FactOverlap scores an extraction against expected facts without an
// oracle. A fact matches when either side's content contains the other's,
// case-insensitively, so minor rewording still counts.
func FactOverlap(expected []string, actual canvas.BusinessInsights) Metrics {
	actualFacts := FlattenFacts(actual)

	tp := 0
	for _, exp := range expected {
		expContent := factContent(exp)
		for _, act := range actualFacts {
			actContent := factContent(act)
			if strings.Contains(actContent, expContent) || strings.Contains(expContent, actContent) {
				tp++
				break
			}
		}
	}

	fp := len(actualFacts) - tp
	if fp < 0 {
		fp = 0
	}
	fn := len(expected) - tp
	if fn < 0 {
		fn = 0
	}
	return ComputeMetrics(tp, fp, fn)
}

// factContent strips the "category:" prefix and normalizes for comparison.
func factContent(fact string) string {
	if i := strings.Index(fact, ":"); i >= 0 {
		fact = fact[i+1:]
	}
	return strings.ToLower(strings.TrimSpace(fact))
}
