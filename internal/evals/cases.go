package evals

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/tidewater/bmc/internal/canvas"
)

// Case is one labeled extraction scenario.
type Case struct {
	ID            string          `json:"id"`
	Description   string          `json:"description"`
	Conversation  string          `json:"conversation"`
	ExistingRaw   json.RawMessage `json:"existing_memory"`
	ExpectedFacts []string        `json:"expected_facts"`
}

// Existing decodes the case's starting memory, defaulting to empty.
func (c Case) Existing() (canvas.BusinessInsights, error) {
	if len(c.ExistingRaw) == 0 || string(c.ExistingRaw) == "null" {
		return canvas.NewInsights(), nil
	}
	return canvas.ParseInsights(c.ExistingRaw)
}

// LoadCases reads labeled cases from a JSON file.
func LoadCases(path string) ([]Case, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read cases %s: %w", path, err)
	}
	var cases []Case
	if err := json.Unmarshal(data, &cases); err != nil {
		return nil, fmt.Errorf("parse cases %s: %w", path, err)
	}
	for i, c := range cases {
		if c.ID == "" {
			return nil, fmt.Errorf("case %d has no id", i)
		}
	}
	return cases, nil
}
