package pricing

import (
	"fmt"
	"os"

	"github.com/signalnine/benchwatch/internal/result"
	"gopkg.in/yaml.v3"
)

type ModelPricing struct {
	Input  float64 `yaml:"input"`
	Output float64 `yaml:"output"`
}

// Table maps model identifiers to per-1K-token prices. Used to estimate
// attempt cost when the agent CLI reports token usage but no cost.
type Table struct {
	Models map[string]ModelPricing
}

func Load(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading pricing file: %w", err)
	}
	var models map[string]ModelPricing
	if err := yaml.Unmarshal(data, &models); err != nil {
		return nil, fmt.Errorf("parsing pricing file: %w", err)
	}
	return &Table{Models: models}, nil
}

// Cost calculates total cost for one model's usage. Prices are per 1K tokens.
// Unknown models price at zero.
func (t *Table) Cost(model string, inputTokens, outputTokens int) float64 {
	if t == nil || t.Models == nil {
		return 0
	}
	p, ok := t.Models[model]
	if !ok {
		return 0
	}
	return (float64(inputTokens)/1000.0)*p.Input + (float64(outputTokens)/1000.0)*p.Output
}

// Estimate sums the cost of a merged usage map.
func (t *Table) Estimate(usage map[string]result.ModelUsage) float64 {
	var total float64
	for model, u := range usage {
		total += t.Cost(model, u.InputTokens, u.OutputTokens)
	}
	return total
}
