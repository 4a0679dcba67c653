// Package cost defines domain types for LLM usage and cost aggregation.
package cost

import "time"

// UsageRecord is a single LLM API call's token usage and estimated cost.
// Records are append-only and never mutated.
type UsageRecord struct {
	Agent     string    `json:"agent"`
	Model     string    `json:"model"`
	TokensIn  int       `json:"input_tokens"`
	TokensOut int       `json:"output_tokens"`
	CostUSD   float64   `json:"cost_usd"`
	Timestamp time.Time `json:"timestamp"`
}

// Summary is a snapshot of accumulated cost, broken down by agent and model.
type Summary struct {
	TotalCostUSD   float64            `json:"total_cost_usd"`
	TotalTokensIn  int64              `json:"total_input_tokens"`
	TotalTokensOut int64              `json:"total_output_tokens"`
	APICalls       int                `json:"api_calls"`
	ByAgent        map[string]float64 `json:"by_agent"`
	ByModel        map[string]float64 `json:"by_model"`
}
