// Package cost implements the thread-safe LLM usage and cost accumulator.
package cost

import (
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Strob0t/AgentCorp/internal/domain/cost"
)

// Pricing is USD per one million tokens.
type Pricing struct {
	Input  float64
	Output float64
}

// defaultPricing covers common models. Operators extend it at runtime via
// SetPricing; unknown models cost $0 rather than failing, since cost
// tracking is advisory and must never interrupt task execution.
var defaultPricing = map[string]Pricing{
	// Anthropic
	"claude-sonnet-4-5-20250929": {Input: 3.00, Output: 15.00},
	"claude-opus-4-6":            {Input: 15.00, Output: 75.00},
	"claude-haiku-4-5-20251001":  {Input: 0.80, Output: 4.00},
	// OpenAI
	"gpt-4o":        {Input: 2.50, Output: 10.00},
	"gpt-4o-mini":   {Input: 0.15, Output: 0.60},
	"gpt-4-turbo":   {Input: 10.00, Output: 30.00},
	"gpt-3.5-turbo": {Input: 0.50, Output: 1.50},
}

// Tracker accumulates per-call usage records and running totals. All methods
// are safe for concurrent use from multiple task goroutines.
type Tracker struct {
	mu             sync.Mutex
	records        []cost.UsageRecord
	totalTokensIn  int64
	totalTokensOut int64
	totalCostUSD   float64
	pricing        map[string]Pricing
}

// NewTracker creates a tracker seeded with the default pricing table.
func NewTracker() *Tracker {
	pricing := make(map[string]Pricing, len(defaultPricing))
	for k, v := range defaultPricing {
		pricing[k] = v
	}
	return &Tracker{pricing: pricing}
}

// SetPricing sets or overrides pricing for a model, in USD per 1M tokens.
func (t *Tracker) SetPricing(model string, inputPer1M, outputPer1M float64) {
	t.mu.Lock()
	t.pricing[model] = Pricing{Input: inputPer1M, Output: outputPer1M}
	t.mu.Unlock()
}

// EstimateCost returns the estimated USD cost of a call. The model is looked
// up exactly first, then by longest prefix so dated version suffixes
// (e.g. "gpt-4o-2024-11-20") still match. Unknown models cost $0.
func (t *Tracker) EstimateCost(model string, tokensIn, tokensOut int) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.estimateLocked(model, tokensIn, tokensOut)
}

func (t *Tracker) estimateLocked(model string, tokensIn, tokensOut int) float64 {
	p, ok := t.pricing[model]
	if !ok {
		best := -1
		for key, candidate := range t.pricing {
			if strings.HasPrefix(model, key) && len(key) > best {
				p = candidate
				best = len(key)
				ok = true
			}
		}
	}
	if !ok {
		return 0
	}
	return (float64(tokensIn)*p.Input + float64(tokensOut)*p.Output) / 1_000_000
}

// Record appends a usage record and updates running totals.
func (t *Tracker) Record(agent, model string, tokensIn, tokensOut int) cost.UsageRecord {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec := cost.UsageRecord{
		Agent:     agent,
		Model:     model,
		TokensIn:  tokensIn,
		TokensOut: tokensOut,
		CostUSD:   t.estimateLocked(model, tokensIn, tokensOut),
		Timestamp: time.Now().UTC(),
	}
	t.records = append(t.records, rec)
	t.totalTokensIn += int64(tokensIn)
	t.totalTokensOut += int64(tokensOut)
	t.totalCostUSD += rec.CostUSD
	return rec
}

// TotalCostUSD returns the accumulated estimated spend.
func (t *Tracker) TotalCostUSD() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.totalCostUSD
}

// CallCount returns the number of recorded API calls.
func (t *Tracker) CallCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.records)
}

// Summary returns a snapshot with per-agent and per-model rollups.
func (t *Tracker) Summary() cost.Summary {
	t.mu.Lock()
	defer t.mu.Unlock()

	byAgent := make(map[string]float64)
	byModel := make(map[string]float64)
	for _, r := range t.records {
		byAgent[r.Agent] += r.CostUSD
		byModel[r.Model] += r.CostUSD
	}
	for k, v := range byAgent {
		byAgent[k] = round6(v)
	}
	for k, v := range byModel {
		byModel[k] = round6(v)
	}

	return cost.Summary{
		TotalCostUSD:   round6(t.totalCostUSD),
		TotalTokensIn:  t.totalTokensIn,
		TotalTokensOut: t.totalTokensOut,
		APICalls:       len(t.records),
		ByAgent:        byAgent,
		ByModel:        byModel,
	}
}

// Recent returns up to limit usage records, newest first.
func (t *Tracker) Recent(limit int) []cost.UsageRecord {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := len(t.records)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]cost.UsageRecord, 0, n)
	for i := len(t.records) - 1; i >= len(t.records)-n; i-- {
		out = append(out, t.records[i])
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out
}

func round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}
