package cost

import (
	"math"
	"sync"
	"testing"
)

func TestEstimateCostExactMatch(t *testing.T) {
	tr := NewTracker()
	got := tr.EstimateCost("gpt-4o-mini", 1_000_000, 1_000_000)
	want := 0.15 + 0.60
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("EstimateCost = %v, want %v", got, want)
	}
}

func TestEstimateCostPrefixMatch(t *testing.T) {
	tr := NewTracker()
	exact := tr.EstimateCost("gpt-4o", 1000, 1000)
	dated := tr.EstimateCost("gpt-4o-2024-11-20", 1000, 1000)
	if dated != exact {
		t.Errorf("dated version cost = %v, want prefix-matched %v", dated, exact)
	}

	// "gpt-4o-mini-2024-07-18" must match gpt-4o-mini, not gpt-4o.
	mini := tr.EstimateCost("gpt-4o-mini", 1000, 1000)
	datedMini := tr.EstimateCost("gpt-4o-mini-2024-07-18", 1000, 1000)
	if datedMini != mini {
		t.Errorf("longest-prefix match failed: %v, want %v", datedMini, mini)
	}
}

func TestEstimateCostUnknownModelIsFree(t *testing.T) {
	tr := NewTracker()
	if got := tr.EstimateCost("some-local-model", 5000, 5000); got != 0 {
		t.Errorf("unknown model cost = %v, want 0", got)
	}
}

func TestSetPricingOverride(t *testing.T) {
	tr := NewTracker()
	tr.SetPricing("my-model", 1.0, 2.0)
	got := tr.EstimateCost("my-model", 1_000_000, 500_000)
	if math.Abs(got-2.0) > 1e-9 {
		t.Errorf("EstimateCost = %v, want 2.0", got)
	}
}

func TestSummaryReconciles(t *testing.T) {
	tr := NewTracker()

	calls := []struct {
		agent   string
		model   string
		in, out int
	}{
		{"alex", "gpt-4o", 1200, 400},
		{"alex", "gpt-4o-mini", 9000, 3000},
		{"riley", "gpt-4o", 500, 2500},
		{"riley", "claude-sonnet-4-5-20250929", 10000, 2000},
	}

	var want float64
	for _, c := range calls {
		want += tr.EstimateCost(c.model, c.in, c.out)
		tr.Record(c.agent, c.model, c.in, c.out)
	}

	sum := tr.Summary()
	if math.Abs(sum.TotalCostUSD-want) > 1e-6 {
		t.Errorf("total = %v, want %v", sum.TotalCostUSD, want)
	}
	if sum.APICalls != 4 {
		t.Errorf("api calls = %d, want 4", sum.APICalls)
	}
	if sum.TotalTokensIn != 20700 || sum.TotalTokensOut != 7900 {
		t.Errorf("tokens = %d/%d", sum.TotalTokensIn, sum.TotalTokensOut)
	}

	var byAgent, byModel float64
	for _, v := range sum.ByAgent {
		byAgent += v
	}
	for _, v := range sum.ByModel {
		byModel += v
	}
	if math.Abs(byAgent-sum.TotalCostUSD) > 1e-5 || math.Abs(byModel-sum.TotalCostUSD) > 1e-5 {
		t.Errorf("rollups do not reconcile: byAgent=%v byModel=%v total=%v", byAgent, byModel, sum.TotalCostUSD)
	}
}

func TestRecentNewestFirst(t *testing.T) {
	tr := NewTracker()
	tr.Record("alex", "gpt-4o", 1, 1)
	tr.Record("riley", "gpt-4o", 2, 2)
	tr.Record("sam", "gpt-4o", 3, 3)

	recent := tr.Recent(2)
	if len(recent) != 2 {
		t.Fatalf("Recent(2) = %d records", len(recent))
	}
	if recent[0].Agent != "sam" {
		t.Errorf("Recent()[0].Agent = %s, want sam", recent[0].Agent)
	}
}

func TestConcurrentRecord(t *testing.T) {
	tr := NewTracker()
	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				tr.Record("worker", "gpt-4o-mini", 100, 50)
			}
		}()
	}
	wg.Wait()

	if got := tr.CallCount(); got != 1000 {
		t.Errorf("CallCount = %d, want 1000", got)
	}
	per := tr.EstimateCost("gpt-4o-mini", 100, 50)
	if math.Abs(tr.TotalCostUSD()-per*1000) > 1e-6 {
		t.Errorf("total = %v, want %v", tr.TotalCostUSD(), per*1000)
	}
}
