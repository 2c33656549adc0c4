package telemetry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBudgetDeny(t *testing.T) {
	e := NewEngine(PricingTable{})
	e.AddBudget(Budget{Scope: ScopeDaily, MaxUSD: 0.05, OnExceed: OnExceedDeny})

	traceID := e.StartTrace("conv1")
	span := NewSpan(SpanLlmCall, "test-model")
	span.RecordTokens(100, 50, 0.04)
	e.RecordSpan(traceID, span)

	err := e.CheckBudget(0.02)
	require.Error(t, err)
	var budgetErr *BudgetExceededError
	require.ErrorAs(t, err, &budgetErr)

	err = e.CheckBudget(0.005)
	assert.NoError(t, err)
}

func TestPerRequestBudgetIgnoresPriorSpend(t *testing.T) {
	e := NewEngine(PricingTable{})
	e.AddBudget(Budget{Scope: ScopePerRequest, MaxUSD: 1.0, OnExceed: OnExceedDeny})

	traceID := e.StartTrace("conv1")
	span := NewSpan(SpanLlmCall, "m")
	span.RecordTokens(1000, 1000, 50.0)
	e.RecordSpan(traceID, span)

	assert.NoError(t, e.CheckBudget(0.5))
	assert.Error(t, e.CheckBudget(2.0))
}

func TestAddBudgetReplacesSameScope(t *testing.T) {
	e := NewEngine(PricingTable{})
	e.AddBudget(Budget{Scope: ScopeTotal, MaxUSD: 1.0, OnExceed: OnExceedDeny})
	e.AddBudget(Budget{Scope: ScopeTotal, MaxUSD: 2.0, OnExceed: OnExceedDeny})

	snap := e.UsageSnapshot()
	require.Len(t, snap.Budgets, 1)
	assert.Equal(t, 2.0, snap.Budgets[0].MaxUSD)
}

func TestComputeCostUnknownModelIsZero(t *testing.T) {
	e := NewEngine(PricingTable{"known": {InputPerMillion: 3, OutputPerMillion: 15}})
	assert.Equal(t, 0.0, e.ComputeCost("unknown", 1000, 1000))
	cost := e.ComputeCost("known", 1_000_000, 1_000_000)
	assert.InDelta(t, 18.0, cost, 0.0001)
}

func TestRecentTracesNewestFirst(t *testing.T) {
	e := NewEngine(PricingTable{})
	id1 := e.StartTrace("c1")
	id2 := e.StartTrace("c2")

	recent := e.RecentTraces(2)
	require.Len(t, recent, 2)
	assert.Equal(t, id2, recent[0].ID)
	assert.Equal(t, id1, recent[1].ID)
}

func TestCostSummaryFiltersByRangeAndSortsDescending(t *testing.T) {
	e := NewEngine(PricingTable{})
	t1 := e.StartTrace("c1")
	span1 := NewSpan(SpanLlmCall, "expensive")
	span1.RecordTokens(10, 10, 5.0)
	e.RecordSpan(t1, span1)

	t2 := e.StartTrace("c2")
	span2 := NewSpan(SpanLlmCall, "cheap")
	span2.RecordTokens(10, 10, 1.0)
	e.RecordSpan(t2, span2)

	summary := e.CostSummary(time.Now().Add(-time.Hour), time.Now().Add(time.Hour))
	require.Len(t, summary.ByModel, 2)
	assert.Equal(t, "expensive", summary.ByModel[0].Model)
	assert.InDelta(t, 6.0, summary.TotalUSD, 0.0001)
}

func TestStartTracePrunesOldestEndedAtCapacity(t *testing.T) {
	e := NewEngine(PricingTable{})
	// Fill to capacity with ended traces.
	ids := make([]string, 0, maxTraces)
	for i := 0; i < maxTraces; i++ {
		id := e.StartTrace("c")
		e.EndTrace(id)
		ids = append(ids, id)
	}
	require.Equal(t, maxTraces, e.TraceCount())

	e.StartTrace("new")
	assert.Equal(t, maxTraces-maxTraces/10+1, e.TraceCount())

	// The oldest ended trace should have been evicted.
	_, found := e.GetTrace(ids[0])
	assert.False(t, found)
}
