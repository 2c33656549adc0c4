// PicoClaw - Ultra-lightweight personal AI agent
// Inspired by and based on nanobot: https://github.com/HKUDS/nanobot
// License: MIT
//
// Copyright (c) 2026 PicoClaw contributors

package telemetry

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sipeed/picoclaw/pkg/logger"
	"github.com/sipeed/picoclaw/pkg/redaction"
	"github.com/sipeed/picoclaw/pkg/tracing"
)

// maxTraces bounds the trace buffer; once it is reached, the oldest 10% of
// already-ended traces are pruned before the new trace is appended.
const maxTraces = 5000

// RunningTotals tracks cumulative spend/usage across every recorded span,
// rolled over at day/month boundaries.
type RunningTotals struct {
	TotalCostUSD     float64
	TotalInputTokens int
	TotalOutputTokens int
	TotalLlmCalls    int
	TotalToolExecs   int

	currentDay    int
	DailyCostUSD  float64
	DailyTokens   int

	currentMonth    time.Month
	MonthlyCostUSD  float64
	MonthlyTokens   int
}

// Engine is the thread-safe span/trace recorder and budget enforcer.
type Engine struct {
	mu      sync.RWMutex
	pricing PricingTable
	traces  []*Trace
	budgets []Budget
	totals  RunningTotals

	// Clock is overridable for deterministic tests; defaults to time.Now.
	Clock func() time.Time
}

// NewEngine builds an Engine seeded with the given pricing table.
func NewEngine(pricing PricingTable) *Engine {
	now := time.Now().UTC()
	e := &Engine{
		pricing: pricing,
		Clock:   func() time.Time { return time.Now().UTC() },
	}
	e.totals.currentDay = now.YearDay()
	e.totals.currentMonth = now.Month()
	return e
}

func (e *Engine) now() time.Time {
	if e.Clock != nil {
		return e.Clock()
	}
	return time.Now().UTC()
}

// AddBudget inserts a Budget, replacing any existing budget for the same
// scope.
func (e *Engine) AddBudget(b Budget) {
	e.mu.Lock()
	defer e.mu.Unlock()
	filtered := e.budgets[:0:0]
	for _, existing := range e.budgets {
		if existing.Scope != b.Scope {
			filtered = append(filtered, existing)
		}
	}
	e.budgets = append(filtered, b)
}

// StartTrace opens a new Trace for a conversation, pruning the oldest 10%
// of ended traces first if the buffer is at capacity.
func (e *Engine) StartTrace(conversationID string) string {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.traces) >= maxTraces {
		e.pruneOldestEndedLocked(maxTraces / 10)
	}

	t := &Trace{ID: uuid.NewString(), ConversationID: conversationID, StartedAt: e.now()}
	e.traces = append(e.traces, t)
	return t.ID
}

func (e *Engine) pruneOldestEndedLocked(n int) {
	if n <= 0 {
		return
	}
	kept := make([]*Trace, 0, len(e.traces))
	removed := 0
	for _, t := range e.traces {
		if removed < n && t.EndedAt != nil {
			removed++
			continue
		}
		kept = append(kept, t)
	}
	e.traces = kept
}

// EndTrace stamps EndedAt on the given trace, if present.
func (e *Engine) EndTrace(traceID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if t := e.findTraceLocked(traceID); t != nil {
		t.End()
	}
}

func (e *Engine) findTraceLocked(traceID string) *Trace {
	for _, t := range e.traces {
		if t.ID == traceID {
			return t
		}
	}
	return nil
}

// RecordSpan appends a span to the given trace and accumulates its
// cost/tokens into the running totals, rolling daily/monthly counters first
// if the date has changed since the last record.
func (e *Engine) RecordSpan(traceID string, span *Span) {
	e.mu.Lock()
	defer e.mu.Unlock()

	// Metadata can carry free-form strings sourced from contract condition
	// literals or provider-side error bodies; scrub it the same way the
	// logger scrubs fields before anything persists or exports via OTel.
	if len(span.Metadata) > 0 {
		span.Metadata = redaction.RedactFields(span.Metadata)
	}

	now := e.now()
	if day := now.YearDay(); day != e.totals.currentDay {
		e.totals.currentDay = day
		e.totals.DailyCostUSD = 0
		e.totals.DailyTokens = 0
	}
	if now.Month() != e.totals.currentMonth {
		e.totals.currentMonth = now.Month()
		e.totals.MonthlyCostUSD = 0
		e.totals.MonthlyTokens = 0
	}

	cost := 0.0
	if span.CostUSD != nil {
		cost = *span.CostUSD
	}
	tok := span.TotalTokens()

	e.totals.TotalCostUSD += cost
	e.totals.DailyCostUSD += cost
	e.totals.MonthlyCostUSD += cost
	if span.InputTokens != nil {
		e.totals.TotalInputTokens += *span.InputTokens
	}
	if span.OutputTokens != nil {
		e.totals.TotalOutputTokens += *span.OutputTokens
	}
	e.totals.DailyTokens += tok
	e.totals.MonthlyTokens += tok

	switch span.Kind {
	case SpanLlmCall:
		e.totals.TotalLlmCalls++
	case SpanToolExecution:
		e.totals.TotalToolExecs++
	}

	if t := e.findTraceLocked(traceID); t != nil {
		t.AddSpan(span)
	}

	// Best-effort OTel mirror: additive only, never gates recording above.
	if tracing.Enabled() {
		emitOTelSpan(span)
	}
}

func emitOTelSpan(span *Span) {
	_, otelSpan := tracing.Tracer("agentcore").Start(context.Background(), string(span.Kind)+":"+span.Label)
	otelSpan.SetAttributes(tracing.StringAttr("label", span.Label))
	if span.CostUSD != nil {
		otelSpan.SetAttributes(tracing.Float64Attr("cost_usd", *span.CostUSD))
	}
	if span.Success != nil {
		otelSpan.SetAttributes(tracing.StringAttr("success", fmt.Sprintf("%v", *span.Success)))
	}
	otelSpan.End()
}

// ComputeCost prices a completion using the pricing table; unknown models
// cost 0.0.
func (e *Engine) ComputeCost(model string, inputTokens, outputTokens int) float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	price, ok := e.pricing[model]
	if !ok {
		return 0.0
	}
	return float64(inputTokens)*price.InputPerMillion/1e6 + float64(outputTokens)*price.OutputPerMillion/1e6
}

// BudgetExceededError reports which budget rejected a projected spend.
type BudgetExceededError struct {
	Scope     BudgetScope
	MaxUSD    float64
	Projected float64
}

func (e *BudgetExceededError) Error() string {
	return fmt.Sprintf("telemetry: budget exceeded for scope %s: projected $%.4f > max $%.4f", e.Scope, e.Projected, e.MaxUSD)
}

// CheckBudget evaluates estimatedCost against every configured budget.
// Budgets with MaxUSD <= 0 are treated as unlimited/disabled. A Warn budget
// logs and continues checking the remaining budgets; a Deny budget returns
// immediately.
func (e *Engine) CheckBudget(estimatedCost float64) error {
	e.mu.RLock()
	defer e.mu.RUnlock()

	for _, b := range e.budgets {
		if b.MaxUSD <= 0 {
			continue
		}
		var current float64
		switch b.Scope {
		case ScopePerRequest:
			current = 0
		case ScopeDaily:
			current = e.totals.DailyCostUSD
		case ScopeMonthly:
			current = e.totals.MonthlyCostUSD
		default: // PerSession, Total
			current = e.totals.TotalCostUSD
		}

		var projected float64
		if b.Scope == ScopePerRequest {
			projected = estimatedCost
		} else {
			projected = current + estimatedCost
		}

		if projected > b.MaxUSD {
			if b.OnExceed == OnExceedDeny {
				return &BudgetExceededError{Scope: b.Scope, MaxUSD: b.MaxUSD, Projected: projected}
			}
			logger.WarnCF("telemetry", "budget warning", map[string]any{
				"scope": string(b.Scope), "max_usd": b.MaxUSD, "projected": projected,
			})
		}
	}
	return nil
}

// GetTrace returns a trace by id.
func (e *Engine) GetTrace(traceID string) (*Trace, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	t := e.findTraceLocked(traceID)
	if t == nil {
		return nil, false
	}
	return t, true
}

// RecentTraces returns up to limit traces, newest first.
func (e *Engine) RecentTraces(limit int) []*Trace {
	e.mu.RLock()
	defer e.mu.RUnlock()
	n := len(e.traces)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]*Trace, limit)
	for i := 0; i < limit; i++ {
		out[i] = e.traces[n-1-i]
	}
	return out
}

// TracesForConversation returns every trace recorded for a conversation id.
func (e *Engine) TracesForConversation(conversationID string) []*Trace {
	e.mu.RLock()
	defer e.mu.RUnlock()
	var out []*Trace
	for _, t := range e.traces {
		if t.ConversationID == conversationID {
			out = append(out, t)
		}
	}
	return out
}

// TraceCount returns the number of traces currently buffered.
func (e *Engine) TraceCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.traces)
}

// UsageSnapshot returns a live view of spend and per-budget status.
func (e *Engine) UsageSnapshot() UsageSnapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()

	snap := UsageSnapshot{
		SessionCostUSD: e.totals.TotalCostUSD,
		TotalCostUSD:   e.totals.TotalCostUSD,
		TotalTokens:    e.totals.TotalInputTokens + e.totals.TotalOutputTokens,
		TotalLlmCalls:  e.totals.TotalLlmCalls,
		TotalToolExecs: e.totals.TotalToolExecs,
	}

	for _, b := range e.budgets {
		var spent float64
		var usedTokens int
		switch b.Scope {
		case ScopePerRequest:
			spent = 0
		case ScopeDaily:
			spent = e.totals.DailyCostUSD
			usedTokens = e.totals.DailyTokens
		case ScopeMonthly:
			spent = e.totals.MonthlyCostUSD
			usedTokens = e.totals.MonthlyTokens
		default:
			spent = e.totals.TotalCostUSD
			usedTokens = e.totals.TotalInputTokens + e.totals.TotalOutputTokens
		}
		remaining := b.MaxUSD - spent
		if remaining < 0 {
			remaining = 0
		}
		snap.Budgets = append(snap.Budgets, BudgetStatus{
			Scope: b.Scope, MaxUSD: b.MaxUSD, SpentUSD: spent, UsedTokens: usedTokens,
			RemainingUSD: remaining, Exceeded: b.MaxUSD > 0 && spent > b.MaxUSD,
		})
	}
	return snap
}

// CostSummary aggregates spans whose trace StartedAt falls within
// [from, to] inclusive, broken down by model and sorted by cost descending.
func (e *Engine) CostSummary(from, to time.Time) CostSummary {
	e.mu.RLock()
	defer e.mu.RUnlock()

	byModel := map[string]*ModelCost{}
	total := 0.0
	for _, t := range e.traces {
		if t.StartedAt.Before(from) || t.StartedAt.After(to) {
			continue
		}
		for _, s := range t.Spans {
			if s.Kind != SpanLlmCall || s.CostUSD == nil {
				continue
			}
			mc, ok := byModel[s.Label]
			if !ok {
				mc = &ModelCost{Model: s.Label}
				byModel[s.Label] = mc
			}
			mc.CostUSD += *s.CostUSD
			if s.InputTokens != nil {
				mc.InputTokens += *s.InputTokens
			}
			if s.OutputTokens != nil {
				mc.OutputTokens += *s.OutputTokens
			}
			mc.CallCount++
			total += *s.CostUSD
		}
	}

	out := CostSummary{From: from, To: to, TotalUSD: total}
	for _, mc := range byModel {
		out.ByModel = append(out.ByModel, *mc)
	}
	sort.Slice(out.ByModel, func(i, j int) bool { return out.ByModel[i].CostUSD > out.ByModel[j].CostUSD })
	return out
}

// PruneBefore removes traces whose StartedAt is before cutoff.
func (e *Engine) PruneBefore(cutoff time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	kept := e.traces[:0:0]
	for _, t := range e.traces {
		if !t.StartedAt.Before(cutoff) {
			kept = append(kept, t)
		}
	}
	e.traces = kept
}
