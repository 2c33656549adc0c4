// PicoClaw - Ultra-lightweight personal AI agent
// Inspired by and based on nanobot: https://github.com/HKUDS/nanobot
// License: MIT
//
// Copyright (c) 2026 PicoClaw contributors

// Package telemetry records spans into traces, computes LLM call cost from
// a pricing table, and enforces multi-scope spending budgets. State is
// protected by a single RWMutex per spec.md §5: read paths (snapshot,
// summary) take a read lock, record/start/end take a brief write lock.
package telemetry

import (
	"time"

	"github.com/google/uuid"
)

// SpanKind tags the kind of work a Span measures.
type SpanKind string

const (
	SpanLlmCall        SpanKind = "llm_call"
	SpanToolExecution  SpanKind = "tool_execution"
	SpanMemoryOp       SpanKind = "memory_op"
	SpanContractCheck  SpanKind = "contract_check"
	SpanTurn           SpanKind = "turn"
)

// Span is one timed, typed unit of work within a turn.
type Span struct {
	ID           string         `json:"id"`
	ParentID     string         `json:"parent_id,omitempty"`
	Kind         SpanKind       `json:"kind"`
	Label        string         `json:"label"`
	StartedAt    time.Time      `json:"started_at"`
	EndedAt      *time.Time     `json:"ended_at,omitempty"`
	DurationMs   *int64         `json:"duration_ms,omitempty"`
	InputTokens  *int           `json:"input_tokens,omitempty"`
	OutputTokens *int           `json:"output_tokens,omitempty"`
	CostUSD      *float64       `json:"cost_usd,omitempty"`
	Success      *bool          `json:"success,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// NewSpan starts a span of the given kind and label, timestamped now.
func NewSpan(kind SpanKind, label string) *Span {
	return &Span{ID: uuid.NewString(), Kind: kind, Label: label, StartedAt: time.Now().UTC()}
}

// WithParent sets the parent span id, builder-style.
func (s *Span) WithParent(id string) *Span {
	s.ParentID = id
	return s
}

// End stamps EndedAt and DurationMs and records success.
func (s *Span) End(success bool) {
	now := time.Now().UTC()
	s.EndedAt = &now
	d := now.Sub(s.StartedAt).Milliseconds()
	if d < 0 {
		d = 0
	}
	s.DurationMs = &d
	s.Success = &success
}

// RecordTokens sets token counts and computed cost on the span.
func (s *Span) RecordTokens(in, out int, costUSD float64) {
	s.InputTokens = &in
	s.OutputTokens = &out
	s.CostUSD = &costUSD
}

// TotalTokens sums input and output tokens, treating unset as 0.
func (s *Span) TotalTokens() int {
	total := 0
	if s.InputTokens != nil {
		total += *s.InputTokens
	}
	if s.OutputTokens != nil {
		total += *s.OutputTokens
	}
	return total
}

// Trace is all spans belonging to one turn, keyed by conversation id.
type Trace struct {
	ID             string     `json:"id"`
	ConversationID string     `json:"conversation_id"`
	Spans          []*Span    `json:"spans"`
	StartedAt      time.Time  `json:"started_at"`
	EndedAt        *time.Time `json:"ended_at,omitempty"`
}

// NewTrace opens a trace for a conversation.
func NewTrace(conversationID string) *Trace {
	return &Trace{ID: uuid.NewString(), ConversationID: conversationID, StartedAt: time.Now().UTC()}
}

// AddSpan appends a span to the trace.
func (t *Trace) AddSpan(s *Span) { t.Spans = append(t.Spans, s) }

// End stamps EndedAt.
func (t *Trace) End() {
	now := time.Now().UTC()
	t.EndedAt = &now
}

// TotalCost sums every span's recorded cost.
func (t *Trace) TotalCost() float64 {
	sum := 0.0
	for _, s := range t.Spans {
		if s.CostUSD != nil {
			sum += *s.CostUSD
		}
	}
	return sum
}

// TotalTokens sums every span's token usage.
func (t *Trace) TotalTokens() int {
	sum := 0
	for _, s := range t.Spans {
		sum += s.TotalTokens()
	}
	return sum
}

// TotalDurationMs sums every ended span's duration.
func (t *Trace) TotalDurationMs() int64 {
	var sum int64
	for _, s := range t.Spans {
		if s.DurationMs != nil {
			sum += *s.DurationMs
		}
	}
	return sum
}

// LlmCallCount counts spans of kind LlmCall.
func (t *Trace) LlmCallCount() int { return t.countKind(SpanLlmCall) }

// ToolExecutionCount counts spans of kind ToolExecution.
func (t *Trace) ToolExecutionCount() int { return t.countKind(SpanToolExecution) }

func (t *Trace) countKind(k SpanKind) int {
	n := 0
	for _, s := range t.Spans {
		if s.Kind == k {
			n++
		}
	}
	return n
}

// BudgetScope is the window a spending cap applies to.
type BudgetScope string

const (
	ScopePerRequest BudgetScope = "per_request"
	ScopePerSession BudgetScope = "per_session"
	ScopeDaily      BudgetScope = "daily"
	ScopeMonthly    BudgetScope = "monthly"
	ScopeTotal      BudgetScope = "total"
)

// BudgetAction is what happens when a Budget's max is exceeded.
type BudgetAction string

const (
	OnExceedDeny BudgetAction = "deny"
	OnExceedWarn BudgetAction = "warn"
)

// Budget is one spending cap. At most one Budget exists per scope: adding a
// second for the same scope replaces the first (see Engine.AddBudget).
type Budget struct {
	Scope     BudgetScope
	MaxUSD    float64
	MaxTokens int
	OnExceed  BudgetAction
}

// ModelCost is one model's contribution to a CostSummary.
type ModelCost struct {
	Model        string
	CostUSD      float64
	InputTokens  int
	OutputTokens int
	CallCount    int
}

// CostSummary aggregates spans in a time range, broken down by model,
// sorted by cost descending.
type CostSummary struct {
	From, To time.Time
	TotalUSD float64
	ByModel  []ModelCost
}

// BudgetStatus is one budget's live usage snapshot.
type BudgetStatus struct {
	Scope       BudgetScope
	MaxUSD      float64
	SpentUSD    float64
	UsedTokens  int
	RemainingUSD float64
	Exceeded    bool
}

// UsageSnapshot is the live costs/tokens plus per-budget status.
type UsageSnapshot struct {
	SessionCostUSD float64
	TotalCostUSD   float64
	TotalTokens    int
	TotalLlmCalls  int
	TotalToolExecs int
	Budgets        []BudgetStatus
}

// ModelPrice is USD per million tokens, input and output priced separately.
type ModelPrice struct {
	InputPerMillion  float64
	OutputPerMillion float64
}

// PricingTable maps model name to price. Unknown models cost 0.0 — treated
// as immutable after construction (spec.md §9 design notes).
type PricingTable map[string]ModelPrice
