// PicoClaw - Ultra-lightweight personal AI agent
// Inspired by and based on nanobot: https://github.com/HKUDS/nanobot
// License: MIT
//
// Copyright (c) 2026 PicoClaw contributors

// Package workingmemory implements the per-turn scratchpad the ReAct loop
// writes Thought/Action/Observation/Reflection entries into: one owner per
// turn, no cross-task aliasing (see spec §5).
package workingmemory

import (
	"fmt"
	"strings"
	"time"
)

// DefaultMaxIterations matches the reference implementation's default.
const DefaultMaxIterations = 20

// StepStatus is the lifecycle state of one PlanStep.
type StepStatus int

const (
	StepPending StepStatus = iota
	StepInProgress
	StepCompleted
	StepFailed
)

// PlanStep is one step of a Plan.
type PlanStep struct {
	Description string
	Status      StepStatus
	Result      string // set when Completed
	FailReason  string // set when Failed
}

func (s PlanStep) marker() string {
	switch s.Status {
	case StepCompleted:
		return "✓"
	case StepInProgress:
		return "→"
	case StepFailed:
		return "✗"
	default:
		return " "
	}
}

// Plan is the optional goal-directed step list for a turn.
type Plan struct {
	Goal        string
	Steps       []PlanStep
	CurrentStep int
}

// TraceKind tags one entry in the reasoning Trace.
type TraceKind int

const (
	KindThought TraceKind = iota
	KindAction
	KindObservation
	KindReflection
)

// Label returns the human-readable name of the trace kind, used both by
// Render and by callers rendering a trimmed subset of entries.
func (k TraceKind) Label() string { return k.label() }

func (k TraceKind) label() string {
	switch k {
	case KindThought:
		return "Thought"
	case KindAction:
		return "Action"
	case KindObservation:
		return "Observation"
	case KindReflection:
		return "Reflection"
	default:
		return "Unknown"
	}
}

// TraceEntry is one timestamped line of the reasoning trace.
type TraceEntry struct {
	Kind      TraceKind
	Content   string
	Timestamp time.Time
}

// ToolResultEntry records one tool invocation's outcome.
type ToolResultEntry struct {
	ToolName  string
	Input     string
	Output    string
	Success   bool
	Timestamp time.Time
}

// WorkingMemory is the mutable per-turn scratchpad.
type WorkingMemory struct {
	Plan          *Plan
	Trace         []TraceEntry
	ToolResults   []ToolResultEntry
	Notes         []string
	Iterations    int
	MaxIterations int
}

// New creates an empty WorkingMemory with the given iteration cap.
func New(maxIterations int) *WorkingMemory {
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}
	return &WorkingMemory{MaxIterations: maxIterations}
}

func (wm *WorkingMemory) pushTrace(kind TraceKind, content string) {
	wm.Trace = append(wm.Trace, TraceEntry{Kind: kind, Content: content, Timestamp: time.Now().UTC()})
}

// AddThought appends a Thought entry.
func (wm *WorkingMemory) AddThought(content string) { wm.pushTrace(KindThought, content) }

// AddAction appends an Action entry.
func (wm *WorkingMemory) AddAction(content string) { wm.pushTrace(KindAction, content) }

// AddObservation appends an Observation entry.
func (wm *WorkingMemory) AddObservation(content string) { wm.pushTrace(KindObservation, content) }

// AddReflection appends a Reflection entry.
func (wm *WorkingMemory) AddReflection(content string) { wm.pushTrace(KindReflection, content) }

// AddToolResult records one tool call's outcome.
func (wm *WorkingMemory) AddToolResult(toolName, input, output string, success bool) {
	wm.ToolResults = append(wm.ToolResults, ToolResultEntry{
		ToolName: toolName, Input: input, Output: output, Success: success,
		Timestamp: time.Now().UTC(),
	})
}

// AddNote appends a free-form note.
func (wm *WorkingMemory) AddNote(note string) { wm.Notes = append(wm.Notes, note) }

// SetPlan installs a new plan: all steps start Pending, then step 0 flips
// to InProgress if any steps were given.
func (wm *WorkingMemory) SetPlan(goal string, steps []string) {
	p := &Plan{Goal: goal, Steps: make([]PlanStep, len(steps))}
	for i, desc := range steps {
		p.Steps[i] = PlanStep{Description: desc, Status: StepPending}
	}
	if len(p.Steps) > 0 {
		p.Steps[0].Status = StepInProgress
	}
	wm.Plan = p
}

// AdvancePlan marks the current step Completed (with optional result) and
// flips the next step InProgress if one remains. Returns false if there was
// no plan or the plan was already past its last step.
func (wm *WorkingMemory) AdvancePlan(result string) bool {
	p := wm.Plan
	if p == nil || p.CurrentStep >= len(p.Steps) {
		return false
	}
	p.Steps[p.CurrentStep].Status = StepCompleted
	p.Steps[p.CurrentStep].Result = result
	p.CurrentStep++
	if p.CurrentStep < len(p.Steps) {
		p.Steps[p.CurrentStep].Status = StepInProgress
	}
	return true
}

// FailPlanStep marks the current step Failed without advancing.
func (wm *WorkingMemory) FailPlanStep(reason string) {
	p := wm.Plan
	if p == nil || p.CurrentStep >= len(p.Steps) {
		return
	}
	p.Steps[p.CurrentStep].Status = StepFailed
	p.Steps[p.CurrentStep].FailReason = reason
}

// IsPlanComplete reports whether every step has been stepped past.
func (wm *WorkingMemory) IsPlanComplete() bool {
	return wm.Plan != nil && wm.Plan.CurrentStep >= len(wm.Plan.Steps)
}

// Tick increments the iteration counter and reports whether the turn may
// continue (false once the counter exceeds MaxIterations).
func (wm *WorkingMemory) Tick() bool {
	wm.Iterations++
	return wm.Iterations <= wm.MaxIterations
}

// Clear wipes plan/trace/tool-results/notes/iterations, keeping MaxIterations.
func (wm *WorkingMemory) Clear() {
	wm.Plan = nil
	wm.Trace = nil
	wm.ToolResults = nil
	wm.Notes = nil
	wm.Iterations = 0
}

// ItemCount is a rough size metric: plan (0 or 1) plus trace, tool result
// and note counts.
func (wm *WorkingMemory) ItemCount() int {
	n := len(wm.Trace) + len(wm.ToolResults) + len(wm.Notes)
	if wm.Plan != nil {
		n++
	}
	return n
}

// IsEmpty reports whether the working memory holds nothing at all.
func (wm *WorkingMemory) IsEmpty() bool { return wm.ItemCount() == 0 }

// Render produces the human-readable block consumed by the Context
// Assembler's Working Memory layer: ## Current Plan, ## Reasoning Trace,
// ## Tool Results, ## Notes (each omitted if empty), then Iterations: N/M.
func (wm *WorkingMemory) Render() string {
	var sb strings.Builder

	if wm.Plan != nil {
		sb.WriteString("## Current Plan\n")
		sb.WriteString(fmt.Sprintf("Goal: %s\n", wm.Plan.Goal))
		for i, step := range wm.Plan.Steps {
			sb.WriteString(fmt.Sprintf("%d. [%s] %s\n", i+1, step.marker(), step.Description))
			if step.Status == StepCompleted && step.Result != "" {
				sb.WriteString(fmt.Sprintf("   Result: %s\n", step.Result))
			}
			if step.Status == StepFailed && step.FailReason != "" {
				sb.WriteString(fmt.Sprintf("   Error: %s\n", step.FailReason))
			}
		}
		sb.WriteString("\n")
	}

	if len(wm.Trace) > 0 {
		sb.WriteString("## Reasoning Trace\n")
		for _, e := range wm.Trace {
			sb.WriteString(fmt.Sprintf("[%s] %s\n", e.Kind.label(), e.Content))
		}
		sb.WriteString("\n")
	}

	if len(wm.ToolResults) > 0 {
		sb.WriteString("## Tool Results\n")
		for _, r := range wm.ToolResults {
			mark := "✓"
			if !r.Success {
				mark = "✗"
			}
			sb.WriteString(fmt.Sprintf("- %s %s: %s\n", mark, r.ToolName, r.Output))
		}
		sb.WriteString("\n")
	}

	if len(wm.Notes) > 0 {
		sb.WriteString("## Notes\n")
		for _, n := range wm.Notes {
			sb.WriteString(fmt.Sprintf("- %s\n", n))
		}
		sb.WriteString("\n")
	}

	sb.WriteString(fmt.Sprintf("Iterations: %d/%d", wm.Iterations, wm.MaxIterations))
	return sb.String()
}

// Summarize produces a one-line human summary of the turn.
func (wm *WorkingMemory) Summarize() string {
	toolCalls := len(wm.ToolResults)
	successful := 0
	for _, r := range wm.ToolResults {
		if r.Success {
			successful++
		}
	}
	if wm.Plan != nil {
		completed := 0
		for _, s := range wm.Plan.Steps {
			if s.Status == StepCompleted {
				completed++
			}
		}
		return fmt.Sprintf("Plan '%s': %d/%d steps completed. %d tool calls (%d successful). %d iterations used",
			wm.Plan.Goal, completed, len(wm.Plan.Steps), toolCalls, successful, wm.Iterations)
	}
	return fmt.Sprintf("%d tool calls (%d successful). %d iterations used", toolCalls, successful, wm.Iterations)
}
