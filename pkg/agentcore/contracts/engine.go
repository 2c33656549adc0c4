// PicoClaw - Ultra-lightweight personal AI agent
// Inspired by and based on nanobot: https://github.com/HKUDS/nanobot
// License: MIT
//
// Copyright (c) 2026 PicoClaw contributors

package contracts

import (
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/sipeed/picoclaw/pkg/logger"
)

// maxLogEntries bounds the evaluation log; when full, the oldest 10% are
// dropped before the new entry is appended.
const maxLogEntries = 5000

type compiledContract struct {
	contract  Contract
	condition Condition
}

// Engine evaluates prioritized contracts against tool calls and responses.
// The active contract set and compiled conditions live under a single
// RWMutex: evaluations are read-only, add/remove/reload take a write lock.
type Engine struct {
	mu        sync.RWMutex
	compiled  []compiledContract
	log       []LogEntry
	Clock     func() time.Time
}

// New compiles every contract in the set up front, rejecting the whole set
// on the first condition parse failure.
func New(set ContractSet) (*Engine, error) {
	e := &Engine{Clock: func() time.Time { return time.Now().UTC() }}
	compiled, err := compileAll(set)
	if err != nil {
		return nil, err
	}
	e.compiled = compiled
	return e, nil
}

// Empty returns an Engine with no contracts configured.
func Empty() *Engine {
	return &Engine{Clock: func() time.Time { return time.Now().UTC() }}
}

func compileAll(set ContractSet) ([]compiledContract, error) {
	out := make([]compiledContract, 0, len(set.Contracts))
	for _, c := range set.Contracts {
		cond, err := ParseCondition(c.Condition)
		if err != nil {
			if pe, ok := err.(*ParseError); ok {
				pe.Source = c.Name
			}
			return nil, err
		}
		out = append(out, compiledContract{contract: c, condition: cond})
	}
	return out, nil
}

// Reload hot-swaps the entire contract set atomically: every condition is
// recompiled before any existing state is replaced, so a bad reload leaves
// the previous set untouched.
func (e *Engine) Reload(set ContractSet) error {
	compiled, err := compileAll(set)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.compiled = compiled
	return nil
}

// AddContract validates and compiles the contract before mutating any
// state, so a parse failure never touches the active set.
func (e *Engine) AddContract(c Contract) error {
	cond, err := ParseCondition(c.Condition)
	if err != nil {
		if pe, ok := err.(*ParseError); ok {
			pe.Source = c.Name
		}
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, cc := range e.compiled {
		if cc.contract.Name == c.Name {
			e.compiled[i] = compiledContract{contract: c, condition: cond}
			return nil
		}
	}
	e.compiled = append(e.compiled, compiledContract{contract: c, condition: cond})
	return nil
}

// RemoveContract deletes a contract (and its compiled condition) by name.
func (e *Engine) RemoveContract(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := e.compiled[:0:0]
	for _, cc := range e.compiled {
		if cc.contract.Name != name {
			out = append(out, cc)
		}
	}
	e.compiled = out
}

// ConditionSource returns the raw DSL text of the named contract's
// condition, or "" if no contract by that name is loaded. Callers recording
// it anywhere observable (span metadata, logs) are responsible for
// redacting it first — condition literals can embed values an operator
// copy-pasted from a secret.
func (e *Engine) ConditionSource(contractName string) string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, cc := range e.compiled {
		if cc.contract.Name == contractName {
			return cc.contract.Condition
		}
	}
	return ""
}

func (e *Engine) now() time.Time {
	if e.Clock != nil {
		return e.Clock()
	}
	return time.Now().UTC()
}

// CheckToolCall evaluates every enabled contract whose trigger matches the
// named tool, highest priority first (ties by insertion order), returning
// the first firing Verdict or Verdict::allow() if none match.
func (e *Engine) CheckToolCall(toolName string, args map[string]any) Verdict {
	ctx := &EvalContext{Args: args, ToolName: toolName, HasTool: true}
	return e.evaluate(ctx, "tool:"+toolName, toolName, func(t Trigger) bool {
		return t.matchesToolCheck(toolName)
	})
}

// CheckResponse evaluates every enabled contract whose trigger is Response.
func (e *Engine) CheckResponse(content string) Verdict {
	ctx := &EvalContext{Content: content, HasContent: true}
	return e.evaluate(ctx, "response", "", func(t Trigger) bool {
		return t.matchesResponseCheck()
	})
}

func (e *Engine) evaluate(ctx *EvalContext, triggerLabel, toolName string, matches func(Trigger) bool) Verdict {
	e.mu.RLock()
	candidates := make([]compiledContract, 0, len(e.compiled))
	for _, cc := range e.compiled {
		if cc.contract.Enabled && matches(cc.contract.Trigger) {
			candidates = append(candidates, cc)
		}
	}
	e.mu.RUnlock()

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].contract.Priority > candidates[j].contract.Priority
	})

	now := e.now()
	for _, cc := range candidates {
		if cc.condition.eval(ctx) {
			verdict := verdictFromContract(cc.contract, now)
			e.appendLog(LogEntry{
				ContractName: cc.contract.Name,
				Trigger:      triggerLabel,
				Verdict:      verdict,
				ToolName:     toolName,
				Timestamp:    now,
			})
			logContractFire(cc.contract.Action, cc.contract.Name, triggerLabel)
			return verdict
		}
	}
	return allowVerdict(now)
}

func logContractFire(action Action, name, trigger string) {
	fields := map[string]any{"contract": name, "trigger": trigger}
	switch action {
	case ActionDeny, ActionWarn:
		logger.WarnCF("contracts", "contract fired", fields)
	case ActionConfirm:
		logger.InfoCF("contracts", "contract requires confirmation", fields)
	default:
		logger.DebugCF("contracts", "contract fired", fields)
	}
}

func (e *Engine) appendLog(entry LogEntry) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.log) >= maxLogEntries {
		drop := maxLogEntries / 10
		e.log = append(e.log[:0:0], e.log[drop:]...)
	}
	e.log = append(e.log, entry)
}

// Log returns a snapshot of the bounded evaluation log.
func (e *Engine) Log() []LogEntry {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]LogEntry, len(e.log))
	copy(out, e.log)
	return out
}

// ParseToolArgs is a convenience helper turning a tool call's raw JSON
// argument string into the map CheckToolCall expects.
func ParseToolArgs(raw string) map[string]any {
	if raw == "" {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil
	}
	return m
}
