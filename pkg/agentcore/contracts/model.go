// PicoClaw - Ultra-lightweight personal AI agent
// Inspired by and based on nanobot: https://github.com/HKUDS/nanobot
// License: MIT
//
// Copyright (c) 2026 PicoClaw contributors

// Package contracts implements the policy DSL that gates every tool call
// and response: a recursive-descent parser compiles condition source into
// an AST, and an Engine evaluates prioritized contracts against triggers to
// produce a Verdict.
package contracts

import "time"

// Action is what a firing contract instructs the loop to do.
type Action string

const (
	ActionAllow   Action = "allow"
	ActionConfirm Action = "confirm"
	ActionWarn    Action = "warn"
	ActionDeny    Action = "deny"
)

// allowed reports whether this action lets the proposed call/response
// proceed: Allow and Warn do, Confirm and Deny don't.
func (a Action) allowed() bool {
	return a == ActionAllow || a == ActionWarn
}

// TriggerKind is what a Trigger matches against.
type TriggerKind int

const (
	TriggerTool TriggerKind = iota
	TriggerAnyTool
	TriggerResponse
)

// Trigger selects which checks a Contract participates in.
type Trigger struct {
	Kind TriggerKind
	Tool string // only meaningful when Kind == TriggerTool
}

// ParseTrigger parses the config string form: "tool:<name>", "tool:*", or
// "response".
func ParseTrigger(s string) Trigger {
	switch {
	case s == "response":
		return Trigger{Kind: TriggerResponse}
	case s == "tool:*":
		return Trigger{Kind: TriggerAnyTool}
	case len(s) > 5 && s[:5] == "tool:":
		return Trigger{Kind: TriggerTool, Tool: s[5:]}
	default:
		return Trigger{Kind: TriggerResponse}
	}
}

// matchesToolCheck reports whether this trigger participates in a
// check_tool_call evaluation for the given tool name.
func (t Trigger) matchesToolCheck(toolName string) bool {
	switch t.Kind {
	case TriggerAnyTool:
		return true
	case TriggerTool:
		return t.Tool == toolName
	default:
		return false
	}
}

func (t Trigger) matchesResponseCheck() bool { return t.Kind == TriggerResponse }

// Contract is one named policy rule.
type Contract struct {
	Name        string
	Description string
	Trigger     Trigger
	Condition   string // DSL source
	Action      Action
	Message     string
	Enabled     bool
	Priority    int32
}

// ContractSet is the full configured rule set, in load order.
type ContractSet struct {
	Contracts []Contract
}

// Verdict is the Engine's decision for a single proposed action.
type Verdict struct {
	Allowed      bool
	Action       Action
	ContractName string // empty when no contract matched
	Message      string
	Timestamp    time.Time
}

// allowVerdict is the default no-match decision.
func allowVerdict(now time.Time) Verdict {
	return Verdict{Allowed: true, Action: ActionAllow, Timestamp: now}
}

func verdictFromContract(c Contract, now time.Time) Verdict {
	msg := c.Message
	if msg == "" {
		msg = "Contract '" + c.Name + "' triggered"
	}
	return Verdict{
		Allowed:      c.Action.allowed(),
		Action:       c.Action,
		ContractName: c.Name,
		Message:      msg,
		Timestamp:    now,
	}
}

// LogEntry is one append to the Engine's bounded evaluation log. Only
// firing contracts are logged — the default allow-no-match path is not.
type LogEntry struct {
	ContractName string
	Trigger      string
	Verdict      Verdict
	ToolName     string
	Timestamp    time.Time
}
