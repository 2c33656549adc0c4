// PicoClaw - Ultra-lightweight personal AI agent
// Inspired by and based on nanobot: https://github.com/HKUDS/nanobot
// License: MIT
//
// Copyright (c) 2026 PicoClaw contributors

// Package streamevents defines the tagged event union the ReAct loop's
// streaming path emits: one Chunk/ToolCall/ToolResult/Thought per
// incremental step, and exactly one terminal Done or Error per stream.
package streamevents

import "encoding/json"

// Kind tags a StreamEvent's variant for SSE `event:` framing.
type Kind string

const (
	KindChunk      Kind = "chunk"
	KindToolCall   Kind = "tool_call"
	KindToolResult Kind = "tool_result"
	KindThought    Kind = "thought"
	KindDone       Kind = "done"
	KindError      Kind = "error"
)

// Usage mirrors provider token usage, carried on Done.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// StreamEvent is the tagged sum type streamed to callers. Exactly one field
// group is populated, matching Kind.
type StreamEvent struct {
	Kind Kind `json:"type"`

	// Chunk
	Content string `json:"content,omitempty"`

	// ToolCall / ToolResult
	ID     string `json:"id,omitempty"`
	Name   string `json:"name,omitempty"`
	Input  string `json:"input,omitempty"`
	Output string `json:"output,omitempty"`
	Success bool  `json:"success,omitempty"`

	// Done
	ConversationID string `json:"conversation_id,omitempty"`
	Usage          *Usage `json:"usage,omitempty"`
	Iterations     int    `json:"iterations,omitempty"`
	ToolCallsMade  int    `json:"tool_calls_made,omitempty"`

	// Error
	Message string `json:"message,omitempty"`
}

// Chunk builds a text-delta event.
func Chunk(content string) StreamEvent { return StreamEvent{Kind: KindChunk, Content: content} }

// ToolCallEvent builds a tool-invocation event.
func ToolCallEvent(id, name, input string) StreamEvent {
	return StreamEvent{Kind: KindToolCall, ID: id, Name: name, Input: input}
}

// ToolResultEvent builds a tool-completion event.
func ToolResultEvent(id, name, output string, success bool) StreamEvent {
	return StreamEvent{Kind: KindToolResult, ID: id, Name: name, Output: output, Success: success}
}

// Thought builds a reasoning-text event.
func Thought(content string) StreamEvent { return StreamEvent{Kind: KindThought, Content: content} }

// Done builds the terminal success event.
func Done(conversationID string, usage *Usage, iterations, toolCallsMade int) StreamEvent {
	return StreamEvent{
		Kind: KindDone, ConversationID: conversationID, Usage: usage,
		Iterations: iterations, ToolCallsMade: toolCallsMade,
	}
}

// Error builds the terminal failure event.
func Error(message string) StreamEvent { return StreamEvent{Kind: KindError, Message: message} }

// MarshalSSE renders the event as an SSE "event:"/"data:" frame pair.
func MarshalSSE(e StreamEvent) (string, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return "", err
	}
	return "event: " + string(e.Kind) + "\ndata: " + string(payload) + "\n\n", nil
}
