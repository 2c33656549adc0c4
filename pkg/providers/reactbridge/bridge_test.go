// PicoClaw - Ultra-lightweight personal AI agent
// Inspired by and based on nanobot: https://github.com/HKUDS/nanobot
// License: MIT
//
// Copyright (c) 2026 PicoClaw contributors

package reactbridge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sipeed/picoclaw/pkg/agentcore/core"
	"github.com/sipeed/picoclaw/pkg/agentcore/react"
	"github.com/sipeed/picoclaw/pkg/providers"
)

func TestConvertRequest_SystemMessageAndToolCalls(t *testing.T) {
	req := react.ChatRequest{
		SystemMessage: "be concise",
		Messages: []core.Message{
			{Role: core.RoleUser, Content: "what's 2+2?"},
			{Role: core.RoleAssistant, Content: "", ToolCalls: []core.ToolCall{
				{ID: "call_1", Name: "calculator", Arguments: `{"expression":"2+2"}`},
			}},
			{Role: core.RoleTool, Content: "4", ToolCallID: "call_1"},
		},
		Tools: []core.ToolDefinition{
			{Name: "calculator", Description: "evaluates arithmetic", Parameters: map[string]any{"type": "object"}},
		},
	}

	messages, tools := convertRequest(req)

	require.Len(t, messages, 4)
	assert.Equal(t, "system", messages[0].Role)
	assert.Equal(t, "be concise", messages[0].Content)
	assert.Equal(t, "user", messages[1].Role)
	require.Len(t, messages[2].ToolCalls, 1)
	assert.Equal(t, "calculator", messages[2].ToolCalls[0].Function.Name)
	assert.Equal(t, "call_1", messages[3].ToolCallID)

	require.Len(t, tools, 1)
	assert.Equal(t, "function", tools[0].Type)
	assert.Equal(t, "calculator", tools[0].Function.Name)
}

func TestConvertResponse_NilIsZeroValue(t *testing.T) {
	assert.Equal(t, react.ChatResponse{}, convertResponse(nil))
}

func TestConvertResponse_ToolCalls(t *testing.T) {
	resp := &providers.LLMResponse{
		Content:      "done",
		FinishReason: "tool_calls",
		Usage:        &providers.UsageInfo{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
		ToolCalls: []providers.ToolCall{
			{ID: "a", Function: &providers.FunctionCall{Name: "calculator", Arguments: `{"x":1}`}},
		},
	}

	out := convertResponse(resp)

	assert.Equal(t, "done", out.Content)
	assert.Equal(t, "tool_calls", out.FinishReason)
	assert.Equal(t, 15, out.Usage.TotalTokens)
	require.Len(t, out.ToolCalls, 1)
	assert.Equal(t, "calculator", out.ToolCalls[0].Name)
	assert.Equal(t, `{"x":1}`, out.ToolCalls[0].Arguments)
}

func TestToolCallNameArgs_PrefersNestedFunction(t *testing.T) {
	tc := providers.ToolCall{
		Name:      "ignored",
		Arguments: map[string]interface{}{"ignored": true},
		Function:  &providers.FunctionCall{Name: "real_name", Arguments: `{"a":1}`},
	}
	name, args := toolCallNameArgs(tc)
	assert.Equal(t, "real_name", name)
	assert.Equal(t, `{"a":1}`, args)
}

func TestToolCallNameArgs_FallsBackToFlatArguments(t *testing.T) {
	tc := providers.ToolCall{
		Name:      "calculator",
		Arguments: map[string]interface{}{"expression": "2+2"},
	}
	name, args := toolCallNameArgs(tc)
	assert.Equal(t, "calculator", name)
	assert.JSONEq(t, `{"expression":"2+2"}`, args)
}

func TestToolCallNameArgs_NoArgumentsAtAll(t *testing.T) {
	name, args := toolCallNameArgs(providers.ToolCall{Name: "noop"})
	assert.Equal(t, "noop", name)
	assert.Equal(t, "{}", args)
}

func TestConvertUsage_Nil(t *testing.T) {
	assert.Zero(t, convertUsage(nil))
}
