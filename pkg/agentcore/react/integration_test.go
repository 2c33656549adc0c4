// PicoClaw - Ultra-lightweight personal AI agent
// Inspired by and based on nanobot: https://github.com/HKUDS/nanobot
// License: MIT
//
// Copyright (c) 2026 PicoClaw contributors

package react

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sipeed/picoclaw/pkg/agentcore/contracts"
	"github.com/sipeed/picoclaw/pkg/agentcore/core"
	"github.com/sipeed/picoclaw/pkg/agentcore/telemetry"
	"github.com/sipeed/picoclaw/pkg/agentcore/tools"
)

// TestRunAgainstRealToolRegistryAndDefaultContracts exercises the loop
// against the real tool registry and default allow/deny contracts rather
// than the scripted/echo test doubles used elsewhere in this package — a
// write_file turn the way it actually runs end to end.
func TestRunAgainstRealToolRegistryAndDefaultContracts(t *testing.T) {
	registry := tools.NewRegistry(t.TempDir())
	engine, err := contracts.New(contracts.DefaultContractSet())
	require.NoError(t, err)

	provider := &scriptedProvider{responses: []ChatResponse{
		{ToolCalls: []core.ToolCall{
			{ID: "call1", Name: "write_file", Arguments: `{"path":"notes.txt","content":"42"}`},
		}},
		{Content: "Saved the note."},
	}}

	loop := &Loop{Provider: provider, Tools: registry, Contracts: engine, Telemetry: telemetry.NewEngine(nil)}

	input := baseInput()
	input.UserMessage = "Save the number 42 to notes.txt"
	res, err := loop.Run(context.Background(), input)

	require.NoError(t, err)
	assert.Equal(t, "Saved the note.", res.Answer)
	assert.Equal(t, 1, res.ToolCallsMade)

	var toolMsg *core.Message
	for i := range input.Conversation.Messages {
		if input.Conversation.Messages[i].ToolCallID == "call1" {
			toolMsg = &input.Conversation.Messages[i]
		}
	}
	require.NotNil(t, toolMsg)
	assert.NotContains(t, toolMsg.Content, "Error")
}

// TestRunDeniesToolNotOnDefaultAllowlist exercises the opposite path: a
// tool name the default contract set never allow-lists (here, the
// calculator registered by pkg/agentcore/tools, which is not part of the
// teacher-derived default allowlist) falls through to the catch-all deny
// without the registry's handler map ever being consulted.
func TestRunDeniesToolNotOnDefaultAllowlist(t *testing.T) {
	registry := tools.NewRegistry(t.TempDir())
	engine, err := contracts.New(contracts.DefaultContractSet())
	require.NoError(t, err)

	provider := &scriptedProvider{responses: []ChatResponse{
		{ToolCalls: []core.ToolCall{{ID: "call1", Name: "calculator", Arguments: `{"expression":"6*7"}`}}},
		{Content: "I can't do that."},
	}}

	loop := &Loop{Provider: provider, Tools: registry, Contracts: engine, Telemetry: telemetry.NewEngine(nil)}

	input := baseInput()
	res, err := loop.Run(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, "I can't do that.", res.Answer)

	var denied bool
	for _, m := range input.Conversation.Messages {
		if m.ToolCallID == "call1" && m.Role == core.RoleTool {
			denied = true
			assert.Contains(t, m.Content, "Error:")
		}
	}
	assert.True(t, denied)
}
