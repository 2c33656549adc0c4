package assembler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sipeed/picoclaw/pkg/agentcore/core"
	"github.com/sipeed/picoclaw/pkg/agentcore/workingmemory"
)

func baseInput() AssemblyInput {
	return AssemblyInput{
		Identity:    core.Identity{Name: "pico", SystemPrompt: "You are a helpful agent."},
		UserMessage: "Hello",
	}
}

func TestBudgetExceededWhenSystemPlusUserOverrun(t *testing.T) {
	input := baseInput()
	_, err := Assemble(input, TokenBudget{Total: 5})
	require.Error(t, err)
	var budgetErr *BudgetExceededError
	require.ErrorAs(t, err, &budgetErr)
}

func TestDeterministicAssembly(t *testing.T) {
	input := baseInput()
	input.Memories = []core.MemoryEntry{{Content: "remembers the user likes tea"}}
	budget := TokenBudget{Total: 500}

	out1, err := Assemble(input, budget)
	require.NoError(t, err)
	out2, err := Assemble(input, budget)
	require.NoError(t, err)

	assert.Equal(t, out1.SystemMessage, out2.SystemMessage)
	assert.Equal(t, out1.Metadata.TotalTokens, out2.Metadata.TotalTokens)
	assert.Equal(t, out1.Metadata.PerLayer, out2.Metadata.PerLayer)
}

func TestHistorySkipsSystemRoleMessages(t *testing.T) {
	input := baseInput()
	conv := core.NewConversation("c1")
	conv.Append(core.NewMessage("m0", core.RoleSystem, "ignore me"))
	conv.Append(core.NewMessage("m1", core.RoleUser, "hi"))
	conv.Append(core.NewMessage("m2", core.RoleAssistant, "hello"))
	input.Conversation = conv

	out, err := Assemble(input, TokenBudget{Total: 1000})
	require.NoError(t, err)
	for _, m := range out.Messages {
		assert.NotEqual(t, core.RoleSystem, m.Role)
	}
}

func TestPriorityUnderPressureStarvesHistoryFirst(t *testing.T) {
	input := baseInput()
	input.Memories = []core.MemoryEntry{{Content: "important fact"}}
	input.KnowledgeChunks = []core.KnowledgeChunk{{Source: "doc", Content: "chunk"}}

	conv := core.NewConversation("c1")
	for i := 0; i < 10; i++ {
		conv.Append(core.NewMessage("", core.RoleUser, "a somewhat long prior message to fill the window"))
	}
	input.Conversation = conv

	wm := workingmemory.New(10)
	wm.AddThought("thinking")
	input.WorkingMemory = wm

	budget := TokenBudget{Total: 6 + 5 + 60 + len(input.Identity.SystemPrompt)/4 + 4}
	out, err := Assemble(input, budget)
	require.NoError(t, err)

	var memStats, histStats LayerStats
	for _, s := range out.Metadata.PerLayer {
		if s.Name == "long_term_memory" {
			memStats = s
		}
		if s.Name == "conversation_history" {
			histStats = s
		}
	}
	assert.GreaterOrEqual(t, memStats.ItemsIncluded, 1)
	assert.Less(t, histStats.ItemsIncluded, histStats.ItemsTotal)
}

func TestToolSchemasDroppedBeyondBudget(t *testing.T) {
	input := baseInput()
	input.ToolDefinitions = []core.ToolDefinition{
		{Name: "small", Description: "d"},
		{Name: "huge", Description: "this description is deliberately long to blow past a tiny per-layer tool budget and force a drop"},
	}
	one := 20
	budget := TokenBudget{Total: 1000, PerLayer: PerLayerBudget{ToolSchemas: &one}}
	out, err := Assemble(input, budget)
	require.NoError(t, err)
	assert.Less(t, len(out.ToolDefinitions), len(input.ToolDefinitions))
}
