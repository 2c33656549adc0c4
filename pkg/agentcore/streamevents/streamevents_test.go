package streamevents

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalSSEUsesSnakeCaseVariantName(t *testing.T) {
	frame, err := MarshalSSE(ToolResultEvent("call1", "shell", "ok", true))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(frame, "event: tool_result\n"))
	assert.True(t, strings.Contains(frame, `"type":"tool_result"`))
}

func TestDoneCarriesUsage(t *testing.T) {
	e := Done("conv1", &Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15}, 3, 2)
	assert.Equal(t, KindDone, e.Kind)
	assert.Equal(t, 3, e.Iterations)
	assert.Equal(t, 2, e.ToolCallsMade)
	require.NotNil(t, e.Usage)
	assert.Equal(t, 15, e.Usage.TotalTokens)
}
