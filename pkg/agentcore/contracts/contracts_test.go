package contracts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noRmRfSet() ContractSet {
	return ContractSet{Contracts: []Contract{
		{
			Name:      "no-rm-rf",
			Trigger:   Trigger{Kind: TriggerTool, Tool: "shell"},
			Condition: `args.command CONTAINS "rm -rf"`,
			Action:    ActionDeny,
			Message:   "destructive shell command blocked",
			Enabled:   true,
			Priority:  100,
		},
	}}
}

func TestDenyRmRf(t *testing.T) {
	e, err := New(noRmRfSet())
	require.NoError(t, err)

	verdict := e.CheckToolCall("shell", map[string]any{"command": "rm -rf /"})
	assert.False(t, verdict.Allowed)
	assert.Equal(t, ActionDeny, verdict.Action)
	assert.Equal(t, "no-rm-rf", verdict.ContractName)

	verdict = e.CheckToolCall("shell", map[string]any{"command": "ls"})
	assert.True(t, verdict.Allowed)
	assert.Empty(t, verdict.ContractName)
}

func TestVerdictActionAllowedCoupling(t *testing.T) {
	cases := []struct {
		action  Action
		allowed bool
	}{
		{ActionAllow, true},
		{ActionWarn, true},
		{ActionConfirm, false},
		{ActionDeny, false},
	}
	for _, c := range cases {
		set := ContractSet{Contracts: []Contract{{
			Name: "x", Trigger: Trigger{Kind: TriggerAnyTool}, Condition: "", Action: c.action, Enabled: true,
		}}}
		e, err := New(set)
		require.NoError(t, err)
		verdict := e.CheckToolCall("anything", nil)
		assert.Equal(t, c.allowed, verdict.Allowed)
	}
}

func TestPriorityOrderingStableOnTies(t *testing.T) {
	set := ContractSet{Contracts: []Contract{
		{Name: "first", Trigger: Trigger{Kind: TriggerAnyTool}, Condition: "", Action: ActionWarn, Enabled: true, Priority: 5},
		{Name: "second", Trigger: Trigger{Kind: TriggerAnyTool}, Condition: "", Action: ActionDeny, Enabled: true, Priority: 5},
	}}
	e, err := New(set)
	require.NoError(t, err)
	verdict := e.CheckToolCall("t", nil)
	assert.Equal(t, "first", verdict.ContractName)
}

func TestHigherPriorityWinsOverLower(t *testing.T) {
	set := ContractSet{Contracts: []Contract{
		{Name: "low", Trigger: Trigger{Kind: TriggerAnyTool}, Condition: "", Action: ActionAllow, Enabled: true, Priority: 1},
		{Name: "high", Trigger: Trigger{Kind: TriggerAnyTool}, Condition: "", Action: ActionDeny, Enabled: true, Priority: 100},
	}}
	e, err := New(set)
	require.NoError(t, err)
	verdict := e.CheckToolCall("t", nil)
	assert.Equal(t, "high", verdict.ContractName)
}

func TestNotContainsVacuousPassWhenFieldMissing(t *testing.T) {
	cond, err := ParseCondition(`args.missing NOT CONTAINS "x"`)
	require.NoError(t, err)
	assert.True(t, cond.eval(&EvalContext{Args: map[string]any{}}))
}

func TestEqNumericComparesNumerically(t *testing.T) {
	cond, err := ParseCondition(`args.count == 3`)
	require.NoError(t, err)
	assert.True(t, cond.eval(&EvalContext{Args: map[string]any{"count": float64(3)}}))
	assert.False(t, cond.eval(&EvalContext{Args: map[string]any{"count": float64(4)}}))
}

func TestAndOrPrecedence(t *testing.T) {
	cond, err := ParseCondition(`tool_name == "shell" AND args.command CONTAINS "rm" OR tool_name == "web_fetch"`)
	require.NoError(t, err)
	assert.True(t, cond.eval(&EvalContext{ToolName: "web_fetch", HasTool: true}))
	assert.True(t, cond.eval(&EvalContext{ToolName: "shell", HasTool: true, Args: map[string]any{"command": "rm file"}}))
	assert.False(t, cond.eval(&EvalContext{ToolName: "shell", HasTool: true, Args: map[string]any{"command": "ls"}}))
}

func TestEmptyConditionAlwaysTrue(t *testing.T) {
	cond, err := ParseCondition("")
	require.NoError(t, err)
	assert.True(t, cond.eval(&EvalContext{}))
}

func TestInvalidConditionRejected(t *testing.T) {
	_, err := ParseCondition("CONTAINS")
	assert.Error(t, err)
}

func TestAddContractRejectsBadConditionWithoutMutating(t *testing.T) {
	e := Empty()
	err := e.AddContract(Contract{Name: "bad", Condition: "BADOP args", Trigger: Trigger{Kind: TriggerAnyTool}, Enabled: true})
	assert.Error(t, err)
	verdict := e.CheckToolCall("t", nil)
	assert.Empty(t, verdict.ContractName)
}

func TestNestedDottedArgPath(t *testing.T) {
	cond, err := ParseCondition(`args.config.mode == "dangerous"`)
	require.NoError(t, err)
	args := map[string]any{"config": map[string]any{"mode": "dangerous"}}
	assert.True(t, cond.eval(&EvalContext{Args: args}))
}

func TestRegexMatches(t *testing.T) {
	cond, err := ParseCondition(`content MATCHES "^[0-9]+$"`)
	require.NoError(t, err)
	assert.True(t, cond.eval(&EvalContext{Content: "12345", HasContent: true}))
	assert.False(t, cond.eval(&EvalContext{Content: "abc", HasContent: true}))
}

func TestOnlyFiringContractsAreLogged(t *testing.T) {
	e, err := New(noRmRfSet())
	require.NoError(t, err)
	e.CheckToolCall("shell", map[string]any{"command": "ls"}) // no match
	assert.Empty(t, e.Log())
	e.CheckToolCall("shell", map[string]any{"command": "rm -rf /"}) // matches
	assert.Len(t, e.Log(), 1)
}
