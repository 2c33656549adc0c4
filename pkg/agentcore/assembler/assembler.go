// PicoClaw - Ultra-lightweight personal AI agent
// Inspired by and based on nanobot: https://github.com/HKUDS/nanobot
// License: MIT
//
// Copyright (c) 2026 PicoClaw contributors

// Package assembler builds the deterministic, budget-capped system prompt
// and message window the ReAct loop sends to the provider. Six layers —
// system, long-term memory, working memory, knowledge, tool schemas,
// conversation history — are rendered in strict priority order, each
// capped by min(per-layer cap, remaining budget); lower-priority layers are
// the first to be starved under pressure.
//
// Determinism is load-bearing here: Assemble must never consult a clock or
// randomness, and must iterate every collection in the order given.
package assembler

import (
	"fmt"
	"strings"

	"github.com/sipeed/picoclaw/pkg/agentcore/core"
	"github.com/sipeed/picoclaw/pkg/agentcore/tokens"
	"github.com/sipeed/picoclaw/pkg/agentcore/workingmemory"
	"github.com/sipeed/picoclaw/pkg/logger"
)

// PerLayerBudget caps each layer independently. A nil field means "use all
// remaining budget" for that layer.
type PerLayerBudget struct {
	LongTermMemory      *int
	WorkingMemory       *int
	Knowledge           *int
	ToolSchemas         *int
	ConversationHistory *int
}

// TokenBudget is the total assembly budget plus optional per-layer caps.
type TokenBudget struct {
	Total    int
	PerLayer PerLayerBudget
}

// AssemblyInput is everything Assemble needs for one turn.
type AssemblyInput struct {
	Identity        core.Identity
	Memories        []core.MemoryEntry // pre-sorted by caller, oldest-first priority for inclusion
	WorkingMemory   *workingmemory.WorkingMemory
	KnowledgeChunks []core.KnowledgeChunk // pre-sorted by similarity descending
	ToolDefinitions []core.ToolDefinition
	Conversation    *core.Conversation
	UserMessage     string
}

// LayerStats reports one layer's contribution to the assembled context.
type LayerStats struct {
	Name          string
	Tokens        int
	ItemsIncluded int
	ItemsTotal    int
}

// DropInfo records items excluded from a layer because they would have
// overflowed that layer's budget.
type DropInfo struct {
	Layer         string
	ItemsDropped  int
	TokensDropped int
	Reason        string
}

// AssemblyMetadata describes how the budget was spent.
type AssemblyMetadata struct {
	TotalTokens    int
	Budget         TokenBudget
	UtilizationPct float64
	PerLayer       []LayerStats
	Drops          []DropInfo
}

// AssembledContext is the finished prompt ready to hand to a provider.
type AssembledContext struct {
	SystemMessage   string
	Messages        []core.Message
	ToolDefinitions []core.ToolDefinition
	Metadata        AssemblyMetadata
}

// BudgetExceededError is returned when the system prompt plus the user
// message alone overrun the total budget, before any layer is rendered.
type BudgetExceededError struct {
	SystemTokens int
	UserTokens   int
	Budget       int
}

func (e *BudgetExceededError) Error() string {
	return fmt.Sprintf("assembler: system+user tokens (%d) exceed total budget (%d)",
		e.SystemTokens+e.UserTokens, e.Budget)
}

func effectiveBudget(cap_ *int, remaining int) int {
	if cap_ == nil {
		return remaining
	}
	if *cap_ < remaining {
		return *cap_
	}
	return remaining
}

// Assemble runs the six-layer priority assembly described in spec.md §4.C.
func Assemble(input AssemblyInput, budget TokenBudget) (*AssembledContext, error) {
	systemTokens := tokens.Estimate(input.Identity.SystemPrompt)
	userTokens := tokens.EstimateMessage(input.UserMessage)

	if systemTokens+userTokens > budget.Total {
		logger.WarnCF("assembler", "system+user tokens exceed total budget", map[string]any{
			"system_tokens": systemTokens, "user_tokens": userTokens, "budget": budget.Total,
		})
		return nil, &BudgetExceededError{SystemTokens: systemTokens, UserTokens: userTokens, Budget: budget.Total}
	}
	remaining := budget.Total - (systemTokens + userTokens)

	var sections []string
	var drops []DropInfo
	perLayer := []LayerStats{{Name: "system", Tokens: systemTokens, ItemsIncluded: 1, ItemsTotal: 1}}

	// Layer 2: Long-Term Memory.
	ltmText, ltmStats, ltmDrop, ltmUsed := renderMemoryLayer(input.Memories, effectiveBudget(budget.PerLayer.LongTermMemory, remaining))
	perLayer = append(perLayer, ltmStats)
	if ltmDrop != nil {
		drops = append(drops, *ltmDrop)
	}
	if ltmText != "" {
		sections = append(sections, ltmText)
	}
	remaining -= ltmUsed

	// Layer 3: Working Memory.
	wmText, wmStats, wmDrop, wmUsed := renderWorkingMemoryLayer(input.WorkingMemory, effectiveBudget(budget.PerLayer.WorkingMemory, remaining))
	perLayer = append(perLayer, wmStats)
	if wmDrop != nil {
		drops = append(drops, *wmDrop)
	}
	if wmText != "" {
		sections = append(sections, wmText)
	}
	remaining -= wmUsed

	// Layer 4: Knowledge/RAG.
	kText, kStats, kDrop, kUsed := renderKnowledgeLayer(input.KnowledgeChunks, effectiveBudget(budget.PerLayer.Knowledge, remaining))
	perLayer = append(perLayer, kStats)
	if kDrop != nil {
		drops = append(drops, *kDrop)
	}
	if kText != "" {
		sections = append(sections, kText)
	}
	remaining -= kUsed

	// Layer 5: Tool Schemas.
	includedTools, toolStats, toolDrop, toolUsed := renderToolSchemasLayer(input.ToolDefinitions, effectiveBudget(budget.PerLayer.ToolSchemas, remaining))
	perLayer = append(perLayer, toolStats)
	if toolDrop != nil {
		drops = append(drops, *toolDrop)
	}
	remaining -= toolUsed

	// Layer 6: Conversation History.
	historyMessages, histStats, histDrop, _ := renderHistoryLayer(input.Conversation, effectiveBudget(budget.PerLayer.ConversationHistory, remaining))
	perLayer = append(perLayer, histStats)
	if histDrop != nil {
		drops = append(drops, *histDrop)
	}

	userMsg := core.NewMessage("", core.RoleUser, input.UserMessage)
	perLayer = append(perLayer, LayerStats{Name: "user_message", Tokens: userTokens, ItemsIncluded: 1, ItemsTotal: 1})

	systemMessage := input.Identity.SystemPrompt
	if len(sections) > 0 {
		systemMessage = systemMessage + "\n\n" + strings.Join(sections, "\n\n")
	}

	totalTokens := systemTokens + ltmStats.Tokens + wmStats.Tokens + kStats.Tokens + toolStats.Tokens + histStats.Tokens + userTokens

	utilization := 0.0
	if budget.Total > 0 {
		utilization = 100.0 * float64(totalTokens) / float64(budget.Total)
	}

	messages := make([]core.Message, 0, len(historyMessages)+1)
	messages = append(messages, historyMessages...)
	messages = append(messages, userMsg)

	if len(drops) > 0 {
		logger.DebugCF("assembler", "layer budget pressure dropped items", map[string]any{
			"drops": len(drops), "utilization_pct": utilization,
		})
	}

	return &AssembledContext{
		SystemMessage:   systemMessage,
		Messages:        messages,
		ToolDefinitions: includedTools,
		Metadata: AssemblyMetadata{
			TotalTokens:    totalTokens,
			Budget:         budget,
			UtilizationPct: utilization,
			PerLayer:       perLayer,
			Drops:          drops,
		},
	}, nil
}

func renderMemoryLayer(memories []core.MemoryEntry, cap int) (string, LayerStats, *DropInfo, int) {
	const header = "[Long-Term Memory]\n"
	stats := LayerStats{Name: "long_term_memory", ItemsTotal: len(memories)}

	if len(memories) == 0 {
		return "", stats, nil, 0
	}
	headerTokens := tokens.Estimate(header)
	if headerTokens > cap {
		drop := &DropInfo{Layer: "long_term_memory", ItemsDropped: len(memories), TokensDropped: 0, Reason: "header alone exceeds layer budget"}
		return "", stats, drop, 0
	}

	var sb strings.Builder
	sb.WriteString(header)
	used := headerTokens
	included := 0
	droppedCount := 0

	for _, m := range memories {
		line := fmt.Sprintf("- %s\n", m.Content)
		lineTokens := tokens.Estimate(line)
		if used+lineTokens > cap {
			droppedCount = len(memories) - included
			break
		}
		sb.WriteString(line)
		used += lineTokens
		included++
	}

	stats.Tokens = used
	stats.ItemsIncluded = included
	var drop *DropInfo
	if droppedCount > 0 {
		drop = &DropInfo{Layer: "long_term_memory", ItemsDropped: droppedCount, TokensDropped: 0, Reason: "budget exhausted"}
	}
	if included == 0 {
		return "", stats, drop, 0
	}
	return sb.String(), stats, drop, used
}

func renderWorkingMemoryLayer(wm *workingmemory.WorkingMemory, cap int) (string, LayerStats, *DropInfo, int) {
	const header = "[Working Memory]\n"
	stats := LayerStats{Name: "working_memory"}
	if wm == nil || wm.IsEmpty() {
		return "", stats, nil, 0
	}
	stats.ItemsTotal = wm.ItemCount()

	full := header + wm.Render()
	fullTokens := tokens.Estimate(full)
	if fullTokens <= cap {
		stats.Tokens = fullTokens
		stats.ItemsIncluded = stats.ItemsTotal
		return full, stats, nil, fullTokens
	}

	headerTokens := tokens.Estimate(header)
	if headerTokens > cap {
		drop := &DropInfo{Layer: "working_memory", ItemsDropped: stats.ItemsTotal, Reason: "header alone exceeds layer budget"}
		return "", stats, drop, 0
	}

	var sb strings.Builder
	sb.WriteString(header)
	used := headerTokens
	included := 0

	if wm.Plan != nil {
		goalLine := fmt.Sprintf("Goal: %s\n", wm.Plan.Goal)
		goalTokens := tokens.Estimate(goalLine)
		if used+goalTokens <= cap {
			sb.WriteString(goalLine)
			used += goalTokens
			included++
		}
	}

	droppedCount := 0
	for i := len(wm.Trace) - 1; i >= 0; i-- {
		e := wm.Trace[i]
		line := fmt.Sprintf("[%s] %s\n", e.Kind.Label(), e.Content)
		lineTokens := tokens.Estimate(line)
		if used+lineTokens > cap {
			droppedCount = i + 1
			break
		}
		sb.WriteString(line)
		used += lineTokens
		included++
	}

	stats.Tokens = used
	stats.ItemsIncluded = included
	var drop *DropInfo
	if droppedCount > 0 {
		drop = &DropInfo{Layer: "working_memory", ItemsDropped: droppedCount, Reason: "budget exhausted"}
	}
	if included == 0 {
		return "", stats, drop, 0
	}
	return sb.String(), stats, drop, used
}

func renderKnowledgeLayer(chunks []core.KnowledgeChunk, cap int) (string, LayerStats, *DropInfo, int) {
	const header = "[Retrieved Knowledge]\n"
	stats := LayerStats{Name: "knowledge", ItemsTotal: len(chunks)}
	if len(chunks) == 0 {
		return "", stats, nil, 0
	}
	headerTokens := tokens.Estimate(header)
	if headerTokens > cap {
		drop := &DropInfo{Layer: "knowledge", ItemsDropped: len(chunks), Reason: "header alone exceeds layer budget"}
		return "", stats, drop, 0
	}

	var sb strings.Builder
	sb.WriteString(header)
	used := headerTokens
	included := 0
	droppedCount := 0

	for _, c := range chunks {
		line := fmt.Sprintf("[Source: %s] %s\n", c.Source, c.Content)
		lineTokens := tokens.Estimate(line)
		if used+lineTokens > cap {
			droppedCount = len(chunks) - included
			break
		}
		sb.WriteString(line)
		used += lineTokens
		included++
	}

	stats.Tokens = used
	stats.ItemsIncluded = included
	var drop *DropInfo
	if droppedCount > 0 {
		drop = &DropInfo{Layer: "knowledge", ItemsDropped: droppedCount, Reason: "budget exhausted"}
	}
	if included == 0 {
		return "", stats, drop, 0
	}
	return sb.String(), stats, drop, used
}

func renderToolSchemasLayer(defs []core.ToolDefinition, cap int) ([]core.ToolDefinition, LayerStats, *DropInfo, int) {
	stats := LayerStats{Name: "tool_schemas", ItemsTotal: len(defs)}
	if len(defs) == 0 {
		return nil, stats, nil, 0
	}

	var included []core.ToolDefinition
	used := 0
	droppedCount := 0
	for _, d := range defs {
		t := tokens.EstimateJSON(d)
		if used+t > cap {
			droppedCount = len(defs) - len(included)
			break
		}
		included = append(included, d)
		used += t
	}

	stats.Tokens = used
	stats.ItemsIncluded = len(included)
	var drop *DropInfo
	if droppedCount > 0 {
		drop = &DropInfo{Layer: "tool_schemas", ItemsDropped: droppedCount, Reason: "budget exhausted"}
	}
	return included, stats, drop, used
}

func renderHistoryLayer(conv *core.Conversation, cap int) ([]core.Message, LayerStats, *DropInfo, int) {
	stats := LayerStats{Name: "conversation_history"}
	if conv == nil || len(conv.Messages) == 0 {
		return nil, stats, nil, 0
	}

	var candidates []core.Message
	for _, m := range conv.Messages {
		if m.Role == core.RoleSystem {
			continue
		}
		candidates = append(candidates, m)
	}
	stats.ItemsTotal = len(candidates)
	if len(candidates) == 0 {
		return nil, stats, nil, 0
	}

	var included []core.Message
	used := 0
	droppedCount := 0
	for i := len(candidates) - 1; i >= 0; i-- {
		m := candidates[i]
		mTokens := tokens.EstimateMessage(m.Content)
		if used+mTokens > cap {
			droppedCount = i + 1
			break
		}
		included = append(included, m)
		used += mTokens
	}

	// included was collected newest-first; reverse to chronological order.
	for l, r := 0, len(included)-1; l < r; l, r = l+1, r-1 {
		included[l], included[r] = included[r], included[l]
	}

	stats.Tokens = used
	stats.ItemsIncluded = len(included)
	var drop *DropInfo
	if droppedCount > 0 {
		drop = &DropInfo{Layer: "conversation_history", ItemsDropped: droppedCount, Reason: "budget exhausted"}
	}
	return included, stats, drop, used
}
