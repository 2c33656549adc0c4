// PicoClaw - Ultra-lightweight personal AI agent
// Inspired by and based on nanobot: https://github.com/HKUDS/nanobot
// License: MIT
//
// Copyright (c) 2026 PicoClaw contributors

// Package react drives the Thought/Action/Observation loop: assemble
// context, call the provider, either return a final answer or dispatch the
// requested tool calls and go around again, bounded by a per-turn iteration
// cap. Run is the blocking variant; RunStream emits incremental events as
// the provider streams its response.
package react

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sipeed/picoclaw/pkg/agentcore/assembler"
	"github.com/sipeed/picoclaw/pkg/agentcore/contracts"
	"github.com/sipeed/picoclaw/pkg/agentcore/core"
	"github.com/sipeed/picoclaw/pkg/agentcore/streamevents"
	"github.com/sipeed/picoclaw/pkg/agentcore/telemetry"
	"github.com/sipeed/picoclaw/pkg/agentcore/workingmemory"
	"github.com/sipeed/picoclaw/pkg/logger"
)

// minAutoSaveChars is the floor on both the user message and the final
// answer for a turn to be eligible for automatic memory storage.
const minAutoSaveChars = 10

// ChatRequest is what the loop hands a provider for one completion.
type ChatRequest struct {
	Model         string
	SystemMessage string
	Messages      []core.Message
	Tools         []core.ToolDefinition
}

// ChatResponse is a provider's answer to one ChatRequest.
type ChatResponse struct {
	Content      string
	ToolCalls    []core.ToolCall
	FinishReason string
	Usage        streamevents.Usage
}

// Provider is the blocking completion interface the loop calls every tick.
type Provider interface {
	Chat(ctx context.Context, req ChatRequest) (ChatResponse, error)
}

// StreamChunk is one incremental delta from a streaming provider. Tool call
// deltas are keyed by Index, not ID: providers are free to omit the id on
// continuation deltas, but the index of a given call is stable for the
// duration of the response.
type StreamChunk struct {
	Index          int
	ID             string
	Name           string
	ContentDelta   string
	ArgumentsDelta string
	FinishReason   string
	Usage          *streamevents.Usage
	Err            error
}

// StreamProvider is the streaming completion interface RunStream uses.
type StreamProvider interface {
	ChatStream(ctx context.Context, req ChatRequest) <-chan StreamChunk
}

// ToolExecutor dispatches one tool call and returns its textual output.
type ToolExecutor interface {
	Execute(ctx context.Context, name, argumentsJSON string) (string, error)
}

// Loop wires the five collaborators a turn needs: a provider, a tool
// dispatcher, the contract engine gating tool calls, the telemetry engine
// recording spans, and an optional long-term memory backend.
type Loop struct {
	Provider Provider
	Streamer StreamProvider // optional; nil disables RunStream
	Tools    ToolExecutor
	Contracts *contracts.Engine
	Telemetry *telemetry.Engine
	Memory    core.MemoryBackend // optional

	// Clock is overridable for deterministic tests; defaults to time.Now.
	Clock func() time.Time
}

// New builds a Loop with its required collaborators. Contracts may be
// contracts.Empty() to allow every call unconditionally.
func New(provider Provider, tools ToolExecutor, contractsEngine *contracts.Engine, telemetryEngine *telemetry.Engine) *Loop {
	return &Loop{
		Provider:  provider,
		Tools:     tools,
		Contracts: contractsEngine,
		Telemetry: telemetryEngine,
		Clock:     func() time.Time { return time.Now().UTC() },
	}
}

func (l *Loop) now() time.Time {
	if l.Clock != nil {
		return l.Clock()
	}
	return time.Now().UTC()
}

// RunInput is everything one turn needs.
type RunInput struct {
	Conversation    *core.Conversation
	Identity        core.Identity
	UserMessage     string
	ToolDefinitions []core.ToolDefinition
	KnowledgeChunks []core.KnowledgeChunk
	Model           string
	Budget          assembler.TokenBudget
	MaxIterations   int // 0 => workingmemory.DefaultMaxIterations
}

// RunResult is the outcome of one completed turn.
type RunResult struct {
	Answer               string
	Usage                streamevents.Usage
	Iterations           int
	ToolCallsMade         int
	TraceID              string
	MaxIterationsReached bool
	// Trace is the working memory's thought/action/observation record for
	// this turn, exposed so callers building on top of a single Run (e.g.
	// pkg/agentcore/coordinator delegating to per-worker turns) can surface
	// what a worker actually did, not just its final answer.
	Trace []workingmemory.TraceEntry
}

// recallMemories queries the configured backend and deduplicates by ID,
// matching spec.md §4.F's merge-before-assembly step. A nil backend or a
// search error yields an empty (not fatal) result.
func (l *Loop) recallMemories(userMessage string) []core.MemoryEntry {
	if l.Memory == nil {
		return nil
	}
	entries, err := l.Memory.Search(core.MemoryQuery{Text: userMessage, Limit: 5, Mode: core.MemoryModeHybrid})
	if err != nil {
		logger.WarnCF("react", "memory recall failed", map[string]any{"error": err.Error()})
		return nil
	}
	seen := make(map[string]bool, len(entries))
	deduped := make([]core.MemoryEntry, 0, len(entries))
	for _, e := range entries {
		if e.ID != "" && seen[e.ID] {
			continue
		}
		if e.ID != "" {
			seen[e.ID] = true
		}
		deduped = append(deduped, e)
	}
	return deduped
}

func (l *Loop) maybeAutoSave(userMessage, answer string) {
	if l.Memory == nil {
		return
	}
	if len(userMessage) < minAutoSaveChars || len(answer) < minAutoSaveChars {
		return
	}
	_, err := l.Memory.Store(core.MemoryEntry{
		Content:   fmt.Sprintf("Q: %s\nA: %s", userMessage, answer),
		Source:    "auto_save",
		CreatedAt: l.now(),
	})
	if err != nil {
		logger.WarnCF("react", "auto-save memory failed", map[string]any{"error": err.Error()})
	}
}

func maxIterations(input RunInput) int {
	if input.MaxIterations > 0 {
		return input.MaxIterations
	}
	return workingmemory.DefaultMaxIterations
}

// priorHistory returns conv's messages with the message at turnMsgIdx (this
// turn's just-appended user message) excluded, so the assembler's own
// UserMessage layer remains the only copy of the current turn's question —
// everything else in conv is prior-turn (or earlier-this-turn, once tool
// calls start appending Assistant/Tool messages) history.
func priorHistory(conv *core.Conversation, turnMsgIdx int) *core.Conversation {
	messages := make([]core.Message, 0, len(conv.Messages)-1)
	messages = append(messages, conv.Messages[:turnMsgIdx]...)
	messages = append(messages, conv.Messages[turnMsgIdx+1:]...)
	return &core.Conversation{ID: conv.ID, Title: conv.Title, Messages: messages, CreatedAt: conv.CreatedAt, UpdatedAt: conv.UpdatedAt}
}

func (l *Loop) recordLlmSpan(traceID, model string, usage streamevents.Usage) {
	span := telemetry.NewSpan(telemetry.SpanLlmCall, model)
	cost := l.Telemetry.ComputeCost(model, usage.PromptTokens, usage.CompletionTokens)
	span.RecordTokens(usage.PromptTokens, usage.CompletionTokens, cost)
	span.End(true)
	l.Telemetry.RecordSpan(traceID, span)
}

// checkAndRun gates one tool call through the contract engine, then (if
// allowed) dispatches it. It always returns an observation string suitable
// for both the working memory trace and the Tool message sent back to the
// provider.
func (l *Loop) checkAndRun(ctx context.Context, traceID string, tc core.ToolCall) (output string, success bool) {
	args := contracts.ParseToolArgs(tc.Arguments)
	verdict := l.Contracts.CheckToolCall(tc.Name, args)
	if verdict.ContractName != "" {
		checkSpan := telemetry.NewSpan(telemetry.SpanContractCheck, verdict.ContractName)
		checkSpan.Metadata = map[string]any{
			"tool":      tc.Name,
			"condition": l.Contracts.ConditionSource(verdict.ContractName),
			"action":    string(verdict.Action),
		}
		checkSpan.End(verdict.Allowed)
		l.Telemetry.RecordSpan(traceID, checkSpan)
	}
	if !verdict.Allowed {
		return "Error: " + verdict.Message, false
	}

	span := telemetry.NewSpan(telemetry.SpanToolExecution, tc.Name)
	out, err := l.Tools.Execute(ctx, tc.Name, tc.Arguments)
	if err != nil {
		span.End(false)
		l.Telemetry.RecordSpan(traceID, span)
		return "Error: " + err.Error(), false
	}
	span.End(true)
	l.Telemetry.RecordSpan(traceID, span)
	return out, true
}

// Run executes one blocking turn: assemble, call the provider, and either
// return a final answer or dispatch tool calls and go around again, up to
// MaxIterations times.
func (l *Loop) Run(ctx context.Context, input RunInput) (*RunResult, error) {
	wm := workingmemory.New(maxIterations(input))
	traceID := l.Telemetry.StartTrace(input.Conversation.ID)
	memories := l.recallMemories(input.UserMessage)
	turnMsgIdx := len(input.Conversation.Messages)
	input.Conversation.Append(core.NewMessage(uuid.NewString(), core.RoleUser, input.UserMessage))

	var usage streamevents.Usage
	toolCallsMade := 0

	for {
		if !wm.Tick() {
			answer := "I was unable to finish this within the allotted reasoning steps."
			input.Conversation.Append(core.NewMessage(uuid.NewString(), core.RoleAssistant, answer))
			l.Telemetry.EndTrace(traceID)
			return &RunResult{
				Answer: answer, Usage: usage, Iterations: wm.Iterations,
				ToolCallsMade: toolCallsMade, TraceID: traceID, MaxIterationsReached: true,
				Trace: wm.Trace,
			}, nil
		}

		assembled, err := assembler.Assemble(assembler.AssemblyInput{
			Identity: input.Identity, Memories: memories, WorkingMemory: wm,
			KnowledgeChunks: input.KnowledgeChunks, ToolDefinitions: input.ToolDefinitions,
			Conversation: priorHistory(input.Conversation, turnMsgIdx), UserMessage: input.UserMessage,
		}, input.Budget)
		if err != nil {
			l.Telemetry.EndTrace(traceID)
			return nil, err
		}

		estimatedCost := l.Telemetry.ComputeCost(input.Model, assembled.Metadata.TotalTokens, 0)
		if err := l.Telemetry.CheckBudget(estimatedCost); err != nil {
			l.Telemetry.EndTrace(traceID)
			return nil, fmt.Errorf("react: %w", err)
		}

		resp, err := l.Provider.Chat(ctx, ChatRequest{
			Model: input.Model, SystemMessage: assembled.SystemMessage,
			Messages: assembled.Messages, Tools: assembled.ToolDefinitions,
		})
		if err != nil {
			l.Telemetry.EndTrace(traceID)
			return nil, fmt.Errorf("react: provider call failed: %w", err)
		}

		l.recordLlmSpan(traceID, input.Model, resp.Usage)
		usage.PromptTokens += resp.Usage.PromptTokens
		usage.CompletionTokens += resp.Usage.CompletionTokens
		usage.TotalTokens += resp.Usage.TotalTokens

		if resp.Content != "" {
			wm.AddThought(resp.Content)
		}

		if len(resp.ToolCalls) == 0 {
			answer := resp.Content
			input.Conversation.Append(core.NewMessage(uuid.NewString(), core.RoleAssistant, answer))
			l.maybeAutoSave(input.UserMessage, answer)
			l.Telemetry.EndTrace(traceID)
			return &RunResult{
				Answer: answer, Usage: usage, Iterations: wm.Iterations,
				ToolCallsMade: toolCallsMade, TraceID: traceID,
				Trace: wm.Trace,
			}, nil
		}

		input.Conversation.Append(core.Message{
			ID: uuid.NewString(), Role: core.RoleAssistant, Content: resp.Content,
			ToolCalls: resp.ToolCalls, Timestamp: l.now(),
		})

		for _, tc := range resp.ToolCalls {
			wm.AddAction(fmt.Sprintf("%s(%s)", tc.Name, tc.Arguments))
			output, success := l.checkAndRun(ctx, traceID, tc)
			wm.AddObservation(output)
			wm.AddToolResult(tc.Name, tc.Arguments, output, success)
			input.Conversation.Append(core.Message{
				ID: uuid.NewString(), Role: core.RoleTool, Content: output,
				ToolCallID: tc.ID, Timestamp: l.now(),
			})
			toolCallsMade++
		}
	}
}

// pendingToolCall accumulates one streaming tool call's name and argument
// fragments, keyed by its delta index.
type pendingToolCall struct {
	id, name string
	args     strings.Builder
}

// RunStream executes one turn using the streaming provider, emitting a
// Chunk per content delta, a ToolCall/ToolResult pair per dispatched tool,
// an optional Thought, and exactly one terminal Done or Error. The returned
// channel is closed after the terminal event.
func (l *Loop) RunStream(ctx context.Context, input RunInput) <-chan streamevents.StreamEvent {
	out := make(chan streamevents.StreamEvent)
	go func() {
		defer close(out)
		l.runStream(ctx, input, out)
	}()
	return out
}

func (l *Loop) runStream(ctx context.Context, input RunInput, out chan<- streamevents.StreamEvent) {
	if l.Streamer == nil {
		out <- streamevents.Error("react: no streaming provider configured")
		return
	}

	wm := workingmemory.New(maxIterations(input))
	traceID := l.Telemetry.StartTrace(input.Conversation.ID)
	memories := l.recallMemories(input.UserMessage)
	turnMsgIdx := len(input.Conversation.Messages)
	input.Conversation.Append(core.NewMessage(uuid.NewString(), core.RoleUser, input.UserMessage))

	var usage streamevents.Usage
	toolCallsMade := 0

	for {
		if !wm.Tick() {
			answer := "I was unable to finish this within the allotted reasoning steps."
			input.Conversation.Append(core.NewMessage(uuid.NewString(), core.RoleAssistant, answer))
			out <- streamevents.Chunk(answer)
			l.Telemetry.EndTrace(traceID)
			out <- streamevents.Done(input.Conversation.ID, &usage, wm.Iterations, toolCallsMade)
			return
		}

		assembled, err := assembler.Assemble(assembler.AssemblyInput{
			Identity: input.Identity, Memories: memories, WorkingMemory: wm,
			KnowledgeChunks: input.KnowledgeChunks, ToolDefinitions: input.ToolDefinitions,
			Conversation: priorHistory(input.Conversation, turnMsgIdx), UserMessage: input.UserMessage,
		}, input.Budget)
		if err != nil {
			l.Telemetry.EndTrace(traceID)
			out <- streamevents.Error(err.Error())
			return
		}

		estimatedCost := l.Telemetry.ComputeCost(input.Model, assembled.Metadata.TotalTokens, 0)
		if err := l.Telemetry.CheckBudget(estimatedCost); err != nil {
			l.Telemetry.EndTrace(traceID)
			out <- streamevents.Error(err.Error())
			return
		}

		resp, err := l.streamOnce(ctx, ChatRequest{
			Model: input.Model, SystemMessage: assembled.SystemMessage,
			Messages: assembled.Messages, Tools: assembled.ToolDefinitions,
		}, out)
		if err != nil {
			l.Telemetry.EndTrace(traceID)
			out <- streamevents.Error(err.Error())
			return
		}

		l.recordLlmSpan(traceID, input.Model, resp.Usage)
		usage.PromptTokens += resp.Usage.PromptTokens
		usage.CompletionTokens += resp.Usage.CompletionTokens
		usage.TotalTokens += resp.Usage.TotalTokens

		if resp.Content != "" {
			wm.AddThought(resp.Content)
			out <- streamevents.Thought(resp.Content)
		}

		if len(resp.ToolCalls) == 0 {
			input.Conversation.Append(core.NewMessage(uuid.NewString(), core.RoleAssistant, resp.Content))
			l.maybeAutoSave(input.UserMessage, resp.Content)
			l.Telemetry.EndTrace(traceID)
			out <- streamevents.Done(input.Conversation.ID, &usage, wm.Iterations, toolCallsMade)
			return
		}

		input.Conversation.Append(core.Message{
			ID: uuid.NewString(), Role: core.RoleAssistant, Content: resp.Content,
			ToolCalls: resp.ToolCalls, Timestamp: l.now(),
		})

		for _, tc := range resp.ToolCalls {
			wm.AddAction(fmt.Sprintf("%s(%s)", tc.Name, tc.Arguments))
			out <- streamevents.ToolCallEvent(tc.ID, tc.Name, tc.Arguments)
			output, success := l.checkAndRun(ctx, traceID, tc)
			wm.AddObservation(output)
			wm.AddToolResult(tc.Name, tc.Arguments, output, success)
			out <- streamevents.ToolResultEvent(tc.ID, tc.Name, output, success)
			input.Conversation.Append(core.Message{
				ID: uuid.NewString(), Role: core.RoleTool, Content: output,
				ToolCallID: tc.ID, Timestamp: l.now(),
			})
			toolCallsMade++
		}
	}
}

// streamOnce drains one ChatStream response, forwarding content deltas as
// Chunk events and merging tool-call deltas by index.
func (l *Loop) streamOnce(ctx context.Context, req ChatRequest, out chan<- streamevents.StreamEvent) (ChatResponse, error) {
	var content strings.Builder
	pending := map[int]*pendingToolCall{}
	var usage streamevents.Usage
	var finishReason string

	for chunk := range l.Streamer.ChatStream(ctx, req) {
		if chunk.Err != nil {
			return ChatResponse{}, chunk.Err
		}
		if chunk.ContentDelta != "" {
			content.WriteString(chunk.ContentDelta)
			out <- streamevents.Chunk(chunk.ContentDelta)
		}
		if chunk.ID != "" || chunk.Name != "" || chunk.ArgumentsDelta != "" {
			p, ok := pending[chunk.Index]
			if !ok {
				p = &pendingToolCall{}
				pending[chunk.Index] = p
			}
			if chunk.ID != "" && p.id == "" {
				p.id = chunk.ID
			}
			if chunk.Name != "" {
				p.name += chunk.Name
			}
			p.args.WriteString(chunk.ArgumentsDelta)
		}
		if chunk.Usage != nil {
			usage = *chunk.Usage
		}
		if chunk.FinishReason != "" {
			finishReason = chunk.FinishReason
		}
	}

	indices := make([]int, 0, len(pending))
	for idx := range pending {
		indices = append(indices, idx)
	}
	sort.Ints(indices)
	toolCalls := make([]core.ToolCall, 0, len(indices))
	for _, idx := range indices {
		p := pending[idx]
		toolCalls = append(toolCalls, core.ToolCall{ID: p.id, Name: p.name, Arguments: p.args.String()})
	}

	return ChatResponse{
		Content: content.String(), ToolCalls: toolCalls,
		FinishReason: finishReason, Usage: usage,
	}, nil
}
