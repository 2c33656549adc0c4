// PicoClaw - Ultra-lightweight personal AI agent
// Inspired by and based on nanobot: https://github.com/HKUDS/nanobot
// License: MIT
//
// Copyright (c) 2026 PicoClaw contributors

// Package reactbridge adapts pkg/providers' LLMProvider/FallbackChain onto
// the react.Provider and react.StreamProvider interfaces the ReAct loop
// calls against. It is the only place that converts between core's message
// model and protocoltypes' wire model, so that neither pkg/agentcore/react
// nor pkg/providers needs to know about the other's types.
package reactbridge

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sipeed/picoclaw/pkg/agentcore/core"
	"github.com/sipeed/picoclaw/pkg/agentcore/react"
	"github.com/sipeed/picoclaw/pkg/agentcore/streamevents"
	"github.com/sipeed/picoclaw/pkg/providers"
)

// Bridge turns a Registry + FallbackChain into a react.Provider. Chat
// ignores ChatRequest.Model in favor of its configured ModelConfig's
// candidate list, since model selection for this turn was already decided
// at configuration time — a per-call override would bypass the fallback
// ordering entirely. ChatStream, which only uses the primary candidate,
// sends a non-empty ChatRequest.Model to it in place of the primary's model.
type Bridge struct {
	Registry    *providers.Registry
	Chain       *providers.FallbackChain
	ModelConfig providers.ModelConfig
	// DefaultProvider names the provider a bare (no "/") model ref in
	// ModelConfig resolves against.
	DefaultProvider string
}

// New builds a Bridge over registry/chain/modelConfig.
func New(registry *providers.Registry, chain *providers.FallbackChain, modelConfig providers.ModelConfig, defaultProvider string) *Bridge {
	return &Bridge{Registry: registry, Chain: chain, ModelConfig: modelConfig, DefaultProvider: defaultProvider}
}

// Chat satisfies react.Provider by running req through the fallback chain.
func (b *Bridge) Chat(ctx context.Context, req react.ChatRequest) (react.ChatResponse, error) {
	messages, tools := convertRequest(req)
	candidates := providers.ResolveCandidates(b.ModelConfig, b.DefaultProvider)

	result, err := b.Chain.Execute(ctx, candidates, b.Registry.RunChat(messages, tools, nil))
	if err != nil {
		return react.ChatResponse{}, fmt.Errorf("reactbridge: chat: %w", err)
	}
	return convertResponse(result.Response), nil
}

// streamCapable is implemented by adapters (currently only
// pkg/providers/anthropic.Provider) that can stream text deltas. Not every
// LLMProvider supports this, so Bridge.ChatStream type-asserts for it
// rather than requiring it on the LLMProvider interface.
type streamCapable interface {
	ChatStream(ctx context.Context, messages []providers.Message, tools []providers.ToolDefinition, model string, options map[string]any, onDelta func(string)) (*providers.LLMResponse, error)
}

// ChatStream satisfies react.StreamProvider. It streams text content
// deltas from the primary candidate (streaming bypasses the fallback chain
// — a mid-stream failover would require discarding partial output the
// caller may already have rendered) and emits the model's tool calls, if
// any, as a single ArgumentsDelta chunk each once the stream completes.
func (b *Bridge) ChatStream(ctx context.Context, req react.ChatRequest) <-chan react.StreamChunk {
	out := make(chan react.StreamChunk)

	go func() {
		defer close(out)

		candidates := providers.ResolveCandidates(b.ModelConfig, b.DefaultProvider)
		if len(candidates) == 0 {
			out <- react.StreamChunk{Err: fmt.Errorf("reactbridge: no candidates configured")}
			return
		}
		primary := candidates[0]

		provider, err := b.Registry.Resolve(primary.Provider)
		if err != nil {
			out <- react.StreamChunk{Err: err}
			return
		}
		streamer, ok := provider.(streamCapable)
		if !ok {
			out <- react.StreamChunk{Err: fmt.Errorf("reactbridge: provider %q does not support streaming", primary.Provider)}
			return
		}

		messages, tools := convertRequest(req)
		model := primary.Model
		if req.Model != "" {
			model = req.Model
		}

		resp, err := streamer.ChatStream(ctx, messages, tools, model, nil, func(delta string) {
			out <- react.StreamChunk{Index: 0, ContentDelta: delta}
		})
		if err != nil {
			out <- react.StreamChunk{Err: err}
			return
		}

		for i, tc := range resp.ToolCalls {
			name, args := toolCallNameArgs(tc)
			out <- react.StreamChunk{Index: i + 1, ID: tc.ID, Name: name, ArgumentsDelta: args}
		}

		usage := convertUsage(resp.Usage)
		out <- react.StreamChunk{Index: 0, FinishReason: resp.FinishReason, Usage: &usage}
	}()

	return out
}

func convertRequest(req react.ChatRequest) ([]providers.Message, []providers.ToolDefinition) {
	messages := make([]providers.Message, 0, len(req.Messages)+1)
	if req.SystemMessage != "" {
		messages = append(messages, providers.Message{Role: "system", Content: req.SystemMessage})
	}
	for _, m := range req.Messages {
		messages = append(messages, providers.Message{
			Role:       string(m.Role),
			Content:    m.Content,
			ToolCalls:  convertToolCallsOut(m.ToolCalls),
			ToolCallID: m.ToolCallID,
		})
	}

	tools := make([]providers.ToolDefinition, 0, len(req.Tools))
	for _, t := range req.Tools {
		tools = append(tools, providers.ToolDefinition{
			Type: "function",
			Function: providers.ToolFunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}
	return messages, tools
}

func convertToolCallsOut(calls []core.ToolCall) []providers.ToolCall {
	if len(calls) == 0 {
		return nil
	}
	out := make([]providers.ToolCall, 0, len(calls))
	for _, tc := range calls {
		out = append(out, providers.ToolCall{
			ID:   tc.ID,
			Type: "function",
			Function: &providers.FunctionCall{
				Name:      tc.Name,
				Arguments: tc.Arguments,
			},
		})
	}
	return out
}

func convertResponse(resp *providers.LLMResponse) react.ChatResponse {
	if resp == nil {
		return react.ChatResponse{}
	}
	toolCalls := make([]core.ToolCall, 0, len(resp.ToolCalls))
	for _, tc := range resp.ToolCalls {
		name, args := toolCallNameArgs(tc)
		toolCalls = append(toolCalls, core.ToolCall{ID: tc.ID, Name: name, Arguments: args})
	}
	return react.ChatResponse{
		Content:      resp.Content,
		ToolCalls:    toolCalls,
		FinishReason: resp.FinishReason,
		Usage:        convertUsage(resp.Usage),
	}
}

// toolCallNameArgs reads name/arguments off whichever of the two shapes an
// adapter populated: the OpenAI-style nested Function, or the flat
// Name/Arguments fields some adapters set directly. Arguments always comes
// back as a JSON-encoded string, matching core.ToolCall's contract.
func toolCallNameArgs(tc providers.ToolCall) (name, argumentsJSON string) {
	if tc.Function != nil {
		return tc.Function.Name, tc.Function.Arguments
	}
	if tc.Arguments != nil {
		if encoded, err := json.Marshal(tc.Arguments); err == nil {
			return tc.Name, string(encoded)
		}
	}
	return tc.Name, "{}"
}

func convertUsage(u *providers.UsageInfo) streamevents.Usage {
	if u == nil {
		return streamevents.Usage{}
	}
	return streamevents.Usage{
		PromptTokens:     u.PromptTokens,
		CompletionTokens: u.CompletionTokens,
		TotalTokens:      u.TotalTokens,
	}
}
