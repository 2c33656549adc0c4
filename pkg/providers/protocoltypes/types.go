// Package protocoltypes holds the wire-level request/response shapes shared
// by every concrete LLMProvider adapter (pkg/providers/anthropic,
// pkg/providers/openai_sdk, ...). It exists as its own package, independent
// of pkg/providers, so those adapters can depend on the shared types
// without importing the root providers package (which in turn depends on
// the adapters to build a FallbackChain) — that would be an import cycle.
package protocoltypes

import "encoding/json"

// ToolCall is one function invocation requested by the model in a response.
type ToolCall struct {
	ID           string                 `json:"id"`
	Type         string                 `json:"type,omitempty"`
	Function     *FunctionCall          `json:"function,omitempty"`
	ExtraContent map[string]interface{} `json:"extra_content,omitempty"`
	Name         string                 `json:"name,omitempty"`
	Arguments    map[string]interface{} `json:"arguments,omitempty"`
}

// FunctionCall is the name/arguments pair inside a ToolCall.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// LLMResponse is what every adapter's Chat returns, normalized across
// providers.
type LLMResponse struct {
	Content             string          `json:"content"`
	ToolCalls           []ToolCall      `json:"tool_calls,omitempty"`
	FinishReason        string          `json:"finish_reason"`
	Usage               *UsageInfo      `json:"usage,omitempty"`
	RawAssistantMessage json.RawMessage `json:"-"`
}

// UsageInfo is the token accounting a provider reports for one call.
type UsageInfo struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ContentPart is one piece of a multi-modal message (text or image).
type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

// ImageURL points at an inline or remote image for a ContentPart.
type ImageURL struct {
	URL string `json:"url"`
}

// Message is one turn in the wire-level conversation an adapter sends.
type Message struct {
	Role          string          `json:"role"`
	Content       string          `json:"content"`
	ContentParts  []ContentPart   `json:"content_parts,omitempty"`
	ToolCalls     []ToolCall      `json:"tool_calls,omitempty"`
	ToolCallID    string          `json:"tool_call_id,omitempty"`
	RawAPIMessage json.RawMessage `json:"raw_api_message,omitempty"`
}

// ToolDefinition is the OpenAI-function-calling-shaped schema an adapter
// translates into its own provider's tool format.
type ToolDefinition struct {
	Type     string                 `json:"type"`
	Function ToolFunctionDefinition `json:"function"`
}

// ToolFunctionDefinition is the name/description/JSON-Schema triple inside
// a ToolDefinition.
type ToolFunctionDefinition struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"`
}
