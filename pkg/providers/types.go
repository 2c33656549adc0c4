package providers

import (
	"context"

	"github.com/sipeed/picoclaw/pkg/providers/protocoltypes"
)

// These are aliases, not redeclarations: every concrete adapter
// (pkg/providers/anthropic, pkg/providers/openai_sdk) is built against
// protocoltypes directly to avoid importing this package back, so the
// FallbackChain and callers here need the identical underlying type.
type (
	ToolCall               = protocoltypes.ToolCall
	FunctionCall           = protocoltypes.FunctionCall
	LLMResponse            = protocoltypes.LLMResponse
	UsageInfo              = protocoltypes.UsageInfo
	ContentPart            = protocoltypes.ContentPart
	ImageURL               = protocoltypes.ImageURL
	Message                = protocoltypes.Message
	ToolDefinition         = protocoltypes.ToolDefinition
	ToolFunctionDefinition = protocoltypes.ToolFunctionDefinition
)

// LLMProvider is the contract every concrete adapter and the FallbackChain
// share: one blocking completion call plus the model it defaults to when
// the caller doesn't pin one.
type LLMProvider interface {
	Chat(ctx context.Context, messages []Message, tools []ToolDefinition, model string, options map[string]interface{}) (*LLMResponse, error)
	GetDefaultModel() string
}
