// Package copilot adapts the GitHub Copilot CLI agent (reached over its
// gRPC control surface) onto the providers.LLMProvider interface, so it can
// sit in the Fallback Provider chain next to the anthropic and openai_sdk
// adapters. Unlike those two, it is session-based rather than stateless:
// the first Chat call dials the running Copilot CLI and every later Chat
// call reuses that session.
package copilot

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	copilotsdk "github.com/github/copilot-sdk/go"

	"github.com/sipeed/picoclaw/pkg/providers/protocoltypes"
)

type (
	ToolCall       = protocoltypes.ToolCall
	LLMResponse    = protocoltypes.LLMResponse
	Message        = protocoltypes.Message
	ToolDefinition = protocoltypes.ToolDefinition
)

const (
	defaultModel          = "gpt-4.1"
	sessionConnectTimeout = 15 * time.Second
)

// Provider drives a GitHub Copilot CLI session over gRPC. Connection is
// established lazily on the first Chat call so constructing a Provider
// never fails just because the CLI isn't running yet — the Fallback Provider
// chain should be able to skip a dead Copilot entry, not abort startup.
type Provider struct {
	uri   string
	model string

	mu      sync.Mutex
	client  *copilotsdk.Client
	session *copilotsdk.Session
}

// NewProvider builds an adapter that dials the Copilot CLI at uri on first
// use. model is the session's model; Chat does not use its model argument,
// so every call runs on the model the session was created with.
func NewProvider(uri, model string) *Provider {
	if model == "" {
		model = defaultModel
	}
	return &Provider{uri: uri, model: model}
}

func (p *Provider) GetDefaultModel() string {
	return p.model
}

// connect dials the CLI and opens a session, if not already done. Held
// across the Provider's lifetime: the CLI session holds the conversation
// state Copilot itself tracks, not this adapter.
func (p *Provider) connect(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.session != nil {
		return nil
	}

	client := copilotsdk.NewClient(&copilotsdk.ClientOptions{CLIUrl: p.uri})
	connectCtx, cancel := context.WithTimeout(ctx, sessionConnectTimeout)
	defer cancel()
	if err := client.Start(connectCtx); err != nil {
		return fmt.Errorf("copilot: connect: %w", err)
	}
	session, err := client.CreateSession(connectCtx, &copilotsdk.SessionConfig{
		Model: p.model,
		Hooks: &copilotsdk.SessionHooks{},
	})
	if err != nil {
		client.Stop()
		return fmt.Errorf("copilot: create session: %w", err)
	}

	p.client = client
	p.session = session
	return nil
}

// Chat sends the full message history as one prompt, mirroring the teacher
// adapter: the Copilot CLI session is the one turning it back into
// role-aware context, not this adapter.
func (p *Provider) Chat(ctx context.Context, messages []Message, tools []ToolDefinition, model string, options map[string]interface{}) (*LLMResponse, error) {
	if err := p.connect(ctx); err != nil {
		return nil, err
	}

	type wireMessage struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}
	out := make([]wireMessage, 0, len(messages))
	for _, m := range messages {
		out = append(out, wireMessage{Role: m.Role, Content: m.Content})
	}
	prompt, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("copilot: marshal messages: %w", err)
	}

	event, err := p.session.SendAndWait(ctx, copilotsdk.MessageOptions{Prompt: string(prompt)})
	if err != nil {
		return nil, fmt.Errorf("copilot: session send: %w", err)
	}
	if event == nil || event.Data.Content == nil {
		return nil, fmt.Errorf("copilot: empty response")
	}

	return &LLMResponse{
		Content:      *event.Data.Content,
		FinishReason: "stop",
	}, nil
}
