package providers

import (
	"context"
	"fmt"
	"sync"

	"github.com/sipeed/picoclaw/pkg/config"
	anthropicprovider "github.com/sipeed/picoclaw/pkg/providers/anthropic"
	"github.com/sipeed/picoclaw/pkg/providers/copilot"
	"github.com/sipeed/picoclaw/pkg/providers/openai_sdk"
)

// CreateProvider is the single entry point for constructing a bare
// LLMProvider for cfg.LLM. When adding a new backend, add a case to
// newProvider and a matching adapter package under pkg/providers — the rest
// of the control plane only ever depends on the LLMProvider interface.
func CreateProvider(cfg *config.Config) (LLMProvider, error) {
	return newProvider(cfg.LLM.Provider, cfg.LLM.APIKey, cfg.LLM.BaseURL)
}

func newProvider(providerName, apiKey, baseURL string) (LLMProvider, error) {
	switch providerName {
	case "", "anthropic":
		if baseURL != "" {
			return anthropicprovider.NewProviderWithBaseURL(apiKey, baseURL), nil
		}
		return anthropicprovider.NewProvider(apiKey), nil
	case "openai":
		return openai_sdk.NewProvider(apiKey, baseURL, ""), nil
	case "copilot":
		return copilot.NewProvider(baseURL, ""), nil
	default:
		return nil, fmt.Errorf("providers: unknown provider %q", providerName)
	}
}

// Registry lazily constructs and caches one LLMProvider per provider name,
// using cfg's credentials for all of them. FallbackChain.Execute's run
// callback receives only a provider/model name pair (see fallback.go), so
// this is what actually turns a name back into a client the adapter
// packages can call.
type Registry struct {
	cfg *config.Config

	mu        sync.Mutex
	instances map[string]LLMProvider
}

// NewRegistry builds a Registry over cfg's LLM credentials.
func NewRegistry(cfg *config.Config) *Registry {
	return &Registry{cfg: cfg, instances: make(map[string]LLMProvider)}
}

// Resolve returns the cached LLMProvider for name, constructing it on first
// use.
func (r *Registry) Resolve(name string) (LLMProvider, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.instances[name]; ok {
		return p, nil
	}
	p, err := newProvider(name, r.cfg.LLM.APIKey, r.cfg.LLM.BaseURL)
	if err != nil {
		return nil, err
	}
	r.instances[name] = p
	return p, nil
}

// RunChat adapts Registry.Resolve into the run callback FallbackChain.Execute
// expects: resolve provider by name, then forward the chat call to it.
func (r *Registry) RunChat(messages []Message, tools []ToolDefinition, options map[string]interface{}) func(ctx context.Context, provider, model string) (*LLMResponse, error) {
	return func(ctx context.Context, provider, model string) (*LLMResponse, error) {
		p, err := r.Resolve(provider)
		if err != nil {
			return nil, err
		}
		return p.Chat(ctx, messages, tools, model, options)
	}
}

// ModelConfigFromLLM translates cfg.LLM into the ModelConfig shape
// ResolveCandidates expects: "provider/model" primary plus fallbacks.
func ModelConfigFromLLM(cfg *config.Config) ModelConfig {
	provider := cfg.LLM.Provider
	if provider == "" {
		provider = "anthropic"
	}
	return ModelConfig{
		Primary:   provider + "/" + cfg.LLM.Model,
		Fallbacks: cfg.LLM.Fallbacks,
	}
}
