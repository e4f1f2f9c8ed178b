package llm

import (
	"fmt"
	"strings"

	anthropicopt "github.com/anthropics/anthropic-sdk-go/option"
	openaiopt "github.com/openai/openai-go/option"

	"github.com/n0tssss/MCPLink-sub000/internal/config"
	"github.com/n0tssss/MCPLink-sub000/internal/credentials"
)

// GetBuiltInProviderNames returns the provider types NewProvider understands.
func GetBuiltInProviderNames() []string {
	return []string{
		config.ProviderAnthropic,
		config.ProviderOpenAI,
		config.ProviderGemini,
		config.ProviderOllama,
		config.ProviderLMStudio,
		config.ProviderOpenAICompat,
	}
}

// ParseProviderModel parses "provider:model" or just "provider" from a flag value.
// Returns (provider, model, error). Model will be empty if not specified.
func ParseProviderModel(s string) (string, string, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) == 0 || strings.TrimSpace(parts[0]) == "" {
		return "", "", fmt.Errorf("invalid provider format: %q", s)
	}
	provider := strings.TrimSpace(parts[0])
	model := ""
	if len(parts) == 2 {
		model = strings.TrimSpace(parts[1])
	}
	for _, name := range GetBuiltInProviderNames() {
		if provider == name {
			return provider, model, nil
		}
	}
	return "", "", fmt.Errorf("unknown provider: %s", provider)
}

// NewProvider creates the configured provider, wrapped with automatic retry
// for rate limits (429) and transient errors.
func NewProvider(cfg *config.Config, keys credentials.Keys) (Provider, error) {
	provider, err := newProviderInternal(cfg, keys)
	if err != nil {
		return nil, err
	}
	return WrapWithRetry(provider, retryConfigFrom(cfg.Retry)), nil
}

func retryConfigFrom(rc config.RetryConfig) RetryConfig {
	out := DefaultRetryConfig()
	if rc.MaxAttempts > 0 {
		out.MaxAttempts = rc.MaxAttempts
	}
	if rc.BaseBackoff > 0 {
		out.BaseBackoff = rc.BaseBackoff
	}
	if rc.MaxBackoff > 0 {
		out.MaxBackoff = rc.MaxBackoff
	}
	return out
}

func newProviderInternal(cfg *config.Config, keys credentials.Keys) (Provider, error) {
	pc, ok := cfg.ProviderConfigFor(cfg.Provider)
	if !ok {
		return nil, fmt.Errorf("unknown provider: %s", cfg.Provider)
	}
	apiKey := pc.APIKey
	if apiKey == "" {
		apiKey = keys.For(cfg.Provider)
	}

	switch cfg.Provider {
	case config.ProviderAnthropic:
		var opts []anthropicopt.RequestOption
		if pc.BaseURL != "" {
			opts = append(opts, anthropicopt.WithBaseURL(pc.BaseURL))
		}
		return NewAnthropicProvider(apiKey, pc.Model, opts...)

	case config.ProviderOpenAI:
		var opts []openaiopt.RequestOption
		if pc.BaseURL != "" {
			opts = append(opts, openaiopt.WithBaseURL(pc.BaseURL))
		}
		return NewOpenAIProvider(apiKey, pc.Model, opts...)

	case config.ProviderGemini:
		return NewGeminiProvider(apiKey, pc.Model)

	case config.ProviderOllama:
		return NewOpenAICompatProviderWithHeaders(pc.BaseURL, apiKey, pc.Model, "Ollama", pc.Headers), nil

	case config.ProviderLMStudio:
		return NewOpenAICompatProviderWithHeaders(pc.BaseURL, apiKey, pc.Model, "LM Studio", pc.Headers), nil

	case config.ProviderOpenAICompat:
		if pc.BaseURL == "" {
			return nil, fmt.Errorf("openai_compat requires base_url")
		}
		return NewOpenAICompatProviderWithHeaders(pc.BaseURL, apiKey, pc.Model, "OpenAI-compatible", pc.Headers), nil
	}
	return nil, fmt.Errorf("unknown provider: %s", cfg.Provider)
}
