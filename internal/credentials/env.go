// Package credentials resolves provider API keys from the environment.
package credentials

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Keys holds the API keys for every supported provider.
type Keys struct {
	Anthropic    string `env:"ANTHROPIC_API_KEY"`
	OpenAI       string `env:"OPENAI_API_KEY"`
	Gemini       string `env:"GEMINI_API_KEY"`
	Google       string `env:"GOOGLE_API_KEY"`
	OpenAICompat string `env:"OPENAI_COMPAT_API_KEY"`
}

// Load reads all keys from the process environment.
func Load() (Keys, error) {
	var keys Keys
	if err := env.Parse(&keys); err != nil {
		return Keys{}, fmt.Errorf("parse credentials from environment: %w", err)
	}
	return keys, nil
}

// LoadFrom reads keys from the given variables instead of the process environment.
func LoadFrom(vars map[string]string) (Keys, error) {
	var keys Keys
	if err := env.ParseWithOptions(&keys, env.Options{Environment: vars}); err != nil {
		return Keys{}, fmt.Errorf("parse credentials: %w", err)
	}
	return keys, nil
}

// GeminiKey returns GEMINI_API_KEY, falling back to GOOGLE_API_KEY.
func (k Keys) GeminiKey() string {
	if k.Gemini != "" {
		return k.Gemini
	}
	return k.Google
}

// For returns the key used by a provider type, or "" when none is needed.
func (k Keys) For(providerType string) string {
	switch providerType {
	case "anthropic":
		return k.Anthropic
	case "openai":
		return k.OpenAI
	case "gemini":
		return k.GeminiKey()
	case "openai_compat":
		return k.OpenAICompat
	default:
		return ""
	}
}
