package credentials

import "testing"

func TestLoadFrom(t *testing.T) {
	keys, err := LoadFrom(map[string]string{
		"ANTHROPIC_API_KEY": "ant",
		"GOOGLE_API_KEY":    "goog",
	})
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if got := keys.For("anthropic"); got != "ant" {
		t.Errorf("anthropic key = %q, want %q", got, "ant")
	}
	if got := keys.For("gemini"); got != "goog" {
		t.Errorf("gemini key = %q, want fallback %q", got, "goog")
	}
	if got := keys.For("ollama"); got != "" {
		t.Errorf("ollama key = %q, want empty", got)
	}
}

func TestGeminiKeyPrefersGeminiVar(t *testing.T) {
	keys := Keys{Gemini: "gem", Google: "goog"}
	if got := keys.GeminiKey(); got != "gem" {
		t.Errorf("GeminiKey() = %q, want %q", got, "gem")
	}
}
