package agent

import "testing"

func TestStrategySelector(t *testing.T) {
	rules := []Rule{
		{Pattern: "claude-*", Strategy: StrategyNative},
		{Pattern: "gpt-4o-mini*", Strategy: StrategyPrompt},
		{Pattern: "gpt-*", Strategy: StrategyNative},
		{Pattern: "o[1-9]*", Strategy: StrategyNative},
	}
	sel, err := NewStrategySelector("", rules)
	if err != nil {
		t.Fatalf("NewStrategySelector: %v", err)
	}
	tests := []struct {
		model string
		want  Strategy
	}{
		{"claude-sonnet-4-5", StrategyNative},
		{"Claude-Opus", StrategyNative},
		{"gpt-4o-mini", StrategyPrompt},
		{"gpt-4.1", StrategyNative},
		{"o3-mini", StrategyNative},
		{"openrouter/anthropic/claude-3", StrategyNative},
		{"qwen2.5:7b", StrategyPrompt},
		{"", StrategyPrompt},
	}
	for _, tt := range tests {
		if got := sel.Select(tt.model); got != tt.want {
			t.Errorf("Select(%q) = %q, want %q", tt.model, got, tt.want)
		}
	}
}

func TestStrategySelectorOverride(t *testing.T) {
	sel, err := NewStrategySelector(StrategyPrompt, []Rule{{Pattern: "*", Strategy: StrategyNative}})
	if err != nil {
		t.Fatal(err)
	}
	if got := sel.Select("claude-sonnet"); got != StrategyPrompt {
		t.Errorf("Select() = %q, want override", got)
	}
	var nilSel *StrategySelector
	if got := nilSel.Select("claude"); got != StrategyPrompt {
		t.Errorf("nil selector = %q, want prompt", got)
	}
}

func TestStrategySelectorRejectsBadRules(t *testing.T) {
	if _, err := NewStrategySelector("", []Rule{{Pattern: "[", Strategy: StrategyNative}}); err == nil {
		t.Error("expected error for bad pattern")
	}
	if _, err := NewStrategySelector("", []Rule{{Pattern: "x", Strategy: "magic"}}); err == nil {
		t.Error("expected error for unknown strategy")
	}
}

func TestParseStrategy(t *testing.T) {
	for in, want := range map[string]Strategy{"": "", "native": StrategyNative, " Prompt ": StrategyPrompt} {
		got, err := ParseStrategy(in)
		if err != nil || got != want {
			t.Errorf("ParseStrategy(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseStrategy("auto"); err == nil {
		t.Error("expected error")
	}
}
