package agent

import (
	"fmt"
	"strings"

	"github.com/gobwas/glob"
)

// Strategy selects how tool calls are obtained from the model.
type Strategy string

const (
	StrategyNative Strategy = "native"
	StrategyPrompt Strategy = "prompt"
)

// ParseStrategy accepts "native", "prompt" or "" (auto).
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return "", nil
	case StrategyNative:
		return StrategyNative, nil
	case StrategyPrompt:
		return StrategyPrompt, nil
	}
	return "", fmt.Errorf("unknown strategy %q (want native or prompt)", s)
}

// Rule maps a model glob pattern to a strategy.
type Rule struct {
	Pattern  string
	Strategy Strategy
}

type compiledRule struct {
	Rule
	g glob.Glob
}

// StrategySelector resolves the strategy for a model: an explicit override,
// else the first matching rule, else prompt-based.
type StrategySelector struct {
	override Strategy
	rules    []compiledRule
}

func NewStrategySelector(override Strategy, rules []Rule) (*StrategySelector, error) {
	s := &StrategySelector{override: override}
	for _, r := range rules {
		g, err := glob.Compile(strings.ToLower(r.Pattern))
		if err != nil {
			return nil, fmt.Errorf("strategy rule %q: %w", r.Pattern, err)
		}
		if r.Strategy != StrategyNative && r.Strategy != StrategyPrompt {
			return nil, fmt.Errorf("strategy rule %q: unknown strategy %q", r.Pattern, r.Strategy)
		}
		s.rules = append(s.rules, compiledRule{Rule: r, g: g})
	}
	return s, nil
}

// Select returns the strategy for model.
func (s *StrategySelector) Select(model string) Strategy {
	if s == nil {
		return StrategyPrompt
	}
	if s.override != "" {
		return s.override
	}
	model = strings.ToLower(model)
	// provider-qualified ids like "openrouter/anthropic/claude-3" match on the last segment too
	base := model
	if i := strings.LastIndex(model, "/"); i >= 0 {
		base = model[i+1:]
	}
	for _, r := range s.rules {
		if r.g.Match(model) || r.g.Match(base) {
			return r.Strategy
		}
	}
	return StrategyPrompt
}
