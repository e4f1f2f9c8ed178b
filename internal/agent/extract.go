package agent

import (
	"encoding/json"
	"regexp"
	"slices"
	"strings"
)

// ToolCallRequest is a recognized tool invocation.
type ToolCallRequest struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`

	thoughtSig []byte // provider token that must accompany the call in history
}

var (
	taggedCallRe = regexp.MustCompile(`(?s)<tool_call>(.*?)(?:</tool_call>|$)`)
	fencedCallRe = regexp.MustCompile("(?s)```[A-Za-z_]*[ \\t]*\\r?\\n(.*?)```")
	innerFenceRe = regexp.MustCompile("(?s)^```[A-Za-z_]*\\s*(.*?)\\s*```$")
	thinkBlockRe = regexp.MustCompile(`(?s)<think(?:ing)?>.*?(?:</think(?:ing)?>|$)`)
	todoBlockRe  = regexp.MustCompile(`(?s)<todo(?:\s[^>]*)?>.*?(?:</todo>|$)`)
	todoUpdateRe = regexp.MustCompile(`<todo_update\b[^>]*>`)
	toolTagRe    = regexp.MustCompile(`</?tool_call>`)
)

var argumentKeys = []string{"arguments", "parameters", "args", "input"}

// ExtractToolCall finds the first tool invocation in a complete response.
// Candidates are tried in order: <tool_call> blocks, fenced code blocks,
// then bare JSON objects. It returns nil when nothing parses.
func ExtractToolCall(text string) *ToolCallRequest {
	text = stripToolResults(text)

	for _, m := range taggedCallRe.FindAllStringSubmatch(text, -1) {
		payload := strings.TrimSpace(m[1])
		if fm := innerFenceRe.FindStringSubmatch(payload); fm != nil {
			payload = fm[1]
		}
		if call, ok := parseToolCallPayload(payload, false); ok {
			return call
		}
	}

	for _, m := range fencedCallRe.FindAllStringSubmatch(text, -1) {
		if call, ok := parseToolCallPayload(strings.TrimSpace(m[1]), true); ok {
			return call
		}
	}

	for start := strings.IndexByte(text, '{'); start >= 0; {
		end := matchingBrace(text, start)
		if end > start {
			if call, ok := parseToolCallPayload(text[start:end+1], true); ok {
				return call
			}
		}
		next := strings.IndexByte(text[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return nil
}

// parseToolCallPayload decodes {"name": ..., "arguments": {...}}, retrying
// once with single quotes replaced by double quotes. With needArgs set one
// of the argument keys must be present, so data objects that merely have a
// "name" field are not mistaken for calls.
func parseToolCallPayload(payload string, needArgs bool) (*ToolCallRequest, bool) {
	if !strings.HasPrefix(payload, "{") {
		return nil, false
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(payload), &obj); err != nil {
		if err := json.Unmarshal([]byte(strings.ReplaceAll(payload, "'", `"`)), &obj); err != nil {
			return nil, false
		}
	}

	// {"function": {"name": ..., "arguments": ...}}
	if fn, ok := obj["function"].(map[string]any); ok {
		if _, hasName := obj["name"]; !hasName {
			obj = fn
		}
	}

	name, _ := obj["name"].(string)
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, false
	}

	if needArgs && !slices.ContainsFunc(argumentKeys, func(k string) bool { _, ok := obj[k]; return ok }) {
		return nil, false
	}

	args := map[string]any{}
	for _, key := range argumentKeys {
		raw, ok := obj[key]
		if !ok || raw == nil {
			continue
		}
		switch v := raw.(type) {
		case map[string]any:
			args = v
		case string:
			if strings.TrimSpace(v) == "" {
				break
			}
			if err := json.Unmarshal([]byte(v), &args); err != nil {
				return nil, false
			}
		default:
			return nil, false
		}
		break
	}
	return &ToolCallRequest{Name: name, Arguments: args}, true
}

// matchingBrace returns the index of the brace closing text[start], or -1.
func matchingBrace(text string, start int) int {
	depth := 0
	inStr, esc := false, false
	for i := start; i < len(text); i++ {
		c := text[i]
		switch {
		case esc:
			esc = false
		case inStr && c == '\\':
			esc = true
		case c == '"':
			inStr = !inStr
		case inStr:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// StripMarkup removes blocks already surfaced as other channels and the
// tool-call tags themselves, keeping whatever the model wrote inside them.
func StripMarkup(text string) string {
	text = stripToolResults(text)
	text = thinkBlockRe.ReplaceAllString(text, "")
	text = todoBlockRe.ReplaceAllString(text, "")
	text = todoUpdateRe.ReplaceAllString(text, "")
	text = toolTagRe.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}
