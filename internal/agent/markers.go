package agent

import "strings"

const (
	thinkOpen        = "<think>"
	thinkClose       = "</think>"
	thinkingOpen     = "<thinking>"
	thinkingClose    = "</thinking>"
	toolCallOpen     = "<tool_call>"
	toolCallClose    = "</tool_call>"
	toolResultPrefix = "<tool_result"
	toolResultClose  = "</tool_result>"
	todoOpenPrefix   = "<todo"
	todoClose        = "</todo>"
	todoUpdatePrefix = "<todo_update"
	fence            = "```"
	nameKey          = `"name"`
	markerInitiators = "<`{"
	maxTagLen        = 512               // longest <todo ...> or <tool_result ...> tag scanned for its end
	minLeadChars     = len(thinkingOpen) // characters held before the first decision
)

var fenceInfos = []string{"json", "tool_call", "tool"}

type matchStatus int

const (
	noMatch matchStatus = iota
	partialMatch
	fullMatch
)

type markerKind int

const (
	markerNone markerKind = iota
	markerThink
	markerThinking
	markerToolCall
	markerFence
	markerBareJSON
	markerTodo
	markerTodoUpdate
	markerToolResult // <tool_result> opener without its closer yet, complete regions are stripped earlier
)

// markerMatch describes a marker found at a buffer offset.
type markerMatch struct {
	kind   markerKind
	status matchStatus
	length int    // bytes consumed by the opener
	attrs  string // tag attributes for todo markers
}

// matchMarkerAt tests every marker starting at buf[i]. lineStart reports
// whether i is at the start of a line (ignoring spaces and tabs).
func matchMarkerAt(buf string, i int, lineStart bool) markerMatch {
	s := buf[i:]
	switch s[0] {
	case '<':
		best := markerMatch{kind: markerNone, status: noMatch}
		for _, try := range []func(string) markerMatch{
			literalMatcher(markerThink, thinkOpen),
			literalMatcher(markerThinking, thinkingOpen),
			literalMatcher(markerToolCall, toolCallOpen),
			matchTodoOpen,
			matchTodoUpdate,
			matchToolResultOpen,
		} {
			m := try(s)
			if m.status == fullMatch {
				return m
			}
			if m.status == partialMatch {
				best = m
			}
		}
		return best
	case '`':
		return matchFence(s)
	case '{':
		if !lineStart {
			return markerMatch{}
		}
		return matchBareJSON(s)
	}
	return markerMatch{}
}

func literalMatcher(kind markerKind, lit string) func(string) markerMatch {
	return func(s string) markerMatch {
		switch {
		case strings.HasPrefix(s, lit):
			return markerMatch{kind: kind, status: fullMatch, length: len(lit)}
		case strings.HasPrefix(lit, s):
			return markerMatch{kind: kind, status: partialMatch}
		}
		return markerMatch{}
	}
}

// matchTagWithAttrs matches prefix followed by '>' or whitespace, attributes
// and a closing '>' within maxTagLen bytes.
func matchTagWithAttrs(kind markerKind, prefix string, s string) markerMatch {
	if len(s) < len(prefix) {
		if strings.HasPrefix(prefix, s) {
			return markerMatch{kind: kind, status: partialMatch}
		}
		return markerMatch{}
	}
	if !strings.HasPrefix(s, prefix) {
		return markerMatch{}
	}
	rest := s[len(prefix):]
	if rest == "" {
		return markerMatch{kind: kind, status: partialMatch}
	}
	if rest[0] != '>' && rest[0] != '/' && !isSpace(rest[0]) {
		return markerMatch{}
	}
	end := strings.IndexByte(rest, '>')
	if end < 0 {
		if len(s) > maxTagLen {
			return markerMatch{}
		}
		return markerMatch{kind: kind, status: partialMatch}
	}
	if len(prefix)+end+1 > maxTagLen {
		return markerMatch{}
	}
	attrs := strings.TrimSuffix(strings.TrimSpace(rest[:end]), "/")
	return markerMatch{kind: kind, status: fullMatch, length: len(prefix) + end + 1, attrs: attrs}
}

func matchTodoOpen(s string) markerMatch {
	m := matchTagWithAttrs(markerTodo, todoOpenPrefix, s)
	// "<todo/>" carries no block
	if m.status == fullMatch && strings.HasSuffix(s[:m.length], "/>") {
		return markerMatch{}
	}
	return m
}

func matchTodoUpdate(s string) markerMatch {
	return matchTagWithAttrs(markerTodoUpdate, todoUpdatePrefix, s)
}

// matchToolResultOpen matches <tool_result> and <tool_result name="..." ...>.
func matchToolResultOpen(s string) markerMatch {
	return matchTagWithAttrs(markerToolResult, toolResultPrefix, s)
}

// indexToolResultOpen returns the offset and length of the first complete
// tool result opener in s, or -1.
func indexToolResultOpen(s string) (int, int) {
	for from := 0; from < len(s); {
		i := strings.Index(s[from:], toolResultPrefix)
		if i < 0 {
			return -1, 0
		}
		i += from
		if m := matchToolResultOpen(s[i:]); m.status == fullMatch {
			return i, m.length
		}
		from = i + 1
	}
	return -1, 0
}

// toolResultHold returns how many trailing bytes of s could still become a
// tool result opener.
func toolResultHold(s string) int {
	start := len(s) - maxTagLen
	if start < 0 {
		start = 0
	}
	for i := start; i < len(s); i++ {
		if s[i] == '<' && matchToolResultOpen(s[i:]).status == partialMatch {
			return len(s) - i
		}
	}
	return 0
}

// matchFence matches ```[json|tool_call|tool] NL { "name".
func matchFence(s string) markerMatch {
	partial := markerMatch{kind: markerFence, status: partialMatch}
	if len(s) < len(fence) {
		if strings.HasPrefix(fence, s) {
			return partial
		}
		return markerMatch{}
	}
	if !strings.HasPrefix(s, fence) {
		return markerMatch{}
	}
	i := len(fence)
	start := i
	for i < len(s) && isWordByte(s[i]) {
		i++
	}
	info := s[start:i]
	if i == len(s) {
		if info == "" {
			return partial
		}
		for _, allowed := range fenceInfos {
			if strings.HasPrefix(allowed, info) {
				return partial
			}
		}
		return markerMatch{}
	}
	if info != "" && !containsString(fenceInfos, info) {
		return markerMatch{}
	}
	for i < len(s) && (s[i] == ' ' || s[i] == '\t' || s[i] == '\r') {
		i++
	}
	if i == len(s) {
		return partial
	}
	if s[i] != '\n' {
		return markerMatch{}
	}
	i = skipSpace(s, i+1)
	if i == len(s) {
		return partial
	}
	if s[i] != '{' {
		return markerMatch{}
	}
	return matchNameKey(markerFence, s, i+1)
}

// matchBareJSON matches { "name" at line start.
func matchBareJSON(s string) markerMatch {
	m := matchNameKey(markerBareJSON, s, 1)
	if m.status == fullMatch {
		// brace counting starts right after the opening brace
		m.length = 1
	}
	return m
}

// matchNameKey checks that s[i:] is optional whitespace then "name".
func matchNameKey(kind markerKind, s string, i int) markerMatch {
	i = skipSpace(s, i)
	rest := s[i:]
	switch {
	case strings.HasPrefix(rest, nameKey):
		return markerMatch{kind: kind, status: fullMatch, length: i + len(nameKey)}
	case strings.HasPrefix(nameKey, rest):
		return markerMatch{kind: kind, status: partialMatch}
	}
	return markerMatch{}
}

// stripToolResults deletes every complete <tool_result ...>...</tool_result>
// region from buf. A self-closed <tool_result .../> is deleted on its own.
func stripToolResults(buf string) string {
	for from := 0; from < len(buf); {
		start, n := indexToolResultOpen(buf[from:])
		if start < 0 {
			return buf
		}
		start += from
		body := start + n
		if strings.HasSuffix(buf[start:body], "/>") {
			buf = buf[:start] + buf[body:]
			from = start
			continue
		}
		end := strings.Index(buf[body:], toolResultClose)
		if end < 0 {
			return buf
		}
		buf = buf[:start] + buf[body+end+len(toolResultClose):]
		from = start
	}
	return buf
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

func isWordByte(b byte) bool {
	return b == '_' || b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9'
}

func skipSpace(s string, i int) int {
	for i < len(s) && isSpace(s[i]) {
		i++
	}
	return i
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
