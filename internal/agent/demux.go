package agent

import (
	"strings"
	"unicode/utf8"
)

type parserState int

const (
	stateNormal parserState = iota
	stateThinking
	stateToolCall
	stateTodo
)

func (s parserState) String() string {
	switch s {
	case stateThinking:
		return "thinking"
	case stateToolCall:
		return "tool_call"
	case stateTodo:
		return "todo"
	}
	return "normal"
}

// machine is the demultiplexer state between two buffer scans. All
// transitions go through advance, which never mutates its inputs.
type machine struct {
	state  parserState
	closer string // terminator of the open block; "" for bare JSON

	// bare JSON brace tracking
	depth int
	inStr bool
	esc   bool

	todoAttrs string

	capture  bool   // the open region is fenced or bare JSON
	heldJSON string // text of fenced and bare JSON regions, in order

	started      bool // enough lead characters seen to classify the opening
	textOpen     bool
	thinkingOpen bool
	atLineStart  bool // emitted text ends at the start of a line
	sawToolCall  bool
	sawText      bool
}

func newMachine() machine {
	return machine{atLineStart: true}
}

// advance consumes as much of buf as can be classified and returns the new
// state, the unconsumed remainder and the events produced. With final set
// the whole buffer is consumed and open channels are closed.
func advance(m machine, buf string, final bool) (machine, string, []Event) {
	var out []Event
	buf = stripToolResults(buf)

	if !m.started {
		if !final && len(buf) < minLeadChars {
			return m, buf, nil
		}
		m.started = true
	}

	for {
		var progressed bool
		switch m.state {
		case stateNormal:
			m, buf, out, progressed = stepNormal(m, buf, final, out)
		case stateThinking:
			m, buf, out, progressed = stepThinking(m, buf, final, out)
		case stateToolCall:
			m, buf, progressed = stepToolCall(m, buf, final)
		case stateTodo:
			m, buf, out, progressed = stepTodo(m, buf, final, out)
		}
		if !progressed {
			break
		}
	}

	if final {
		m, out = closeText(m, out)
		if m.thinkingOpen {
			out = append(out, &ThinkingEnd{})
			m.thinkingOpen = false
		}
	}
	return m, buf, out
}

// stepNormal scans for the earliest marker. It reports progress when the
// state changed and the loop should run again.
func stepNormal(m machine, buf string, final bool, out []Event) (machine, string, []Event, bool) {
	for i := 0; i < len(buf); i++ {
		if strings.IndexByte(markerInitiators, buf[i]) < 0 {
			continue
		}
		match := matchMarkerAt(buf, i, isLineStart(m, buf, i))
		switch match.status {
		case noMatch:
			continue
		case partialMatch:
			if final {
				continue
			}
			var kept string
			m, out, kept = flushText(m, buf[:i], out, true)
			return m, kept + buf[i:], out, false
		}

		if match.kind == markerToolResult {
			// an opener still unmatched at the end is ordinary text
			if final {
				continue
			}
			var kept string
			m, out, kept = flushText(m, buf[:i], out, true)
			return m, kept + buf[i:], out, false
		}

		m, out, _ = flushText(m, buf[:i], out, false)
		m, out = closeText(m, out)
		rest := buf[i+match.length:]
		switch match.kind {
		case markerThink, markerThinking:
			m.state = stateThinking
			m.closer = thinkClose
			if match.kind == markerThinking {
				m.closer = thinkingClose
			}
			m.thinkingOpen = true
			out = append(out, &ThinkingStart{})
		case markerToolCall:
			m.state, m.closer, m.sawToolCall = stateToolCall, toolCallClose, true
		case markerFence:
			m.state, m.closer, m.sawToolCall = stateToolCall, fence, true
			m = holdJSON(m, buf[i:i+match.length])
		case markerBareJSON:
			m.state, m.closer, m.sawToolCall = stateToolCall, "", true
			m.depth, m.inStr, m.esc = 1, false, false
			m = holdJSON(m, buf[i:i+match.length])
		case markerTodo:
			m.state, m.closer, m.todoAttrs = stateTodo, todoClose, match.attrs
		case markerTodoUpdate:
			if upd := parseTodoUpdate(match.attrs); upd != nil {
				out = append(out, upd)
			}
		}
		return m, rest, out, true
	}

	var kept string
	m, out, kept = flushText(m, buf, out, true)
	if final {
		return m, "", out, false
	}
	return m, kept, out, false
}

func stepThinking(m machine, buf string, final bool, out []Event) (machine, string, []Event, bool) {
	closeAt := strings.Index(buf, m.closer)
	if !final {
		resultAt, _ := indexToolResultOpen(buf)
		if resultAt >= 0 && (closeAt < 0 || resultAt < closeAt) {
			return m, buf[resultAt:], appendThinking(out, buf[:resultAt]), false
		}
	}

	if closeAt >= 0 {
		rest := buf[closeAt+len(m.closer):]
		out = appendThinking(out, buf[:closeAt])
		out = append(out, &ThinkingEnd{})
		m.thinkingOpen = false
		m.state, m.closer, m.atLineStart = stateNormal, "", true
		return m, rest, out, true
	}

	if final {
		return m, "", appendThinking(out, buf), false
	}

	hold := len(m.closer)
	if n := toolResultHold(buf); n > hold {
		hold = n
	}
	cut := len(buf) - hold
	for cut > 0 && !utf8.RuneStart(buf[cut]) {
		cut--
	}
	if cut <= 0 {
		return m, buf, out, false
	}
	return m, buf[cut:], appendThinking(out, buf[:cut]), false
}

func stepToolCall(m machine, buf string, final bool) (machine, string, bool) {
	if final {
		m = appendJSON(m, buf)
		return m, "", false
	}
	if m.closer == "" {
		for i := 0; i < len(buf); i++ {
			c := buf[i]
			switch {
			case m.esc:
				m.esc = false
			case m.inStr && c == '\\':
				m.esc = true
			case c == '"':
				m.inStr = !m.inStr
			case m.inStr:
			case c == '{':
				m.depth++
			case c == '}':
				m.depth--
				if m.depth == 0 {
					m = appendJSON(m, buf[:i+1])
					m.state, m.atLineStart, m.capture = stateNormal, false, false
					return m, buf[i+1:], true
				}
			}
		}
		return appendJSON(m, buf), "", false
	}

	if at := strings.Index(buf, m.closer); at >= 0 {
		end := at + len(m.closer)
		m = appendJSON(m, buf[:end])
		m.state, m.closer, m.atLineStart, m.capture = stateNormal, "", true, false
		return m, buf[end:], true
	}
	keep := len(m.closer) - 1
	if keep > len(buf) {
		keep = len(buf)
	}
	return appendJSON(m, buf[:len(buf)-keep]), buf[len(buf)-keep:], false
}

// holdJSON starts capturing a fenced or bare JSON region with its opener.
func holdJSON(m machine, opener string) machine {
	if m.heldJSON != "" {
		m.heldJSON += "\n\n"
	}
	m.heldJSON += opener
	m.capture = true
	return m
}

func appendJSON(m machine, s string) machine {
	if m.capture {
		m.heldJSON += s
	}
	return m
}

func stepTodo(m machine, buf string, final bool, out []Event) (machine, string, []Event, bool) {
	if final {
		return m, "", out, false
	}
	at := strings.Index(buf, todoClose)
	if at < 0 {
		return m, buf, out, false
	}
	out = append(out, parseTodoBlock(m.todoAttrs, buf[:at]))
	m.state, m.closer, m.todoAttrs, m.atLineStart = stateNormal, "", "", true
	return m, buf[at+len(todoClose):], out, true
}

// flushText emits s as text. Whitespace-only text never opens the channel:
// with hold set it is returned as kept for the next scan, otherwise it is
// dropped. Leading whitespace is trimmed when the channel opens.
func flushText(m machine, s string, out []Event, hold bool) (machine, []Event, string) {
	if s == "" {
		return m, out, ""
	}
	if !m.textOpen && isBlank(s) {
		if hold {
			return m, out, s
		}
		m.atLineStart = lineStartAfter(m.atLineStart, s)
		return m, out, ""
	}
	m.atLineStart = lineStartAfter(m.atLineStart, s)
	if !m.textOpen {
		out = append(out, &TextStart{})
		m.textOpen = true
		s = strings.TrimLeft(s, " \t\r\n")
	}
	out = append(out, &TextDelta{Text: s})
	m.sawText = true
	return m, out, ""
}

func closeText(m machine, out []Event) (machine, []Event) {
	if m.textOpen {
		out = append(out, &TextEnd{})
		m.textOpen = false
	}
	return m, out
}

func appendThinking(out []Event, s string) []Event {
	if s == "" {
		return out
	}
	return append(out, &ThinkingDelta{Text: s})
}

// lineStartAfter reports whether the text emitted so far ends at a line
// start once s is appended.
func lineStartAfter(prev bool, s string) bool {
	for i := len(s) - 1; i >= 0; i-- {
		switch s[i] {
		case '\n':
			return true
		case ' ', '\t', '\r':
		default:
			return false
		}
	}
	return prev
}

// isLineStart reports whether buf[i] is preceded only by spaces and tabs on
// its line.
func isLineStart(m machine, buf string, i int) bool {
	for j := i - 1; j >= 0; j-- {
		switch buf[j] {
		case '\n':
			return true
		case ' ', '\t', '\r':
		default:
			return false
		}
	}
	return m.atLineStart
}

// Demuxer feeds text fragments through the demultiplexer state machine and
// routes todo directives through a TodoTracker.
type Demuxer struct {
	m     machine
	buf   string
	todos *TodoTracker
	done  bool
}

func NewDemuxer(todos *TodoTracker) *Demuxer {
	if todos == nil {
		todos = NewTodoTracker()
	}
	return &Demuxer{m: newMachine(), todos: todos}
}

// Write appends a fragment and returns the events it completes.
func (d *Demuxer) Write(chunk string) []Event {
	if d.done || chunk == "" {
		return nil
	}
	var evs []Event
	d.m, d.buf, evs = advance(d.m, d.buf+chunk, false)
	return d.todos.admit(evs)
}

// Finish flushes the remainder at end of stream.
func (d *Demuxer) Finish() []Event {
	if d.done {
		return nil
	}
	d.done = true
	var evs []Event
	d.m, d.buf, evs = advance(d.m, d.buf, true)
	return d.todos.admit(evs)
}

// SawToolCall reports whether a tool-call region was opened.
func (d *Demuxer) SawToolCall() bool { return d.m.sawToolCall }

// SawText reports whether any text was surfaced.
func (d *Demuxer) SawText() bool { return d.m.sawText }

// HeldJSON returns the fenced and bare JSON regions that were held back
// as possible tool calls, separated by blank lines.
func (d *Demuxer) HeldJSON() string { return d.m.heldJSON }

// Todos returns the tracker fed by this demuxer.
func (d *Demuxer) Todos() *TodoTracker { return d.todos }
