package agent

import (
	"regexp"
	"strconv"
	"strings"
)

type TodoStatus string

const (
	TodoPending    TodoStatus = "pending"
	TodoInProgress TodoStatus = "in_progress"
	TodoCompleted  TodoStatus = "completed"
	TodoFailed     TodoStatus = "failed"
)

const (
	defaultTodoListID = "todo"
	defaultTodoTitle  = "Tasks"
)

type TodoItem struct {
	ID      string     `json:"id"`
	Content string     `json:"content"`
	Status  TodoStatus `json:"status"`
	Result  string     `json:"result,omitempty"`
}

type TodoList struct {
	ID    string     `json:"id"`
	Title string     `json:"title"`
	Items []TodoItem `json:"items"`
}

// TodoTracker holds the checklist of one assistant response. Only the first
// todo block creates a list; later blocks are ignored.
type TodoTracker struct {
	list *TodoList
}

func NewTodoTracker() *TodoTracker {
	return &TodoTracker{}
}

// List returns a copy of the active list, or nil.
func (t *TodoTracker) List() *TodoList {
	if t.list == nil {
		return nil
	}
	out := *t.list
	out.Items = append([]TodoItem(nil), t.list.Items...)
	return &out
}

// Start creates the list from a parsed block. It reports false when a list
// already exists.
func (t *TodoTracker) Start(ev *TodoStart) bool {
	if t.list != nil {
		return false
	}
	t.list = &TodoList{ID: ev.ListID, Title: ev.Title, Items: append([]TodoItem(nil), ev.items...)}
	return true
}

// Update applies a status change. Unknown items and statuses are rejected.
func (t *TodoTracker) Update(ev *TodoItemUpdate) bool {
	if t.list == nil || ev.Status == "" {
		return false
	}
	for i := range t.list.Items {
		item := &t.list.Items[i]
		if item.ID != ev.ItemID {
			continue
		}
		item.Status = ev.Status
		if ev.Result != "" {
			item.Result = ev.Result
		}
		ev.ListID = t.list.ID
		return true
	}
	return false
}

// admit routes demultiplexer todo events through the tracker and expands an
// accepted TodoStart into its item events.
func (t *TodoTracker) admit(evs []Event) []Event {
	out := evs[:0:0]
	for _, ev := range evs {
		switch e := ev.(type) {
		case *TodoStart:
			if !t.Start(e) {
				continue
			}
			out = append(out, e)
			for _, item := range e.items {
				out = append(out, &TodoItemAdd{ListID: e.ListID, Item: item})
			}
		case *TodoItemUpdate:
			if t.Update(e) {
				out = append(out, e)
			}
		default:
			out = append(out, ev)
		}
	}
	return out
}

var (
	tagAttrRe   = regexp.MustCompile(`([A-Za-z_][\w-]*)\s*=\s*(?:"([^"]*)"|'([^']*)')`)
	listMarkRe  = regexp.MustCompile(`^(?:[-*+]|\d+[.)])\s+`)
	checkboxRe  = regexp.MustCompile(`^\[([ xX~!])\]\s*`)
	itemIDRe    = regexp.MustCompile(`^\[([\w.-]+)\]\s*`)
	statusAlias = map[string]TodoStatus{
		"pending":     TodoPending,
		"todo":        TodoPending,
		"in_progress": TodoInProgress,
		"in-progress": TodoInProgress,
		"active":      TodoInProgress,
		"running":     TodoInProgress,
		"completed":   TodoCompleted,
		"complete":    TodoCompleted,
		"done":        TodoCompleted,
		"failed":      TodoFailed,
		"error":       TodoFailed,
	}
)

func parseTagAttrs(s string) map[string]string {
	attrs := map[string]string{}
	for _, m := range tagAttrRe.FindAllStringSubmatch(s, -1) {
		v := m[2]
		if v == "" {
			v = m[3]
		}
		attrs[strings.ToLower(m[1])] = v
	}
	return attrs
}

func parseTodoStatus(s string) TodoStatus {
	return statusAlias[strings.ToLower(strings.TrimSpace(s))]
}

// parseTodoBlock turns the attributes and body of a <todo> block into a
// TodoStart carrying its items.
func parseTodoBlock(attrText, body string) *TodoStart {
	attrs := parseTagAttrs(attrText)
	ev := &TodoStart{ListID: attrs["id"], Title: attrs["title"]}
	if ev.ListID == "" {
		ev.ListID = defaultTodoListID
	}
	if ev.Title == "" {
		ev.Title = defaultTodoTitle
	}

	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		line = listMarkRe.ReplaceAllString(line, "")
		status := TodoPending
		if m := checkboxRe.FindStringSubmatch(line); m != nil {
			switch m[1] {
			case "x", "X":
				status = TodoCompleted
			case "~":
				status = TodoInProgress
			case "!":
				status = TodoFailed
			}
			line = line[len(m[0]):]
		}
		id := strconv.Itoa(len(ev.items) + 1)
		if m := itemIDRe.FindStringSubmatch(line); m != nil {
			id = m[1]
			line = line[len(m[0]):]
		}
		if line = strings.TrimSpace(line); line == "" {
			continue
		}
		ev.items = append(ev.items, TodoItem{ID: id, Content: line, Status: status})
	}
	return ev
}

// parseTodoUpdate reads a <todo_update .../> tag body. It returns nil when
// the id is missing.
func parseTodoUpdate(attrText string) *TodoItemUpdate {
	attrs := parseTagAttrs(attrText)
	if attrs["id"] == "" {
		return nil
	}
	return &TodoItemUpdate{
		ItemID: attrs["id"],
		Status: parseTodoStatus(attrs["status"]),
		Result: attrs["result"],
	}
}
