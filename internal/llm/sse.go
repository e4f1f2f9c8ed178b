package llm

import (
	"bufio"
	"io"
	"strings"
)

// sseMessage is one dispatched server-sent event.
type sseMessage struct {
	Event string
	Data  string
}

// sseReader reads text/event-stream bodies. Only the event and data fields
// are kept; multi-line data is joined with newlines.
type sseReader struct {
	scanner *bufio.Scanner
}

func newSSEReader(r io.Reader) *sseReader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &sseReader{scanner: scanner}
}

// Next returns the next message with data, or io.EOF.
func (r *sseReader) Next() (sseMessage, error) {
	var (
		msg  sseMessage
		data []string
	)
	for r.scanner.Scan() {
		line := r.scanner.Text()
		if line == "" {
			if len(data) > 0 {
				msg.Data = strings.Join(data, "\n")
				return msg, nil
			}
			msg = sseMessage{}
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}
		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "event":
			msg.Event = value
		case "data":
			data = append(data, value)
		}
	}
	if err := r.scanner.Err(); err != nil {
		return sseMessage{}, err
	}
	if len(data) > 0 {
		msg.Data = strings.Join(data, "\n")
		return msg, nil
	}
	return sseMessage{}, io.EOF
}
