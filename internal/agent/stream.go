package agent

import (
	"context"
	"errors"
	"io"
	"iter"
	"time"
)

// errAbandoned signals that the consumer closed the stream.
var errAbandoned = errors.New("event stream abandoned")

// EventStream is the pull side of one chat call. The producer blocks on each
// event until Recv takes it, so a slow consumer delays the next model or
// tool call.
type EventStream struct {
	events  chan Event
	abandon context.CancelFunc
	done    chan struct{}
}

// emitter is the producer side handed to the loop.
type emitter struct {
	events    chan<- Event
	abandoned <-chan struct{}
	now       func() time.Time
}

// emit stamps ev and hands it to the consumer.
func (e *emitter) emit(ev Event) error {
	ev.stamp(e.now())
	select {
	case <-e.abandoned:
		return errAbandoned
	default:
	}
	select {
	case e.events <- ev:
		return nil
	case <-e.abandoned:
		return errAbandoned
	}
}

// newEventStream starts run in a goroutine. The ctx passed to run is
// cancelled when either the caller's ctx is done or the stream is closed;
// emitting only fails after Close, so a cancelled caller still receives the
// terminating events.
func newEventStream(ctx context.Context, now func() time.Time, run func(ctx context.Context, em *emitter)) *EventStream {
	abandonCtx, abandon := context.WithCancel(context.Background())
	workCtx, cancelWork := context.WithCancel(ctx)
	stop := context.AfterFunc(abandonCtx, cancelWork)

	s := &EventStream{
		events:  make(chan Event),
		abandon: abandon,
		done:    make(chan struct{}),
	}
	em := &emitter{events: s.events, abandoned: abandonCtx.Done(), now: now}
	go func() {
		defer close(s.done)
		defer close(s.events)
		defer cancelWork()
		defer stop()
		run(workCtx, em)
	}()
	return s
}

// Recv returns the next event, or io.EOF after Complete has been delivered.
func (s *EventStream) Recv() (Event, error) {
	ev, ok := <-s.events
	if !ok {
		return nil, io.EOF
	}
	return ev, nil
}

// All iterates the remaining events.
func (s *EventStream) All() iter.Seq[Event] {
	return func(yield func(Event) bool) {
		for {
			ev, err := s.Recv()
			if err != nil {
				return
			}
			if !yield(ev) {
				s.Close()
				return
			}
		}
	}
}

// Close abandons the stream. In-flight model and tool calls see their
// context cancelled; Close returns once the producer has exited.
func (s *EventStream) Close() error {
	s.abandon()
	go func() {
		for range s.events {
		}
	}()
	<-s.done
	return nil
}

// Collect drains the stream into a slice.
func Collect(s *EventStream) []Event {
	var out []Event
	for ev := range s.All() {
		out = append(out, ev)
	}
	return out
}
