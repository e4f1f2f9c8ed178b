package llm

import (
	"context"
	"io"
	"sync"
)

// eventStream adapts a producer goroutine writing to a channel into a Stream.
type eventStream struct {
	events chan Event
	cancel context.CancelFunc

	mu   sync.Mutex
	err  error
	done chan struct{}
}

// newEventStream runs produce in a goroutine. Events written to the channel
// are handed to Recv one at a time; a non-nil error returned by produce is
// reported by Recv after all buffered events are consumed.
func newEventStream(ctx context.Context, produce func(ctx context.Context, events chan<- Event) error) *eventStream {
	ctx, cancel := context.WithCancel(ctx)
	s := &eventStream{
		events: make(chan Event),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go func() {
		defer close(s.done)
		defer close(s.events)
		if err := produce(ctx, s.events); err != nil {
			s.mu.Lock()
			s.err = err
			s.mu.Unlock()
		}
	}()
	return s
}

func (s *eventStream) Recv() (Event, error) {
	event, ok := <-s.events
	if ok {
		return event, nil
	}
	s.mu.Lock()
	err := s.err
	s.mu.Unlock()
	if err != nil {
		return Event{}, err
	}
	return Event{}, io.EOF
}

// Close cancels the producer and drains any pending event so the goroutine exits.
func (s *eventStream) Close() error {
	s.cancel()
	go func() {
		for range s.events {
		}
	}()
	<-s.done
	return nil
}

// sliceStream replays a fixed list of events.
type sliceStream struct {
	events []Event
	index  int
}

// NewSliceStream returns a Stream that yields events in order, then io.EOF.
func NewSliceStream(events ...Event) Stream {
	return &sliceStream{events: events}
}

func (s *sliceStream) Recv() (Event, error) {
	if s.index >= len(s.events) {
		return Event{}, io.EOF
	}
	event := s.events[s.index]
	s.index++
	return event, nil
}

func (s *sliceStream) Close() error {
	return nil
}
