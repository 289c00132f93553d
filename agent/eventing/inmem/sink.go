// Package inmem captures turn step events in memory and exposes
// deterministic snapshots, mainly for tests and the local bootstrap.
package inmem

import (
	"context"
	"sync"

	contractx "github.com/pearlcafe/barista-agent/agent/contract"
)

type Sink struct {
	mu     sync.RWMutex
	events []contractx.Event
}

var _ contractx.EventSink = (*Sink)(nil)

func New() *Sink {
	return &Sink{events: make([]contractx.Event, 0)}
}

func (s *Sink) Publish(ctx context.Context, event contractx.Event) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = append(s.events, cloneEvent(event))
	return nil
}

// Events returns an isolated snapshot in publication order.
func (s *Sink) Events() []contractx.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]contractx.Event, len(s.events))
	for i := range s.events {
		out[i] = cloneEvent(s.events[i])
	}
	return out
}

func cloneEvent(in contractx.Event) contractx.Event {
	out := in
	if in.Message != nil {
		msg := *in.Message
		out.Message = &msg
	}
	return out
}
