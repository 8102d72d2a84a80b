package events

import (
	"context"
	"sync"
)

// Fanout copies one event stream to every subscriber. Subscribers get
// their own buffered channel; a full subscriber drops events rather
// than stalling the others.
type Fanout struct {
	mu     sync.Mutex
	subs   []chan Event
	closed bool
}

// NewFanout creates an empty fan-out.
func NewFanout() *Fanout {
	return &Fanout{}
}

// Subscribe registers a new subscriber channel with the given buffer.
// Channels obtained after Close are closed immediately.
func (f *Fanout) Subscribe(buffer int) <-chan Event {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan Event, buffer)

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		close(ch)
		return ch
	}
	f.subs = append(f.subs, ch)
	return ch
}

// Run copies events from src to every subscriber until src closes or
// the context is canceled, then closes the subscriber channels.
func (f *Fanout) Run(ctx context.Context, src <-chan Event) {
	defer f.closeAll()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-src:
			if !ok {
				return
			}
			f.broadcast(ev)
		}
	}
}

func (f *Fanout) broadcast(ev Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ch := range f.subs {
		select {
		case ch <- ev:
		default:
			// Slow subscriber; the event is dropped for it.
		}
	}
}

func (f *Fanout) closeAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	for _, ch := range f.subs {
		close(ch)
	}
	f.subs = nil
}
