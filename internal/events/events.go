// Package events fans sync notifications out to subscribers such as the
// websocket stream.
package events

import (
	"context"
	"sync"
	"time"
)

type Kind string

const (
	SyncStarted   Kind = "sync_started"
	SyncCompleted Kind = "sync_completed"
	SyncFailed    Kind = "sync_failed"
	SourceFailed  Kind = "source_failed"
)

// Event is one notification. Fields that do not apply to Kind stay empty.
type Event struct {
	Kind     Kind          `json:"type"`
	At       time.Time     `json:"at"`
	Source   string        `json:"source,omitempty"`
	Snippets int           `json:"snippets,omitempty"`
	Failed   int           `json:"failed,omitempty"`
	Duration time.Duration `json:"durationNs,omitempty"`
	Message  string        `json:"message,omitempty"`
}

// Publisher is the side the engine depends on.
type Publisher interface {
	Publish(Event)
}

// Hub broadcasts events to every live subscriber. A slow subscriber loses
// its oldest pending event instead of blocking the publisher.
type Hub struct {
	mu     sync.Mutex
	subs   map[chan Event]struct{}
	buffer int
}

func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = 16
	}
	return &Hub{subs: make(map[chan Event]struct{}), buffer: buffer}
}

// Subscribe returns a channel that receives events until ctx is done.
func (h *Hub) Subscribe(ctx context.Context) <-chan Event {
	ch := make(chan Event, h.buffer)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		h.mu.Lock()
		delete(h.subs, ch)
		close(ch)
		h.mu.Unlock()
	}()
	return ch
}

func (h *Hub) Publish(e Event) {
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		push(ch, e)
	}
}

// Subscribers returns the number of live subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

func push(ch chan Event, e Event) {
	select {
	case ch <- e:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- e:
	default:
	}
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(Event) {}
