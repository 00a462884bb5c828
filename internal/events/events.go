// Package events carries console notifications (state changes and fresh
// results) from the engine to whoever is listening.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/hamed0406/webinspector/internal/domain"
)

type Type string

const (
	StatusUpdate  Type = "statusUpdate"
	ResultsUpdate Type = "resultsUpdate"
)

type Event struct {
	Type   Type             `json:"type"`
	At     time.Time        `json:"at"`
	Status *domain.RunState `json:"status,omitempty"`
	Count  int              `json:"count,omitempty"`
}

func StatusChanged(st domain.RunState, at time.Time) Event {
	return Event{Type: StatusUpdate, At: at.UTC(), Status: &st}
}

func ResultsAppended(n int, at time.Time) Event {
	return Event{Type: ResultsUpdate, At: at.UTC(), Count: n}
}

// Publisher delivers events at most once. Publish must not block the caller
// on slow consumers.
type Publisher interface {
	Publish(ctx context.Context, ev Event)
}

// Fanout publishes to every non-nil member.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, ev Event) {
	for _, p := range f {
		if p != nil {
			p.Publish(ctx, ev)
		}
	}
}

const DefaultBuffer = 16

// Bus is an in-process broadcaster. A subscriber whose buffer is full misses
// the event.
type Bus struct {
	mu     sync.RWMutex
	subs   map[uint64]chan Event
	next   uint64
	buffer int
	onDrop func()
}

func NewBus(buffer int, onDrop func()) *Bus {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Bus{subs: make(map[uint64]chan Event), buffer: buffer, onDrop: onDrop}
}

// Subscribe returns a receive channel and a cancel func. The channel is
// closed by cancel.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, b.buffer)
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
}

func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

func (b *Bus) Publish(_ context.Context, ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			if b.onDrop != nil {
				b.onDrop()
			}
		}
	}
}
