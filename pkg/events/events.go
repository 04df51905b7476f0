// Package events fans pipeline progress out to live subscribers such as
// websocket connections and the CLI. Publishing is fire-and-forget: a
// subscriber that falls behind misses events instead of stalling the
// pipeline.
package events

import (
	"sync"
	"time"
)

// Kind names a pipeline event.
type Kind string

const (
	PlanRequested    Kind = "plan-requested"
	PlanReceived     Kind = "plan-received"
	ValidationFailed Kind = "validation-failed"
	FilesMoved       Kind = "files-moved"
	UndoComplete     Kind = "undo-complete"
	WatcherStarted   Kind = "watcher-started"
	WatcherStopped   Kind = "watcher-stopped"
)

// Event is one pipeline status update.
type Event struct {
	Kind    Kind      `json:"kind"`
	Time    time.Time `json:"time"`
	Folder  string    `json:"folder,omitempty"`
	Message string    `json:"message,omitempty"`
	Count   int       `json:"count,omitempty"`
	Err     string    `json:"error,omitempty"`
	Payload any       `json:"payload,omitempty"`
}

// subscriberBuffer bounds how far a subscriber may lag before it starts
// losing events.
const subscriberBuffer = 64

// Bus distributes events to any number of subscribers.
type Bus struct {
	mu   sync.Mutex
	subs map[int]chan Event
	next int
}

// NewBus returns an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[int]chan Event)}
}

// Subscribe registers a new subscriber and returns its channel plus a
// cancel function. Cancel closes the channel; it is safe to call twice.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.next
	b.next++
	ch := make(chan Event, subscriberBuffer)
	b.subs[id] = ch
	return ch, func() { b.unsubscribe(id) }
}

func (b *Bus) unsubscribe(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ch, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(ch)
	}
}

// Publish delivers e to every subscriber with room in its buffer and
// stamps the time if the caller left it zero. Publishing on a nil bus is
// a no-op, so callers without a sink skip the nil checks.
func (b *Bus) Publish(e Event) {
	if b == nil {
		return
	}
	if e.Time.IsZero() {
		e.Time = time.Now()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
			// Subscriber full, drop.
		}
	}
}

// Subscribers reports how many subscribers are attached.
func (b *Bus) Subscribers() int {
	if b == nil {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
