// Package events carries state-change notifications from the scheduling core to
// whoever presents it.
package events

import "sync"

// Kind identifies what happened.
type Kind int

const (
	// EntrySetChanged: entries were added to or removed from the collection.
	EntrySetChanged Kind = iota
	// EntryChanged: the text or priority of an entry was edited.
	EntryChanged
	// EntriesSwapped: a different collection was loaded.
	EntriesSwapped
	// SessionStarted: a review session queue was built.
	SessionStarted
	// SessionEnded: the last queued entry was answered.
	SessionEnded
	// SummaryReady: the summary of the session that just ended can be fetched.
	SummaryReady
)

var kindNames = [...]string{
	EntrySetChanged: "entry set changed",
	EntryChanged:    "entry changed",
	EntriesSwapped:  "entries swapped",
	SessionStarted:  "session started",
	SessionEnded:    "session ended",
	SummaryReady:    "summary ready",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "unknown"
	}
	return kindNames[k]
}

// Event is a single notification. Question is set when the event concerns one entry.
type Event struct {
	Kind     Kind
	Question string
}

// Handler reacts to an event.
type Handler func(Event)

// Publisher is what the scheduling components publish to.
type Publisher interface {
	Publish(Event)
}

// Bus delivers events synchronously, in subscription order.
type Bus struct {
	mu       sync.RWMutex
	handlers []Handler
}

func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers h for every subsequent event.
func (b *Bus) Subscribe(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, h)
}

// Publish calls every handler with e. Handlers may publish further events.
func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	handlers := append([]Handler(nil), b.handlers...)
	b.mu.RUnlock()

	for _, h := range handlers {
		h(e)
	}
}

// Discard drops every event.
var Discard Publisher = discard{}

type discard struct{}

func (discard) Publish(Event) {}
