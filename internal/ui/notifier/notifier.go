// Package notifier fans workbench events out to connected SSE clients.
package notifier

import "sync"

// Kind names what changed.
type Kind string

// Event kinds.
const (
	// TablesChanged follows an ingest, import or watched-folder load.
	TablesChanged Kind = "tables"
	// ModelChanged follows a model status transition.
	ModelChanged Kind = "model"
)

// Event is one broadcast. Subject is the table or model concerned, if any.
type Event struct {
	Kind    Kind   `json:"kind"`
	Subject string `json:"subject,omitempty"`
}

// listenerBuffer is how many events a slow listener may lag behind before
// further events are dropped for it.
const listenerBuffer = 8

// Notifier broadcasts events to every subscribed listener.
type Notifier struct {
	mu        sync.RWMutex
	listeners map[chan Event]struct{}
}

// New creates a Notifier.
func New() *Notifier {
	return &Notifier{listeners: make(map[chan Event]struct{})}
}

// Subscribe returns a channel receiving future events. Call Unsubscribe
// when done.
func (n *Notifier) Subscribe() chan Event {
	ch := make(chan Event, listenerBuffer)
	n.mu.Lock()
	n.listeners[ch] = struct{}{}
	n.mu.Unlock()
	return ch
}

// Unsubscribe removes and closes a listener channel.
func (n *Notifier) Unsubscribe(ch chan Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, ok := n.listeners[ch]; !ok {
		return
	}
	delete(n.listeners, ch)
	close(ch)
}

// Broadcast delivers e to every listener without blocking. A listener whose
// buffer is full misses the event.
func (n *Notifier) Broadcast(e Event) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	for ch := range n.listeners {
		select {
		case ch <- e:
		default:
		}
	}
}

// Listeners reports how many clients are subscribed.
func (n *Notifier) Listeners() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.listeners)
}
