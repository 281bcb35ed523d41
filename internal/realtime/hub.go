package realtime

import (
	"sync"

	"github.com/ayush/thunder-dashboard/backend/internal/status"
)

// Subscription receives the change events relevant to one subject.
type Subscription struct {
	SubjectID string

	events chan status.Event
	resync chan struct{}
}

// Events delivers source and session events of the subject and every
// chunk event.
func (s *Subscription) Events() <-chan status.Event { return s.events }

// Resync fires when events were dropped and the snapshot must be reloaded.
func (s *Subscription) Resync() <-chan struct{} { return s.resync }

func (s *Subscription) markResync() {
	select {
	case s.resync <- struct{}{}:
	default:
	}
}

// Hub fans change events out to subscribers without ever blocking the
// publisher.
type Hub struct {
	mu     sync.RWMutex
	subs   map[*Subscription]struct{}
	buffer int
}

func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = 64
	}
	return &Hub{subs: make(map[*Subscription]struct{}), buffer: buffer}
}

func (h *Hub) Subscribe(subjectID string) *Subscription {
	s := &Subscription{
		SubjectID: subjectID,
		events:    make(chan status.Event, h.buffer),
		resync:    make(chan struct{}, 1),
	}
	h.mu.Lock()
	h.subs[s] = struct{}{}
	h.mu.Unlock()
	return s
}

func (h *Hub) Unsubscribe(s *Subscription) {
	h.mu.Lock()
	delete(h.subs, s)
	h.mu.Unlock()
}

// Publish routes ev to matching subscribers. Chunk events have no subject
// and go to everyone. A full subscriber is flagged for resync instead.
func (h *Hub) Publish(ev status.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.subs {
		if ev.Table != status.TableChunks && ev.SubjectID() != s.SubjectID {
			continue
		}
		select {
		case s.events <- ev:
		default:
			s.markResync()
		}
	}
}

// ResyncAll flags every subscriber, e.g. after the listener reconnects.
func (h *Hub) ResyncAll() {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.subs {
		s.markResync()
	}
}

// Len returns the number of subscribers.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
