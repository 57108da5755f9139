// Package broadcast fans session events out to control-panel
// subscribers. Delivery is best effort: a slow subscriber loses its
// oldest pending events, never the publisher's time.
package broadcast

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/gmorelli/aria/internal/protocol"
)

const defaultSubscriberBuffer = 64

// Hub routes events to the subscribers of the owner they belong to.
// Publish never blocks; each subscriber has a bounded buffer and when
// it is full the oldest pending event is dropped to make room. There is
// no replay: a subscriber only sees events published after it joined.
type Hub struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]*subscriber
	seq    map[string]uint64
	buffer int
	log    zerolog.Logger

	// onDrop is called outside delivery for each dropped event.
	onDrop func(owner string)
}

type subscriber struct {
	id    int
	owner string
	ch    chan protocol.Event
}

func NewHub(buffer int, log zerolog.Logger) *Hub {
	if buffer <= 0 {
		buffer = defaultSubscriberBuffer
	}
	return &Hub{
		subs:   make(map[int]*subscriber),
		seq:    make(map[string]uint64),
		buffer: buffer,
		log:    log,
	}
}

// SetDropHandler registers a callback invoked once per dropped event.
// Call before any Subscribe or Publish.
func (h *Hub) SetDropHandler(fn func(owner string)) { h.onDrop = fn }

// Subscribe registers a listener for events belonging to owner. The
// returned cancel function must be called when the listener goes away;
// it closes the channel.
func (h *Hub) Subscribe(owner string) (<-chan protocol.Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	s := &subscriber{id: h.nextID, owner: owner, ch: make(chan protocol.Event, h.buffer)}
	h.subs[s.id] = s

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if _, ok := h.subs[s.id]; ok {
			delete(h.subs, s.id)
			close(s.ch)
		}
	}
	return s.ch, cancel
}

// Publish stamps the event with a per-session sequence number and a
// timestamp, then delivers it to every subscriber of owner.
func (h *Hub) Publish(owner string, ev protocol.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.seq[ev.SessionID]++
	ev.Seq = h.seq[ev.SessionID]
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}

	for _, s := range h.subs {
		if s.owner != owner {
			continue
		}
		select {
		case s.ch <- ev:
		default:
			// Buffer full: shed the oldest pending event.
			select {
			case <-s.ch:
			default:
			}
			select {
			case s.ch <- ev:
			default:
			}
			if h.onDrop != nil {
				h.onDrop(owner)
			}
			h.log.Debug().Str("owner", owner).Str("session_id", ev.SessionID).Msg("subscriber buffer full, dropped oldest event")
		}
	}
}

// Forget releases the sequence counter of an ended session.
func (h *Hub) Forget(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.seq, sessionID)
}

// SubscriberCount reports the current number of subscribers for owner.
func (h *Hub) SubscriberCount(owner string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, s := range h.subs {
		if s.owner == owner {
			n++
		}
	}
	return n
}
