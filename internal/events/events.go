// Package events carries the "config changed" broadcast between the
// mutation paths and the rendering surfaces. Events are signals only;
// subscribers re-query state rather than trusting event contents.
package events

import (
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog/log"

	"github.com/switchyard-project/switchyard/internal/metrics"
)

// Origin tags identify the surface that initiated a mutation, so listeners
// can distinguish self-triggered refresh from user action elsewhere.
const (
	OriginWindow   = "window"
	OriginTray     = "tray"
	OriginCLI      = "cli"
	OriginExternal = "external"
)

const subscriptionBuffer = 16

// Event announces that profile state changed for one tool family. An empty
// Family means a cross-family change (import, restore).
type Event struct {
	ID     string    `json:"id"`
	Family string    `json:"family"`
	Origin string    `json:"origin"`
	Time   time.Time `json:"time"`
}

// Subscription is one listener's event feed. C is closed by Unsubscribe or
// by Notifier.Close.
type Subscription struct {
	C <-chan Event

	id       uint64
	notifier *Notifier
}

// Unsubscribe detaches the subscription and closes its channel.
func (s *Subscription) Unsubscribe() {
	if s.notifier != nil {
		s.notifier.unsubscribe(s.id)
	}
}

// Notifier fans change events out to subscribers. Broadcast never blocks; a
// subscriber that stops draining loses events, which is safe because every
// listener rebuilds from a fresh query anyway.
type Notifier struct {
	mu     sync.Mutex
	subs   map[uint64]chan Event
	nextID uint64
	closed bool
}

// NewNotifier creates an empty notifier.
func NewNotifier() *Notifier {
	return &Notifier{subs: make(map[uint64]chan Event)}
}

// Subscribe registers a listener.
func (n *Notifier) Subscribe() *Subscription {
	n.mu.Lock()
	defer n.mu.Unlock()

	ch := make(chan Event, subscriptionBuffer)
	if n.closed {
		close(ch)
		return &Subscription{C: ch}
	}

	id := n.nextID
	n.nextID++
	n.subs[id] = ch

	return &Subscription{C: ch, id: id, notifier: n}
}

func (n *Notifier) unsubscribe(id uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if ch, ok := n.subs[id]; ok {
		delete(n.subs, id)
		close(ch)
	}
}

// Broadcast delivers one event to every subscriber without blocking.
func (n *Notifier) Broadcast(family, origin string) {
	event := Event{
		ID:     ulid.Make().String(),
		Family: family,
		Origin: origin,
		Time:   time.Now(),
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return
	}

	metrics.EventsBroadcastTotal.Inc()
	for id, ch := range n.subs {
		select {
		case ch <- event:
		default:
			metrics.EventsDroppedTotal.Inc()
			log.Warn().
				Uint64("subscriber", id).
				Str("family", family).
				Str("origin", origin).
				Msg("Subscriber not draining; dropping change event")
		}
	}
}

// Close detaches every subscriber and closes their channels. Subsequent
// Broadcast calls are no-ops.
func (n *Notifier) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		return
	}
	n.closed = true
	for id, ch := range n.subs {
		delete(n.subs, id)
		close(ch)
	}
}
