// Package events provides the fan-out channel between the daemon's
// producers (command replies, telemetry, presence) and connected clients.
package events

import (
	"context"
	"errors"
	"sync"

	"github.com/openfsr/fsrd/internal/models"
)

// backlog is the per-subscriber history window. Sized to absorb a burst a
// bit larger than one second of 60 Hz telemetry.
const backlog = 1024

// ErrClosed is returned by Subscription.Next after Unsubscribe.
var ErrClosed = errors.New("events: subscription closed")

// Bus is a multi-producer multi-consumer broadcaster backed by one shared
// ring buffer. Each subscriber tracks its own read cursor, so a slow
// subscriber that falls more than backlog messages behind loses its oldest
// unread messages and skips forward; other subscribers are unaffected.
// Publish never blocks. Late subscribers never see history.
type Bus struct {
	mu   sync.Mutex
	ring [backlog]models.Response
	next uint64 // sequence number of the next publish
	subs map[string]*Subscription
}

// Subscription is one subscriber's cursor into the bus.
type Subscription struct {
	bus    *Bus
	id     string
	cursor uint64
	wake   chan struct{} // capacity 1; a pending signal is never lost
	closed bool
}

// NewBus creates a new broadcaster.
func NewBus() *Bus {
	return &Bus{subs: make(map[string]*Subscription)}
}

// Subscribe creates a subscription with the given ID, starting at the
// current head (no history replay). Call Unsubscribe when done.
func (b *Bus) Subscribe(id string) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	sub := &Subscription{
		bus:    b,
		id:     id,
		cursor: b.next,
		wake:   make(chan struct{}, 1),
	}
	b.subs[id] = sub
	return sub
}

// Unsubscribe removes a subscription. A Next call blocked on the
// subscription wakes up and returns ErrClosed.
func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	sub, ok := b.subs[id]
	if ok {
		delete(b.subs, id)
		sub.closed = true
	}
	b.mu.Unlock()
	if ok {
		sub.signal()
	}
}

// Publish appends one message and wakes every subscriber.
func (b *Bus) Publish(resp models.Response) {
	b.mu.Lock()
	b.ring[b.next%backlog] = resp
	b.next++
	subs := make([]*Subscription, 0, len(b.subs))
	for _, sub := range b.subs {
		subs = append(subs, sub)
	}
	b.mu.Unlock()

	for _, sub := range subs {
		sub.signal()
	}
}

// SubscriberCount returns the current number of subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

func (s *Subscription) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Next returns the subscriber's next unread message, blocking until one is
// published or ctx is done. The second return value is how many messages
// were skipped because this subscriber lagged past the backlog; it is zero
// on a keeping-up subscriber.
func (s *Subscription) Next(ctx context.Context) (models.Response, uint64, error) {
	for {
		s.bus.mu.Lock()
		if s.closed {
			s.bus.mu.Unlock()
			return models.Response{}, 0, ErrClosed
		}
		if s.cursor < s.bus.next {
			var dropped uint64
			if lag := s.bus.next - s.cursor; lag > backlog {
				dropped = lag - backlog
				s.cursor = s.bus.next - backlog
			}
			resp := s.bus.ring[s.cursor%backlog]
			s.cursor++
			s.bus.mu.Unlock()
			return resp, dropped, nil
		}
		s.bus.mu.Unlock()

		select {
		case <-ctx.Done():
			return models.Response{}, 0, ctx.Err()
		case <-s.wake:
		}
	}
}
