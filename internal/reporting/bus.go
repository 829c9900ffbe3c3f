package reporting

import (
	"sync"

	"github.com/google/uuid"
)

// Publisher is the side of the bus the session manager sees.
type Publisher interface {
	Publish(n Notice)
}

// Subscription is one consumer's view of the notice stream.
type Subscription struct {
	id     string
	ch     chan Notice
	cancel func(id string)
	once   sync.Once
}

// C returns the channel notices are delivered on. It is closed when the
// subscription is cancelled or the bus shuts down.
func (s *Subscription) C() <-chan Notice {
	return s.ch
}

// Cancel detaches the subscription and closes its channel.
func (s *Subscription) Cancel() {
	if s.cancel != nil {
		s.cancel(s.id)
	}
}

func (s *Subscription) close() {
	s.once.Do(func() { close(s.ch) })
}

// Metrics counts bus activity.
type Metrics struct {
	Published   int64
	Delivered   int64
	Dropped     int64
	Subscribers int
}

// Bus fans notices out to subscribers. Delivery never blocks the publisher:
// a subscriber that stops draining loses notices rather than stalling the
// session manager.
type Bus struct {
	mu      sync.Mutex
	subs    map[string]*Subscription
	metrics Metrics
	closed  bool
}

// NewBus creates an empty notice bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[string]*Subscription)}
}

// Publish delivers the notice to every live subscriber.
func (b *Bus) Publish(n Notice) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.metrics.Published++
	for _, sub := range b.subs {
		select {
		case sub.ch <- n:
			b.metrics.Delivered++
		default:
			b.metrics.Dropped++
		}
	}
}

// Subscribe registers a consumer with the given channel buffer. A buffer of
// zero or less gets a small default.
func (b *Bus) Subscribe(buffer int) *Subscription {
	if buffer <= 0 {
		buffer = 16
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		sub := &Subscription{id: "", ch: make(chan Notice)}
		sub.close()
		return sub
	}
	sub := &Subscription{
		id:     uuid.NewString(),
		ch:     make(chan Notice, buffer),
		cancel: b.unsubscribe,
	}
	b.subs[sub.id] = sub
	b.metrics.Subscribers = len(b.subs)
	return sub
}

func (b *Bus) unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	sub, ok := b.subs[id]
	if !ok {
		return
	}
	delete(b.subs, id)
	b.metrics.Subscribers = len(b.subs)
	sub.close()
}

// GetMetrics returns a copy of the bus counters.
func (b *Bus) GetMetrics() Metrics {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.metrics
}

// Close shuts the bus down and closes every subscriber channel.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, sub := range b.subs {
		delete(b.subs, id)
		sub.close()
	}
	b.metrics.Subscribers = 0
}
