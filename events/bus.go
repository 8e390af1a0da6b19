package events

import (
	"errors"
	"sort"
	"strings"
	"sync"
)

// ErrClosed is returned for operations on a closed bus.
var ErrClosed = errors.New("events: bus closed")

// Handler is a callback for dispatched events.
type Handler func(evt Event)

// Subscription represents an active subscription that can be removed.
type Subscription interface {
	// Unsubscribe removes the subscription.
	Unsubscribe() error
}

type busSubscription struct {
	bus     *Bus
	prefix  string
	handler Handler
	id      uint64
}

func (s *busSubscription) Unsubscribe() error {
	s.bus.unsubscribe(s.id)
	return nil
}

// Bus is the process-wide channel for inbound events. Subsystems that do not
// hold a reference to the connection (a consumer started after the socket was
// created) can still observe signaling through it.
//
// Dispatch is synchronous and in subscription order, so events are observed
// in transport arrival order. No deduplication is performed; handlers must be
// idempotent against duplicate delivery after a reconnect.
type Bus struct {
	mu     sync.RWMutex
	subs   map[uint64]*busSubscription
	nextID uint64
	closed bool
}

// NewBus creates an empty event bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[uint64]*busSubscription)}
}

// Subscribe registers a handler for events whose kind starts with prefix.
// An empty prefix matches everything.
func (b *Bus) Subscribe(prefix string, handler Handler) (Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrClosed
	}

	b.nextID++
	sub := &busSubscription{bus: b, prefix: prefix, handler: handler, id: b.nextID}
	b.subs[sub.id] = sub
	return sub, nil
}

// Publish dispatches an event to every matching subscriber, synchronously,
// in subscription order.
func (b *Bus) Publish(evt Event) error {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrClosed
	}
	matched := make([]*busSubscription, 0, len(b.subs))
	for _, sub := range b.subs {
		if strings.HasPrefix(evt.Type, sub.prefix) {
			matched = append(matched, sub)
		}
	}
	b.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool { return matched[i].id < matched[j].id })
	for _, sub := range matched {
		sub.handler(evt)
	}
	return nil
}

func (b *Bus) unsubscribe(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs, id)
}

// Close shuts the bus down and drops all subscriptions.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.subs = make(map[uint64]*busSubscription)
	return nil
}

// SubscriberCount returns the number of active subscriptions (useful for testing).
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
