// Package event fans out favorites changes to interested subscribers.
package event

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// CountEvent announces the favorites count after a change
type CountEvent struct {
	Count int       `json:"count"`
	At    time.Time `json:"at"`
}

// Broker delivers the latest CountEvent to every subscriber.
// Each subscriber has a one-slot buffer; a subscriber that falls behind
// only ever sees the newest event.
type Broker struct {
	mu     sync.Mutex
	subs   map[string]chan CountEvent
	closed bool
}

// NewBroker creates an empty broker
func NewBroker() *Broker {
	return &Broker{subs: make(map[string]chan CountEvent)}
}

// Subscribe registers a new subscriber. The returned cancel func removes it
// and closes the channel; calling it more than once is safe.
func (b *Broker) Subscribe() (string, <-chan CountEvent, func()) {
	id := uuid.NewString()
	ch := make(chan CountEvent, 1)

	b.mu.Lock()
	if b.closed {
		close(ch)
	} else {
		b.subs[id] = ch
	}
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() { b.remove(id) })
	}
	return id, ch, cancel
}

// Publish sends ev to all subscribers without blocking
func (b *Broker) Publish(ev CountEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ch := range b.subs {
		select {
		case ch <- ev:
			continue
		default:
		}
		// Drop the stale event and retry once; we hold the lock so no
		// other publisher can refill the slot in between.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- ev:
		default:
		}
	}
}

// Subscribers returns the number of active subscribers
func (b *Broker) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Close removes all subscribers and closes their channels
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		close(ch)
		delete(b.subs, id)
	}
}

func (b *Broker) remove(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ch, ok := b.subs[id]; ok {
		close(ch)
		delete(b.subs, id)
	}
}
