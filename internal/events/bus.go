package events

import (
	"sync"
	"sync/atomic"
)

// DefaultBufferSize is used when a subscriber asks for a buffer <= 0.
const DefaultBufferSize = 256

// Bus is a channel-based pub-sub event bus with per-topic subscriptions and
// catch-all subscriptions.
type Bus struct {
	mu      sync.RWMutex
	subs    map[string][]chan Event // topic -> subscriber channels
	allSubs []chan Event            // channels subscribed to all topics
	closed  bool
	dropped atomic.Int64
}

// NewBus creates a new event bus.
func NewBus() *Bus {
	return &Bus{
		subs: make(map[string][]chan Event),
	}
}

// Subscribe returns a channel receiving events published to topic.
func (b *Bus) Subscribe(topic string, bufSize int) <-chan Event {
	return b.subscribe(func(ch chan Event) {
		b.subs[topic] = append(b.subs[topic], ch)
	}, bufSize)
}

// SubscribeAll returns a channel receiving events from every topic.
func (b *Bus) SubscribeAll(bufSize int) <-chan Event {
	return b.subscribe(func(ch chan Event) {
		b.allSubs = append(b.allSubs, ch)
	}, bufSize)
}

func (b *Bus) subscribe(add func(chan Event), bufSize int) <-chan Event {
	if bufSize <= 0 {
		bufSize = DefaultBufferSize
	}
	ch := make(chan Event, bufSize)

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		close(ch)
		return ch
	}
	add(ch)
	return ch
}

// Publish delivers event to the topic's subscribers and to every catch-all
// subscriber. It never blocks: a full subscriber misses the event and the
// drop is counted.
func (b *Bus) Publish(topic string, event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}

	for _, ch := range b.subs[topic] {
		b.send(ch, event)
	}
	for _, ch := range b.allSubs {
		b.send(ch, event)
	}
}

func (b *Bus) send(ch chan Event, event Event) {
	select {
	case ch <- event:
	default:
		b.dropped.Add(1)
	}
}

// Dropped returns the number of deliveries skipped because a subscriber was
// full.
func (b *Bus) Dropped() int64 {
	return b.dropped.Load()
}

// Close closes the bus and every subscriber channel. It is idempotent.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true

	for _, channels := range b.subs {
		for _, ch := range channels {
			close(ch)
		}
	}
	for _, ch := range b.allSubs {
		close(ch)
	}
}
