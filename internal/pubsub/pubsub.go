// Package pubsub defines the broadcast bus the engine publishes
// state-transition notifications on, and a local in-process
// implementation used by the CLI and tests.
//
// Publication is asynchronous: Publish returns a single-use channel that
// resolves with the delivery result. The engine treats a failed publish
// as fatal because observers would otherwise desynchronize from the
// durable log.
package pubsub

import (
	"sync"

	"github.com/google/uuid"
)

// Message is one published notification.
type Message struct {
	// ID uniquely identifies the message for tracing.
	ID string
	// Topic is the broadcast topic, e.g. "job-state".
	Topic string
	// Payload is the topic-specific body.
	Payload any
}

// Publisher is the bus contract.
//
// The returned channel receives exactly one value (nil on success) and is
// then closed. Callers may drop the channel to fire-and-forget.
type Publisher interface {
	Publish(topic string, payload any) <-chan error
}

// Subscriber receives messages published on a local Bus.
type Subscriber func(Message)

// Bus is an in-process Publisher with synchronous fan-out to subscribers.
//
// Delivery happens on the publisher's goroutine before the result channel
// resolves, so a subscriber that has seen a job-state transition can
// immediately read the corresponding entry from the KVS.
type Bus struct {
	mu   sync.Mutex
	subs map[string][]Subscriber
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[string][]Subscriber)}
}

// Subscribe registers a subscriber for a topic.
func (b *Bus) Subscribe(topic string, fn Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[topic] = append(b.subs[topic], fn)
}

// Publish delivers the payload to all subscribers of topic.
func (b *Bus) Publish(topic string, payload any) <-chan error {
	done := make(chan error, 1)
	msg := Message{ID: uuid.NewString(), Topic: topic, Payload: payload}

	b.mu.Lock()
	subs := append([]Subscriber(nil), b.subs[topic]...)
	b.mu.Unlock()

	for _, fn := range subs {
		fn(msg)
	}
	done <- nil
	close(done)
	return done
}
