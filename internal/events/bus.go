// Package events carries cross-component signals (flow updates, auth failures)
// through an injected bus instead of process-wide globals.
package events

import (
	"sync"
	"time"
)

const (
	TypeFlowUpdated      = "flow.updated"
	TypeCheckoutRedirect = "flow.checkout_redirect"
	TypeAuthError        = "auth.error"
)

// TopicAll receives every published event.
const TopicAll = "*"

type Event struct {
	Type    string    `json:"type"`
	Topic   string    `json:"topic,omitempty"`
	Payload any       `json:"payload,omitempty"`
	At      time.Time `json:"at"`
}

type Bus interface {
	Publish(e Event)
	// Subscribe returns a channel of events for topic and a cancel func that
	// closes it.
	Subscribe(topic string) (<-chan Event, func())
}

const subscriberBuffer = 64

type subscriber struct {
	ch chan Event
}

// MemoryBus is an in-process Bus. Slow subscribers miss events rather than
// block publishers.
type MemoryBus struct {
	mu   sync.RWMutex
	subs map[string]map[*subscriber]struct{}
}

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{subs: make(map[string]map[*subscriber]struct{})}
}

func (b *MemoryBus) Publish(e Event) {
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	b.deliver(e.Topic, e)
	if e.Topic != TopicAll {
		b.deliver(TopicAll, e)
	}
}

func (b *MemoryBus) deliver(topic string, e Event) {
	for s := range b.subs[topic] {
		select {
		case s.ch <- e:
		default:
		}
	}
}

func (b *MemoryBus) Subscribe(topic string) (<-chan Event, func()) {
	s := &subscriber{ch: make(chan Event, subscriberBuffer)}

	b.mu.Lock()
	if b.subs[topic] == nil {
		b.subs[topic] = make(map[*subscriber]struct{})
	}
	b.subs[topic][s] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs[topic], s)
			if len(b.subs[topic]) == 0 {
				delete(b.subs, topic)
			}
			b.mu.Unlock()
			close(s.ch)
		})
	}
	return s.ch, cancel
}
