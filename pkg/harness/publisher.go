package harness

import "sync"

// Subscriber receives render events.
type Subscriber interface {
	// OnRender is called for every event, in publication order, on the
	// dispatcher goroutine. It must not block on the harness.
	OnRender(e *RenderEvent)

	// OnCompleted is called once when the source completes.
	OnCompleted()
}

// SubscriberFunc adapts a function to Subscriber. OnCompleted is a no-op.
type SubscriberFunc func(e *RenderEvent)

// OnRender implements Subscriber.
func (f SubscriberFunc) OnRender(e *RenderEvent) { f(e) }

// OnCompleted implements Subscriber.
func (f SubscriberFunc) OnCompleted() {}

// Subscription identifies a registered subscriber. The zero value is never
// issued.
type Subscription uint64

// EventSource is a stream of render events.
type EventSource interface {
	// Subscribe registers s for events published from now on. On a
	// completed source s.OnCompleted is called immediately and the zero
	// Subscription is returned.
	Subscribe(s Subscriber) Subscription

	// Unsubscribe removes a subscriber. Unknown tokens are ignored.
	Unsubscribe(token Subscription)
}

// PublisherStats is a snapshot of a publisher's counters.
type PublisherStats struct {
	Published   uint64
	Subscribers int
	Completed   bool
}

type subscriberEntry struct {
	token Subscription
	sub   Subscriber
}

// Publisher fans render events out to subscribers in subscription order.
// The registry is copied on publish, so subscribers may subscribe or
// unsubscribe while an event is delivered; the change applies from the
// next event.
type Publisher struct {
	mu        sync.Mutex
	subs      []subscriberEntry
	next      Subscription
	published uint64
	completed bool
}

// NewPublisher creates an empty publisher.
func NewPublisher() *Publisher {
	return &Publisher{}
}

// Subscribe implements EventSource.
func (p *Publisher) Subscribe(s Subscriber) Subscription {
	p.mu.Lock()
	if p.completed {
		p.mu.Unlock()
		s.OnCompleted()
		return 0
	}
	p.next++
	token := p.next
	p.subs = append(p.subs, subscriberEntry{token: token, sub: s})
	p.mu.Unlock()
	return token
}

// Unsubscribe implements EventSource.
func (p *Publisher) Unsubscribe(token Subscription) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, e := range p.subs {
		if e.token == token {
			p.subs = append(p.subs[:i:i], p.subs[i+1:]...)
			return
		}
	}
}

// Publish delivers e to every current subscriber. It is a no-op after
// Complete.
func (p *Publisher) Publish(e *RenderEvent) {
	p.mu.Lock()
	if p.completed {
		p.mu.Unlock()
		return
	}
	p.published++
	subs := make([]subscriberEntry, len(p.subs))
	copy(subs, p.subs)
	p.mu.Unlock()

	for _, entry := range subs {
		entry.sub.OnRender(e)
	}
}

// Complete notifies every subscriber once and drops them.
func (p *Publisher) Complete() {
	p.mu.Lock()
	if p.completed {
		p.mu.Unlock()
		return
	}
	p.completed = true
	subs := p.subs
	p.subs = nil
	p.mu.Unlock()

	for _, entry := range subs {
		entry.sub.OnCompleted()
	}
}

// Stats returns the publisher's counters.
func (p *Publisher) Stats() PublisherStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return PublisherStats{
		Published:   p.published,
		Subscribers: len(p.subs),
		Completed:   p.completed,
	}
}
