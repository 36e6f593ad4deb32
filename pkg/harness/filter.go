package harness

import "sync"

// Filter is an EventSource that forwards the events of another source
// satisfying a predicate. A nil predicate forwards everything.
type Filter struct {
	source    EventSource
	predicate func(*RenderEvent) bool
	out       *Publisher

	once  sync.Once
	token Subscription
}

// NewFilter subscribes to source and returns the filtered stream.
func NewFilter(source EventSource, predicate func(*RenderEvent) bool) *Filter {
	f := &Filter{
		source:    source,
		predicate: predicate,
		out:       NewPublisher(),
	}
	f.token = source.Subscribe(f)
	return f
}

// Subscribe implements EventSource.
func (f *Filter) Subscribe(s Subscriber) Subscription { return f.out.Subscribe(s) }

// Unsubscribe implements EventSource.
func (f *Filter) Unsubscribe(token Subscription) { f.out.Unsubscribe(token) }

// OnRender implements Subscriber.
func (f *Filter) OnRender(e *RenderEvent) {
	if f.predicate == nil || f.predicate(e) {
		f.out.Publish(e)
	}
}

// OnCompleted implements Subscriber.
func (f *Filter) OnCompleted() { f.out.Complete() }

// Close detaches the filter from its source and completes its subscribers.
func (f *Filter) Close() {
	f.once.Do(func() {
		f.source.Unsubscribe(f.token)
		f.out.Complete()
	})
}

// Watch subscribes effect to source for events satisfying predicate. It is
// used for side effects such as cache invalidation, independently of what
// any filter forwards. A nil predicate accepts every event.
func Watch(source EventSource, predicate func(*RenderEvent) bool, effect func(*RenderEvent)) Subscription {
	return source.Subscribe(SubscriberFunc(func(e *RenderEvent) {
		if predicate == nil || predicate(e) {
			effect(e)
		}
	}))
}
