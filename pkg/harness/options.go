package harness

import (
	"log/slog"

	"github.com/vango-dev/vharness/pkg/htmldiff"
	"github.com/vango-dev/vharness/pkg/markup"
	"github.com/vango-dev/vharness/pkg/render"
)

// Option configures a Harness.
type Option func(*options)

type options struct {
	logger      *slog.Logger
	queueSize   int
	middleware  []Middleware
	subscribers []Subscriber
	serializer  Serializer
	parser      Parser
	differ      Differ
}

func defaultOptions() options {
	return options{
		queueSize:  DefaultQueueSize,
		serializer: render.NewRenderer(render.Config{}),
		parser:     markup.Parser{},
		differ:     htmldiff.New(htmldiff.IgnoreAttributes("data-on-*")),
	}
}

// WithLogger sets the logger. By default nothing is logged.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithQueueSize sets the dispatch queue capacity.
func WithQueueSize(n int) Option {
	return func(o *options) { o.queueSize = n }
}

// WithMiddleware wraps every dispatch in mw, outermost first.
func WithMiddleware(mw ...Middleware) Option {
	return func(o *options) { o.middleware = append(o.middleware, mw...) }
}

// WithSubscriber subscribes s to the harness's render events before the
// first render.
func WithSubscriber(s Subscriber) Option {
	return func(o *options) { o.subscribers = append(o.subscribers, s) }
}

// WithSerializer replaces the markup serializer.
func WithSerializer(s Serializer) Option {
	return func(o *options) {
		if s != nil {
			o.serializer = s
		}
	}
}

// WithParser replaces the markup parser.
func WithParser(p Parser) Option {
	return func(o *options) {
		if p != nil {
			o.parser = p
		}
	}
}

// WithDiffer replaces the markup diff engine.
func WithDiffer(d Differ) Option {
	return func(o *options) {
		if d != nil {
			o.differ = d
		}
	}
}
