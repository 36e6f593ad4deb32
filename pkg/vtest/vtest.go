package vtest

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"testing"
	"time"

	vconfig "github.com/vango-dev/vharness/internal/config"
	"github.com/vango-dev/vharness/pkg/engine"
	"github.com/vango-dev/vharness/pkg/harness"
	"github.com/vango-dev/vharness/pkg/htmldiff"
	"github.com/vango-dev/vharness/pkg/markup"
	"github.com/vango-dev/vharness/pkg/vdom"
)

// DefaultTimeout bounds the wait helpers.
const DefaultTimeout = time.Second

// Option configures a Context.
type Option func(*config)

type config struct {
	engineOpts  []engine.Option
	harnessOpts []harness.Option
	timeout     time.Duration
	configDir   string
}

// WithLogger logs both the engine and the harness to logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.engineOpts = append(c.engineOpts, engine.WithLogger(logger))
		c.harnessOpts = append(c.harnessOpts, harness.WithLogger(logger))
	}
}

// WithHarnessOptions passes options to harness.New.
func WithHarnessOptions(opts ...harness.Option) Option {
	return func(c *config) {
		c.harnessOpts = append(c.harnessOpts, opts...)
	}
}

// WithConfigDir applies the vharness.json or vharness.yaml found in dir.
// Log output goes to the test log.
func WithConfigDir(dir string) Option {
	return func(c *config) {
		c.configDir = dir
	}
}

// WithTimeout sets how long the wait helpers wait.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// Context is an engine plus the harness attached to it, scoped to one test.
type Context struct {
	t       testing.TB
	Engine  *engine.Renderer
	Harness *harness.Harness
	timeout time.Duration
}

// New creates a Context. The harness is closed when the test ends and any
// failure not yet reported fails the test.
//
// Example:
//
//	func TestCounter(t *testing.T) {
//	    ctx := vtest.New(t)
//	    view := vtest.Render[*Counter](ctx, harness.Param("Start", 1))
//	    vtest.Click(t, view.RenderedView, "button")
//	    vtest.ExpectContains(t, view.RenderedView, "Count: 2")
//	}
func New(t testing.TB, opts ...Option) *Context {
	t.Helper()
	cfg := config{timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(&cfg)
	}

	harnessOpts := cfg.harnessOpts
	if cfg.configDir != "" {
		fileCfg, err := vconfig.Load(cfg.configDir)
		if err != nil {
			t.Fatalf("vtest: load config: %v", err)
			return nil
		}
		harnessOpts = append(fileCfg.HarnessOptions(testWriter{t}), harnessOpts...)
	}

	eng := engine.New(cfg.engineOpts...)
	h := harness.New(eng, harnessOpts...)
	t.Cleanup(func() {
		if err := h.Close(); err != nil {
			t.Errorf("vtest: unreported render failure at cleanup: %v", err)
		}
	})
	return &Context{t: t, Engine: eng, Harness: h, timeout: cfg.timeout}
}

// Render renders a new T with params, failing the test on error.
func Render[T any](c *Context, params ...harness.Parameter) *harness.RenderedComponent[T] {
	c.t.Helper()
	view, err := harness.RenderComponent[T](c.Harness, params...)
	if err != nil {
		c.t.Fatalf("vtest: render %T: %v", *new(T), err)
		return nil
	}
	return view
}

// RenderFragment renders fragment, failing the test on error.
func (c *Context) RenderFragment(fragment vdom.RenderFragment) *harness.RenderedView {
	c.t.Helper()
	view, err := c.Harness.RenderFragment(fragment)
	if err != nil {
		c.t.Fatalf("vtest: render fragment: %v", err)
		return nil
	}
	return view
}

// WaitForState waits until predicate holds for view, failing the test on
// timeout or on a render failure.
func (c *Context) WaitForState(view *harness.RenderedView, predicate func(*harness.RenderedView) bool) {
	c.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	if err := view.WaitForState(ctx, predicate); err != nil {
		c.t.Fatalf("vtest: wait for state: %v", err)
	}
}

// Markup returns the view's current markup, failing the test on error.
func Markup(t testing.TB, view *harness.RenderedView) string {
	t.Helper()
	out, err := view.Markup()
	if err != nil {
		t.Fatalf("vtest: markup: %v", err)
	}
	return out
}

// MarkupMatches reports an error for every semantic difference between
// actual and expected. Whitespace between elements, attribute order and
// handler ids do not count.
//
// Example:
//
//	vtest.MarkupMatches(t, vtest.Markup(t, view), `<p class="a b">Hi</p>`)
func MarkupMatches(t testing.TB, actual, expected string) bool {
	t.Helper()
	control, err := markup.Parse(expected)
	if err != nil {
		t.Errorf("vtest: parse expected markup: %v", err)
		return false
	}
	test, err := markup.Parse(actual)
	if err != nil {
		t.Errorf("vtest: parse actual markup: %v", err)
		return false
	}

	diffs := htmldiff.New(htmldiff.IgnoreAttributes("data-on-*")).Diff(control, test)
	if len(diffs) == 0 {
		return true
	}
	var sb strings.Builder
	for _, d := range diffs {
		sb.WriteString("\n  ")
		sb.WriteString(d.String())
	}
	t.Errorf("markup does not match:%s\nexpected:\n%s\nactual:\n%s",
		sb.String(), truncate(expected, 500), truncate(actual, 500))
	return false
}

// Click dispatches a click to the first element matching selector.
func Click(t testing.TB, view *harness.RenderedView, selector string) {
	t.Helper()
	Trigger(t, view, selector, "click", engine.EventFieldInfo{})
}

// Input dispatches an input event carrying value to the first element
// matching selector.
func Input(t testing.TB, view *harness.RenderedView, selector string, value any) {
	t.Helper()
	Trigger(t, view, selector, "input", engine.EventFieldInfo{FieldValue: value})
}

// Change dispatches a change event carrying value.
func Change(t testing.TB, view *harness.RenderedView, selector string, value any) {
	t.Helper()
	Trigger(t, view, selector, "change", engine.EventFieldInfo{FieldValue: value})
}

// Trigger dispatches event to the handler rendered on the first element
// matching selector and waits for the resulting render.
func Trigger(t testing.TB, view *harness.RenderedView, selector, event string, field engine.EventFieldInfo) {
	t.Helper()
	id, ok := HandlerID(t, view, selector, event)
	if !ok {
		return
	}
	if err := view.Harness().DispatchEvent(id, field, nil); err != nil {
		t.Fatalf("vtest: %s on %q: %v", event, selector, err)
	}
}

// HandlerID returns the id of the event handler rendered on the first
// element matching selector.
func HandlerID(t testing.TB, view *harness.RenderedView, selector, event string) (uint64, bool) {
	t.Helper()
	n, err := view.Find(selector)
	if err != nil {
		t.Fatalf("vtest: find %q: %v", selector, err)
		return 0, false
	}
	raw, ok := markup.Attr(n, "data-on-"+event)
	if !ok {
		t.Fatalf("vtest: %q has no %s handler: %s", selector, event, markup.Outer(n))
		return 0, false
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		t.Fatalf("vtest: %q: bad handler id %q", selector, raw)
		return 0, false
	}
	return id, true
}

// ExpectContains asserts that the view's markup contains expected.
//
// Example:
//
//	vtest.ExpectContains(t, view, "Welcome Admin")
func ExpectContains(t testing.TB, view *harness.RenderedView, expected string) {
	t.Helper()
	html := Markup(t, view)
	if !strings.Contains(html, expected) {
		t.Errorf("expected rendered output to contain %q, got:\n%s", expected, truncate(html, 500))
	}
}

// ExpectNotContains asserts that the view's markup does not contain
// unexpected.
func ExpectNotContains(t testing.TB, view *harness.RenderedView, unexpected string) {
	t.Helper()
	html := Markup(t, view)
	if strings.Contains(html, unexpected) {
		t.Errorf("expected rendered output to NOT contain %q, got:\n%s", unexpected, truncate(html, 500))
	}
}

// ExpectElement asserts that an element matches selector.
//
// Example:
//
//	vtest.ExpectElement(t, view, "button.primary")
func ExpectElement(t testing.TB, view *harness.RenderedView, selector string) {
	t.Helper()
	all, err := view.FindAll(selector)
	if err != nil {
		t.Fatalf("vtest: find %q: %v", selector, err)
		return
	}
	if len(all) == 0 {
		t.Errorf("expected an element matching %q, got:\n%s", selector, truncate(Markup(t, view), 500))
	}
}

// ExpectAttribute asserts that the first element matching selector has
// attribute attr set to value.
//
// Example:
//
//	vtest.ExpectAttribute(t, view, "a.home", "href", "/")
func ExpectAttribute(t testing.TB, view *harness.RenderedView, selector, attr, value string) {
	t.Helper()
	n, err := view.Find(selector)
	if err != nil {
		t.Fatalf("vtest: find %q: %v", selector, err)
		return
	}
	got, ok := markup.Attr(n, attr)
	if !ok || got != value {
		t.Errorf("expected attribute %s=%q on %q, got:\n%s", attr, value, selector, truncate(markup.Outer(n), 500))
	}
}

// testWriter sends log output to the test log.
type testWriter struct{ t testing.TB }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(strings.TrimRight(string(p), "\n"))
	return len(p), nil
}

// truncate truncates a string to max length with ellipsis.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
