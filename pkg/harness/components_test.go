package harness

import (
	"errors"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vango-dev/vharness/pkg/engine"
	"github.com/vango-dev/vharness/pkg/markup"
	"github.com/vango-dev/vharness/pkg/vdom"
)

// heading renders a fixed heading.
type heading struct{}

func (heading) Render() *vdom.VNode {
	return vdom.H3(vdom.ID("heading-1337"), "Heading text", vdom.Small("Secondary text"))
}

// counter renders its count and a button that increments it.
type counter struct {
	h     *engine.Handle
	Count int
	Label string
}

func (c *counter) Attach(h *engine.Handle) { c.h = h }

func (c *counter) SetParameters(p engine.Parameters) error {
	if v, ok := engine.Lookup[int](p, "Start"); ok {
		c.Count = v
	}
	if v, ok := engine.Lookup[string](p, "Label"); ok {
		c.Label = v
	}
	return nil
}

func (c *counter) Render() *vdom.VNode {
	return vdom.Div(
		vdom.P(vdom.Textf("%s%d", c.Label, c.Count)),
		vdom.Button(vdom.OnClick(func() { c.Count++ }), "+"),
	)
}

// greeter reads a cascading theme and a named cascading user.
type greeter struct {
	Theme string
	User  string
	Text  string
}

func (g *greeter) SetParameters(p engine.Parameters) error {
	g.Theme, _ = engine.CascadingOf[string](p)
	if v, ok := p.Cascading("user"); ok {
		g.User, _ = v.(string)
	}
	if v, ok := engine.Lookup[string](p, "Text"); ok {
		g.Text = v
	}
	return nil
}

func (g *greeter) Render() *vdom.VNode {
	return vdom.P(vdom.Class(g.Theme), g.Text+", "+g.User)
}

// rowTable renders a two row table with styled first cells.
type rowTable struct{}

func (rowTable) Render() *vdom.VNode {
	return vdom.Table(vdom.Tbody(
		vdom.Tr(vdom.Td(vdom.StyleAttr("color: red"), "a"), vdom.Td("1")),
		vdom.Tr(vdom.Td(vdom.StyleAttr("color: blue"), "b"), vdom.Td("2")),
	))
}

// outer -> middle -> leaf, where leaf holds the only changing text.
type outer struct{}

func (outer) Render() *vdom.VNode {
	return vdom.Div(vdom.Class("outer"), vdom.H1("Title"), vdom.Child(&middle{}))
}

type middle struct{}

func (*middle) Render() *vdom.VNode {
	return vdom.Section(vdom.P("static"), vdom.Child(&leaf{}))
}

type leaf struct {
	h    *engine.Handle
	Text string
}

func (l *leaf) Attach(h *engine.Handle) { l.h = h }

func (l *leaf) Render() *vdom.VNode {
	if l.Text == "" {
		l.Text = "initial"
	}
	return vdom.Span(vdom.Class("leaf"), l.Text)
}

// faulty fails in its click handler.
type faulty struct {
	Fail error
}

func (f *faulty) Render() *vdom.VNode {
	return vdom.Button(vdom.OnClick(func() error { return f.Fail }), "fail")
}

// wrapper renders its ChildContent inside a div.
type wrapper struct {
	content vdom.RenderFragment
}

func (w *wrapper) SetParameters(p engine.Parameters) error {
	if v, ok := engine.Lookup[vdom.RenderFragment](p, "ChildContent"); ok {
		w.content = v
	}
	return nil
}

func (w *wrapper) Render() *vdom.VNode {
	return vdom.Div(vdom.Class("wrapper"), w.content.Eval())
}

// disposable records its disposal.
type disposable struct {
	Disposed bool
}

func (d *disposable) Render() *vdom.VNode { return vdom.P("alive") }

func (d *disposable) Dispose() { d.Disposed = true }

// notComponent is rejected by RenderComponent.
type notComponent struct{}

var errHandler = errors.New("handler failed")

func newHarness(t *testing.T, opts ...Option) *Harness {
	t.Helper()
	h := New(engine.New(), opts...)
	t.Cleanup(func() { _ = h.Close() })
	return h
}

// handlerOf returns the handler id rendered on the first element matching
// selector for event.
func handlerOf(t *testing.T, v *RenderedView, selector, event string) uint64 {
	t.Helper()
	n, err := v.Find(selector)
	require.NoError(t, err)
	raw, ok := markup.Attr(n, "data-on-"+event)
	require.True(t, ok, "element %q has no %s handler", selector, event)
	id, err := strconv.ParseUint(raw, 10, 64)
	require.NoError(t, err)
	return id
}
