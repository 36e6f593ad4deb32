// Package vtest provides testing helpers for components rendered with the
// harness.
//
// The vtest package reduces boilerplate by wiring an engine and a harness
// to a test, failing the test on render errors, and providing markup
// assertions and event triggers.
//
// # Quick Start
//
//	func TestCounter(t *testing.T) {
//	    ctx := vtest.New(t)
//	    view := vtest.Render[*Counter](ctx, harness.Param("Start", 1))
//
//	    vtest.Click(t, view.RenderedView, "button.increment")
//	    vtest.ExpectContains(t, view.RenderedView, "Count: 2")
//	}
//
// # Markup Assertions
//
// MarkupMatches compares markup semantically: attribute order, whitespace
// between elements and event handler ids are ignored.
//
//	vtest.MarkupMatches(t, vtest.Markup(t, view.RenderedView), `
//	    <div class="counter">
//	        <span>Count: 2</span>
//	    </div>`)
//
// # Events
//
// Rendered markup carries handler ids in data-on-<event> attributes. Click,
// Input, Change and Trigger look them up by selector and dispatch to the
// engine through the harness.
package vtest
