// Package engine is a small single-writer component renderer.
//
// A Renderer owns a tree of mounted component instances. Each component's
// output is flattened into vdom frames and stored under the component's id.
// Rendering is driven explicitly: roots are assigned with AssignRoot and
// rendered with RenderRoot, event handlers are invoked with DispatchEvent,
// and components request re-renders through their Handle. Every render
// pass ends with one call to the registered BatchHandler describing which
// components were updated and which were disposed.
//
// The Renderer is not safe for concurrent use. All calls must come from a
// single goroutine, normally a dispatcher that serializes access.
//
// # Components
//
// Components implement vdom.Component. They may also implement:
//
//   - Attacher to receive their Handle when mounted
//   - ParameterReceiver to receive parameters before each render
//   - Disposer to release resources when unmounted
//
// # Cascading values
//
// CascadingValue makes a value available to every component rendered
// inside its ChildContent. Descendants resolve it with
// Parameters.Cascading or CascadingOf.
package engine
