// Package render serializes flattened component output to HTML.
//
// A Renderer walks the frames of a root component and descends into every
// child component frame, so the result is the markup of the whole subtree:
//
//	r := render.NewRenderer(render.Config{})
//	html, err := r.Render(engine, rootID)
//
// Text and attribute values are escaped. Void elements have no closing tag
// and boolean attributes are written without a value when true.
//
// # Event handlers
//
// Handler attributes are not rendered as values. Each one becomes a marker
// carrying the engine's handler id:
//
//	<button data-on-click="7">Save</button>
//
// Test code reads the id back from the markup to dispatch the event.
//
// # Security
//
// Raw markup frames are written verbatim and should only hold trusted
// content.
package render
