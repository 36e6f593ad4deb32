// Package vdom provides the virtual node model rendered by the engine.
//
// Components render VNode trees. The engine flattens each component's
// output into a Frame array, which is what the harness, the serializer and
// the component search operate on.
//
// # Element API
//
// Elements are created using variadic factory functions:
//
//	Div(Class("card"), ID("main"),
//	    H1(Text("Title")),
//	    P(Text("Content")),
//	    OnClick(handler),
//	)
//
// # Components
//
// Child embeds a component with ordered parameters:
//
//	Div(Child(&Counter{}, Arg("Start", 3)))
//
// # Frames
//
// Flatten converts a tree into pre-order frames. Element frames record
// the number of frames they span; component frames stand in for the child
// component's own output, which is stored under its component id.
package vdom
