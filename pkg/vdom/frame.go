package vdom

import (
	"sort"
	"strings"
)

// FrameKind tags the entries of a flattened render tree.
type FrameKind uint8

const (
	FrameElement   FrameKind = iota + 1 // Opens an element; attributes and children follow
	FrameText                           // Escaped text content
	FrameMarkup                         // Raw markup, emitted unescaped
	FrameAttribute                      // Attribute of the enclosing element
	FrameComponent                      // Child component placeholder
)

// String returns the string representation of the FrameKind.
func (k FrameKind) String() string {
	switch k {
	case FrameElement:
		return "Element"
	case FrameText:
		return "Text"
	case FrameMarkup:
		return "Markup"
	case FrameAttribute:
		return "Attribute"
	case FrameComponent:
		return "Component"
	default:
		return "Unknown"
	}
}

// Frame is one entry of a component's flattened output.
//
// Frames are stored in pre-order. Element frames cover SubtreeLength
// entries (themselves, their attribute frames and all descendants), so a
// consumer can skip or recurse without rebuilding the tree. A component
// frame never contains the child's output; that lives under ComponentID.
type Frame struct {
	Kind          FrameKind
	SubtreeLength int

	Tag  string // FrameElement
	Text string // FrameText, FrameMarkup

	AttrName  string // FrameAttribute
	AttrValue any    // FrameAttribute
	HandlerID uint64 // FrameAttribute holding an event handler

	ComponentID int       // FrameComponent
	Component   Component // FrameComponent: the live instance
}

// IsHandler reports whether the frame is an event handler attribute.
func (f Frame) IsHandler() bool {
	return f.Kind == FrameAttribute && f.HandlerID != 0
}

// FrameSource resolves the frames of a component by id.
type FrameSource interface {
	Frames(componentID int) ([]Frame, error)
}

// FlattenHooks lets the owner of a tree bind component nodes and event
// handlers while the tree is flattened.
type FlattenHooks struct {
	// Component mounts or matches a component node and returns its id and
	// live instance. Index counts component nodes in pre-order.
	Component func(index int, node *VNode) (int, Component)

	// Handler registers an event handler and returns its id.
	Handler func(event string, handler any) uint64
}

// Flatten converts a rendered VNode tree into frames.
// Fragments are inlined; nil children are skipped.
func Flatten(root *VNode, hooks FlattenHooks) []Frame {
	f := flattener{hooks: hooks}
	f.node(root)
	return f.frames
}

type flattener struct {
	hooks      FlattenHooks
	frames     []Frame
	components int
}

func (f *flattener) node(n *VNode) {
	if n == nil {
		return
	}
	switch n.Kind {
	case KindElement:
		start := len(f.frames)
		f.frames = append(f.frames, Frame{Kind: FrameElement, Tag: n.Tag})
		f.attributes(n)
		for _, child := range n.Children {
			f.node(child)
		}
		f.frames[start].SubtreeLength = len(f.frames) - start
	case KindText:
		f.frames = append(f.frames, Frame{Kind: FrameText, Text: n.Text, SubtreeLength: 1})
	case KindRaw:
		f.frames = append(f.frames, Frame{Kind: FrameMarkup, Text: n.Text, SubtreeLength: 1})
	case KindFragment:
		for _, child := range n.Children {
			f.node(child)
		}
	case KindComponent:
		frame := Frame{Kind: FrameComponent, SubtreeLength: 1, Component: n.Comp}
		if f.hooks.Component != nil {
			frame.ComponentID, frame.Component = f.hooks.Component(f.components, n)
		}
		f.components++
		f.frames = append(f.frames, frame)
	}
}

// attributes appends attribute frames in sorted key order.
func (f *flattener) attributes(n *VNode) {
	if len(n.Props) == 0 {
		return
	}
	keys := make([]string, 0, len(n.Props))
	for key := range n.Props {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		value := n.Props[key]
		frame := Frame{Kind: FrameAttribute, AttrName: key, AttrValue: value, SubtreeLength: 1}
		if IsEventProp(key, value) && f.hooks.Handler != nil {
			frame.HandlerID = f.hooks.Handler(key, value)
		}
		f.frames = append(f.frames, frame)
	}
}

// IsEventProp reports whether a prop holds an event handler: its key starts
// with "on" (any case) and its value is a function.
func IsEventProp(key string, value any) bool {
	if len(key) <= 2 || !strings.EqualFold(key[:2], "on") {
		return false
	}
	switch value.(type) {
	case func(), func(any), func() error, func(any) error:
		return true
	}
	return false
}
