package vdom

// VKind is the node type discriminator.
type VKind uint8

const (
	KindElement   VKind = iota // <div>, <button>, etc.
	KindText                   // Plain text node
	KindFragment               // Grouping without wrapper
	KindComponent              // Nested component
	KindRaw                    // Raw HTML (dangerous)
)

// String returns the string representation of the VKind.
func (k VKind) String() string {
	switch k {
	case KindElement:
		return "Element"
	case KindText:
		return "Text"
	case KindFragment:
		return "Fragment"
	case KindComponent:
		return "Component"
	case KindRaw:
		return "Raw"
	default:
		return "Unknown"
	}
}

// VNode is the virtual DOM node.
type VNode struct {
	Kind     VKind     // Node type
	Tag      string    // Element tag name (e.g., "div")
	Props    Props     // Attributes and event handlers
	Children []*VNode  // Child nodes
	Key      string    // Reconciliation key
	Text     string    // For KindText and KindRaw
	Comp     Component // For KindComponent: instance mounted on first render
	Params   []Param   // For KindComponent: ordered parameters
}

// Props holds attributes and event handlers.
type Props map[string]any

// Attr represents a single attribute. An Attr with an empty Key is
// ignored by the element constructors.
type Attr struct {
	Key   string
	Value any
}

// EventHandler represents an event handler.
type EventHandler struct {
	Event   string // "onclick", "oninput", etc.
	Handler any    // Function to call
}

// Param is a named parameter passed to a component.
//
// Seq is the parameter's stable position in the declaring parameter list.
// A zero Seq means the position of the Param in VNode.Params is used.
type Param struct {
	Seq   int
	Name  string
	Value any
}

// Arg creates a component parameter.
func Arg(name string, value any) Param {
	return Param{Name: name, Value: value}
}

// Component is anything that can render to a VNode.
type Component interface {
	Render() *VNode
}

// FuncComponent wraps a render function.
type FuncComponent struct {
	render func() *VNode
}

// Render implements Component.
func (f *FuncComponent) Render() *VNode {
	return f.render()
}

// Func creates a component from a render function.
func Func(render func() *VNode) Component {
	return &FuncComponent{render: render}
}

// RenderFragment is a deferred piece of UI. It is evaluated each time
// the component that owns it renders.
type RenderFragment func() *VNode

// Child creates a component node. On the first render the engine mounts c
// itself; on later renders only the dynamic type of c is used to match the
// existing instance, which receives params again.
func Child(c Component, params ...Param) *VNode {
	return &VNode{
		Kind:   KindComponent,
		Comp:   c,
		Params: params,
	}
}
