package engine

import (
	"fmt"
	"reflect"

	"github.com/vango-dev/vharness/pkg/vdom"
)

// Parameters are the values a component receives from its parent.
// Explicit parameters keep their declaration order; cascading values are
// resolved from the enclosing CascadingValue components.
type Parameters struct {
	params []vdom.Param
	scope  *cascadeScope
}

// NewParameters creates a parameter set without cascading values.
func NewParameters(params ...vdom.Param) Parameters {
	return Parameters{params: normalizeParams(params)}
}

// Len returns the number of explicit parameters.
func (p Parameters) Len() int {
	return len(p.params)
}

// All returns the explicit parameters in declaration order.
func (p Parameters) All() []vdom.Param {
	out := make([]vdom.Param, len(p.params))
	copy(out, p.params)
	return out
}

// Get returns the explicit parameter with the given name.
func (p Parameters) Get(name string) (any, bool) {
	for _, param := range p.params {
		if param.Name == name {
			return param.Value, true
		}
	}
	return nil, false
}

// Cascading returns the value of the nearest named cascading value.
func (p Parameters) Cascading(name string) (any, bool) {
	for s := p.scope; s != nil; s = s.parent {
		if s.name == name {
			return s.value, true
		}
	}
	return nil, false
}

// Lookup returns the explicit parameter name converted to T.
func Lookup[T any](p Parameters, name string) (T, bool) {
	var zero T
	v, ok := p.Get(name)
	if !ok {
		return zero, false
	}
	t, ok := v.(T)
	return t, ok
}

// CascadingOf returns the nearest unnamed cascading value assignable to T.
func CascadingOf[T any](p Parameters) (T, bool) {
	var zero T
	for s := p.scope; s != nil; s = s.parent {
		if s.name != "" {
			continue
		}
		if t, ok := s.value.(T); ok {
			return t, true
		}
	}
	return zero, false
}

// equal reports whether both sets carry the same explicit values.
// Function values never compare equal, so parameters holding fragments or
// callbacks always count as changed.
func (p Parameters) equal(other Parameters) bool {
	if len(p.params) != len(other.params) {
		return false
	}
	for i := range p.params {
		a, b := p.params[i], other.params[i]
		if a.Name != b.Name || a.Seq != b.Seq {
			return false
		}
		if !reflect.DeepEqual(a.Value, b.Value) {
			return false
		}
	}
	return true
}

// normalizeParams fills in positional sequence numbers.
func normalizeParams(params []vdom.Param) []vdom.Param {
	out := make([]vdom.Param, len(params))
	for i, param := range params {
		if param.Seq == 0 {
			param.Seq = i + 1
		}
		out[i] = param
	}
	return out
}

// cascadeScope is one link in the chain of values visible to a subtree.
type cascadeScope struct {
	parent *cascadeScope
	name   string
	value  any
}

// CascadingValue provides Value to every component rendered inside
// ChildContent.
type CascadingValue struct {
	Name         string
	Value        any
	IsFixed      bool
	ChildContent vdom.RenderFragment
}

// SetParameters implements ParameterReceiver.
func (c *CascadingValue) SetParameters(p Parameters) error {
	for _, param := range p.params {
		switch param.Name {
		case "Name":
			name, ok := param.Value.(string)
			if !ok {
				return fmt.Errorf("engine: CascadingValue.Name must be a string, got %T", param.Value)
			}
			c.Name = name
		case "Value":
			c.Value = param.Value
		case "IsFixed":
			fixed, ok := param.Value.(bool)
			if !ok {
				return fmt.Errorf("engine: CascadingValue.IsFixed must be a bool, got %T", param.Value)
			}
			c.IsFixed = fixed
		case "ChildContent":
			fragment, err := asFragment(param.Value)
			if err != nil {
				return err
			}
			c.ChildContent = fragment
		default:
			return fmt.Errorf("engine: CascadingValue has no parameter %q", param.Name)
		}
	}
	return nil
}

// Render implements vdom.Component.
func (c *CascadingValue) Render() *vdom.VNode {
	return c.ChildContent.Eval()
}

func asFragment(v any) (vdom.RenderFragment, error) {
	switch f := v.(type) {
	case nil:
		return nil, nil
	case vdom.RenderFragment:
		return f, nil
	case func() *vdom.VNode:
		return f, nil
	default:
		return nil, fmt.Errorf("engine: ChildContent must be a render fragment, got %T", v)
	}
}
