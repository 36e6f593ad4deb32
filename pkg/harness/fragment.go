package harness

import (
	"github.com/vango-dev/vharness/pkg/engine"
	"github.com/vango-dev/vharness/pkg/vdom"
)

// Parameter is a value passed to a rendered component. Cascading
// parameters are provided to the whole subtree instead of the component.
type Parameter struct {
	Name      string
	Value     any
	Cascading bool
}

// Param creates a component parameter.
func Param(name string, value any) Parameter {
	return Parameter{Name: name, Value: value}
}

// Cascading creates an unnamed cascading value, resolved by type.
func Cascading(value any) Parameter {
	return Parameter{Value: value, Cascading: true}
}

// NamedCascading creates a cascading value resolved by name.
func NamedCascading(name string, value any) Parameter {
	return Parameter{Name: name, Value: value, Cascading: true}
}

// ChildContent passes fragment as the component's ChildContent parameter.
func ChildContent(fragment vdom.RenderFragment) Parameter {
	return Param("ChildContent", fragment)
}

// BuildFragment returns a fragment rendering target with params.
//
// Cascading parameters wrap the target in engine.CascadingValue scopes in
// declaration order, so the last declared is innermost. The remaining
// parameters are passed to target with sequence numbers equal to their
// 1-based position in params.
func BuildFragment(target vdom.Component, params ...Parameter) (vdom.RenderFragment, error) {
	if target == nil {
		return nil, invalidOperation("nil target component")
	}
	for _, p := range params {
		if p.Cascading && p.Value == nil {
			if p.Name != "" {
				return nil, invalidOperation("cascading value %q is nil", p.Name)
			}
			return nil, invalidOperation("unnamed cascading value is nil")
		}
	}
	return buildFrom(target, params, 0), nil
}

// buildFrom wraps the first cascading parameter at or after start around
// the rest of the fragment.
func buildFrom(target vdom.Component, params []Parameter, start int) vdom.RenderFragment {
	for i := start; i < len(params); i++ {
		p := params[i]
		if !p.Cascading {
			continue
		}
		inner := buildFrom(target, params, i+1)
		return func() *vdom.VNode {
			args := make([]vdom.Param, 0, 4)
			if p.Name != "" {
				args = append(args, vdom.Param{Seq: 1, Name: "Name", Value: p.Name})
			}
			args = append(args,
				vdom.Param{Seq: 2, Name: "Value", Value: p.Value},
				vdom.Param{Seq: 3, Name: "IsFixed", Value: true},
				vdom.Param{Seq: 4, Name: "ChildContent", Value: inner},
			)
			return vdom.Child(&engine.CascadingValue{}, args...)
		}
	}

	return func() *vdom.VNode {
		args := make([]vdom.Param, 0, len(params))
		for i, p := range params {
			if p.Cascading {
				continue
			}
			args = append(args, vdom.Param{Seq: i + 1, Name: p.Name, Value: p.Value})
		}
		return vdom.Child(target, args...)
	}
}

// mergeParameters replaces the values of same-named direct parameters in
// base and appends new ones. Cascading parameters of base are kept.
func mergeParameters(base, updates []Parameter) ([]Parameter, error) {
	out := make([]Parameter, len(base))
	copy(out, base)
	for _, u := range updates {
		if u.Cascading {
			return nil, invalidOperation("cascading values cannot be changed after the first render")
		}
		replaced := false
		for i := range out {
			if !out[i].Cascading && out[i].Name == u.Name {
				out[i].Value = u.Value
				replaced = true
				break
			}
		}
		if !replaced {
			out = append(out, u)
		}
	}
	return out, nil
}
