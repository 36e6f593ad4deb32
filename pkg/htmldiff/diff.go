// Package htmldiff compares parsed markup structurally.
//
// Children are compared by position after filtering comments and, by
// default, whitespace-only text. A mismatch at a node is reported once and
// its subtree is not compared further.
package htmldiff

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/net/html"

	"github.com/vango-dev/vharness/pkg/markup"
)

// Kind classifies a Difference.
type Kind uint8

const (
	DiffNodeKind       Kind = iota + 1 // Element vs text at the same position
	DiffElementName                    // Different tag names
	DiffText                           // Different text content
	DiffAttrValue                      // Attribute present on both with different values
	DiffMissingAttr                    // Attribute only on the control node
	DiffUnexpectedAttr                 // Attribute only on the test node
	DiffMissingNode                    // Node only in the control list
	DiffUnexpectedNode                 // Node only in the test list
)

// String returns the string representation of the Kind.
func (k Kind) String() string {
	switch k {
	case DiffNodeKind:
		return "NodeKind"
	case DiffElementName:
		return "ElementName"
	case DiffText:
		return "Text"
	case DiffAttrValue:
		return "AttrValue"
	case DiffMissingAttr:
		return "MissingAttr"
	case DiffUnexpectedAttr:
		return "UnexpectedAttr"
	case DiffMissingNode:
		return "MissingNode"
	case DiffUnexpectedNode:
		return "UnexpectedNode"
	default:
		return "Unknown"
	}
}

// Difference is one mismatch between the control and test markup.
type Difference struct {
	Kind Kind

	// Path locates the node, e.g. "table(0) > tbody(1) > tr(0) > #text(0)".
	Path string

	Control *html.Node // nil for DiffUnexpectedNode
	Test    *html.Node // nil for DiffMissingNode

	// Attr, ControlValue and TestValue are set for attribute differences.
	// For DiffText they hold the compared texts.
	Attr         string
	ControlValue string
	TestValue    string
}

func (d Difference) String() string {
	switch d.Kind {
	case DiffText:
		return fmt.Sprintf("%s: text %q != %q", d.Path, d.ControlValue, d.TestValue)
	case DiffAttrValue:
		return fmt.Sprintf("%s: attribute %s %q != %q", d.Path, d.Attr, d.ControlValue, d.TestValue)
	case DiffMissingAttr:
		return fmt.Sprintf("%s: missing attribute %s", d.Path, d.Attr)
	case DiffUnexpectedAttr:
		return fmt.Sprintf("%s: unexpected attribute %s", d.Path, d.Attr)
	case DiffMissingNode:
		return fmt.Sprintf("%s: missing %s", d.Path, markup.Outer(d.Control))
	case DiffUnexpectedNode:
		return fmt.Sprintf("%s: unexpected %s", d.Path, markup.Outer(d.Test))
	default:
		return fmt.Sprintf("%s: %s %s != %s", d.Path, d.Kind, describe(d.Control), describe(d.Test))
	}
}

// Option configures a Differ.
type Option func(*Differ)

// PreserveWhitespace compares whitespace-only text nodes and exact text
// instead of collapsing runs of whitespace.
func PreserveWhitespace() Option {
	return func(d *Differ) { d.preserveWhitespace = true }
}

// IgnoreAttributes skips the named attributes. A name ending in "*" skips
// every attribute with that prefix, e.g. "data-on-*".
func IgnoreAttributes(names ...string) Option {
	return func(d *Differ) {
		for _, name := range names {
			if prefix, ok := strings.CutSuffix(name, "*"); ok {
				d.ignorePrefixes = append(d.ignorePrefixes, prefix)
			} else {
				d.ignore[name] = true
			}
		}
	}
}

// Differ compares node lists.
type Differ struct {
	preserveWhitespace bool
	ignore             map[string]bool
	ignorePrefixes     []string
}

// New creates a Differ.
func New(opts ...Option) *Differ {
	d := &Differ{ignore: make(map[string]bool)}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Diff compares two node lists with default options.
func Diff(control, test markup.NodeList) []Difference {
	return New().Diff(control, test)
}

// Diff returns the differences between control and test in document order.
// Identical input yields an empty slice.
func (d *Differ) Diff(control, test markup.NodeList) []Difference {
	var diffs []Difference
	d.diffChildren(d.filter(control), d.filter(test), "", &diffs)
	return diffs
}

// diffChildren compares two sibling lists by position.
func (d *Differ) diffChildren(control, test []*html.Node, parent string, diffs *[]Difference) {
	n := max(len(control), len(test))
	for i := 0; i < n; i++ {
		switch {
		case i >= len(test):
			*diffs = append(*diffs, Difference{
				Kind:    DiffMissingNode,
				Path:    join(parent, segment(control[i], i)),
				Control: control[i],
			})
		case i >= len(control):
			*diffs = append(*diffs, Difference{
				Kind: DiffUnexpectedNode,
				Path: join(parent, segment(test[i], i)),
				Test: test[i],
			})
		default:
			d.diffNode(control[i], test[i], join(parent, segment(control[i], i)), diffs)
		}
	}
}

// diffNode compares two nodes at the same position.
func (d *Differ) diffNode(control, test *html.Node, path string, diffs *[]Difference) {
	if control.Type != test.Type {
		*diffs = append(*diffs, Difference{Kind: DiffNodeKind, Path: path, Control: control, Test: test})
		return
	}

	switch control.Type {
	case html.TextNode:
		cv, tv := d.text(control.Data), d.text(test.Data)
		if cv != tv {
			*diffs = append(*diffs, Difference{
				Kind: DiffText, Path: path, Control: control, Test: test,
				ControlValue: cv, TestValue: tv,
			})
		}
	case html.ElementNode:
		if control.Data != test.Data || control.Namespace != test.Namespace {
			*diffs = append(*diffs, Difference{Kind: DiffElementName, Path: path, Control: control, Test: test})
			return
		}
		d.diffAttrs(control, test, path, diffs)
		d.diffChildren(d.children(control), d.children(test), path, diffs)
	}
}

// diffAttrs compares attributes in name order.
func (d *Differ) diffAttrs(control, test *html.Node, path string, diffs *[]Difference) {
	cattrs, tattrs := d.attrs(control), d.attrs(test)

	names := make([]string, 0, len(cattrs)+len(tattrs))
	for name := range cattrs {
		names = append(names, name)
	}
	for name := range tattrs {
		if _, ok := cattrs[name]; !ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	for _, name := range names {
		cv, inControl := cattrs[name]
		tv, inTest := tattrs[name]
		diff := Difference{Path: path, Control: control, Test: test, Attr: name, ControlValue: cv, TestValue: tv}
		switch {
		case !inTest:
			diff.Kind = DiffMissingAttr
		case !inControl:
			diff.Kind = DiffUnexpectedAttr
		case name == "class" && sameClasses(cv, tv):
			continue
		case cv != tv:
			diff.Kind = DiffAttrValue
		default:
			continue
		}
		*diffs = append(*diffs, diff)
	}
}

func (d *Differ) attrs(n *html.Node) map[string]string {
	out := make(map[string]string, len(n.Attr))
	for _, a := range n.Attr {
		if d.ignored(a.Key) {
			continue
		}
		out[a.Key] = a.Val
	}
	return out
}

func (d *Differ) ignored(name string) bool {
	if d.ignore[name] {
		return true
	}
	for _, prefix := range d.ignorePrefixes {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}

func (d *Differ) children(n *html.Node) []*html.Node {
	var list []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		list = append(list, c)
	}
	return d.filter(list)
}

// filter drops nodes that never take part in a comparison.
func (d *Differ) filter(nodes []*html.Node) []*html.Node {
	out := make([]*html.Node, 0, len(nodes))
	for _, n := range nodes {
		switch n.Type {
		case html.ElementNode:
			out = append(out, n)
		case html.TextNode:
			if d.preserveWhitespace || strings.TrimSpace(n.Data) != "" {
				out = append(out, n)
			}
		}
	}
	return out
}

func (d *Differ) text(s string) string {
	if d.preserveWhitespace {
		return s
	}
	return strings.Join(strings.Fields(s), " ")
}

// sameClasses compares class lists ignoring order and repeats.
func sameClasses(a, b string) bool {
	set := func(s string) map[string]bool {
		m := make(map[string]bool)
		for _, c := range strings.Fields(s) {
			m[c] = true
		}
		return m
	}
	as, bs := set(a), set(b)
	if len(as) != len(bs) {
		return false
	}
	for c := range as {
		if !bs[c] {
			return false
		}
	}
	return true
}

func segment(n *html.Node, index int) string {
	if n.Type == html.TextNode {
		return fmt.Sprintf("#text(%d)", index)
	}
	return fmt.Sprintf("%s(%d)", n.Data, index)
}

func join(parent, seg string) string {
	if parent == "" {
		return seg
	}
	return parent + " > " + seg
}

func describe(n *html.Node) string {
	if n == nil {
		return "<nil>"
	}
	if n.Type == html.TextNode {
		return "#text"
	}
	return "<" + n.Data + ">"
}
