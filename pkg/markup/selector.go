package markup

import (
	"fmt"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

// Selector is a compiled CSS selector group.
//
// Common forms:
//   - type and universal: "td", "*"
//   - ".class", "#id", "[attr]", "[attr=val]", "[attr='val']"
//   - ":first-child", ":last-child", ":nth-child(an+b|odd|even)"
//   - descendant (space), child (">") and sibling combinators
//   - groups separated by ","
type Selector struct {
	source string
	sel    cascadia.Selector
}

// SelectorError reports an invalid selector.
type SelectorError struct {
	Selector string
	Err      error
}

func (e *SelectorError) Error() string {
	return fmt.Sprintf("markup: invalid selector %q: %v", e.Selector, e.Err)
}

// Unwrap returns the parser error.
func (e *SelectorError) Unwrap() error { return e.Err }

// String returns the selector source.
func (s *Selector) String() string { return s.source }

// Compile parses a selector.
func Compile(selector string) (*Selector, error) {
	sel, err := cascadia.Compile(selector)
	if err != nil {
		return nil, &SelectorError{Selector: selector, Err: err}
	}
	return &Selector{source: selector, sel: sel}, nil
}

// MustCompile is like Compile but panics on error.
func MustCompile(selector string) *Selector {
	s, err := Compile(selector)
	if err != nil {
		panic(err)
	}
	return s
}

// Match reports whether element n matches the selector.
func (s *Selector) Match(n *html.Node) bool {
	if n == nil || n.Type != html.ElementNode {
		return false
	}
	return s.sel.Match(n)
}

// QueryAll returns every element in the subtrees of l that matches s, in
// document order.
func (s *Selector) QueryAll(l NodeList) NodeList {
	var out NodeList
	for _, n := range l {
		for _, m := range s.sel.MatchAll(n) {
			if m.Type == html.ElementNode {
				out = append(out, m)
			}
		}
	}
	return out
}

// QueryAll compiles selector and returns all matches in l.
func (l NodeList) QueryAll(selector string) (NodeList, error) {
	s, err := Compile(selector)
	if err != nil {
		return nil, err
	}
	return s.QueryAll(l), nil
}

// Query returns the first match in l, or nil when nothing matches.
func (l NodeList) Query(selector string) (*html.Node, error) {
	matches, err := l.QueryAll(selector)
	if err != nil || len(matches) == 0 {
		return nil, err
	}
	return matches[0], nil
}
