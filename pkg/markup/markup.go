// Package markup parses rendered HTML into node lists and queries them with
// CSS selectors.
package markup

import (
	"bytes"
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// NodeList is an ordered list of sibling nodes produced by Parse.
type NodeList []*html.Node

// Parser parses markup fragments. The zero value is ready to use.
type Parser struct{}

// Parse implements the harness parser contract.
func (Parser) Parse(markup string) (NodeList, error) {
	return Parse(markup)
}

// Parse parses markup as the content of a <body> element.
// The returned nodes stay attached to a shared body so sibling-position
// selectors work on top-level nodes too.
func Parse(markup string) (NodeList, error) {
	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(markup), body)
	if err != nil {
		return nil, fmt.Errorf("markup: parse: %w", err)
	}
	for _, n := range nodes {
		body.AppendChild(n)
	}
	return NodeList(nodes), nil
}

// MustParse is like Parse but panics on error. For tests.
func MustParse(markup string) NodeList {
	nodes, err := Parse(markup)
	if err != nil {
		panic(err)
	}
	return nodes
}

// Markup renders every node of the list back to HTML.
func (l NodeList) Markup() string {
	var buf bytes.Buffer
	for _, n := range l {
		_ = html.Render(&buf, n)
	}
	return buf.String()
}

// Elements returns only the element nodes of the list.
func (l NodeList) Elements() NodeList {
	var out NodeList
	for _, n := range l {
		if n.Type == html.ElementNode {
			out = append(out, n)
		}
	}
	return out
}

// Outer renders n and its subtree to HTML.
func Outer(n *html.Node) string {
	if n == nil {
		return ""
	}
	var buf bytes.Buffer
	if err := html.Render(&buf, n); err != nil {
		return ""
	}
	return buf.String()
}

// Inner renders the children of n to HTML.
func Inner(n *html.Node) string {
	if n == nil {
		return ""
	}
	var buf bytes.Buffer
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		_ = html.Render(&buf, c)
	}
	return buf.String()
}

// TextContent returns the concatenated text of n and its descendants.
func TextContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	if n != nil {
		walk(n)
	}
	return sb.String()
}

// Attr returns the value of attribute key on n.
func Attr(n *html.Node, key string) (string, bool) {
	if n == nil {
		return "", false
	}
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// HasClass reports whether n's class attribute lists class.
func HasClass(n *html.Node, class string) bool {
	v, _ := Attr(n, "class")
	for _, c := range strings.Fields(v) {
		if c == class {
			return true
		}
	}
	return false
}
