package render

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/vango-dev/vharness/pkg/vdom"
)

// Config configures the HTML renderer.
type Config struct {
	// Pretty enables indented output with one block element per line.
	Pretty bool

	// Indent is the string used for each indentation level in pretty mode.
	// Defaults to two spaces.
	Indent string
}

// Renderer converts component frames to HTML.
// A Renderer holds no per-call state and may be shared.
type Renderer struct {
	config Config
}

// NewRenderer creates a new Renderer with the given configuration.
func NewRenderer(config Config) *Renderer {
	if config.Indent == "" {
		config.Indent = "  "
	}
	return &Renderer{config: config}
}

// Render returns the markup of component rootID and everything nested in it.
func (r *Renderer) Render(src vdom.FrameSource, rootID int) (string, error) {
	var buf bytes.Buffer
	if err := r.RenderTo(&buf, src, rootID); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// RenderTo streams the markup of component rootID to w.
func (r *Renderer) RenderTo(w io.Writer, src vdom.FrameSource, rootID int) error {
	sw := &stickyWriter{w: w}
	if err := r.renderComponent(sw, src, rootID, 0, true); err != nil {
		return err
	}
	return sw.err
}

// renderComponent renders every top-level frame of a component.
func (r *Renderer) renderComponent(w *stickyWriter, src vdom.FrameSource, id, depth int, block bool) error {
	frames, err := src.Frames(id)
	if err != nil {
		return fmt.Errorf("render: component %d: %w", id, err)
	}
	return r.renderRange(w, src, frames, 0, len(frames), depth, block)
}

// renderRange renders the sibling frames in frames[start:end].
// block reports whether each sibling starts on its own line.
func (r *Renderer) renderRange(w *stickyWriter, src vdom.FrameSource, frames []vdom.Frame, start, end, depth int, block bool) error {
	for i := start; i < end; {
		f := frames[i]
		if f.SubtreeLength < 1 || i+f.SubtreeLength > end {
			return fmt.Errorf("render: frame %d has invalid subtree length %d", i, f.SubtreeLength)
		}

		switch f.Kind {
		case vdom.FrameElement:
			if err := r.renderElement(w, src, frames, i, depth, block); err != nil {
				return err
			}
		case vdom.FrameText:
			r.writeLine(w, escapeHTML(f.Text), depth, block)
		case vdom.FrameMarkup:
			r.writeLine(w, f.Text, depth, block)
		case vdom.FrameComponent:
			if err := r.renderComponent(w, src, f.ComponentID, depth, block); err != nil {
				return err
			}
		case vdom.FrameAttribute:
			return fmt.Errorf("render: attribute frame %d outside an element", i)
		default:
			return fmt.Errorf("render: unknown frame kind: %d", f.Kind)
		}
		i += f.SubtreeLength
	}
	return nil
}

// renderElement renders the element frame at frames[at] and its subtree.
func (r *Renderer) renderElement(w *stickyWriter, src vdom.FrameSource, frames []vdom.Frame, at, depth int, block bool) error {
	el := frames[at]
	end := at + el.SubtreeLength

	if r.config.Pretty && block {
		r.writeIndent(w, depth)
	}
	w.writeString("<")
	w.writeString(el.Tag)

	child := at + 1
	for child < end && frames[child].Kind == vdom.FrameAttribute {
		child++
	}
	r.renderAttributes(w, frames[at+1:child])

	w.writeString(">")
	if isVoidElement(el.Tag) {
		if r.config.Pretty && block {
			w.writeString("\n")
		}
		return nil
	}

	layout := r.config.Pretty && !isInlineElement(el.Tag) && hasStructuralChild(frames[child:end])
	if layout {
		w.writeString("\n")
	}
	if err := r.renderRange(w, src, frames, child, end, depth+1, layout); err != nil {
		return err
	}
	if layout {
		r.writeIndent(w, depth)
	}

	w.writeString("</")
	w.writeString(el.Tag)
	w.writeString(">")
	if r.config.Pretty && block {
		w.writeString("\n")
	}
	return nil
}

// renderAttributes writes value attributes first, then handler markers.
// Flatten has already sorted the frames by name.
func (r *Renderer) renderAttributes(w *stickyWriter, attrs []vdom.Frame) {
	for _, a := range attrs {
		if a.IsHandler() || a.AttrName == "key" || a.AttrValue == nil {
			continue
		}
		if vdom.IsEventProp(a.AttrName, a.AttrValue) {
			continue
		}

		if isBooleanAttr(a.AttrName) {
			if on, ok := a.AttrValue.(bool); ok {
				if on {
					w.writeString(" ")
					w.writeString(a.AttrName)
				}
				continue
			}
		}

		fmt.Fprintf(w, ` %s="%s"`, a.AttrName, escapeAttr(attrToString(a.AttrValue)))
	}

	for _, a := range attrs {
		if !a.IsHandler() {
			continue
		}
		event := strings.ToLower(a.AttrName[2:]) // onclick -> click
		fmt.Fprintf(w, ` data-on-%s="%d"`, event, a.HandlerID)
	}
}

// writeLine writes a leaf, on its own indented line when block is set.
func (r *Renderer) writeLine(w *stickyWriter, s string, depth int, block bool) {
	if r.config.Pretty && block {
		r.writeIndent(w, depth)
		w.writeString(s)
		w.writeString("\n")
		return
	}
	w.writeString(s)
}

func (r *Renderer) writeIndent(w *stickyWriter, depth int) {
	w.writeString(strings.Repeat(r.config.Indent, depth))
}

// hasStructuralChild reports whether any frame opens an element or a
// component, which puts the parent in block layout.
func hasStructuralChild(frames []vdom.Frame) bool {
	for _, f := range frames {
		if f.Kind == vdom.FrameElement || f.Kind == vdom.FrameComponent {
			return true
		}
	}
	return false
}

// attrToString converts an attribute value to a string.
func attrToString(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}

// stickyWriter remembers the first write error so the render loop can
// ignore errors until the end.
type stickyWriter struct {
	w   io.Writer
	err error
}

func (s *stickyWriter) Write(p []byte) (int, error) {
	if s.err != nil {
		return 0, s.err
	}
	n, err := s.w.Write(p)
	s.err = err
	return n, err
}

func (s *stickyWriter) writeString(str string) {
	_, _ = io.WriteString(s, str)
}
