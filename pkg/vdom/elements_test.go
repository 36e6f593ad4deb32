package vdom

import "testing"

func TestCreateElement(t *testing.T) {
	t.Run("basic element", func(t *testing.T) {
		node := Div()
		if node.Kind != KindElement {
			t.Errorf("Kind = %v, want KindElement", node.Kind)
		}
		if node.Tag != "div" {
			t.Errorf("Tag = %v, want div", node.Tag)
		}
	})

	t.Run("with multiple attributes", func(t *testing.T) {
		node := Div(Class("card"), ID("main"))
		if node.Props["class"] != "card" {
			t.Errorf("class = %v, want card", node.Props["class"])
		}
		if node.Props["id"] != "main" {
			t.Errorf("id = %v, want main", node.Props["id"])
		}
	})

	t.Run("with string shorthand", func(t *testing.T) {
		node := Div("Hello")
		if len(node.Children) != 1 {
			t.Fatalf("Children len = %v, want 1", len(node.Children))
		}
		if node.Children[0].Kind != KindText || node.Children[0].Text != "Hello" {
			t.Errorf("Child = %+v, want text Hello", node.Children[0])
		}
	})

	t.Run("with nil and empty attrs ignored", func(t *testing.T) {
		node := Div(nil, ClassIf(false, "x"), Class("test"), nil)
		if node.Props["class"] != "test" {
			t.Errorf("class = %v, want test", node.Props["class"])
		}
		if len(node.Children) != 0 {
			t.Errorf("Children len = %v, want 0", len(node.Children))
		}
	})

	t.Run("with event handler", func(t *testing.T) {
		node := Button(OnClick(func() {}))
		if node.Props["onclick"] == nil {
			t.Error("onclick handler not set")
		}
		if !IsEventProp("onclick", node.Props["onclick"]) {
			t.Error("onclick should hold an event handler")
		}
	})

	t.Run("key attribute lifted", func(t *testing.T) {
		node := Li(Key(7))
		if node.Key != "7" {
			t.Errorf("Key = %q, want 7", node.Key)
		}
	})

	t.Run("component child", func(t *testing.T) {
		comp := Func(func() *VNode { return nil })
		node := Div(comp)
		if len(node.Children) != 1 || node.Children[0].Kind != KindComponent {
			t.Fatalf("Children = %+v, want one component node", node.Children)
		}
	})
}

func TestFragmentFlattensArgs(t *testing.T) {
	node := Fragment("a", nil, []*VNode{Text("b"), nil}, Span())
	if len(node.Children) != 3 {
		t.Fatalf("Children len = %d, want 3", len(node.Children))
	}
}

func TestIsVoidElement(t *testing.T) {
	for tag, want := range map[string]bool{"br": true, "img": true, "input": true, "div": false, "td": false} {
		if got := IsVoidElement(tag); got != want {
			t.Errorf("IsVoidElement(%q) = %v, want %v", tag, got, want)
		}
	}
}
