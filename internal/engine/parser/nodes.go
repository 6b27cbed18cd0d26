package parser

import (
	"vinec/internal/core/errors"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// Text returns the source text covered by node.
func Text(node *sitter.Node, source []byte) string {
	if node == nil {
		return ""
	}
	return string(source[node.StartByte():node.EndByte()])
}

// SpanOf returns the half-open byte span of node.
func SpanOf(node *sitter.Node) errors.Span {
	if node == nil {
		return errors.Span{}
	}
	return errors.Span{Start: int(node.StartByte()), End: int(node.EndByte())}
}

// ChildOfKind returns the first direct child of the given kind.
func ChildOfKind(node *sitter.Node, kind string) *sitter.Node {
	if node == nil {
		return nil
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child != nil && child.Kind() == kind {
			return child
		}
	}
	return nil
}

// NamedChildren returns the named children of node in order.
func NamedChildren(node *sitter.Node) []*sitter.Node {
	if node == nil {
		return nil
	}
	out := make([]*sitter.Node, 0, node.NamedChildCount())
	for i := uint(0); i < node.NamedChildCount(); i++ {
		if child := node.NamedChild(i); child != nil {
			out = append(out, child)
		}
	}
	return out
}

// FirstNamedChild returns the first named child, or nil.
func FirstNamedChild(node *sitter.Node) *sitter.Node {
	if node == nil || node.NamedChildCount() == 0 {
		return nil
	}
	return node.NamedChild(0)
}

// IsFunctionKind reports whether kind introduces a new function scope.
func IsFunctionKind(kind string) bool {
	switch kind {
	case "function_declaration", "function_expression", "function", "arrow_function",
		"generator_function_declaration", "generator_function", "method_definition":
		return true
	}
	return false
}

// CalleePath flattens an identifier / member-expression chain into a dotted
// path ("vineStyle.import"). Anything else yields "".
func CalleePath(node *sitter.Node, source []byte) string {
	if node == nil {
		return ""
	}
	switch node.Kind() {
	case "identifier":
		return Text(node, source)
	case "member_expression":
		object := CalleePath(node.ChildByFieldName("object"), source)
		property := node.ChildByFieldName("property")
		if object == "" || property == nil {
			return ""
		}
		return object + "." + Text(property, source)
	}
	return ""
}

// Unwrap strips expression wrappers that do not change meaning for analysis
// (parentheses, TS `as`/`satisfies`/non-null).
func Unwrap(node *sitter.Node) *sitter.Node {
	for node != nil {
		switch node.Kind() {
		case "parenthesized_expression", "as_expression", "satisfies_expression", "non_null_expression":
			node = FirstNamedChild(node)
		default:
			return node
		}
	}
	return nil
}

// Visit walks node in pre-order. Returning false from fn skips the children.
func Visit(node *sitter.Node, fn func(*sitter.Node) bool) {
	if node == nil {
		return
	}
	if !fn(node) {
		return
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		Visit(node.Child(i), fn)
	}
}

// CollectErrors returns the spans of ERROR and MISSING nodes below node.
func CollectErrors(node *sitter.Node) []errors.Span {
	if node == nil || !node.HasError() {
		return nil
	}
	var out []errors.Span
	Visit(node, func(n *sitter.Node) bool {
		if n.IsError() || n.IsMissing() {
			out = append(out, SpanOf(n))
			return false
		}
		return n.HasError()
	})
	return out
}

// SameNode compares two node handles by position and kind; the binding hands
// out fresh pointers for the same underlying node.
func SameNode(a, b *sitter.Node) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.StartByte() == b.StartByte() && a.EndByte() == b.EndByte() && a.Kind() == b.Kind()
}
