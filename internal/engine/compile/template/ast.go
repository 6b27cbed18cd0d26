// Package template is the built-in markup compiler: it parses template
// markup into a typed node tree and generates a render expression.
package template

import (
	"fmt"
	"regexp"
	"strings"

	"vinec/internal/core/errors"
	"vinec/internal/core/ports"
	"vinec/internal/engine/parser"

	sitter "github.com/tree-sitter/go-tree-sitter"
	"golang.org/x/net/html"
)

// Node is one of *Element, *Text, *Interpolation or *Comment.
type Node interface {
	Span() errors.Span
	node()
}

type Element struct {
	Tag        string
	Attrs      []Attr
	Directives []Directive
	Children   []Node
	span       errors.Span
}

type Text struct {
	Value string
	span  errors.Span
}

type Interpolation struct {
	Expr string
	span errors.Span
}

type Comment struct {
	Value string
	span  errors.Span
}

func (e *Element) Span() errors.Span       { return e.span }
func (t *Text) Span() errors.Span          { return t.span }
func (i *Interpolation) Span() errors.Span { return i.span }
func (c *Comment) Span() errors.Span       { return c.span }

func (*Element) node()       {}
func (*Text) node()          {}
func (*Interpolation) node() {}
func (*Comment) node()       {}

// Attr is a plain attribute.
type Attr struct {
	Name     string
	Value    string
	HasValue bool
	Span     errors.Span
}

// Directive is a v-*, :, @ or # attribute.
type Directive struct {
	// Name is the directive without its prefix: if, else-if, else, for, bind,
	// on, model, show, html, text, slot, or a custom name.
	Name      string
	Arg       string
	Dynamic   bool
	Modifiers []string
	Expr      string
	// ExprSpan locates Expr in the template text.
	ExprSpan errors.Span
	Span     errors.Span
}

// Directive returns the first directive with the given name.
func (e *Element) Directive(name string) *Directive {
	for i := range e.Directives {
		if e.Directives[i].Name == name {
			return &e.Directives[i]
		}
	}
	return nil
}

// Attr returns the plain attribute with the given name.
func (e *Element) Attr(name string) (Attr, bool) {
	for _, a := range e.Attrs {
		if a.Name == name {
			return a, true
		}
	}
	return Attr{}, false
}

func (e *Element) HasDirective(name string) bool { return e.Directive(name) != nil }

var whitespaceRun = regexp.MustCompile(`\s+`)

type treeBuilder struct {
	src    []byte
	errors []ports.CompileError
}

// Parse parses template markup.
func Parse(loader *parser.GrammarLoader, source string) ([]Node, []ports.CompileError, error) {
	tree, err := loader.Parse(parser.LangHTML, []byte(source))
	if err != nil {
		return nil, nil, err
	}
	defer tree.Close()

	b := &treeBuilder{src: []byte(source)}
	root := tree.RootNode()
	nodes := b.contents(root, 0, len(source))
	return nodes, b.errors, nil
}

// contents builds the nodes between start and end, which are the inner
// bounds of parent.
func (b *treeBuilder) contents(parent *sitter.Node, start, end int) []Node {
	var out []Node
	cursor := start
	for _, child := range parser.NamedChildren(parent) {
		var node Node
		switch child.Kind() {
		case "element":
			node = b.element(child)
		case "comment":
			text := parser.Text(child, b.src)
			text = strings.TrimSuffix(strings.TrimPrefix(text, "<!--"), "-->")
			node = &Comment{Value: text, span: parser.SpanOf(child)}
		case "script_element", "style_element":
			b.fail(child, "<%s> is not allowed inside a component template", strings.TrimSuffix(child.Kind(), "_element"))
		case "erroneous_end_tag":
			b.fail(child, "unexpected closing tag %s", parser.Text(child, b.src))
		case "ERROR":
			b.fail(child, "invalid markup")
		case "doctype":
			b.fail(child, "doctype is not allowed inside a component template")
		default:
			continue
		}
		span := parser.SpanOf(child)
		if span.Start > cursor {
			out = append(out, b.text(cursor, span.Start)...)
		}
		if node != nil {
			out = append(out, node)
		}
		cursor = span.End
	}
	if end > cursor {
		out = append(out, b.text(cursor, end)...)
	}
	return out
}

func (b *treeBuilder) element(n *sitter.Node) *Element {
	el := &Element{span: parser.SpanOf(n)}
	startTag := parser.ChildOfKind(n, "start_tag")
	if startTag == nil {
		startTag = parser.ChildOfKind(n, "self_closing_tag")
	}
	if startTag == nil {
		b.fail(n, "element without a start tag")
		return el
	}
	el.Tag = parser.Text(parser.ChildOfKind(startTag, "tag_name"), b.src)

	for _, attr := range parser.NamedChildren(startTag) {
		if attr.Kind() != "attribute" {
			continue
		}
		b.attribute(el, attr)
	}

	if startTag.Kind() == "self_closing_tag" {
		return el
	}
	inner := int(startTag.EndByte())
	end := int(n.EndByte())
	if endTag := parser.ChildOfKind(n, "end_tag"); endTag != nil {
		end = int(endTag.StartByte())
	}
	el.Children = b.contents(n, inner, end)
	return el
}

func (b *treeBuilder) attribute(el *Element, n *sitter.Node) {
	name := parser.Text(parser.ChildOfKind(n, "attribute_name"), b.src)
	span := parser.SpanOf(n)

	var value string
	var valueSpan errors.Span
	hasValue := false
	if quoted := parser.ChildOfKind(n, "quoted_attribute_value"); quoted != nil {
		hasValue = true
		valueSpan = parser.SpanOf(quoted)
		valueSpan.Start++
		valueSpan.End--
		if v := parser.ChildOfKind(quoted, "attribute_value"); v != nil {
			value = parser.Text(v, b.src)
			valueSpan = parser.SpanOf(v)
		}
	} else if v := parser.ChildOfKind(n, "attribute_value"); v != nil {
		hasValue = true
		value = parser.Text(v, b.src)
		valueSpan = parser.SpanOf(v)
	}

	if dir, ok := parseDirective(name); ok {
		dir.Expr = strings.TrimSpace(value)
		dir.ExprSpan = valueSpan
		dir.Span = span
		el.Directives = append(el.Directives, dir)
		return
	}
	el.Attrs = append(el.Attrs, Attr{Name: name, Value: html.UnescapeString(value), HasValue: hasValue, Span: span})
}

// parseDirective splits a directive attribute name into name, argument and
// modifiers.
func parseDirective(attr string) (Directive, bool) {
	var d Directive
	var rest string
	switch {
	case strings.HasPrefix(attr, "v-"):
		body := attr[2:]
		if i := strings.IndexAny(body, ":."); i >= 0 {
			d.Name, rest = body[:i], body[i:]
		} else {
			d.Name = body
		}
		if strings.HasPrefix(rest, ":") {
			rest = rest[1:]
		} else if rest != "" {
			// v-model.trim: modifiers without an argument
			d.Modifiers = strings.Split(rest[1:], ".")
			return d, true
		}
	case strings.HasPrefix(attr, ":"):
		d.Name, rest = "bind", attr[1:]
	case strings.HasPrefix(attr, "@"):
		d.Name, rest = "on", attr[1:]
	case strings.HasPrefix(attr, "#"):
		d.Name, rest = "slot", attr[1:]
	default:
		return d, false
	}
	if rest == "" {
		return d, true
	}
	if strings.HasPrefix(rest, "[") {
		if i := strings.IndexByte(rest, ']'); i > 0 {
			d.Arg, d.Dynamic = rest[1:i], true
			rest = rest[i+1:]
			if strings.HasPrefix(rest, ".") {
				d.Modifiers = strings.Split(rest[1:], ".")
			}
			return d, true
		}
	}
	parts := strings.Split(rest, ".")
	d.Arg, d.Modifiers = parts[0], parts[1:]
	if len(d.Modifiers) == 0 {
		d.Modifiers = nil
	}
	return d, true
}

// text splits raw text into condensed Text and Interpolation nodes.
func (b *treeBuilder) text(start, end int) []Node {
	raw := string(b.src[start:end])
	var out []Node
	pos := 0
	for pos < len(raw) {
		open := strings.Index(raw[pos:], "{{")
		if open < 0 {
			out = appendText(out, raw[pos:], start+pos)
			break
		}
		open += pos
		closing := strings.Index(raw[open+2:], "}}")
		if closing < 0 {
			b.errors = append(b.errors, ports.CompileError{
				Message: "unterminated interpolation",
				Offset:  start + open,
				Length:  len(raw) - open,
			})
			out = appendText(out, raw[pos:], start+pos)
			break
		}
		closing += open + 2
		out = appendText(out, raw[pos:open], start+pos)
		expr := raw[open+2 : closing]
		trimmed := strings.TrimSpace(expr)
		exprStart := start + open + 2 + strings.Index(expr, trimmed)
		if trimmed == "" {
			b.errors = append(b.errors, ports.CompileError{Message: "empty interpolation", Offset: start + open, Length: closing + 2 - open})
		} else {
			out = append(out, &Interpolation{Expr: trimmed, span: errors.Span{Start: exprStart, End: exprStart + len(trimmed)}})
		}
		pos = closing + 2
	}
	return out
}

func appendText(out []Node, raw string, offset int) []Node {
	if raw == "" {
		return out
	}
	if strings.TrimSpace(raw) == "" && strings.ContainsAny(raw, "\r\n") {
		return out
	}
	value := whitespaceRun.ReplaceAllString(html.UnescapeString(raw), " ")
	return append(out, &Text{Value: value, span: errors.Span{Start: offset, End: offset + len(raw)}})
}

func (b *treeBuilder) fail(n *sitter.Node, format string, args ...any) {
	span := parser.SpanOf(n)
	b.errors = append(b.errors, ports.CompileError{
		Message: fmt.Sprintf(format, args...),
		Offset:  span.Start,
		Length:  span.Len(),
	})
}
