package template

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// staticVNode pre-renders a static subtree to an HTML string.
func (g *generator) staticVNode(el *Element) (string, bool) {
	var sb strings.Builder
	if err := html.Render(&sb, g.htmlNode(el)); err != nil {
		g.fail(el.span, "pre-render failed: %v", err)
		return "", false
	}
	return g.helper("createStaticVNode") + "(" + jsString(sb.String()) + ", 1)", true
}

func (g *generator) htmlNode(el *Element) *html.Node {
	n := &html.Node{Type: html.ElementNode, Data: el.Tag, DataAtom: atom.Lookup([]byte(el.Tag))}
	for _, a := range el.Attrs {
		n.Attr = append(n.Attr, html.Attribute{Key: a.Name, Val: a.Value})
	}
	if g.opts.Scoped && g.opts.ScopeID != "" {
		n.Attr = append(n.Attr, html.Attribute{Key: "data-v-" + g.opts.ScopeID})
	}
	for _, child := range el.Children {
		switch c := child.(type) {
		case *Text:
			n.AppendChild(&html.Node{Type: html.TextNode, Data: c.Value})
		case *Element:
			n.AppendChild(g.htmlNode(c))
		}
	}
	return n
}
