package style

import (
	"vinec/internal/core/ports"
	"vinec/internal/engine/parser"
	"vinec/internal/engine/rewrite"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

var compoundCombinators = map[string]bool{
	"descendant_selector":       true,
	"child_selector":            true,
	"sibling_selector":          true,
	"adjacent_sibling_selector": true,
}

// scope appends attr to the last compound selector of every rule. Keyframe
// blocks are left alone.
func scope(loader *parser.GrammarLoader, css, attr string) (string, []ports.CompileError, error) {
	src := []byte(css)
	tree, err := loader.Parse(parser.LangCSS, src)
	if err != nil {
		return "", nil, err
	}
	defer tree.Close()

	var errs []ports.CompileError
	buf := rewrite.NewBuffer(css)
	var editErr error
	parser.Visit(tree.RootNode(), func(n *sitter.Node) bool {
		if editErr != nil {
			return false
		}
		switch n.Kind() {
		case "ERROR":
			span := parser.SpanOf(n)
			errs = append(errs, ports.CompileError{Message: "invalid css", Offset: span.Start, Length: span.Len()})
			return false
		case "keyframes_statement":
			return false
		case "rule_set":
			for _, sel := range parser.NamedChildren(parser.ChildOfKind(n, "selectors")) {
				if sel.Kind() == "comment" {
					continue
				}
				if editErr = buf.AppendLeft(insertionPoint(sel), attr); editErr != nil {
					return false
				}
			}
			return false
		}
		return true
	})
	if editErr != nil {
		return "", errs, editErr
	}
	return buf.String(), errs, nil
}

// insertionPoint finds where the scope attribute goes in one selector: the
// end of its last compound, before any pseudo-element.
func insertionPoint(sel *sitter.Node) int {
	n := sel
	for compoundCombinators[n.Kind()] && n.NamedChildCount() > 0 {
		n = n.NamedChild(n.NamedChildCount() - 1)
	}
	if n.Kind() == "pseudo_element_selector" {
		if sep := parser.ChildOfKind(n, "::"); sep != nil {
			return int(sep.StartByte())
		}
	}
	return int(n.EndByte())
}
