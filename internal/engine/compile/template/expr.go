package template

import (
	"fmt"
	"regexp"
	"strings"

	"vinec/internal/engine/parser"
	"vinec/internal/engine/rewrite"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

const ctxPrefix = "_ctx."

var globals = map[string]bool{
	"Infinity": true, "undefined": true, "NaN": true, "isFinite": true, "isNaN": true,
	"parseFloat": true, "parseInt": true, "decodeURI": true, "decodeURIComponent": true,
	"encodeURI": true, "encodeURIComponent": true, "Math": true, "Number": true, "Date": true,
	"Array": true, "Object": true, "Boolean": true, "String": true, "RegExp": true, "Map": true,
	"Set": true, "JSON": true, "Intl": true, "BigInt": true, "Symbol": true, "console": true,
	"Error": true, "window": true, "document": true, "globalThis": true, "arguments": true,
	"require": true,
}

var (
	simplePath = regexp.MustCompile(`^[A-Za-z_$][\w$]*(?:\??\.[A-Za-z_$][\w$]*|\[[^\]]+\])*$`)
	identifier = regexp.MustCompile(`[A-Za-z_$][\w$]*`)
)

// scope is the set of template-bound names (v-for aliases, slot props).
type scope map[string]bool

func (s scope) with(names ...string) scope {
	next := make(scope, len(s)+len(names))
	for k := range s {
		next[k] = true
	}
	for _, n := range names {
		next[n] = true
	}
	return next
}

// patternNames returns the identifiers introduced by a binding pattern such
// as `(item, index)` or `{ id, title }`.
func patternNames(pattern string) []string {
	var out []string
	for _, part := range splitTopLevel(strings.Trim(strings.TrimSpace(pattern), "()"), ',') {
		part = strings.TrimSpace(part)
		if i := strings.IndexByte(part, '='); i >= 0 && !strings.HasPrefix(part, "{") {
			part = part[:i]
		}
		if strings.HasPrefix(part, "{") || strings.HasPrefix(part, "[") {
			inner := strings.Trim(part, "{}[] ")
			for _, field := range splitTopLevel(inner, ',') {
				if i := strings.IndexByte(field, ':'); i >= 0 {
					field = field[i+1:]
				}
				if i := strings.IndexByte(field, '='); i >= 0 {
					field = field[:i]
				}
				out = append(out, identifier.FindAllString(field, -1)...)
			}
			continue
		}
		out = append(out, identifier.FindAllString(part, 1)...)
	}
	return out
}

func splitTopLevel(s string, sep byte) []string {
	var out []string
	depth, last := 0, 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		case sep:
			if depth == 0 {
				out = append(out, s[last:i])
				last = i + 1
			}
		}
	}
	return append(out, s[last:])
}

// prefixer rewrites free identifiers of template expressions to read from
// the render context.
type prefixer struct {
	loader *parser.GrammarLoader
}

// expression prefixes a single JavaScript expression.
func (p *prefixer) expression(expr string, locals scope) (string, error) {
	out, err := p.rewrite("("+expr+"\n)", locals)
	if err != nil {
		return "", err
	}
	return strings.TrimSuffix(strings.TrimPrefix(out, "("), "\n)"), nil
}

// statements prefixes a statement list, used for inline event handlers.
func (p *prefixer) statements(code string, locals scope) (string, error) {
	return p.rewrite(code, locals)
}

func (p *prefixer) rewrite(code string, locals scope) (string, error) {
	src := []byte(code)
	tree, err := p.loader.Parse(parser.LangJavaScript, src)
	if err != nil {
		return "", err
	}
	defer tree.Close()
	root := tree.RootNode()
	if root.HasError() {
		return "", fmt.Errorf("invalid expression %q", strings.TrimSpace(code))
	}

	params := make(map[string]bool)
	parser.Visit(root, func(n *sitter.Node) bool {
		switch n.Kind() {
		case "arrow_function", "function_expression", "function":
			if param := n.ChildByFieldName("parameter"); param != nil {
				params[parser.Text(param, src)] = true
			}
			parser.Visit(n.ChildByFieldName("parameters"), func(m *sitter.Node) bool {
				if m.Kind() == "identifier" || m.Kind() == "shorthand_property_identifier_pattern" {
					params[parser.Text(m, src)] = true
				}
				return true
			})
		}
		return true
	})

	bound := func(name string) bool {
		return locals[name] || params[name] || globals[name]
	}

	buf := rewrite.NewBuffer(code)
	var editErr error
	parser.Visit(root, func(n *sitter.Node) bool {
		if editErr != nil {
			return false
		}
		switch n.Kind() {
		case "identifier":
			name := parser.Text(n, src)
			if bound(name) {
				return false
			}
			editErr = buf.AppendRight(int(n.StartByte()), ctxPrefix)
			return false
		case "shorthand_property_identifier":
			name := parser.Text(n, src)
			if bound(name) {
				return false
			}
			editErr = buf.Overwrite(int(n.StartByte()), int(n.EndByte()), name+": "+ctxPrefix+name)
			return false
		case "formal_parameters":
			return false
		}
		return true
	})
	if editErr != nil {
		return "", editErr
	}
	return buf.String(), nil
}
