package template

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"vinec/internal/core/errors"
	"vinec/internal/core/ports"
)

// HelperPrefix is prepended to every runtime helper the render code calls.
// The rewriter imports each helper under this alias.
const HelperPrefix = "__vine_"

var (
	forPattern     = regexp.MustCompile(`^\s*([\s\S]*?)\s+(?:in|of)\s+([\s\S]*?)\s*$`)
	functionExpr   = regexp.MustCompile(`^\s*(?:async\s+)?(?:\([^)]*\)|[A-Za-z_$][\w$]*)\s*=>|^\s*(?:async\s+)?function\b`)
	plainKey       = regexp.MustCompile(`^[A-Za-z_$][\w$]*$`)
	keyModifierMap = map[string]string{
		"enter": "Enter", "esc": "Escape", "tab": "Tab", "space": " ", "delete": "Delete",
		"up": "ArrowUp", "down": "ArrowDown", "left": "ArrowLeft", "right": "ArrowRight",
	}
)

type tagKind int

const (
	tagNative tagKind = iota
	tagLocalComponent
	tagResolvedComponent
	tagDynamicComponent
)

type generator struct {
	opts       ports.TemplateOptions
	prefix     *prefixer
	components map[string]bool
	helpers    map[string]bool
	errors     []ports.CompileError
}

func newGenerator(opts ports.TemplateOptions, prefix *prefixer) *generator {
	g := &generator{
		opts:       opts,
		prefix:     prefix,
		components: make(map[string]bool, len(opts.Components)),
		helpers:    make(map[string]bool),
	}
	for _, name := range opts.Components {
		g.components[name] = true
	}
	return g
}

func (g *generator) helper(name string) string {
	g.helpers[name] = true
	return HelperPrefix + name
}

func (g *generator) usedHelpers() []string {
	out := make([]string, 0, len(g.helpers))
	for name := range g.helpers {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (g *generator) fail(span errors.Span, format string, args ...any) {
	g.errors = append(g.errors, ports.CompileError{
		Message: fmt.Sprintf(format, args...),
		Offset:  span.Start,
		Length:  span.Len(),
	})
}

func (g *generator) expr(expr string, span errors.Span, locals scope) string {
	out, err := g.prefix.expression(expr, locals)
	if err != nil {
		g.fail(span, "%v", err)
		return "undefined"
	}
	return out
}

// root generates the render expression of a whole template.
func (g *generator) root(nodes []Node) string {
	kids := g.children(nodes, scope{})
	switch len(kids) {
	case 0:
		return "null"
	case 1:
		return kids[0]
	}
	return "[" + strings.Join(kids, ", ") + "]"
}

func (g *generator) children(nodes []Node, locals scope) []string {
	var out []string
	for i := 0; i < len(nodes); i++ {
		switch n := nodes[i].(type) {
		case *Comment:
			continue
		case *Text, *Interpolation:
			var parts []string
			j := i
		run:
			for ; j < len(nodes); j++ {
				switch t := nodes[j].(type) {
				case *Text:
					parts = append(parts, jsString(t.Value))
				case *Interpolation:
					parts = append(parts, g.helper("toDisplayString")+"("+g.expr(t.Expr, t.span, locals)+")")
				default:
					break run
				}
			}
			out = append(out, strings.Join(parts, " + "))
			i = j - 1
		case *Element:
			if n.HasDirective("if") {
				chain, last := g.chain(nodes, i)
				out = append(out, g.conditional(chain, locals))
				i = last
				continue
			}
			if d := n.Directive("else-if"); d != nil {
				g.fail(d.Span, "v-else-if has no adjacent v-if")
				continue
			}
			if d := n.Directive("else"); d != nil {
				g.fail(d.Span, "v-else has no adjacent v-if")
				continue
			}
			out = append(out, g.element(n, locals))
		}
	}
	return out
}

// chain collects the v-if element at nodes[i] and its v-else-if / v-else
// siblings, skipping blank text and comments between them.
func (g *generator) chain(nodes []Node, i int) ([]*Element, int) {
	chain := []*Element{nodes[i].(*Element)}
	last := i
	for j := i + 1; j < len(nodes); j++ {
		switch n := nodes[j].(type) {
		case *Comment:
			continue
		case *Text:
			if strings.TrimSpace(n.Value) == "" {
				continue
			}
			return chain, last
		case *Element:
			if n.HasDirective("else-if") {
				chain = append(chain, n)
				last = j
				continue
			}
			if n.HasDirective("else") {
				return append(chain, n), j
			}
			return chain, last
		default:
			return chain, last
		}
	}
	return chain, last
}

func (g *generator) conditional(chain []*Element, locals scope) string {
	var b strings.Builder
	b.WriteString("(")
	hasElse := false
	for _, el := range chain {
		d := el.Directive("if")
		if d == nil {
			d = el.Directive("else-if")
		}
		if d == nil {
			b.WriteString(g.element(el, locals))
			hasElse = true
			break
		}
		fmt.Fprintf(&b, "(%s) ? %s : ", g.expr(d.Expr, d.ExprSpan, locals), g.element(el, locals))
	}
	if !hasElse {
		b.WriteString("null")
	}
	b.WriteString(")")
	return b.String()
}

func (g *generator) element(el *Element, locals scope) string {
	if d := el.Directive("for"); d != nil {
		return g.forLoop(el, d, locals)
	}
	return g.elementBody(el, locals)
}

func (g *generator) forLoop(el *Element, d *Directive, locals scope) string {
	m := forPattern.FindStringSubmatch(d.Expr)
	if m == nil {
		g.fail(d.Span, "invalid v-for expression %q", d.Expr)
		return "null"
	}
	alias, source := strings.TrimSpace(m[1]), m[2]
	if !strings.HasPrefix(alias, "(") {
		alias = "(" + alias + ")"
	}
	list := g.expr(source, d.ExprSpan, locals)
	inner := g.elementBody(el, locals.with(patternNames(alias)...))
	return fmt.Sprintf("%s(%s, %s => %s)", g.helper("renderList"), list, alias, inner)
}

func (g *generator) elementBody(el *Element, locals scope) string {
	switch el.Tag {
	case "template":
		return "[" + strings.Join(g.children(el.Children, locals), ", ") + "]"
	case "slot":
		return g.slotOutlet(el, locals)
	}

	kind := g.classify(el)
	if kind == tagNative && g.opts.Mode == ports.ModeProduction && g.isStatic(el) && hasElementChild(el) {
		if code, ok := g.staticVNode(el); ok {
			return code
		}
	}

	tag := g.tagExpr(el, kind, locals)
	props := g.props(el, kind, locals)

	var children string
	if kind == tagNative {
		kids := g.children(el.Children, locals)
		switch {
		case len(kids) == 1 && textOnly(el.Children):
			children = kids[0]
		case len(kids) > 0:
			children = "[" + strings.Join(kids, ", ") + "]"
		}
	} else {
		children = g.slots(el, locals)
	}

	switch {
	case children != "":
		if props == "" {
			props = "null"
		}
		return fmt.Sprintf("%s(%s, %s, %s)", g.helper("h"), tag, props, children)
	case props != "":
		return fmt.Sprintf("%s(%s, %s)", g.helper("h"), tag, props)
	}
	return fmt.Sprintf("%s(%s)", g.helper("h"), tag)
}

func (g *generator) classify(el *Element) tagKind {
	switch {
	case el.Tag == "component":
		return tagDynamicComponent
	case g.components[el.Tag] || g.components[pascalCase(el.Tag)]:
		return tagLocalComponent
	case g.opts.IsCustomElement != nil && g.opts.IsCustomElement(el.Tag):
		return tagNative
	case isNativeTag(el.Tag):
		return tagNative
	}
	return tagResolvedComponent
}

func (g *generator) tagExpr(el *Element, kind tagKind, locals scope) string {
	switch kind {
	case tagLocalComponent:
		if g.components[el.Tag] {
			return el.Tag
		}
		return pascalCase(el.Tag)
	case tagResolvedComponent:
		return g.helper("resolveComponent") + "(" + jsString(el.Tag) + ")"
	case tagDynamicComponent:
		for _, d := range el.Directives {
			if d.Name == "bind" && d.Arg == "is" {
				return g.helper("resolveDynamicComponent") + "(" + g.expr(d.Expr, d.ExprSpan, locals) + ")"
			}
		}
		if a, ok := el.Attr("is"); ok {
			return g.helper("resolveDynamicComponent") + "(" + jsString(a.Value) + ")"
		}
		g.fail(el.span, "<component> requires an is attribute")
		return jsString("div")
	}
	return jsString(el.Tag)
}

func (g *generator) props(el *Element, kind tagKind, locals scope) string {
	var entries, classes, styles []string
	for _, a := range el.Attrs {
		switch {
		case strings.HasPrefix(a.Name, "!") && g.opts.NegativeBoolProps:
			entries = append(entries, propKey(a.Name[1:])+": false")
		case kind == tagDynamicComponent && a.Name == "is":
		case a.Name == "class":
			classes = append(classes, jsString(a.Value))
		case a.Name == "style":
			styles = append(styles, jsString(a.Value))
		default:
			entries = append(entries, propKey(a.Name)+": "+jsString(a.Value))
		}
	}

	for i := range el.Directives {
		d := &el.Directives[i]
		switch d.Name {
		case "if", "else-if", "else", "for", "slot":
		case "bind":
			if kind == tagDynamicComponent && d.Arg == "is" {
				continue
			}
			value := g.expr(d.Expr, d.ExprSpan, locals)
			switch {
			case d.Arg == "":
				entries = append(entries, "...("+value+")")
			case d.Dynamic:
				entries = append(entries, "["+g.expr(d.Arg, d.Span, locals)+"]: "+value)
			case d.Arg == "class":
				classes = append(classes, value)
			case d.Arg == "style":
				styles = append(styles, value)
			default:
				key := d.Arg
				if hasModifier(d, "camel") {
					key = camelize(key)
				}
				entries = append(entries, propKey(key)+": "+value)
			}
		case "on":
			if entry, ok := g.handler(d, locals); ok {
				entries = append(entries, entry)
			}
		case "model":
			entries = append(entries, g.model(el, d, kind, locals)...)
		case "show":
			styles = append(styles, fmt.Sprintf(`{ display: (%s) ? "" : "none" }`, g.expr(d.Expr, d.ExprSpan, locals)))
		case "html":
			entries = append(entries, "innerHTML: "+g.expr(d.Expr, d.ExprSpan, locals))
		case "text":
			entries = append(entries, "textContent: "+g.expr(d.Expr, d.ExprSpan, locals))
		default:
			g.fail(d.Span, "unsupported directive v-%s", d.Name)
		}
	}

	if len(classes) > 0 {
		entries = append(entries, "class: "+listValue(classes))
	}
	if len(styles) > 0 {
		entries = append(entries, "style: "+listValue(styles))
	}
	if kind == tagNative && g.opts.Scoped && g.opts.ScopeID != "" {
		entries = append(entries, jsString("data-v-"+g.opts.ScopeID)+`: ""`)
	}
	if len(entries) == 0 {
		return ""
	}
	return "{ " + strings.Join(entries, ", ") + " }"
}

func (g *generator) handler(d *Directive, locals scope) (string, bool) {
	if d.Dynamic {
		g.fail(d.Span, "dynamic event names are not supported")
		return "", false
	}
	key := "on" + capitalize(camelize(d.Arg))
	if strings.Contains(d.Arg, ":") {
		key = "on" + capitalize(d.Arg)
	}

	var guards strings.Builder
	for _, mod := range d.Modifiers {
		switch mod {
		case "stop":
			guards.WriteString("$event.stopPropagation(); ")
		case "prevent":
			guards.WriteString("$event.preventDefault(); ")
		case "self":
			guards.WriteString("if ($event.target !== $event.currentTarget) return; ")
		case "once", "capture", "passive":
			key += capitalize(mod)
		default:
			if name, ok := keyModifierMap[mod]; ok {
				fmt.Fprintf(&guards, "if ($event.key !== %s) return; ", jsString(name))
				continue
			}
			g.fail(d.Span, "unknown event modifier .%s", mod)
		}
	}

	expr := strings.TrimSpace(d.Expr)
	var fn string
	switch {
	case expr == "":
		fn = "() => {}"
		if guards.Len() > 0 {
			fn = "$event => { " + strings.TrimSpace(guards.String()) + " }"
		}
	case simplePath.MatchString(expr) || functionExpr.MatchString(expr):
		fn = g.expr(expr, d.ExprSpan, locals)
		if guards.Len() > 0 {
			fn = fmt.Sprintf("$event => { %s(%s)($event) }", guards.String(), fn)
		}
	default:
		body, err := g.prefix.statements(expr, locals.with("$event"))
		if err != nil {
			g.fail(d.ExprSpan, "%v", err)
			body = ""
		}
		fn = fmt.Sprintf("$event => { %s%s }", guards.String(), strings.TrimSpace(body))
	}
	return propKey(key) + ": " + fn, true
}

func (g *generator) model(el *Element, d *Directive, kind tagKind, locals scope) []string {
	value := g.expr(d.Expr, d.ExprSpan, locals)
	convert := func(v string) string {
		if hasModifier(d, "trim") {
			v += ".trim()"
		}
		if hasModifier(d, "number") {
			v = "Number(" + v + ")"
		}
		return v
	}
	assign := func(v string) string {
		return g.expr(d.Expr+" = "+convert(v), d.ExprSpan, locals.with("$event"))
	}

	if kind != tagNative {
		prop := d.Arg
		if prop == "" {
			prop = "modelValue"
		}
		return []string{
			propKey(prop) + ": " + value,
			jsString("onUpdate:"+prop) + ": $event => (" + assign("$event") + ")",
		}
	}

	inputType, _ := el.Attr("type")
	switch {
	case el.Tag == "input" && inputType.Value == "checkbox":
		return []string{"checked: " + value, "onChange: $event => (" + assign("$event.target.checked") + ")"}
	case el.Tag == "select":
		return []string{"value: " + value, "onChange: $event => (" + assign("$event.target.value") + ")"}
	}
	event := "onInput"
	if hasModifier(d, "lazy") {
		event = "onChange"
	}
	return []string{"value: " + value, event + ": $event => (" + assign("$event.target.value") + ")"}
}

// slots generates the slot object passed to a component.
func (g *generator) slots(el *Element, locals scope) string {
	if d := el.Directive("slot"); d != nil {
		params := d.Expr
		kids := g.children(el.Children, locals.with(patternNames(params)...))
		return "{ " + g.slotEntry(d, params, kids, locals) + " }"
	}

	var entries []string
	var rest []Node
	for _, child := range el.Children {
		if t, ok := child.(*Element); ok && t.Tag == "template" && t.HasDirective("slot") {
			d := t.Directive("slot")
			kids := g.children(t.Children, locals.with(patternNames(d.Expr)...))
			entries = append(entries, g.slotEntry(d, d.Expr, kids, locals))
			continue
		}
		if t, ok := child.(*Text); ok && strings.TrimSpace(t.Value) == "" {
			continue
		}
		rest = append(rest, child)
	}
	if kids := g.children(rest, locals); len(kids) > 0 {
		entries = append(entries, "default: () => ["+strings.Join(kids, ", ")+"]")
	}
	if len(entries) == 0 {
		return ""
	}
	return "{ " + strings.Join(entries, ", ") + " }"
}

func (g *generator) slotEntry(d *Directive, params string, kids []string, locals scope) string {
	name := propKey(d.Arg)
	switch {
	case d.Arg == "":
		name = "default"
	case d.Dynamic:
		name = "[" + g.expr(d.Arg, d.Span, locals) + "]"
	}
	return fmt.Sprintf("%s: (%s) => [%s]", name, params, strings.Join(kids, ", "))
}

// slotOutlet renders <slot>, falling back to its children.
func (g *generator) slotOutlet(el *Element, locals scope) string {
	name := "default"
	if a, ok := el.Attr("name"); ok {
		name = a.Value
	}
	var entries []string
	for _, a := range el.Attrs {
		if a.Name != "name" {
			entries = append(entries, propKey(a.Name)+": "+jsString(a.Value))
		}
	}
	for i := range el.Directives {
		d := &el.Directives[i]
		if d.Name == "bind" && d.Arg != "" {
			entries = append(entries, propKey(d.Arg)+": "+g.expr(d.Expr, d.ExprSpan, locals))
		}
	}
	props := "{}"
	if len(entries) > 0 {
		props = "{ " + strings.Join(entries, ", ") + " }"
	}
	fallback := "null"
	if kids := g.children(el.Children, locals); len(kids) > 0 {
		fallback = "[" + strings.Join(kids, ", ") + "]"
	}
	slot := "_ctx.$slots[" + jsString(name) + "]"
	return fmt.Sprintf("(%s ? %s(%s) : %s)", slot, slot, props, fallback)
}

// isStatic reports whether el and its subtree need no runtime data.
func (g *generator) isStatic(el *Element) bool {
	if len(el.Directives) > 0 || el.Tag == "template" || el.Tag == "slot" || g.classify(el) != tagNative {
		return false
	}
	for _, a := range el.Attrs {
		if strings.HasPrefix(a.Name, "!") {
			return false
		}
	}
	for _, child := range el.Children {
		switch c := child.(type) {
		case *Interpolation:
			return false
		case *Element:
			if !g.isStatic(c) {
				return false
			}
		}
	}
	return true
}

func hasElementChild(el *Element) bool {
	for _, child := range el.Children {
		if _, ok := child.(*Element); ok {
			return true
		}
	}
	return false
}

func textOnly(nodes []Node) bool {
	for _, n := range nodes {
		switch n.(type) {
		case *Text, *Interpolation, *Comment:
		default:
			return false
		}
	}
	return true
}

func hasModifier(d *Directive, mod string) bool {
	for _, m := range d.Modifiers {
		if m == mod {
			return true
		}
	}
	return false
}

func listValue(values []string) string {
	if len(values) == 1 {
		return values[0]
	}
	return "[" + strings.Join(values, ", ") + "]"
}

func propKey(name string) string {
	if plainKey.MatchString(name) {
		return name
	}
	return jsString(name)
}

func jsString(s string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(s)
	return strings.TrimSuffix(buf.String(), "\n")
}

func camelize(s string) string {
	parts := strings.Split(s, "-")
	for i := 1; i < len(parts); i++ {
		parts[i] = capitalize(parts[i])
	}
	return strings.Join(parts, "")
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func pascalCase(tag string) string {
	return capitalize(camelize(tag))
}
