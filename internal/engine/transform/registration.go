package transform

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"vinec/internal/engine/extract"
	"vinec/internal/engine/parser"
)

var (
	numberLiteral = regexp.MustCompile(`^-?\d+(\.\d+)?$`)
	plainKey      = regexp.MustCompile(`^[A-Za-z_$][\w$]*$`)
)

// registration renders the render function and the component definition
// that follow the setup function.
func (r *run) registration(cc *extract.ComponentContext) string {
	render := "null"
	failed := false
	if r.art != nil {
		if art, ok := r.art.Components[cc.Name]; ok {
			render = art.Render
			failed = art.Failed
		}
	}
	var b strings.Builder
	fmt.Fprintf(&b, "\nfunction %s(_ctx, _cache) {\n  return %s\n}\n", renderName(cc.Name), render)

	define := r.helper("defineComponent")
	if cc.CustomElement {
		define = r.helper("defineCustomElement")
	}
	if cc.Export == parser.ExportNamed {
		b.WriteString("export ")
	}
	fmt.Fprintf(&b, "const %s = %s({\n", cc.Name, define)
	fmt.Fprintf(&b, "  name: %q,\n", cc.Name)
	if cc.Scoped() {
		fmt.Fprintf(&b, "  __scopeId: %q,\n", "data-v-"+cc.ScopeID)
	}
	if props := propsObject(cc); props != "" {
		fmt.Fprintf(&b, "  props: %s,\n", props)
	}
	if emits := emitsList(cc); emits != "" {
		fmt.Fprintf(&b, "  emits: %s,\n", emits)
	}
	if cc.CustomElement && r.art != nil && !failed {
		if art, ok := r.art.Components[cc.Name]; ok && len(art.Styles) > 0 {
			css := make([]string, 0, len(art.Styles))
			for _, s := range art.Styles {
				css = append(css, strconv.Quote(s.CSS))
			}
			fmt.Fprintf(&b, "  styles: [%s],\n", strings.Join(css, ", "))
		}
	}
	if cc.Options != "" {
		fmt.Fprintf(&b, "  ...(%s),\n", cc.Options)
	}
	fmt.Fprintf(&b, "  setup: %s,\n", setupName(cc.Name))
	fmt.Fprintf(&b, "  render: %s,\n", renderName(cc.Name))
	b.WriteString("});\n")
	if cc.Export == parser.ExportDefault {
		fmt.Fprintf(&b, "export default %s;\n", cc.Name)
	}
	return b.String()
}

func propsObject(cc *extract.ComponentContext) string {
	if len(cc.Props) == 0 && len(cc.Models) == 0 {
		return ""
	}
	entries := make([]string, 0, len(cc.Props)+2*len(cc.Models))
	for _, p := range cc.Props {
		var fields []string
		if t := runtimeType(p.Type); t != "" {
			fields = append(fields, "type: "+t)
		}
		if p.Required && p.Default == "" {
			fields = append(fields, "required: true")
		}
		if p.Default != "" {
			fields = append(fields, "default: "+p.Default)
		}
		if p.Validator != "" {
			fields = append(fields, "validator: "+p.Validator)
		}
		entries = append(entries, fmt.Sprintf("%s: { %s }", propKey(p.Name), strings.Join(fields, ", ")))
	}
	for _, m := range cc.Models {
		opts := "{}"
		if m.Options != "" {
			opts = m.Options
		}
		entries = append(entries, fmt.Sprintf("%s: %s", propKey(m.Name), opts))
		entries = append(entries, fmt.Sprintf("%s: {}", propKey(modifiersName(m.Name))))
	}
	return "{ " + strings.Join(entries, ", ") + " }"
}

func emitsList(cc *extract.ComponentContext) string {
	names := append([]string(nil), cc.Emits...)
	for _, m := range cc.Models {
		names = append(names, "update:"+m.Name)
	}
	if len(names) == 0 {
		return ""
	}
	quoted := make([]string, 0, len(names))
	for _, n := range names {
		quoted = append(quoted, strconv.Quote(n))
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

func modifiersName(model string) string {
	if model == "modelValue" {
		return "modelModifiers"
	}
	return model + "Modifiers"
}

func propKey(name string) string {
	if plainKey.MatchString(name) {
		return name
	}
	return strconv.Quote(name)
}

// runtimeType maps a type annotation to the runtime prop constructors.
// Types with no runtime counterpart yield "".
func runtimeType(ts string) string {
	ts = strings.TrimSpace(ts)
	if ts == "" {
		return ""
	}
	var ctors []string
	seen := make(map[string]bool)
	for _, part := range splitUnion(ts) {
		ctor := constructorOf(part)
		if ctor == "" {
			return ""
		}
		if !seen[ctor] {
			seen[ctor] = true
			ctors = append(ctors, ctor)
		}
	}
	if len(ctors) == 1 {
		return ctors[0]
	}
	return "[" + strings.Join(ctors, ", ") + "]"
}

func constructorOf(t string) string {
	t = strings.TrimSpace(t)
	switch {
	case t == "string" || strings.HasPrefix(t, "'") || strings.HasPrefix(t, `"`) || strings.HasPrefix(t, "`"):
		return "String"
	case t == "number" || numberLiteral.MatchString(t):
		return "Number"
	case t == "boolean" || t == "true" || t == "false":
		return "Boolean"
	case strings.HasSuffix(t, "[]") || strings.HasPrefix(t, "Array<") || strings.HasPrefix(t, "["):
		return "Array"
	case strings.HasPrefix(t, "(") && strings.Contains(t, "=>"), t == "Function":
		return "Function"
	case strings.HasPrefix(t, "{") || strings.HasPrefix(t, "Record<") || t == "object":
		return "Object"
	case t == "Date":
		return "Date"
	}
	return ""
}

// splitUnion splits a type on top-level `|`.
func splitUnion(t string) []string {
	var parts []string
	depth, start := 0, 0
	for i := 0; i < len(t); i++ {
		switch t[i] {
		case '(', '[', '{', '<':
			depth++
		case ')', ']', '}', '>':
			if depth > 0 && !(t[i] == '>' && i > 0 && t[i-1] == '=') {
				depth--
			}
		case '|':
			if depth == 0 {
				if p := strings.TrimSpace(t[start:i]); p != "" {
					parts = append(parts, p)
				}
				start = i + 1
			}
		}
	}
	if p := strings.TrimSpace(t[start:]); p != "" {
		parts = append(parts, p)
	}
	return parts
}
