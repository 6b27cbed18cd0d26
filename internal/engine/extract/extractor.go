package extract

import (
	"regexp"
	"strings"
	"time"

	"vinec/internal/core/errors"
	"vinec/internal/engine/macro"
	"vinec/internal/engine/parser"
	"vinec/internal/shared/observability"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

var identPattern = regexp.MustCompile(`[A-Za-z_$][\w$]*`)

type Options struct {
	MacroModule string
	// BaseDir anchors style imports of files with relative ids.
	BaseDir string
}

// Extractor builds FileContexts. It keeps no state between calls.
type Extractor struct {
	opts Options
}

func New(opts Options) *Extractor {
	if opts.MacroModule == "" {
		opts.MacroModule = "vue-vine"
	}
	return &Extractor{opts: opts}
}

// Extract builds the FileContext of a validated file. Syntax errors in the
// file fail the extraction; everything else is best effort.
func (e *Extractor) Extract(file *parser.SourceFile, res *macro.Result) (*FileContext, errors.DiagnosticList, error) {
	start := time.Now()
	defer func() {
		observability.StageDuration.WithLabelValues("extract").Observe(time.Since(start).Seconds())
	}()

	var diags errors.DiagnosticList
	if len(file.SyntaxErrors) > 0 {
		src := string(file.Source)
		for _, span := range file.SyntaxErrors {
			d := errors.Diagnostic{
				Code:     errors.CodeSyntax,
				Severity: errors.SeverityError,
				Message:  "syntax error",
				FileID:   file.FileID,
				Span:     span,
			}
			d.Locate(src)
			diags = append(diags, d)
		}
		err := errors.Newf(errors.CodeExtraction, "%s: %d syntax error(s)", file.FileID, len(file.SyntaxErrors))
		return nil, diags, errors.AddContext(err, errors.CtxFile, file.FileID)
	}

	ctx := &FileContext{
		FileID:        file.FileID,
		Source:        string(file.Source),
		StyleDefs:     make(map[string][]StyleFragment),
		Imports:       file.Imports,
		TopLevelNames: file.TopLevelNames,
	}
	for _, comp := range res.Components {
		cc := e.component(file, comp)
		ctx.Components = append(ctx.Components, cc)
		if len(cc.Styles) > 0 {
			ctx.StyleDefs[cc.ScopeID] = cc.Styles
		}
	}
	e.link(ctx)
	return ctx, diags, nil
}

func (e *Extractor) component(file *parser.SourceFile, comp *macro.Component) *ComponentContext {
	decl := comp.Decl
	src := file.Source
	cc := &ComponentContext{
		Name:        decl.Name,
		ScopeID:     ScopeID(file.FileID, decl.Name),
		Export:      decl.Export,
		FnSpan:      decl.Span,
		NameSpan:    parser.SpanOf(decl.NameNode),
		ParamsSpan:  parser.SpanOf(decl.Params),
		BodySpan:    parser.SpanOf(decl.Body),
		ExportSpan:  decl.ExportSpan,
		ConciseBody: decl.ConciseBody(),
	}
	cc.ParamsParenthesized = decl.Params != nil && decl.Params.Kind() == "formal_parameters"

	if len(comp.Templates) > 0 {
		tpl := comp.Templates[0]
		lit := tpl.ChildByFieldName("arguments")
		cc.HasTemplate = true
		cc.TemplateExprSpan = parser.SpanOf(tpl)
		cc.TemplateSpan = innerSpan(lit)
		cc.TemplateText = string(src[cc.TemplateSpan.Start:cc.TemplateSpan.End])
	}

	props := make(map[string]int)
	for _, call := range comp.Calls {
		site := MacroSite{
			Kind:          call.Kind,
			Path:          call.Path,
			Span:          call.Span,
			StmtSpan:      call.StmtSpan,
			ExprStatement: call.Declarator == nil,
			Binding:       call.Binding,
			BindingSpan:   call.BindingSpan,
			TypeArgs:      call.TypeArgs,
			Scoped:        call.Shape.Scoped,
		}
		for _, arg := range call.Args {
			site.Args = append(site.Args, arg.Text)
		}
		cc.Macros = append(cc.Macros, site)

		switch call.Kind {
		case macro.KindProp, macro.KindPropDefault:
			prop := propOf(call)
			props[prop.Name] = len(cc.Props)
			cc.Props = append(cc.Props, prop)
		case macro.KindEmits:
			cc.Emits = append(cc.Emits, emitNames(call, src)...)
		case macro.KindModel:
			cc.Models = append(cc.Models, modelOf(call))
		case macro.KindStyle, macro.KindStyleImport:
			cc.Styles = append(cc.Styles, styleOf(e.opts.BaseDir, file.FileID, call, len(cc.Styles), src))
		case macro.KindExpose:
			cc.Expose = call.Args[0].Text
		case macro.KindOptions:
			cc.Options = call.Args[0].Text
		case macro.KindCustomElement:
			cc.CustomElement = true
		}
	}

	for _, call := range comp.CallsOf(macro.KindValidators) {
		for _, pair := range parser.NamedChildren(call.Args[0].Node) {
			if pair.Kind() != "pair" {
				continue
			}
			name := parser.TrimQuoted(parser.Text(pair.ChildByFieldName("key"), src))
			if i, ok := props[name]; ok && cc.Props[i].Validator == "" {
				cc.Props[i].Validator = parser.Text(pair.ChildByFieldName("value"), src)
			}
		}
	}

	cc.Bindings = bodyBindings(decl, src)
	return cc
}

// link fills the cross-component fields once every component is known.
func (e *Extractor) link(ctx *FileContext) {
	components := make(map[string]bool, len(ctx.Components))
	for _, c := range ctx.Components {
		components[c.Name] = true
	}

	fileNames := make([]string, 0, len(ctx.TopLevelNames))
	seen := make(map[string]bool)
	add := func(name string) {
		if name == "" || seen[name] || components[name] {
			return
		}
		seen[name] = true
		fileNames = append(fileNames, name)
	}
	for _, imp := range ctx.Imports {
		if imp.Source == e.opts.MacroModule {
			continue
		}
		for _, shape := range imp.Specifiers {
			add(shape.Local)
		}
	}
	for _, name := range ctx.TopLevelNames {
		add(name)
	}

	for _, c := range ctx.Components {
		used := make(map[string]bool)
		for _, id := range identPattern.FindAllString(c.TemplateText, -1) {
			used[id] = true
		}

		local := make(map[string]bool, len(c.Bindings))
		c.SetupReturn = append(c.SetupReturn, c.Bindings...)
		for _, b := range c.Bindings {
			local[b] = true
		}
		for _, name := range fileNames {
			if used[name] && !local[name] {
				c.SetupReturn = append(c.SetupReturn, name)
			}
		}

		for _, other := range ctx.Components {
			if other.Name == c.Name {
				continue
			}
			if mentionsTag(c.TemplateText, other.Name) {
				c.References = append(c.References, other.Name)
			}
		}
	}
}

func propOf(call macro.Call) Prop {
	prop := Prop{
		Name:     call.Binding,
		Type:     strings.TrimSpace(call.TypeArgs),
		Required: !call.Shape.Optional,
	}
	switch call.Kind {
	case macro.KindProp:
		if len(call.Args) > 0 {
			prop.Validator = call.Args[0].Text
		}
	case macro.KindPropDefault:
		prop.Default = call.Args[0].Text
		if len(call.Args) > 1 {
			prop.Validator = call.Args[1].Text
		}
		if prop.Type == "" && (prop.Default == "true" || prop.Default == "false") {
			prop.Type = "boolean"
		}
	}
	prop.IsBoolean = prop.Type == "boolean"
	return prop
}

func emitNames(call macro.Call, src []byte) []string {
	var names []string
	if call.TypeArgNode != nil {
		parser.Visit(call.TypeArgNode, func(n *sitter.Node) bool {
			if n.Kind() != "property_signature" {
				return true
			}
			if name := n.ChildByFieldName("name"); name != nil {
				names = append(names, parser.TrimQuoted(parser.Text(name, src)))
			}
			return false
		})
		return names
	}
	if len(call.Args) == 0 {
		return nil
	}
	for _, el := range parser.NamedChildren(call.Args[0].Node) {
		if el.Kind() == "string" {
			names = append(names, parser.TrimQuoted(parser.Text(el, src)))
		}
	}
	return names
}

func modelOf(call macro.Call) Model {
	m := Model{Name: "modelValue", Binding: call.Binding}
	for _, arg := range call.Args {
		switch arg.Node.Kind() {
		case "string":
			m.Name = parser.TrimQuoted(arg.Text)
		case "object":
			m.Options = arg.Text
		}
	}
	return m
}

func styleOf(baseDir, fileID string, call macro.Call, index int, src []byte) StyleFragment {
	frag := StyleFragment{
		Scoped:   call.Shape.Scoped,
		Index:    index,
		CallSpan: call.Span,
	}
	arg := call.Args[0]
	if call.Kind == macro.KindStyleImport {
		frag.External = true
		frag.Span = arg.Span
		frag.ResolvedPath = ResolveStylePath(baseDir, fileID, parser.TrimQuoted(arg.Text))
		frag.Lang = langOfPath(frag.ResolvedPath)
		return frag
	}

	frag.Lang = "css"
	node := parser.Unwrap(arg.Node)
	if node.Kind() == "call_expression" {
		if lang, ok := macro.StyleLang(parser.Text(node.ChildByFieldName("function"), src)); ok {
			frag.Lang = lang
		}
	}
	lit := macro.StyleLiteral(arg.Node, src)
	frag.Span = innerSpan(lit)
	frag.Source = string(src[frag.Span.Start:frag.Span.End])
	return frag
}

func langOfPath(path string) string {
	if i := strings.LastIndexByte(path, '.'); i >= 0 {
		if lang, ok := macro.StyleLang(path[i+1:]); ok {
			return lang
		}
		if path[i+1:] == "styl" {
			return "stylus"
		}
	}
	return "css"
}

// bodyBindings lists the identifiers declared directly in the component body.
func bodyBindings(decl *parser.FunctionDecl, src []byte) []string {
	if decl.Body == nil || decl.ConciseBody() {
		return nil
	}
	var out []string
	for _, stmt := range parser.NamedChildren(decl.Body) {
		switch stmt.Kind() {
		case "lexical_declaration", "variable_declaration":
			for _, d := range parser.NamedChildren(stmt) {
				if d.Kind() != "variable_declarator" {
					continue
				}
				out = append(out, patternNames(d.ChildByFieldName("name"), src)...)
			}
		case "function_declaration", "class_declaration", "generator_function_declaration":
			if name := stmt.ChildByFieldName("name"); name != nil {
				out = append(out, parser.Text(name, src))
			}
		}
	}
	return out
}

func patternNames(node *sitter.Node, src []byte) []string {
	if node == nil {
		return nil
	}
	if node.Kind() == "identifier" {
		return []string{parser.Text(node, src)}
	}
	var out []string
	parser.Visit(node, func(n *sitter.Node) bool {
		switch n.Kind() {
		case "shorthand_property_identifier_pattern":
			out = append(out, parser.Text(n, src))
		case "identifier":
			// Skip default values in `{ a = b }`.
			if p := n.Parent(); p != nil && (p.Kind() == "assignment_pattern" || p.Kind() == "object_assignment_pattern") &&
				!parser.SameNode(p.ChildByFieldName("left"), n) {
				return false
			}
			out = append(out, parser.Text(n, src))
		case "pair_pattern":
			out = append(out, patternNames(n.ChildByFieldName("value"), src)...)
			return false
		}
		return true
	})
	return out
}

func innerSpan(lit *sitter.Node) errors.Span {
	span := parser.SpanOf(lit)
	if span.Len() >= 2 {
		span.Start++
		span.End--
	}
	return span
}

// KebabCase converts a PascalCase component name to its tag form.
func KebabCase(name string) string {
	var b strings.Builder
	for i, r := range name {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('-')
			}
			b.WriteRune(r + ('a' - 'A'))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func mentionsTag(markup, component string) bool {
	for _, tag := range []string{component, KebabCase(component)} {
		idx := 0
		for {
			i := strings.Index(markup[idx:], "<"+tag)
			if i < 0 {
				break
			}
			end := idx + i + 1 + len(tag)
			if end >= len(markup) || strings.ContainsRune(" \t\r\n/>", rune(markup[end])) {
				return true
			}
			idx = end
		}
	}
	return false
}
