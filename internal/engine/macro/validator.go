package macro

import (
	"fmt"
	"regexp"
	"sort"
	"time"

	"vinec/internal/core/errors"
	"vinec/internal/engine/parser"
	"vinec/internal/shared/observability"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// styleLangs maps style literal tag identifiers to preprocessor languages.
var styleLangs = map[string]string{
	"css":     "css",
	"postcss": "postcss",
	"scss":    "scss",
	"sass":    "sass",
	"less":    "less",
	"stylus":  "stylus",
}

// StyleLang returns the language of a style literal tag.
func StyleLang(tag string) (string, bool) {
	lang, ok := styleLangs[tag]
	return lang, ok
}

type Arg struct {
	Node *sitter.Node
	Text string
	Span errors.Span
}

// Call is one recognized macro call site.
type Call struct {
	Shape Shape
	Kind Kind
	// Path is the callee path as written (may use an import alias).
	Path string
	Node *sitter.Node
	Span errors.Span
	// Stmt is the component body statement holding the call.
	Stmt     *sitter.Node
	StmtSpan errors.Span
	// Declarator is set when the call initializes a variable.
	Declarator  *sitter.Node
	Binding     string
	BindingSpan errors.Span
	Args        []Arg
	TypeArgs    string
	TypeArgNode *sitter.Node
}

// Component holds the validated macro set of one component function.
type Component struct {
	Decl  *parser.FunctionDecl
	Calls []Call
	// Templates lists template literal calls in the component's own scope,
	// in source order. Only the first is used.
	Templates []*sitter.Node
}

// CallsOf returns the calls of one kind in source order.
func (c *Component) CallsOf(kind Kind) []Call {
	var out []Call
	for _, call := range c.Calls {
		if call.Kind == kind {
			out = append(out, call)
		}
	}
	return out
}

type Result struct {
	Components  []*Component
	Diagnostics errors.DiagnosticList
	Table       *Table
}

type Validator struct {
	file   *parser.SourceFile
	index  *parser.Indexer
	module string
	table  *Table

	importedRoots map[string]errors.Span
	usedRoots     map[string]bool
	diags         errors.DiagnosticList
}

// Validate recognizes and checks every macro call in file. It never mutates
// source and never fails; problems are reported as diagnostics.
func Validate(file *parser.SourceFile, ix *parser.Indexer, macroModule string) *Result {
	start := time.Now()
	defer func() {
		observability.StageDuration.WithLabelValues("validate").Observe(time.Since(start).Seconds())
	}()

	v := &Validator{
		file:          file,
		index:         ix,
		module:        macroModule,
		importedRoots: make(map[string]errors.Span),
		usedRoots:     make(map[string]bool),
	}
	v.table = NewTable(v.resolveImports())
	v.promoteAliasedComponents()

	res := &Result{Table: v.table}
	for _, fn := range file.Components() {
		res.Components = append(res.Components, v.validateComponent(fn))
	}
	v.checkStrayCalls(res.Components)

	for _, root := range sortedKeys(v.importedRoots) {
		if !v.usedRoots[root] {
			v.report(errors.CodeValidation, errors.SeverityWarning, v.importedRoots[root], "",
				"macro %q is imported from %q but never used", root, v.module)
		}
	}
	res.Diagnostics = v.diags
	return res
}

func (v *Validator) resolveImports() map[string]string {
	aliases := make(map[string]string)
	for _, imp := range v.file.Imports {
		if imp.Source != v.module {
			continue
		}
		for _, sp := range imp.Specifiers {
			if !IsRoot(sp.Imported) {
				v.report(errors.CodeValidation, errors.SeverityError, sp.Span, "",
					"%q is imported from %q but is not a known macro", sp.Imported, v.module)
				continue
			}
			aliases[sp.Local] = sp.Imported
			v.importedRoots[sp.Imported] = sp.Span
		}
	}
	return aliases
}

// promoteAliasedComponents marks functions that only call aliased macros as
// components; the indexer only knows canonical names.
func (v *Validator) promoteAliasedComponents() {
	for i := range v.file.Functions {
		fn := &v.file.Functions[i]
		if fn.IsComponent || fn.Body == nil {
			continue
		}
		parser.Visit(fn.Body, func(n *sitter.Node) bool {
			if fn.IsComponent {
				return false
			}
			if n.Kind() == "call_expression" {
				if _, ok := v.table.Resolve(parser.CalleePath(n.ChildByFieldName("function"), v.file.Source)); ok {
					fn.IsComponent = true
					return false
				}
			}
			return true
		})
	}
}

func (v *Validator) validateComponent(fn *parser.FunctionDecl) *Component {
	comp := &Component{Decl: fn}
	src := v.file.Source

	if fn.ConciseBody() {
		body := parser.Unwrap(fn.Body)
		if v.index.IsTemplateCall(body, src) {
			comp.Templates = append(comp.Templates, body)
		}
	}

	parser.Visit(fn.Body, func(n *sitter.Node) bool {
		if n.Kind() != "call_expression" {
			return true
		}
		if v.index.IsTemplateCall(n, src) {
			if parser.SameNode(parser.EnclosingFunction(n), fn.Fn) && !containsNode(comp.Templates, n) {
				comp.Templates = append(comp.Templates, n)
			}
			return true
		}
		path := parser.CalleePath(n.ChildByFieldName("function"), src)
		shape, ok := v.table.Resolve(path)
		if !ok {
			return true
		}
		v.usedRoots[v.table.Root(path)] = true
		if call, ok := v.recognize(fn, n, path, shape); ok {
			comp.Calls = append(comp.Calls, call)
		}
		return true
	})

	v.checkTemplates(comp)
	v.checkSingles(comp)
	v.checkEmits(comp)
	v.checkValidators(comp)
	return comp
}

// recognize checks placement, arity and argument shape of one call.
func (v *Validator) recognize(fn *parser.FunctionDecl, node *sitter.Node, path string, shape Shape) (Call, bool) {
	src := v.file.Source
	call := Call{Shape: shape, Kind: shape.Kind, Path: path, Node: node, Span: parser.SpanOf(node)}

	argsNode := node.ChildByFieldName("arguments")
	if argsNode != nil && argsNode.Kind() == "template_string" {
		v.report(errors.CodeValidation, errors.SeverityError, call.Span, fn.Name,
			"%s must be called with parentheses", path)
		return call, false
	}

	stmt, declarator, ok := v.placement(fn, node)
	if !ok {
		v.report(errors.CodeValidation, errors.SeverityError, call.Span, fn.Name,
			"%s must be called at the top level of component %s", path, fn.Name)
		return call, false
	}
	call.Stmt = stmt
	call.StmtSpan = parser.SpanOf(stmt)
	call.Declarator = declarator

	if declarator != nil {
		name := declarator.ChildByFieldName("name")
		if name != nil && name.Kind() == "identifier" {
			call.Binding = parser.Text(name, src)
			call.BindingSpan = parser.SpanOf(name)
		} else if shape.MustAssign {
			v.report(errors.CodeValidation, errors.SeverityError, parser.SpanOf(name), fn.Name,
				"%s must be assigned to a plain identifier", path)
			return call, false
		}
		if shape.MustAssign && parser.ChildOfKind(stmt, "const") == nil {
			v.report(errors.CodeValidation, errors.SeverityError, call.StmtSpan, fn.Name,
				"%s must be assigned with const", path)
		}
	} else if shape.MustAssign {
		v.report(errors.CodeValidation, errors.SeverityError, call.Span, fn.Name,
			"%s result must be assigned to a const binding", path)
		return call, false
	}

	for _, arg := range parser.NamedChildren(argsNode) {
		if arg.Kind() == "comment" {
			continue
		}
		call.Args = append(call.Args, Arg{Node: arg, Text: parser.Text(arg, src), Span: parser.SpanOf(arg)})
	}
	if n := len(call.Args); n < shape.MinArgs || n > shape.MaxArgs {
		v.report(errors.CodeValidation, errors.SeverityError, call.Span, fn.Name,
			"%s expects %s, got %d", path, arity(shape), n)
		return call, false
	}
	if typeArgs := node.ChildByFieldName("type_arguments"); typeArgs != nil {
		call.TypeArgNode = typeArgs
		text := parser.Text(typeArgs, src)
		if len(text) >= 2 {
			text = text[1 : len(text)-1]
		}
		call.TypeArgs = text
	}
	if shape.NeedsTypeArg && call.TypeArgNode == nil {
		v.report(errors.CodeValidation, errors.SeverityError, call.Span, fn.Name,
			"%s requires a type argument", path)
		return call, false
	}
	return call, v.checkArgShape(fn, &call)
}

func (v *Validator) checkArgShape(fn *parser.FunctionDecl, call *Call) bool {
	switch call.Kind {
	case KindStyle:
		lit := StyleLiteral(call.Args[0].Node, v.file.Source)
		if lit == nil {
			v.report(errors.CodeValidation, errors.SeverityError, call.Args[0].Span, fn.Name,
				"%s expects a style template literal (optionally tagged css, scss, sass, less, stylus or postcss)", call.Path)
			return false
		}
		if parser.ChildOfKind(lit, "template_substitution") != nil {
			v.report(errors.CodeValidation, errors.SeverityError, parser.SpanOf(lit), fn.Name,
				"style literals cannot contain ${} interpolation; use v-bind() instead")
			return false
		}
	case KindStyleImport:
		if call.Args[0].Node.Kind() != "string" {
			v.report(errors.CodeValidation, errors.SeverityError, call.Args[0].Span, fn.Name,
				"%s expects a string path", call.Path)
			return false
		}
	case KindOptions, KindValidators:
		if call.Args[0].Node.Kind() != "object" {
			v.report(errors.CodeValidation, errors.SeverityError, call.Args[0].Span, fn.Name,
				"%s expects an object literal", call.Path)
			return false
		}
	case KindEmits:
		if call.TypeArgNode == nil && len(call.Args) == 0 {
			v.report(errors.CodeValidation, errors.SeverityError, call.Span, fn.Name,
				"%s requires a type argument or an array of event names", call.Path)
			return false
		}
		if len(call.Args) == 1 && call.Args[0].Node.Kind() != "array" {
			v.report(errors.CodeValidation, errors.SeverityError, call.Args[0].Span, fn.Name,
				"%s expects an array of event names", call.Path)
			return false
		}
	case KindModel:
		if len(call.Args) > 0 && call.Args[0].Node.Kind() != "string" && call.Args[0].Node.Kind() != "object" {
			v.report(errors.CodeValidation, errors.SeverityError, call.Args[0].Span, fn.Name,
				"%s expects a model name string or an options object", call.Path)
			return false
		}
	}
	return true
}

// placement returns the body statement holding call when the call sits at
// the top level of fn's statement block.
func (v *Validator) placement(fn *parser.FunctionDecl, call *sitter.Node) (stmt, declarator *sitter.Node, ok bool) {
	if fn.Body == nil || fn.Body.Kind() != "statement_block" {
		return nil, nil, false
	}
	child, parent := call, call.Parent()
	for parent != nil && isWrapper(parent.Kind()) {
		child, parent = parent, parent.Parent()
	}
	if parent == nil {
		return nil, nil, false
	}
	switch parent.Kind() {
	case "expression_statement":
		stmt = parent
	case "variable_declarator":
		if !parser.SameNode(parent.ChildByFieldName("value"), child) {
			return nil, nil, false
		}
		declarator = parent
		stmt = parent.Parent()
	default:
		return nil, nil, false
	}
	if stmt == nil || !parser.SameNode(stmt.Parent(), fn.Body) {
		return nil, nil, false
	}
	return stmt, declarator, true
}

func (v *Validator) checkTemplates(comp *Component) {
	for i, tpl := range comp.Templates {
		if i > 0 {
			v.report(errors.CodeExtraction, errors.SeverityError, parser.SpanOf(tpl), comp.Decl.Name,
				"component %s has more than one template literal; only the first is used", comp.Decl.Name)
			continue
		}
		if lit := tpl.ChildByFieldName("arguments"); parser.ChildOfKind(lit, "template_substitution") != nil {
			v.report(errors.CodeValidation, errors.SeverityError, parser.SpanOf(lit), comp.Decl.Name,
				"template literals cannot contain ${} interpolation; use {{ }} instead")
		}
	}
}

func (v *Validator) checkSingles(comp *Component) {
	seen := make(map[Kind]bool)
	for _, call := range comp.Calls {
		if !call.Shape.Single {
			continue
		}
		if seen[call.Kind] {
			v.report(errors.CodeValidation, errors.SeverityError, call.Span, comp.Decl.Name,
				"%s can only be called once per component", call.Path)
			continue
		}
		seen[call.Kind] = true
	}
}

func (v *Validator) checkEmits(comp *Component) {
	for _, call := range comp.CallsOf(KindEmits) {
		if call.Binding == "" {
			if call.TypeArgNode != nil {
				v.report(errors.CodeValidation, errors.SeverityError, call.Span, comp.Decl.Name,
					"emits declared by type must be assigned to a variable")
			}
			continue
		}
		if !v.bindingUsed(comp, call) {
			v.report(errors.CodeValidation, errors.SeverityWarning, call.BindingSpan, comp.Decl.Name,
				"emit function %q is declared but never used", call.Binding)
		}
	}
}

func (v *Validator) bindingUsed(comp *Component, call Call) bool {
	used := false
	src := v.file.Source
	parser.Visit(comp.Decl.Body, func(n *sitter.Node) bool {
		if used {
			return false
		}
		if n.Kind() == "identifier" && parser.Text(n, src) == call.Binding && parser.SpanOf(n) != call.BindingSpan {
			used = true
			return false
		}
		return true
	})
	if used {
		return true
	}
	if len(comp.Templates) > 0 {
		word := regexp.MustCompile(`\b` + regexp.QuoteMeta(call.Binding) + `\b`)
		return word.MatchString(parser.Text(comp.Templates[0], src))
	}
	return false
}

func (v *Validator) checkValidators(comp *Component) {
	props := make(map[string]bool)
	for _, call := range comp.Calls {
		if call.Kind == KindProp || call.Kind == KindPropDefault {
			props[call.Binding] = true
		}
	}
	for _, call := range comp.CallsOf(KindValidators) {
		for _, pair := range parser.NamedChildren(call.Args[0].Node) {
			var key *sitter.Node
			switch pair.Kind() {
			case "pair":
				key = pair.ChildByFieldName("key")
			case "method_definition":
				key = pair.ChildByFieldName("name")
			default:
				continue
			}
			name := parser.TrimQuoted(parser.Text(key, v.file.Source))
			if !props[name] {
				v.report(errors.CodeValidation, errors.SeverityError, parser.SpanOf(key), comp.Decl.Name,
					"validator for unknown prop %q", name)
			}
		}
	}
}

// checkStrayCalls reports macro calls that are not inside a component.
func (v *Validator) checkStrayCalls(comps []*Component) {
	src := v.file.Source
	parser.Visit(v.file.Root, func(n *sitter.Node) bool {
		if n.Kind() != "call_expression" {
			return true
		}
		path := parser.CalleePath(n.ChildByFieldName("function"), src)
		if _, ok := v.table.Resolve(path); !ok {
			return true
		}
		span := parser.SpanOf(n)
		for _, comp := range comps {
			if parser.SpanOf(comp.Decl.Fn).Contains(span) {
				return true
			}
		}
		v.usedRoots[v.table.Root(path)] = true
		v.report(errors.CodeValidation, errors.SeverityError, span, "",
			"%s can only be used inside a component function", path)
		return true
	})
}

func (v *Validator) report(code errors.ErrorCode, sev errors.Severity, span errors.Span, component, format string, args ...any) {
	d := errors.Diagnostic{
		Code:      code,
		Severity:  sev,
		Message:   fmt.Sprintf(format, args...),
		FileID:    v.file.FileID,
		Span:      span,
		Component: component,
	}
	d.Locate(string(v.file.Source))
	v.diags = append(v.diags, d)
}

// StyleLiteral returns the template_string of a style macro argument, either
// bare or tagged with a style language.
func StyleLiteral(arg *sitter.Node, source []byte) *sitter.Node {
	arg = parser.Unwrap(arg)
	if arg == nil {
		return nil
	}
	switch arg.Kind() {
	case "template_string":
		return arg
	case "call_expression":
		fn := arg.ChildByFieldName("function")
		lit := arg.ChildByFieldName("arguments")
		if fn == nil || lit == nil || fn.Kind() != "identifier" || lit.Kind() != "template_string" {
			return nil
		}
		if _, ok := StyleLang(parser.Text(fn, source)); !ok {
			return nil
		}
		return lit
	}
	return nil
}

func arity(shape Shape) string {
	switch {
	case shape.MinArgs == shape.MaxArgs && shape.MinArgs == 0:
		return "no arguments"
	case shape.MinArgs == shape.MaxArgs:
		return fmt.Sprintf("%d argument(s)", shape.MinArgs)
	default:
		return fmt.Sprintf("%d to %d arguments", shape.MinArgs, shape.MaxArgs)
	}
}

func isWrapper(kind string) bool {
	switch kind {
	case "parenthesized_expression", "as_expression", "satisfies_expression", "non_null_expression":
		return true
	}
	return false
}

func containsNode(list []*sitter.Node, n *sitter.Node) bool {
	for _, item := range list {
		if parser.SameNode(item, n) {
			return true
		}
	}
	return false
}

func sortedKeys(m map[string]errors.Span) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
