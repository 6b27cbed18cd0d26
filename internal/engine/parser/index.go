package parser

import (
	"strings"
	"time"

	"vinec/internal/core/errors"
	"vinec/internal/shared/observability"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// IndexOptions tells the indexer what makes a function a component.
type IndexOptions struct {
	// TemplateTags are the tag identifiers of markup template literals.
	TemplateTags []string
	// IsMacroCallee reports whether a dotted callee path is a macro.
	IsMacroCallee func(path string) bool
}

// Indexer builds SourceFile entries from host source text.
type Indexer struct {
	loader *GrammarLoader
	opts   IndexOptions
	tags   map[string]bool
}

func NewIndexer(loader *GrammarLoader, opts IndexOptions) *Indexer {
	tags := make(map[string]bool, len(opts.TemplateTags))
	for _, tag := range opts.TemplateTags {
		tags[tag] = true
	}
	return &Indexer{loader: loader, opts: opts, tags: tags}
}

// IsTemplateTag reports whether name tags a markup template literal.
func (ix *Indexer) IsTemplateTag(name string) bool {
	return ix.tags[name]
}

// Index parses source and records its top-level imports and function
// declarations. The caller must Close the result.
func (ix *Indexer) Index(fileID string, source []byte) (*SourceFile, error) {
	lang := HostLanguage(fileID)
	if lang == "" {
		return nil, errors.AddContext(errors.New(errors.CodeNotSupported, "unsupported host file"), errors.CtxFile, fileID)
	}

	start := time.Now()
	tree, err := ix.loader.Parse(lang, source)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "parse failed")
	}
	defer func() {
		observability.StageDuration.WithLabelValues("index").Observe(time.Since(start).Seconds())
	}()

	file := &SourceFile{
		FileID:   fileID,
		Language: lang,
		Source:   source,
		tree:     tree,
		Root:     tree.RootNode(),
	}
	file.SyntaxErrors = CollectErrors(file.Root)

	for _, stmt := range NamedChildren(file.Root) {
		ix.indexStatement(file, stmt)
	}
	for i := range file.Functions {
		ix.classify(file, &file.Functions[i])
	}
	return file, nil
}

func (ix *Indexer) indexStatement(file *SourceFile, stmt *sitter.Node) {
	switch stmt.Kind() {
	case "import_statement":
		file.Imports = append(file.Imports, indexImport(stmt, file.Source))
	case "function_declaration":
		ix.addFunction(file, stmt, stmt, ExportNone, errors.Span{})
	case "lexical_declaration", "variable_declaration":
		ix.addDeclarators(file, stmt, stmt, ExportNone, errors.Span{})
	case "class_declaration":
		if name := stmt.ChildByFieldName("name"); name != nil {
			file.TopLevelNames = append(file.TopLevelNames, Text(name, file.Source))
		}
	case "export_statement":
		form := ExportNamed
		if ChildOfKind(stmt, "default") != nil {
			form = ExportDefault
		}
		decl := stmt.ChildByFieldName("declaration")
		if decl == nil {
			decl = stmt.ChildByFieldName("value")
		}
		if decl == nil {
			return
		}
		prefix := errors.Span{Start: int(stmt.StartByte()), End: int(decl.StartByte())}
		switch decl.Kind() {
		case "function_declaration", "function_expression", "function":
			ix.addFunction(file, stmt, decl, form, prefix)
		case "lexical_declaration", "variable_declaration":
			ix.addDeclarators(file, stmt, decl, form, prefix)
		case "class_declaration":
			if name := decl.ChildByFieldName("name"); name != nil {
				file.TopLevelNames = append(file.TopLevelNames, Text(name, file.Source))
			}
		}
	}
}

func (ix *Indexer) addFunction(file *SourceFile, outer, fn *sitter.Node, form ExportForm, prefix errors.Span) {
	nameNode := fn.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := Text(nameNode, file.Source)
	file.TopLevelNames = append(file.TopLevelNames, name)
	file.Functions = append(file.Functions, FunctionDecl{
		Name:       name,
		Decl:       outer,
		Fn:         fn,
		NameNode:   nameNode,
		Params:     fn.ChildByFieldName("parameters"),
		Body:       fn.ChildByFieldName("body"),
		Export:     form,
		ExportSpan: prefix,
		Span:       SpanOf(outer),
	})
}

func (ix *Indexer) addDeclarators(file *SourceFile, outer, decl *sitter.Node, form ExportForm, prefix errors.Span) {
	for _, declarator := range NamedChildren(decl) {
		if declarator.Kind() != "variable_declarator" {
			continue
		}
		nameNode := declarator.ChildByFieldName("name")
		if nameNode == nil {
			continue
		}
		if nameNode.Kind() != "identifier" {
			// Destructuring patterns still introduce top-level names.
			Visit(nameNode, func(n *sitter.Node) bool {
				if n.Kind() == "identifier" || n.Kind() == "shorthand_property_identifier_pattern" {
					file.TopLevelNames = append(file.TopLevelNames, Text(n, file.Source))
				}
				return true
			})
			continue
		}
		name := Text(nameNode, file.Source)
		file.TopLevelNames = append(file.TopLevelNames, name)

		value := Unwrap(declarator.ChildByFieldName("value"))
		if value == nil {
			continue
		}
		switch value.Kind() {
		case "arrow_function", "function_expression", "function":
		default:
			continue
		}
		params := value.ChildByFieldName("parameters")
		if params == nil {
			params = value.ChildByFieldName("parameter")
		}
		file.Functions = append(file.Functions, FunctionDecl{
			Name:       name,
			Decl:       outer,
			Fn:         value,
			NameNode:   nameNode,
			Params:     params,
			Body:       value.ChildByFieldName("body"),
			Export:     form,
			ExportSpan: prefix,
			Span:       SpanOf(outer),
		})
	}
}

// classify marks fn as a component when its own scope returns a template
// literal or calls a macro anywhere in the body.
func (ix *Indexer) classify(file *SourceFile, fn *FunctionDecl) {
	if fn.Body == nil {
		return
	}
	if fn.ConciseBody() {
		fn.IsComponent = ix.IsTemplateCall(Unwrap(fn.Body), file.Source)
		if fn.IsComponent {
			return
		}
	}
	Visit(fn.Body, func(n *sitter.Node) bool {
		if fn.IsComponent {
			return false
		}
		switch n.Kind() {
		case "return_statement":
			if ix.IsTemplateCall(Unwrap(FirstNamedChild(n)), file.Source) && SameNode(enclosingFunction(n), fn.Fn) {
				fn.IsComponent = true
				return false
			}
		case "call_expression":
			if ix.opts.IsMacroCallee != nil && ix.opts.IsMacroCallee(CalleePath(n.ChildByFieldName("function"), file.Source)) {
				fn.IsComponent = true
				return false
			}
		}
		return true
	})
}

// IsTemplateCall reports whether node is `tag\`...\`` with a template tag.
func (ix *Indexer) IsTemplateCall(node *sitter.Node, source []byte) bool {
	if node == nil || node.Kind() != "call_expression" {
		return false
	}
	fn := node.ChildByFieldName("function")
	args := node.ChildByFieldName("arguments")
	if fn == nil || args == nil || args.Kind() != "template_string" {
		return false
	}
	return fn.Kind() == "identifier" && ix.tags[Text(fn, source)]
}

// enclosingFunction returns the nearest function node above n.
func enclosingFunction(n *sitter.Node) *sitter.Node {
	for p := n.Parent(); p != nil; p = p.Parent() {
		if IsFunctionKind(p.Kind()) {
			return p
		}
	}
	return nil
}

// EnclosingFunction is exported for analysis passes that need scope checks.
func EnclosingFunction(n *sitter.Node) *sitter.Node { return enclosingFunction(n) }

func indexImport(stmt *sitter.Node, source []byte) ImportDecl {
	decl := ImportDecl{
		Source: trimQuoted(Text(stmt.ChildByFieldName("source"), source)),
		Span:   SpanOf(stmt),
	}
	Visit(stmt, func(n *sitter.Node) bool {
		if n.Kind() != "import_specifier" {
			return true
		}
		imported := Text(n.ChildByFieldName("name"), source)
		local := imported
		if alias := n.ChildByFieldName("alias"); alias != nil {
			local = Text(alias, source)
		}
		decl.Specifiers = append(decl.Specifiers, ImportSpecifier{
			Imported: imported,
			Local:    local,
			Span:     SpanOf(n),
		})
		return false
	})
	return decl
}

func trimQuoted(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 {
		switch s[0] {
		case '"', '\'', '`':
			if s[len(s)-1] == s[0] {
				return s[1 : len(s)-1]
			}
		}
	}
	return s
}

// TrimQuoted strips one level of matching JS string quotes.
func TrimQuoted(s string) string { return trimQuoted(s) }
