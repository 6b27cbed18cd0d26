package parser

import (
	"vinec/internal/core/errors"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

type ExportForm int

const (
	ExportNone ExportForm = iota
	ExportNamed
	ExportDefault
)

// ImportDecl is one `import { a as b } from "x"` statement.
type ImportDecl struct {
	Source     string
	Specifiers []ImportSpecifier
	Span       errors.Span
}

type ImportSpecifier struct {
	Imported string // name exported by the source module
	Local    string // binding inside this file
	Span     errors.Span
}

// FunctionDecl is a top-level function-like declaration.
type FunctionDecl struct {
	Name string
	// Decl is the outermost top-level statement (export / lexical / function).
	Decl *sitter.Node
	// Fn is the function node itself.
	Fn       *sitter.Node
	NameNode *sitter.Node
	Params   *sitter.Node
	// Body is a statement_block, or an expression for concise arrow bodies.
	Body   *sitter.Node
	Export ExportForm
	// ExportSpan covers the `export ` / `export default ` prefix when present.
	ExportSpan errors.Span
	Span       errors.Span
	// IsComponent is set when the body returns a template literal or calls a macro.
	IsComponent bool
}

// ConciseBody reports whether Body is an arrow-function expression body.
func (f *FunctionDecl) ConciseBody() bool {
	return f.Body != nil && f.Body.Kind() != "statement_block"
}

// SourceFile is the Source Index entry for one host file. It keeps the syntax
// tree alive until Close.
type SourceFile struct {
	FileID   string
	Language string
	Source   []byte

	tree *sitter.Tree
	Root *sitter.Node

	Imports   []ImportDecl
	Functions []FunctionDecl
	// TopLevelNames lists every top-level binding declared in the file.
	TopLevelNames []string
	SyntaxErrors  []errors.Span
}

// Components returns the function declarations classified as components, in
// source order.
func (f *SourceFile) Components() []*FunctionDecl {
	out := make([]*FunctionDecl, 0, len(f.Functions))
	for i := range f.Functions {
		if f.Functions[i].IsComponent {
			out = append(out, &f.Functions[i])
		}
	}
	return out
}

func (f *SourceFile) Close() {
	if f == nil || f.tree == nil {
		return
	}
	f.tree.Close()
	f.tree = nil
	f.Root = nil
}
