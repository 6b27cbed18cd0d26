// Package extract turns validated component functions into the per-file
// analysis records the rewriter and the update planner work from.
package extract

import (
	"fmt"
	"strings"

	"vinec/internal/core/errors"
	"vinec/internal/engine/macro"
	"vinec/internal/engine/parser"
)

// StyleFragment is one style literal or style import of a component.
type StyleFragment struct {
	// Source is the literal text. Empty for imports until the compile adapter
	// loads the file.
	Source string
	Lang   string
	Scoped bool
	// External marks vineStyle.import fragments.
	External     bool
	ResolvedPath string
	// Index is the position within the component's style list.
	Index int
	// Span covers the literal text (or the quoted import path).
	Span     errors.Span
	CallSpan errors.Span
}

// ModuleID returns the virtual style module the rewritten code imports.
func (f StyleFragment) ModuleID(fileID, scopeID string) string {
	var b strings.Builder
	if f.External {
		b.WriteString(f.ResolvedPath)
	} else {
		b.WriteString(fileID)
	}
	fmt.Fprintf(&b, "?vine-style&scope=%s&index=%d", scopeID, f.Index)
	if f.Scoped {
		b.WriteString("&scoped")
	}
	if !f.External {
		b.WriteString("&lang.")
		b.WriteString(f.Lang)
	}
	return b.String()
}

type Prop struct {
	Name     string
	Type     string
	Required bool
	// Default and Validator hold expression source text.
	Default   string
	Validator string
	IsBoolean bool
}

type Model struct {
	// Name is the model prop name ("modelValue" unless given).
	Name    string
	Binding string
	Options string
}

// MacroSite is the node-free record of one macro call.
type MacroSite struct {
	Kind     macro.Kind
	Path     string
	Span     errors.Span
	StmtSpan errors.Span
	// ExprStatement is set when the call is the whole statement.
	ExprStatement bool
	Binding       string
	BindingSpan   errors.Span
	Args          []string
	TypeArgs      string
	Scoped        bool
}

// ComponentContext is the analyzed state of one component function. It holds
// spans into FileContext.Source and no syntax tree references.
type ComponentContext struct {
	Name    string
	ScopeID string
	Export  parser.ExportForm

	// FnSpan covers the whole top-level declaration.
	FnSpan      errors.Span
	NameSpan    errors.Span
	ParamsSpan  errors.Span
	BodySpan    errors.Span
	ExportSpan  errors.Span
	ConciseBody bool
	// ParamsParenthesized is false for `x => ...` arrow parameters.
	ParamsParenthesized bool

	HasTemplate bool
	// TemplateText is the raw markup between the backticks.
	TemplateText string
	TemplateSpan errors.Span
	// TemplateExprSpan covers the tagged template expression.
	TemplateExprSpan errors.Span

	Styles          []StyleFragment
	DynamicBindings []string

	Macros []MacroSite
	// Bindings are the identifiers declared at the top level of the body.
	Bindings []string
	// SetupReturn lists the names the setup function hands to the render
	// function: Bindings plus file-level names the template mentions.
	SetupReturn []string
	// References are same-file components used in the template.
	References []string

	Props         []Prop
	Emits         []string
	Models        []Model
	Expose        string
	Options       string
	CustomElement bool
}

// StyleTexts returns the fragment texts in index order.
func (c *ComponentContext) StyleTexts() []string {
	out := make([]string, 0, len(c.Styles))
	for _, s := range c.Styles {
		if s.External {
			// Source holds the file content once the compile adapter has run.
			out = append(out, s.ResolvedPath+"\x00"+s.Source)
			continue
		}
		out = append(out, s.Source)
	}
	return out
}

// Scoped reports whether any style fragment is scoped.
func (c *ComponentContext) Scoped() bool {
	for _, s := range c.Styles {
		if s.Scoped {
			return true
		}
	}
	return false
}

// FileContext is one compile's view of a host file. It is never mutated
// after it is published to the compiler cache.
type FileContext struct {
	FileID     string
	Source     string
	Components []*ComponentContext
	// StyleDefs maps scope id to that component's ordered fragments.
	StyleDefs map[string][]StyleFragment

	HMRPatching       bool
	RenderOnly        bool
	AffectedComponent string
	// Rerender names every component a render-only update swaps.
	Rerender []string

	Seq           uint64
	Imports       []parser.ImportDecl
	TopLevelNames []string
}

func (f *FileContext) ComponentNames() []string {
	out := make([]string, 0, len(f.Components))
	for _, c := range f.Components {
		out = append(out, c.Name)
	}
	return out
}

func (f *FileContext) Component(name string) *ComponentContext {
	for _, c := range f.Components {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// WithVerdict returns a shallow copy carrying the planner's decision for the
// code generator. rerender defaults to affected alone.
func (f *FileContext) WithVerdict(patching, renderOnly bool, affected string, rerender ...string) *FileContext {
	cp := *f
	cp.HMRPatching = patching
	cp.RenderOnly = renderOnly
	cp.AffectedComponent = affected
	cp.Rerender = nil
	if renderOnly {
		cp.Rerender = append([]string(nil), rerender...)
		if len(cp.Rerender) == 0 && affected != "" {
			cp.Rerender = []string{affected}
		}
	}
	return &cp
}

// Text returns the source text of span.
func (f *FileContext) Text(span errors.Span) string {
	if span.Start < 0 || span.End > len(f.Source) || span.Start > span.End {
		return ""
	}
	return f.Source[span.Start:span.End]
}
