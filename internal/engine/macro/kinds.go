// Package macro recognizes and validates the component macro vocabulary.
package macro

import (
	"sort"
	"strings"
)

type Kind int

const (
	KindUnknown Kind = iota
	KindProp
	KindPropDefault
	KindEmits
	KindModel
	KindStyle
	KindStyleImport
	KindExpose
	KindOptions
	KindSlots
	KindCustomElement
	KindValidators
)

var kindNames = map[Kind]string{
	KindUnknown:       "unknown",
	KindProp:          "prop",
	KindPropDefault:   "prop-default",
	KindEmits:         "emits",
	KindModel:         "model",
	KindStyle:         "style",
	KindStyleImport:   "style-import",
	KindExpose:        "expose",
	KindOptions:       "options",
	KindSlots:         "slots",
	KindCustomElement: "custom-element",
	KindValidators:    "validators",
}

func (k Kind) String() string { return kindNames[k] }

// Shape describes the rules of one macro callee path.
type Shape struct {
	Path    string
	Kind    Kind
	MinArgs int
	MaxArgs int
	// Single macros may appear at most once per component (per Kind).
	Single bool
	// MustAssign macros must initialize a `const` binding.
	MustAssign bool
	// Optional marks props that are not required.
	Optional bool
	Scoped   bool
	// NeedsTypeArg requires `<...>` type arguments.
	NeedsTypeArg bool
}

var vocabulary = []Shape{
	{Path: "vineProp", Kind: KindProp, MinArgs: 0, MaxArgs: 1, MustAssign: true},
	{Path: "vineProp.optional", Kind: KindProp, MinArgs: 0, MaxArgs: 1, MustAssign: true, Optional: true},
	{Path: "vineProp.withDefault", Kind: KindPropDefault, MinArgs: 1, MaxArgs: 2, MustAssign: true, Optional: true},
	{Path: "vineEmits", Kind: KindEmits, MinArgs: 0, MaxArgs: 1, Single: true},
	{Path: "vineModel", Kind: KindModel, MinArgs: 0, MaxArgs: 2, MustAssign: true},
	{Path: "vineStyle", Kind: KindStyle, MinArgs: 1, MaxArgs: 1},
	{Path: "vineStyle.scoped", Kind: KindStyle, MinArgs: 1, MaxArgs: 1, Scoped: true},
	{Path: "vineStyle.import", Kind: KindStyleImport, MinArgs: 1, MaxArgs: 1},
	{Path: "vineStyle.import.scoped", Kind: KindStyleImport, MinArgs: 1, MaxArgs: 1, Scoped: true},
	{Path: "vineExpose", Kind: KindExpose, MinArgs: 1, MaxArgs: 1, Single: true},
	{Path: "vineOptions", Kind: KindOptions, MinArgs: 1, MaxArgs: 1, Single: true},
	{Path: "vineSlots", Kind: KindSlots, MinArgs: 0, MaxArgs: 0, Single: true, NeedsTypeArg: true},
	{Path: "vineCustomElement", Kind: KindCustomElement, MinArgs: 0, MaxArgs: 0, Single: true},
	{Path: "vineValidators", Kind: KindValidators, MinArgs: 1, MaxArgs: 1, Single: true},
}

var (
	canonical = func() map[string]Shape {
		m := make(map[string]Shape, len(vocabulary))
		for _, shape := range vocabulary {
			m[shape.Path] = shape
		}
		return m
	}()
	roots = func() map[string]bool {
		m := make(map[string]bool)
		for _, shape := range vocabulary {
			m[rootOf(shape.Path)] = true
		}
		return m
	}()
)

// Lookup resolves a canonical callee path.
func Lookup(path string) (Shape, bool) {
	shape, ok := canonical[path]
	return shape, ok
}

// IsMacroCallee reports whether path is a canonical macro callee.
func IsMacroCallee(path string) bool {
	_, ok := canonical[path]
	return ok
}

// IsRoot reports whether name is the root identifier of some macro.
func IsRoot(name string) bool { return roots[name] }

// Roots returns the importable macro identifiers, sorted.
func Roots() []string {
	out := make([]string, 0, len(roots))
	for name := range roots {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func rootOf(path string) string {
	if i := strings.IndexByte(path, '.'); i >= 0 {
		return path[:i]
	}
	return path
}

// Table is the per-file callee lookup, with import aliases folded in.
type Table struct {
	byPath map[string]Shape
	// aliasOf maps a local import name to its canonical root.
	aliasOf map[string]string
}

// NewTable builds the lookup for one file. aliases maps local binding names
// to canonical macro roots (from `import { vineProp as p }`).
func NewTable(aliases map[string]string) *Table {
	t := &Table{byPath: make(map[string]Shape, len(vocabulary)), aliasOf: make(map[string]string)}
	for _, shape := range vocabulary {
		t.byPath[shape.Path] = shape
	}
	for local, root := range aliases {
		if local == root || !roots[root] {
			continue
		}
		t.aliasOf[local] = root
		for _, shape := range vocabulary {
			if rootOf(shape.Path) != root {
				continue
			}
			t.byPath[local+strings.TrimPrefix(shape.Path, root)] = shape
		}
	}
	return t
}

// Resolve returns the macro shape for a local callee path.
func (t *Table) Resolve(path string) (Shape, bool) {
	shape, ok := t.byPath[path]
	return shape, ok
}

// Root returns the canonical macro root a local callee path resolves to.
func (t *Table) Root(path string) string {
	root := rootOf(path)
	if canon, ok := t.aliasOf[root]; ok {
		return canon
	}
	return root
}
