package macro

import (
	"strings"
	"testing"

	"vinec/internal/core/errors"
	"vinec/internal/engine/parser"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func indexSource(t *testing.T, src string) (*parser.SourceFile, *parser.Indexer) {
	t.Helper()
	ix := parser.NewIndexer(parser.NewGrammarLoader(), parser.IndexOptions{
		TemplateTags:  []string{"template", "vine"},
		IsMacroCallee: IsMacroCallee,
	})
	file, err := ix.Index("src/App.vine.ts", []byte(src))
	require.NoError(t, err)
	t.Cleanup(file.Close)
	return file, ix
}

func validate(t *testing.T, src string) *Result {
	t.Helper()
	file, ix := indexSource(t, src)
	return Validate(file, ix, "vue-vine")
}

func messages(list errors.DiagnosticList) []string {
	out := make([]string, 0, len(list))
	for _, d := range list {
		out = append(out, d.Message)
	}
	return out
}

func hasMessage(list errors.DiagnosticList, fragment string) bool {
	for _, d := range list {
		if strings.Contains(d.Message, fragment) {
			return true
		}
	}
	return false
}

func TestValidateRecognizesCalls(t *testing.T) {
	src := `import { vineProp, vineEmits, vineStyle } from 'vue-vine'

export function Counter() {
  const title = vineProp<string>()
  const step = vineProp.withDefault(1)
  const emit = vineEmits<{ change: [number] }>()
  vineStyle.scoped(scss` + "`" + `.a { color: red }` + "`" + `)
  const bump = () => emit('change', step.value)
  return template` + "`" + `<button @click="bump">{{ title }}</button>` + "`" + `
}
`
	res := validate(t, src)
	require.Empty(t, res.Diagnostics, "unexpected diagnostics: %v", messages(res.Diagnostics))
	require.Len(t, res.Components, 1)

	comp := res.Components[0]
	assert.Equal(t, "Counter", comp.Decl.Name)
	require.Len(t, comp.Templates, 1)

	kinds := make([]Kind, 0, len(comp.Calls))
	for _, call := range comp.Calls {
		kinds = append(kinds, call.Kind)
	}
	assert.Equal(t, []Kind{KindProp, KindPropDefault, KindEmits, KindStyle}, kinds)
	assert.Equal(t, "title", comp.Calls[0].Binding)
	assert.Equal(t, "string", comp.Calls[0].TypeArgs)
	assert.Equal(t, "1", comp.Calls[1].Args[0].Text)
	assert.True(t, comp.Calls[3].Shape.Scoped)
}

func TestValidateDiagnostics(t *testing.T) {
	tests := []struct {
		name     string
		src      string
		fragment string
		severity errors.Severity
	}{
		{
			name: "single-use twice",
			src: `function A() {
  vineExpose({ a: 1 })
  vineExpose({ b: 2 })
  return template` + "`<div/>`" + `
}`,
			fragment: "only be called once",
			severity: errors.SeverityError,
		},
		{
			name: "nested in conditional",
			src: `function A() {
  if (true) {
    vineStyle(` + "`.a{}`" + `)
  }
  return template` + "`<div/>`" + `
}`,
			fragment: "top level",
			severity: errors.SeverityError,
		},
		{
			name:     "outside component",
			src:      "const x = vineProp()\n",
			fragment: "inside a component",
			severity: errors.SeverityError,
		},
		{
			name: "prop not assigned",
			src: `function A() {
  vineProp()
  return template` + "`<div/>`" + `
}`,
			fragment: "must be assigned",
			severity: errors.SeverityError,
		},
		{
			name: "prop assigned with let",
			src: `function A() {
  let a = vineProp()
  return template` + "`<div/>`" + `
}`,
			fragment: "with const",
			severity: errors.SeverityError,
		},
		{
			name: "typed emits unassigned",
			src: `function A() {
  vineEmits<{ a: [] }>()
  return template` + "`<div/>`" + `
}`,
			fragment: "must be assigned to a variable",
			severity: errors.SeverityError,
		},
		{
			name: "emit never used",
			src: `function A() {
  const emit = vineEmits<{ a: [] }>()
  return template` + "`<div/>`" + `
}`,
			fragment: "never used",
			severity: errors.SeverityWarning,
		},
		{
			name: "style interpolation",
			src: `function A() {
  vineStyle(` + "`.a { color: ${c} }`" + `)
  return template` + "`<div/>`" + `
}`,
			fragment: "${}",
			severity: errors.SeverityError,
		},
		{
			name: "arity",
			src: `function A() {
  vineCustomElement(1)
  return template` + "`<div/>`" + `
}`,
			fragment: "expects no arguments",
			severity: errors.SeverityError,
		},
		{
			name: "unknown validator key",
			src: `function A() {
  const a = vineProp()
  vineValidators({ b: (v) => true })
  return template` + "`<div/>`" + `
}`,
			fragment: `unknown prop "b"`,
			severity: errors.SeverityError,
		},
		{
			name: "two templates",
			src: `function A() {
  const x = template` + "`<i/>`" + `
  return template` + "`<div/>`" + `
}`,
			fragment: "more than one template",
			severity: errors.SeverityError,
		},
		{
			name:     "unresolved import",
			src:      "import { vineNope } from 'vue-vine'\n",
			fragment: "not a known macro",
			severity: errors.SeverityError,
		},
		{
			name:     "unused import",
			src:      "import { vineSlots } from 'vue-vine'\nfunction A() { return template`<div/>` }\n",
			fragment: "never used",
			severity: errors.SeverityWarning,
		},
		{
			name: "slots without type",
			src: `function A() {
  const slots = vineSlots()
  return template` + "`<div/>`" + `
}`,
			fragment: "requires a type argument",
			severity: errors.SeverityError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := validate(t, tt.src)
			var found bool
			for _, d := range res.Diagnostics {
				if strings.Contains(d.Message, tt.fragment) {
					found = true
					assert.Equal(t, tt.severity, d.Severity, d.Message)
					assert.Equal(t, "src/App.vine.ts", d.FileID)
					assert.Greater(t, d.Line, 0)
				}
			}
			if !found {
				t.Fatalf("expected diagnostic containing %q, got %v", tt.fragment, messages(res.Diagnostics))
			}
		})
	}
}

func TestValidateAliasedImport(t *testing.T) {
	src := `import { vineProp as prop, vineStyle as css } from 'vue-vine'

const Card = () => {
  const label = prop.optional<string>()
  css.scoped(` + "`.card { padding: 0 }`" + `)
  return vine` + "`<div class=\"card\">{{ label }}</div>`" + `
}
`
	res := validate(t, src)
	require.Empty(t, res.Diagnostics, "unexpected diagnostics: %v", messages(res.Diagnostics))
	require.Len(t, res.Components, 1)
	calls := res.Components[0].Calls
	require.Len(t, calls, 2)
	assert.Equal(t, KindProp, calls[0].Kind)
	assert.True(t, calls[0].Shape.Optional)
	assert.Equal(t, "prop.optional", calls[0].Path)
	assert.Equal(t, KindStyle, calls[1].Kind)
	assert.Equal(t, "vineStyle", res.Table.Root("css.scoped"))
}

func TestValidateKeepsGoingAfterErrors(t *testing.T) {
	src := `function Broken() {
  if (x) { vineProp() }
  return template` + "`<div/>`" + `
}

function Fine() {
  const a = vineProp()
  return template` + "`<p>{{ a }}</p>`" + `
}
`
	res := validate(t, src)
	require.Len(t, res.Components, 2)
	assert.True(t, res.Diagnostics.HasErrors())
	assert.Empty(t, res.Components[0].Calls)
	require.Len(t, res.Components[1].Calls, 1)
	assert.False(t, hasMessage(res.Diagnostics, "Fine"))
}

func TestTableResolve(t *testing.T) {
	table := NewTable(map[string]string{"p": "vineProp", "x": "notAMacro"})

	shape, ok := table.Resolve("p.withDefault")
	require.True(t, ok)
	assert.Equal(t, KindPropDefault, shape.Kind)

	_, ok = table.Resolve("x")
	assert.False(t, ok)

	shape, ok = table.Resolve("vineStyle.import.scoped")
	require.True(t, ok)
	assert.Equal(t, KindStyleImport, shape.Kind)
	assert.True(t, shape.Scoped)
	assert.Contains(t, Roots(), "vineCustomElement")
}
