package extract

import (
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"vinec/internal/core/errors"
	"vinec/internal/engine/macro"
	"vinec/internal/engine/parser"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fileID = "/project/src/App.vine.ts"

func extract(t *testing.T, src string) (*FileContext, errors.DiagnosticList, error) {
	t.Helper()
	ix := parser.NewIndexer(parser.NewGrammarLoader(), parser.IndexOptions{
		TemplateTags:  []string{"template", "vine"},
		IsMacroCallee: macro.IsMacroCallee,
	})
	file, err := ix.Index(fileID, []byte(src))
	require.NoError(t, err)
	defer file.Close()
	res := macro.Validate(file, ix, "vue-vine")
	return New(Options{}).Extract(file, res)
}

func TestExtractComponentsInSourceOrder(t *testing.T) {
	for _, n := range []int{0, 1, 3, 7} {
		t.Run(fmt.Sprintf("%d components", n), func(t *testing.T) {
			var b strings.Builder
			var want []string
			for i := 0; i < n; i++ {
				name := fmt.Sprintf("Comp%d", i)
				want = append(want, name)
				fmt.Fprintf(&b, "export function %s() {\n  const v = %d\n  return template`<p>{{ v }}</p>`\n}\n\n", name, i)
			}
			ctx, diags, err := extract(t, b.String())
			require.NoError(t, err)
			require.Empty(t, diags)
			if n == 0 {
				assert.Empty(t, ctx.Components)
				return
			}
			assert.Equal(t, want, ctx.ComponentNames())
		})
	}
}

func TestExtractComponent(t *testing.T) {
	src := `import { ref } from 'vue'
import { vineProp, vineEmits, vineStyle, vineModel } from 'vue-vine'

export default function TodoList() {
  const title = vineProp<string>()
  const dense = vineProp.withDefault(false)
  const emit = vineEmits(['add', 'remove'])
  const text = vineModel('text')
  const { a, b: renamed } = useThing()
  const items = ref([])
  vineStyle(` + "`.list { color: v-bind(color) }`" + `)
  vineStyle.import.scoped('../styles/list.scss')
  return template` + "`<ul><TodoItem v-for=\"i in items\" :item=\"i\" @remove=\"emit('remove')\"/></ul>`" + `
}

function TodoItem() {
  const item = vineProp.optional<{ id: number }>()
  return template` + "`<li>{{ item.id }} {{ formatDate() }}</li>`" + `
}

function formatDate() { return '' }
`
	ctx, diags, err := extract(t, src)
	require.NoError(t, err)
	assert.False(t, diags.HasErrors())
	require.Equal(t, []string{"TodoList", "TodoItem"}, ctx.ComponentNames())

	list := ctx.Components[0]
	assert.Equal(t, parser.ExportDefault, list.Export)
	assert.Equal(t, ScopeID(fileID, "TodoList"), list.ScopeID)
	assert.True(t, list.HasTemplate)
	assert.True(t, strings.HasPrefix(list.TemplateText, "<ul>"))
	assert.Equal(t, list.TemplateText, ctx.Text(list.TemplateSpan))
	assert.True(t, strings.HasPrefix(ctx.Text(list.TemplateExprSpan), "template`"))

	require.Len(t, list.Props, 2)
	assert.Equal(t, Prop{Name: "title", Type: "string", Required: true}, list.Props[0])
	assert.Equal(t, "dense", list.Props[1].Name)
	assert.Equal(t, "false", list.Props[1].Default)
	assert.True(t, list.Props[1].IsBoolean)
	assert.False(t, list.Props[1].Required)

	assert.Equal(t, []string{"add", "remove"}, list.Emits)
	require.Len(t, list.Models, 1)
	assert.Equal(t, Model{Name: "text", Binding: "text"}, list.Models[0])

	require.Len(t, list.Styles, 2)
	inline := list.Styles[0]
	assert.Equal(t, 0, inline.Index)
	assert.Equal(t, "css", inline.Lang)
	assert.False(t, inline.Scoped)
	assert.Equal(t, ".list { color: v-bind(color) }", inline.Source)
	assert.Equal(t, fileID+"?vine-style&scope="+list.ScopeID+"&index=0&lang.css", inline.ModuleID(fileID, list.ScopeID))

	imported := list.Styles[1]
	assert.True(t, imported.External)
	assert.True(t, imported.Scoped)
	assert.Equal(t, 1, imported.Index)
	assert.Equal(t, "scss", imported.Lang)
	assert.Equal(t, filepath.Clean("/project/styles/list.scss"), imported.ResolvedPath)
	assert.Equal(t, imported.ResolvedPath+"?vine-style&scope="+list.ScopeID+"&index=1&scoped", imported.ModuleID(fileID, list.ScopeID))
	assert.Equal(t, list.Styles, ctx.StyleDefs[list.ScopeID])

	assert.Equal(t, []string{"title", "dense", "emit", "text", "a", "renamed", "items"}, list.Bindings)
	assert.Equal(t, []string{"TodoItem"}, list.References)

	item := ctx.Components[1]
	assert.Equal(t, parser.ExportNone, item.Export)
	assert.False(t, item.Props[0].Required)
	assert.Equal(t, []string{"item", "formatDate"}, item.SetupReturn)
	assert.Empty(t, item.References)
	assert.Empty(t, item.Styles)
}

func TestExtractConciseArrow(t *testing.T) {
	ctx, _, err := extract(t, "export const Badge = () => vine`<b>hi</b>`\n")
	require.NoError(t, err)
	require.Len(t, ctx.Components, 1)
	c := ctx.Components[0]
	assert.True(t, c.ConciseBody)
	assert.Equal(t, c.BodySpan, c.TemplateExprSpan)
	assert.Equal(t, "<b>hi</b>", c.TemplateText)
	assert.Equal(t, parser.ExportNamed, c.Export)
	assert.Equal(t, "export ", ctx.Text(c.ExportSpan))
}

func TestExtractWithoutTemplate(t *testing.T) {
	ctx, _, err := extract(t, "function Wrapper() {\n  const p = vineProp()\n}\n")
	require.NoError(t, err)
	require.Len(t, ctx.Components, 1)
	assert.False(t, ctx.Components[0].HasTemplate)
	assert.Empty(t, ctx.Components[0].TemplateText)
}

func TestExtractValidatorsFolded(t *testing.T) {
	src := `function Age() {
  const age = vineProp<number>()
  vineValidators({ age: (v) => v >= 0 })
  return template` + "`<i>{{ age }}</i>`" + `
}`
	ctx, diags, err := extract(t, src)
	require.NoError(t, err)
	assert.Empty(t, diags)
	assert.Equal(t, "(v) => v >= 0", ctx.Components[0].Props[0].Validator)
}

func TestExtractSyntaxError(t *testing.T) {
	ctx, diags, err := extract(t, "function Broken() {\n  return template`<div/>`\n")
	require.Error(t, err)
	assert.Nil(t, ctx)
	assert.True(t, errors.IsCode(err, errors.CodeExtraction))
	require.NotEmpty(t, diags)
	assert.Equal(t, errors.CodeSyntax, diags[0].Code)
}

func TestScopeIDStable(t *testing.T) {
	a := ScopeID("src/a.vine.ts", "Counter")
	assert.Len(t, a, 8)
	assert.Equal(t, a, ScopeID("src/a.vine.ts", "Counter"))
	assert.NotEqual(t, a, ScopeID("src/a.vine.ts", "Counter2"))
	assert.NotEqual(t, a, ScopeID("src/b.vine.ts", "Counter"))
}

func TestKebabCase(t *testing.T) {
	assert.Equal(t, "todo-item", KebabCase("TodoItem"))
	assert.Equal(t, "x", KebabCase("X"))
	assert.True(t, mentionsTag(`<div><todo-item/></div>`, "TodoItem"))
	assert.False(t, mentionsTag(`<TodoItems/>`, "TodoItem"))
}

func TestResolveStylePath(t *testing.T) {
	assert.Equal(t, filepath.Clean("/p/src/a.css"), ResolveStylePath("", "/p/src/App.vine.ts", "./a.css"))
	assert.Equal(t, filepath.Clean("/root/src/styles/a.css"), ResolveStylePath("/root", "src/App.vine.ts", "styles/a.css"))
	assert.Equal(t, filepath.Clean("/abs/a.css"), ResolveStylePath("/root", "src/App.vine.ts", "/abs/a.css"))
}
