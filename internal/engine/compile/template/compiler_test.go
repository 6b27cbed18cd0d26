package template

import (
	"strings"
	"testing"

	"vinec/internal/core/ports"
	"vinec/internal/engine/parser"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var loader = parser.NewGrammarLoader()

func compile(t *testing.T, src string, opts ports.TemplateOptions) ports.TemplateResult {
	t.Helper()
	res, err := NewCompiler(loader).CompileTemplate(src, opts)
	require.NoError(t, err)
	return res
}

func TestCompileTemplate(t *testing.T) {
	tests := []struct {
		name string
		src  string
		opts ports.TemplateOptions
		want string
	}{
		{
			name: "interpolation",
			src:  `<div class="box">{{ count }}</div>`,
			want: `__vine_h("div", { class: "box" }, __vine_toDisplayString(_ctx.count))`,
		},
		{
			name: "conditional chain",
			src:  `<p v-if="ok">yes</p><p v-else>no</p>`,
			want: `((_ctx.ok) ? __vine_h("p", null, "yes") : __vine_h("p", null, "no"))`,
		},
		{
			name: "list",
			src:  `<li v-for="(item, i) in items" :key="item.id">{{ i }}: {{ item.name }}</li>`,
			want: `__vine_renderList(_ctx.items, (item, i) => __vine_h("li", { key: item.id }, __vine_toDisplayString(i) + ": " + __vine_toDisplayString(item.name)))`,
		},
		{
			name: "inline handler",
			src:  `<button @click="count++">+</button>`,
			want: `__vine_h("button", { onClick: $event => { _ctx.count++ } }, "+")`,
		},
		{
			name: "handler with modifier",
			src:  `<button @click.stop="inc">+</button>`,
			want: `__vine_h("button", { onClick: $event => { $event.stopPropagation(); (_ctx.inc)($event) } }, "+")`,
		},
		{
			name: "components",
			src:  `<TodoItem :item="x" /><todo-item/><RouterLink to="/">Home</RouterLink>`,
			opts: ports.TemplateOptions{Components: []string{"TodoItem"}},
			want: `[__vine_h(TodoItem, { item: _ctx.x }), __vine_h(TodoItem), __vine_h(__vine_resolveComponent("RouterLink"), { to: "/" }, { default: () => ["Home"] })]`,
		},
		{
			name: "negative boolean prop",
			src:  `<Child !disabled/>`,
			opts: ports.TemplateOptions{NegativeBoolProps: true},
			want: `__vine_h(__vine_resolveComponent("Child"), { disabled: false })`,
		},
		{
			name: "scoped element",
			src:  `<span>hi</span>`,
			opts: ports.TemplateOptions{Scoped: true, ScopeID: "abcd1234"},
			want: `__vine_h("span", { "data-v-abcd1234": "" }, "hi")`,
		},
		{
			name: "custom element",
			src:  `<my-widget></my-widget>`,
			opts: ports.TemplateOptions{IsCustomElement: func(tag string) bool { return strings.HasPrefix(tag, "my-") }},
			want: `__vine_h("my-widget")`,
		},
		{
			name: "model on input",
			src:  `<input v-model="text">`,
			want: `__vine_h("input", { value: _ctx.text, onInput: $event => (_ctx.text = $event.target.value) })`,
		},
		{
			name: "shorthand style binding",
			src:  `<p :style="{ color }">x</p>`,
			want: `__vine_h("p", { style: { color: _ctx.color } }, "x")`,
		},
		{
			name: "named slots",
			src:  `<Card><template #header="{ title }"><h1>{{ title }}</h1></template><p>body</p></Card>`,
			opts: ports.TemplateOptions{Components: []string{"Card"}},
			want: `__vine_h(Card, null, { header: ({ title }) => [__vine_h("h1", null, __vine_toDisplayString(title))], default: () => [__vine_h("p", null, "body")] })`,
		},
		{
			name: "static subtree in development",
			src:  `<ul><li>a</li><li>b</li></ul>`,
			want: `__vine_h("ul", null, [__vine_h("li", null, "a"), __vine_h("li", null, "b")])`,
		},
		{
			name: "static subtree in production",
			src:  `<ul><li>a</li><li>b</li></ul>`,
			opts: ports.TemplateOptions{Mode: ports.ModeProduction},
			want: `__vine_createStaticVNode("<ul><li>a</li><li>b</li></ul>", 1)`,
		},
		{
			name: "empty",
			src:  "",
			want: "null",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := compile(t, tt.src, tt.opts)
			require.Empty(t, res.Errors)
			assert.Equal(t, tt.want, res.Code)
		})
	}
}

func TestCompileTemplateHelpers(t *testing.T) {
	res := compile(t, `<div v-for="x in xs">{{ x }}</div>`, ports.TemplateOptions{})
	assert.Equal(t, []string{"h", "renderList", "toDisplayString"}, res.ImportsUsed)
}

func TestCompileTemplateErrors(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		message string
		offset  int
	}{
		{"dangling else", `<p v-else>x</p>`, "v-else has no adjacent v-if", 3},
		{"invalid expression", `<p>{{ a + }}</p>`, "invalid expression", 6},
		{"unknown directive", `<p v-foo="x">x</p>`, "unsupported directive v-foo", 3},
		{"bad v-for", `<p v-for="items">x</p>`, "invalid v-for expression", 3},
		{"script", `<script>alert(1)</script>`, "not allowed", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := compile(t, tt.src, ports.TemplateOptions{})
			require.NotEmpty(t, res.Errors)
			assert.Contains(t, res.Errors[0].Message, tt.message)
			assert.Equal(t, tt.offset, res.Errors[0].Offset)
		})
	}
}

func TestParseCondensesWhitespace(t *testing.T) {
	nodes, errs, err := Parse(loader, "\n  <div>\n    <b>a</b> <i>b</i>\n  </div>\n")
	require.NoError(t, err)
	require.Empty(t, errs)
	require.Len(t, nodes, 1)

	div, ok := nodes[0].(*Element)
	require.True(t, ok)
	require.Len(t, div.Children, 3)
	assert.Equal(t, "b", div.Children[0].(*Element).Tag)
	assert.Equal(t, " ", div.Children[1].(*Text).Value)
	assert.Equal(t, "i", div.Children[2].(*Element).Tag)
}

func TestParseDirective(t *testing.T) {
	tests := []struct {
		attr string
		want Directive
	}{
		{":title", Directive{Name: "bind", Arg: "title"}},
		{"@click.stop.prevent", Directive{Name: "on", Arg: "click", Modifiers: []string{"stop", "prevent"}}},
		{"#item", Directive{Name: "slot", Arg: "item"}},
		{"v-model.trim", Directive{Name: "model", Modifiers: []string{"trim"}}},
		{"v-model:title", Directive{Name: "model", Arg: "title"}},
		{"v-bind:[key]", Directive{Name: "bind", Arg: "key", Dynamic: true}},
		{"v-if", Directive{Name: "if"}},
	}
	for _, tt := range tests {
		got, ok := parseDirective(tt.attr)
		require.True(t, ok, tt.attr)
		assert.Equal(t, tt.want, got, tt.attr)
	}
	_, ok := parseDirective("class")
	assert.False(t, ok)
}

func TestPrefixer(t *testing.T) {
	p := &prefixer{loader: loader}
	tests := []struct {
		expr   string
		locals scope
		want   string
	}{
		{"a + b", nil, "_ctx.a + _ctx.b"},
		{"item.name", scope{"item": true}, "item.name"},
		{"items.filter(x => x.done).length", nil, "_ctx.items.filter(x => x.done).length"},
		{"Math.max(a, 1)", nil, "Math.max(_ctx.a, 1)"},
		{"{ a, b: c }", nil, "{ a: _ctx.a, b: _ctx.c }"},
		{"$slots.default", nil, "_ctx.$slots.default"},
	}
	for _, tt := range tests {
		got, err := p.expression(tt.expr, tt.locals)
		require.NoError(t, err, tt.expr)
		assert.Equal(t, tt.want, got, tt.expr)
	}
}
