package compile

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"vinec/internal/core/errors"
	"vinec/internal/core/ports"
	"vinec/internal/engine/extract"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTemplates struct {
	opts []ports.TemplateOptions
	errs []ports.CompileError
}

func (f *fakeTemplates) CompileTemplate(source string, opts ports.TemplateOptions) (ports.TemplateResult, error) {
	f.opts = append(f.opts, opts)
	return ports.TemplateResult{Code: "render(" + source + ")", ImportsUsed: []string{"h"}, Errors: f.errs}, nil
}

type fakeStyles struct {
	inputs []ports.StyleInput
	errs   []ports.CompileError
}

func (f *fakeStyles) CompileStyle(_ context.Context, in ports.StyleInput, opts ports.StyleOptions) (ports.StyleResult, error) {
	f.inputs = append(f.inputs, in)
	res := ports.StyleResult{CSS: opts.ScopeID + ":" + in.Source, Errors: f.errs}
	if strings.Contains(in.Source, "v-bind(color)") {
		res.DynamicBindings = []string{"color"}
	}
	return res, nil
}

func fileContext(source string) *extract.FileContext {
	tplStart := strings.Index(source, "<div>")
	tplEnd := strings.Index(source, "</div>") + len("</div>")
	cssStart := strings.Index(source, ".a")
	cssEnd := strings.Index(source, "}`") + 1
	cc := &extract.ComponentContext{
		Name:         "App",
		ScopeID:      "abcd1234",
		HasTemplate:  true,
		TemplateText: source[tplStart:tplEnd],
		TemplateSpan: errors.Span{Start: tplStart, End: tplEnd},
		Styles: []extract.StyleFragment{{
			Source: source[cssStart:cssEnd],
			Lang:   "css",
			Scoped: true,
			Span:   errors.Span{Start: cssStart, End: cssEnd},
		}},
	}
	return &extract.FileContext{FileID: "/p/App.vine.ts", Source: source, Components: []*extract.ComponentContext{cc}}
}

const appSource = "function App() {\n  vineStyle.scoped(`.a { color: v-bind(color) }`)\n  return template`<div>hi</div>`\n}\n"

func TestAdapterCompile(t *testing.T) {
	tpl, sty := &fakeTemplates{}, &fakeStyles{}
	a := NewAdapter(tpl, sty, Options{NegativeBoolProps: true})
	fc := fileContext(appSource)

	art, err := a.Compile(context.Background(), fc)
	require.NoError(t, err)
	assert.Empty(t, art.Diagnostics)

	app := art.Components["App"]
	require.NotNil(t, app)
	assert.Equal(t, "render(<div>hi</div>)", app.Render)
	assert.Equal(t, []string{"h"}, app.Helpers)
	require.Len(t, app.Styles, 1)
	assert.Equal(t, "/p/App.vine.ts?vine-style&scope=abcd1234&index=0&scoped&lang.css", app.Styles[0].ModuleID)
	assert.Equal(t, []string{"color"}, fc.Components[0].DynamicBindings)

	require.Len(t, tpl.opts, 1)
	assert.Equal(t, "abcd1234", tpl.opts[0].ScopeID)
	assert.True(t, tpl.opts[0].Scoped)
	assert.True(t, tpl.opts[0].NegativeBoolProps)
	assert.Equal(t, ports.ModeDevelopment, tpl.opts[0].Mode)
	assert.Equal(t, []string{"App"}, tpl.opts[0].Components)
}

func TestAdapterMapsErrors(t *testing.T) {
	tpl := &fakeTemplates{errs: []ports.CompileError{{Message: "bad tag", Offset: 1, Length: 3}}}
	a := NewAdapter(tpl, &fakeStyles{}, Options{})
	fc := fileContext(appSource)

	art, err := a.Compile(context.Background(), fc)
	require.NoError(t, err)
	require.Len(t, art.Diagnostics, 1)
	d := art.Diagnostics[0]
	assert.Equal(t, errors.CodeCompile, d.Code)
	assert.Equal(t, "App", d.Component)
	assert.Equal(t, "div", appSource[d.Span.Start:d.Span.End])
	assert.Equal(t, 3, d.Line)
	assert.True(t, art.Components["App"].Failed)
	assert.Equal(t, "null", art.Components["App"].Render)
}

func TestAdapterWarningsDoNotFail(t *testing.T) {
	sty := &fakeStyles{errs: []ports.CompileError{{Message: "odd", Warning: true}}}
	a := NewAdapter(&fakeTemplates{}, sty, Options{})
	art, err := a.Compile(context.Background(), fileContext(appSource))
	require.NoError(t, err)
	require.Len(t, art.Diagnostics, 1)
	assert.Equal(t, errors.SeverityWarning, art.Diagnostics[0].Severity)
	assert.False(t, art.Components["App"].Failed)
	assert.Len(t, art.Components["App"].Styles, 1)
}

func TestAdapterLoadsImports(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "theme.css")
	require.NoError(t, os.WriteFile(path, []byte(".t { color: red }"), 0o644))

	sty := &fakeStyles{}
	a := NewAdapter(&fakeTemplates{}, sty, Options{})
	fc := fileContext(appSource)
	fc.Components[0].Styles = append(fc.Components[0].Styles,
		extract.StyleFragment{External: true, ResolvedPath: path, Lang: "css", Index: 1},
		extract.StyleFragment{External: true, ResolvedPath: filepath.Join(dir, "missing.css"), Lang: "css", Index: 2})

	art, err := a.Compile(context.Background(), fc)
	require.NoError(t, err)
	require.Len(t, sty.inputs, 2)
	assert.Equal(t, ".t { color: red }", sty.inputs[1].Source)
	assert.Equal(t, path, sty.inputs[1].Path)
	require.Len(t, art.Diagnostics, 1)
	assert.Contains(t, art.Diagnostics[0].Message, "cannot read style import")
	assert.True(t, art.Components["App"].Failed)
	assert.Len(t, art.Styles(), 2)
}

func TestAdapterCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	a := NewAdapter(&fakeTemplates{}, &fakeStyles{}, Options{})
	_, err := a.Compile(ctx, fileContext(appSource))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTagMatcher(t *testing.T) {
	match, err := TagMatcher([]string{"ion-*", "my-widget"})
	require.NoError(t, err)
	assert.True(t, match("ion-button"))
	assert.True(t, match("my-widget"))
	assert.False(t, match("my-other"))

	match, err = TagMatcher(nil)
	require.NoError(t, err)
	assert.Nil(t, match)

	_, err = TagMatcher([]string{"[a-"})
	assert.Error(t, err)
}
