package app

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"vinec/internal/core/config"
	"vinec/internal/core/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const counterSrc = "function Counter(){ const n = ref(0); return template`<div>{{n}}</div>`}\n"

const cardSrc = `function Card() {
  vineStyle.import.scoped('./card.css')
  return template` + "`<div class=\"card\">card</div>`" + `
}
`

type recorder struct {
	mu     sync.Mutex
	events []ports.UpdateEvent
}

func (r *recorder) Publish(e ports.UpdateEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) last(t *testing.T) ports.UpdateEvent {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	require.NotEmpty(t, r.events)
	return r.events[len(r.events)-1]
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func newTestApp(t *testing.T) (*App, *recorder, string) {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, config.DefaultFile), "version = 1\n")

	cfg := config.DefaultConfig()
	cfg.Watch.MaxRecompilesPerSecond = -1
	paths, err := config.ResolvePaths(cfg, dir)
	require.NoError(t, err)

	a, err := New(cfg, paths)
	require.NoError(t, err)
	rec := &recorder{}
	a.AddPublisher(rec)
	return a, rec, dir
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestSessionLifecycle(t *testing.T) {
	a, rec, dir := newTestApp(t)
	ctx := context.Background()
	counter := filepath.Join(dir, "src", "Counter.vine.ts")

	writeFile(t, counter, counterSrc)
	a.HandleChanges(ctx, []string{counter})
	added := rec.last(t)
	assert.Equal(t, "reload", added.Kind)
	assert.Equal(t, "file added", added.Reason)
	assert.Equal(t, a.SessionID, added.SessionID)
	assert.NotEmpty(t, added.ID)
	assert.Equal(t, StateTracked, a.Tracker.State(counter))

	a.HandleChanges(ctx, []string{counter})
	assert.Equal(t, "none", rec.last(t).Kind)

	writeFile(t, counter, strings.Replace(counterSrc, "<div>{{n}}</div>", "<span>{{n}}</span>", 1))
	a.HandleChanges(ctx, []string{counter})
	render := rec.last(t)
	assert.Equal(t, "render", render.Kind)
	assert.Equal(t, "Counter", render.Component)
	assert.Equal(t, []string{counter}, render.Modules)

	out, ok := a.Output(counter)
	require.True(t, ok)
	assert.Contains(t, out.Code, `__vine_h("span"`)

	require.NoError(t, os.Remove(counter))
	a.HandleChanges(ctx, []string{counter})
	removed := rec.last(t)
	assert.Equal(t, "reload", removed.Kind)
	assert.Equal(t, "file removed", removed.Reason)
	assert.Equal(t, StateUnknown, a.Tracker.State(counter))
	assert.Nil(t, a.Compiler.Context(counter))
	_, ok = a.Output(counter)
	assert.False(t, ok)

	// Removing an unknown file publishes nothing.
	before := rec.count()
	a.HandleChanges(ctx, []string{counter})
	assert.Equal(t, before, rec.count())
}

func TestSessionFailureKeepsLastGoodOutput(t *testing.T) {
	a, rec, dir := newTestApp(t)
	ctx := context.Background()
	counter := filepath.Join(dir, "Counter.vine.ts")

	writeFile(t, counter, counterSrc)
	a.HandleChanges(ctx, []string{counter})
	good, ok := a.Output(counter)
	require.True(t, ok)

	writeFile(t, counter, "function Counter( { return template`<div>`")
	a.HandleChanges(ctx, []string{counter})
	failed := rec.last(t)
	assert.Equal(t, "reload", failed.Kind)
	assert.Equal(t, []string{"Counter"}, failed.Affected)
	assert.NotEmpty(t, failed.Diagnostics)

	still, ok := a.Output(counter)
	require.True(t, ok)
	assert.Same(t, good, still)
	assert.Equal(t, StateTracked, a.Tracker.State(counter))
	assert.Equal(t, 1, a.Stats().Failures)
}

func TestSessionReloadInvalidatesImporters(t *testing.T) {
	a, rec, dir := newTestApp(t)
	ctx := context.Background()
	app := filepath.Join(dir, "App.vine.ts")
	counter := filepath.Join(dir, "Counter.vine.ts")

	// App imports a file that does not exist yet.
	writeFile(t, app, "import { Counter } from './Counter.vine'\nfunction App(){ return template`<Counter/>`}\n")
	a.HandleChanges(ctx, []string{app})
	assert.Empty(t, a.Modules.Importers(counter))

	writeFile(t, counter, counterSrc)
	a.HandleChanges(ctx, []string{counter})
	assert.Equal(t, []string{app}, a.Modules.Importers(counter))
	assert.Equal(t, []string{counter, app}, rec.last(t).Modules)

	writeFile(t, counter, strings.Replace(counterSrc, "ref(0)", "ref(1)", 1))
	a.HandleChanges(ctx, []string{counter})
	ev := rec.last(t)
	assert.Equal(t, "reload", ev.Kind)
	assert.Equal(t, []string{counter, app}, ev.Modules)
}

func TestSessionStyleImportChange(t *testing.T) {
	a, rec, dir := newTestApp(t)
	ctx := context.Background()
	card := filepath.Join(dir, "Card.vine.ts")
	css := filepath.Join(dir, "card.css")

	writeFile(t, css, ".card { padding: 4px }\n")
	writeFile(t, card, cardSrc)
	a.HandleChanges(ctx, []string{card})
	require.Equal(t, StateTracked, a.Tracker.State(card))
	assert.Equal(t, []string{card}, a.Modules.Importers(css))

	writeFile(t, css, ".card { padding: 8px }\n")
	a.HandleChanges(ctx, []string{css})
	ev := rec.last(t)
	assert.Equal(t, "style", ev.Kind)
	assert.Equal(t, card, ev.FileID)
	assert.NotEmpty(t, ev.ScopeID)

	out, ok := a.Output(card)
	require.True(t, ok)
	require.Len(t, out.Styles, 1)
	for id := range out.Styles {
		style, ok := a.Style(id)
		require.True(t, ok)
		assert.Contains(t, style.CSS, "8px")
		assert.Equal(t, []string{id}, ev.Modules)
	}
}

const scopedCardSrc = `function Card() {
  vineStyle.scoped(` + "`.card { padding: 4px }`" + `)
  return template` + "`<div class=\"card\">card</div>`" + `
}
`

func TestSessionInlineStyleEditPushesStyleModule(t *testing.T) {
	a, rec, dir := newTestApp(t)
	ctx := context.Background()
	card := filepath.Join(dir, "Card.vine.ts")

	writeFile(t, card, scopedCardSrc)
	a.HandleChanges(ctx, []string{card})
	require.Equal(t, StateTracked, a.Tracker.State(card))

	writeFile(t, card, strings.Replace(scopedCardSrc, "4px", "8px", 1))
	a.HandleChanges(ctx, []string{card})
	ev := rec.last(t)
	assert.Equal(t, "style", ev.Kind)
	require.Len(t, ev.Modules, 1)
	assert.NotEqual(t, card, ev.Modules[0])
	assert.Contains(t, ev.Modules[0], "?vine-style&scope="+ev.ScopeID)

	out, ok := a.Output(card)
	require.True(t, ok)
	_, ok = out.Styles[ev.Modules[0]]
	assert.True(t, ok)
	assert.Contains(t, out.Code, "import.meta.hot.accept(")
	assert.NotContains(t, out.Code, "__VUE_HMR_RUNTIME__.reload(")
	assert.NotContains(t, out.Code, "__VUE_HMR_RUNTIME__.rerender(")
}

func TestSessionIgnoresOtherFiles(t *testing.T) {
	a, rec, dir := newTestApp(t)
	notes := filepath.Join(dir, "notes.md")
	writeFile(t, notes, "# notes")
	a.HandleChanges(context.Background(), []string{notes, filepath.Join(dir, "types.d.ts")})
	assert.Zero(t, rec.count())
}

func TestUpdateHandlerReceivesStats(t *testing.T) {
	a, _, dir := newTestApp(t)
	var got []Update
	a.SetUpdateHandler(func(u Update) { got = append(got, u) })

	counter := filepath.Join(dir, "Counter.vine.ts")
	writeFile(t, counter, counterSrc)
	a.HandleChanges(context.Background(), []string{counter})

	require.Len(t, got, 1)
	assert.Equal(t, 1, got[0].Stats.Tracked)
	assert.Equal(t, 1, got[0].Stats.ByKind["reload"])
	assert.Equal(t, "reload Counter.vine.ts: file added", Describe(got[0].Event))
}

func TestPrime(t *testing.T) {
	a, _, dir := newTestApp(t)
	good := filepath.Join(dir, "Counter.vine.ts")
	bad := filepath.Join(dir, "Broken.vine.ts")
	writeFile(t, good, counterSrc)
	writeFile(t, bad, "function Broken( {")

	inputs, err := ReadInputs([]string{good, bad})
	require.NoError(t, err)
	assert.Equal(t, 1, a.Prime(context.Background(), inputs))
	assert.Equal(t, StateTracked, a.Tracker.State(good))
	assert.Equal(t, StateUnknown, a.Tracker.State(bad))
}

func TestCompilerOptionsRejectsBadPattern(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Compiler.CustomElements = []string{"ion-["}
	_, err := CompilerOptions(cfg, config.ResolvedPaths{})
	require.Error(t, err)

	cfg.Compiler.CustomElements = []string{"ion-*"}
	opts, err := CompilerOptions(cfg, config.ResolvedPaths{})
	require.NoError(t, err)
	assert.True(t, opts.IsCustomElement("ion-button"))
	assert.False(t, opts.IsCustomElement("div"))
}
