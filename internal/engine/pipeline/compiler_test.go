package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"vinec/internal/core/errors"
	"vinec/internal/core/ports"
	"vinec/internal/engine/hmr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fileID = "/project/src/Counter.vine.ts"

const counter = "function Counter(){ const n = ref(0); return template`<div>{{n}}</div>`}"

func TestCompile(t *testing.T) {
	c := New(Options{})
	out, err := c.Compile(context.Background(), fileID, []byte(counter))
	require.NoError(t, err)
	assert.Contains(t, out.Code, "const Counter = __vine_defineComponent({")
	assert.NotNil(t, out.Map)
	assert.Empty(t, out.Diagnostics)
	assert.Same(t, out.Context, c.Context(fileID))
	assert.Equal(t, out.Seq, out.Context.Seq)
}

func TestRecompileScenario(t *testing.T) {
	c := New(Options{})
	ctx := context.Background()
	_, err := c.Compile(ctx, fileID, []byte(counter))
	require.NoError(t, err)

	_, plan, err := c.Recompile(ctx, fileID, []byte(counter))
	require.NoError(t, err)
	assert.Equal(t, hmr.KindNone, plan.Kind)

	edited := strings.Replace(counter, "<div>{{n}}</div>", "<span>{{n}}</span>", 1)
	out, plan, err := c.Recompile(ctx, fileID, []byte(edited))
	require.NoError(t, err)
	assert.Equal(t, hmr.KindRender, plan.Kind)
	assert.Equal(t, "Counter", plan.ComponentName)

	assert.True(t, out.Context.RenderOnly)
	assert.True(t, out.Context.HMRPatching)
	assert.Equal(t, "Counter", out.Context.AffectedComponent)
	assert.Contains(t, out.Code, "__VUE_HMR_RUNTIME__.rerender(")
}

func TestRecompileRerendersEveryEditedTemplate(t *testing.T) {
	c := New(Options{})
	ctx := context.Background()
	src := "export function A() { return template`<p>a</p>` }\nexport function B() { return template`<p>b</p>` }\n"
	_, err := c.Compile(ctx, fileID, []byte(src))
	require.NoError(t, err)

	edited := strings.NewReplacer("<p>a</p>", "<b>a</b>", "<p>b</p>", "<b>b</b>").Replace(src)
	out, plan, err := c.Recompile(ctx, fileID, []byte(edited))
	require.NoError(t, err)
	assert.Equal(t, hmr.KindRender, plan.Kind)
	assert.Equal(t, []string{"A", "B"}, plan.Rerendered())
	assert.Equal(t, []string{"A", "B"}, out.Context.Rerender)
	assert.Contains(t, out.Code, "__VUE_HMR_RUNTIME__.rerender(mod.__vine_hmr.A.__hmrId, mod.__vine_hmr.A.render);")
	assert.Contains(t, out.Code, "__VUE_HMR_RUNTIME__.rerender(mod.__vine_hmr.B.__hmrId, mod.__vine_hmr.B.render);")
}

func TestRecompileFailureKeepsPrevious(t *testing.T) {
	c := New(Options{})
	ctx := context.Background()
	first, err := c.Compile(ctx, fileID, []byte(counter))
	require.NoError(t, err)

	out, plan, err := c.Recompile(ctx, fileID, []byte("function Counter( { return template`<div>`"))
	require.Error(t, err)
	assert.Equal(t, hmr.KindReload, plan.Kind)
	assert.Equal(t, []string{"Counter"}, plan.Notify)
	assert.True(t, out.Diagnostics.HasErrors())
	assert.NotEmpty(t, plan.Diagnostics)
	assert.Same(t, first.Context, c.Context(fileID))
}

func TestValidationErrorsFailTheFile(t *testing.T) {
	c := New(Options{})
	src := "function A() {\n  if (x) { const p = vineProp() }\n  return template`<p/>`\n}\n"
	out, err := c.Compile(context.Background(), fileID, []byte(src))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeValidation))
	assert.True(t, out.Diagnostics.HasErrors())
	assert.Nil(t, c.Context(fileID))
}

func TestDiagnosticsAreDrainedPerRun(t *testing.T) {
	c := New(Options{})
	ctx := context.Background()
	warn := "import { vineProp } from \"vue-vine\"\nfunction A() { return template`<p/>` }\n"
	out, err := c.Compile(ctx, fileID, []byte(warn))
	require.NoError(t, err)
	require.Len(t, out.Diagnostics, 1)
	assert.Equal(t, errors.SeverityWarning, out.Diagnostics[0].Severity)

	out, err = c.Compile(ctx, fileID, []byte(counter))
	require.NoError(t, err)
	assert.Empty(t, out.Diagnostics)
	assert.Empty(t, c.drain(runKey{fileID, out.Seq}))
	assert.Empty(t, c.diags)
}

func TestOverlappingRunsKeepTheirOwnDiagnostics(t *testing.T) {
	c := New(Options{})
	first, second := runKey{fileID, c.begin(fileID)}, runKey{fileID, c.begin(fileID)}

	c.report(first, errors.Diagnostic{Code: errors.CodeValidation, Severity: errors.SeverityError, Message: "first", FileID: fileID})
	assert.Empty(t, c.drain(second))
	got := c.drain(first)
	require.Len(t, got, 1)
	assert.Equal(t, "first", got[0].Message)
}

func TestConcurrentRunsOfOneFileDrainSeparately(t *testing.T) {
	c := New(Options{})
	ctx := context.Background()
	warn := "import { vineProp } from \"vue-vine\"\nfunction A() { return template`<p/>` }\n"

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			var out *Output
			var err error
			if n%2 == 0 {
				out, err = c.Compile(ctx, fileID, []byte(warn))
			} else {
				out, _, err = c.Recompile(ctx, fileID, []byte(warn))
			}
			if err != nil && !errors.IsCode(err, errors.CodeStale) {
				t.Errorf("run %d: %v", n, err)
				return
			}
			if len(out.Diagnostics) != 1 {
				t.Errorf("run %d: expected 1 diagnostic, got %d", n, len(out.Diagnostics))
			}
		}(i)
	}
	wg.Wait()
	assert.Empty(t, c.diags)
}

func TestStaleResultsAreDropped(t *testing.T) {
	c := New(Options{})
	ctx := context.Background()
	newer, err := c.Compile(ctx, fileID, []byte(counter))
	require.NoError(t, err)

	err = c.publish(fileID, newer.Seq-1, nil)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeStale))
	assert.Same(t, newer.Context, c.Context(fileID))
}

func TestOlderSuccessLosesToNewerFailedRequest(t *testing.T) {
	c := New(Options{})
	ctx := context.Background()
	first, err := c.Compile(ctx, fileID, []byte(counter))
	require.NoError(t, err)

	older := c.begin(fileID)
	_, err = c.Compile(ctx, fileID, []byte("function Counter( {"))
	require.Error(t, err)

	err = c.publish(fileID, older, nil)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeStale))
	assert.Same(t, first.Context, c.Context(fileID))
}

func TestCompileBatch(t *testing.T) {
	c := New(Options{Mode: ports.ModeProduction})
	var inputs []Input
	for i := 0; i < 6; i++ {
		inputs = append(inputs, Input{
			FileID: fmt.Sprintf("/project/src/C%d.vine.ts", i),
			Source: []byte(fmt.Sprintf("export function C%d() { return template`<p>%d</p>` }", i, i)),
		})
	}
	inputs = append(inputs, Input{FileID: "/project/src/Bad.vine.ts", Source: []byte("function Bad( {")})

	outputs, err := c.CompileBatch(context.Background(), inputs)
	require.Error(t, err)
	require.Len(t, outputs, len(inputs))
	for i := 0; i < 6; i++ {
		require.NotNil(t, outputs[i])
		assert.Contains(t, outputs[i].Code, fmt.Sprintf("export const C%d = ", i))
		assert.NotContains(t, outputs[i].Code, "__hmrId")
	}
	assert.True(t, outputs[6].Diagnostics.HasErrors())
}

func TestConcurrentRecompiles(t *testing.T) {
	c := New(Options{})
	ctx := context.Background()
	_, err := c.Compile(ctx, fileID, []byte(counter))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			src := strings.Replace(counter, "{{n}}", fmt.Sprintf("{{n}} %d", n), 1)
			_, _, err := c.Recompile(ctx, fmt.Sprintf("/project/src/F%d.vine.ts", n), []byte(src))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()
	for i := 0; i < 8; i++ {
		assert.NotNil(t, c.Context(fmt.Sprintf("/project/src/F%d.vine.ts", i)))
	}
}

func TestForgetAndReset(t *testing.T) {
	c := New(Options{})
	ctx := context.Background()
	_, err := c.Compile(ctx, fileID, []byte(counter))
	require.NoError(t, err)
	c.Forget(fileID)
	assert.Nil(t, c.Context(fileID))

	_, err = c.Compile(ctx, fileID, []byte(counter))
	require.NoError(t, err)
	c.Reset()
	assert.Nil(t, c.Context(fileID))
}
