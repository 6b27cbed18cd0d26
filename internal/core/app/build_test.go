package app

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"vinec/internal/data/history"
	"vinec/internal/engine/pipeline"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild(t *testing.T) {
	a, _, dir := newTestApp(t)
	writeFile(t, filepath.Join(dir, "src", "card.css"), ".card { padding: 4px }\n")
	writeFile(t, filepath.Join(dir, "src", "Card.vine.ts"), cardSrc)
	writeFile(t, filepath.Join(dir, "src", "Counter.vine.ts"), counterSrc)
	writeFile(t, filepath.Join(dir, "src", "Broken.vine.ts"), "function Broken( {")

	files, err := ScanDirectories([]string{dir}, nil, nil)
	require.NoError(t, err)
	inputs, err := ReadInputs(files)
	require.NoError(t, err)

	res, err := a.Build(context.Background(), inputs)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Files)
	assert.Equal(t, []string{filepath.Join(dir, "src", "Broken.vine.ts")}, res.Failed)
	assert.True(t, res.Diagnostics.HasErrors())

	js := filepath.Join(dir, "dist", "src", "Counter.vine.js")
	data, err := os.ReadFile(js)
	require.NoError(t, err)
	assert.Contains(t, string(data), "//# sourceMappingURL=Counter.vine.js.map")
	assert.FileExists(t, js+".map")
	assert.FileExists(t, filepath.Join(dir, "dist", "src", "Card.vine.style0.css"))
	assert.NoFileExists(t, filepath.Join(dir, "dist", "src", "Broken.vine.js"))

	var buf bytes.Buffer
	PrintBuildSummary(&buf, dir, res)
	assert.Contains(t, buf.String(), "compiled 3 file(s)")
	assert.Contains(t, buf.String(), "failed: "+filepath.Join("src", "Broken.vine.ts"))
}

func TestBuildCanceled(t *testing.T) {
	a, _, _ := newTestApp(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := a.Build(ctx, []pipeline.Input{{FileID: "/x/A.vine.ts", Source: []byte(counterSrc)}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPrintDiagnostics(t *testing.T) {
	a, _, dir := newTestApp(t)
	src := "import { vineProp } from 'vue-vine'\nfunction Broken( {"
	out, err := a.Compiler.Compile(context.Background(), filepath.Join(dir, "A.vine.ts"), []byte(src))
	require.Error(t, err)

	var buf bytes.Buffer
	PrintDiagnostics(&buf, out.Diagnostics)
	assert.Contains(t, buf.String(), "error")
}

func TestPrintSummary(t *testing.T) {
	var buf bytes.Buffer
	PrintSummary(&buf, history.Summary{
		EventCount: 2,
		ByKind:     map[string]int{"render": 1, "reload": 1},
		HotFiles:   []history.FileCount{{FileID: "/p/App.vine.ts", Reloads: 1}},
		PatchRatio: 0.5,
	})
	out := buf.String()
	assert.Contains(t, out, "2 event(s)")
	assert.Contains(t, out, "patch ratio: 0.50")
	assert.Contains(t, out, "/p/App.vine.ts")
}
