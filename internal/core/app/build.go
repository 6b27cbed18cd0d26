package app

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"vinec/internal/core/errors"
	"vinec/internal/engine/pipeline"
	"vinec/internal/shared/util"
)

type BuildResult struct {
	Files       int
	Written     []string
	Diagnostics errors.DiagnosticList
	Failed      []string
	Duration    time.Duration
}

// Build compiles inputs and writes the successful outputs under the
// configured out dir. A file that fails writes nothing.
func (a *App) Build(ctx context.Context, inputs []pipeline.Input) (BuildResult, error) {
	start := time.Now()
	res := BuildResult{Files: len(inputs)}

	outs, err := a.Compiler.CompileBatch(ctx, inputs)
	if ctx.Err() != nil {
		return res, ctx.Err()
	}
	if err != nil {
		slog.Debug("batch finished with errors", "error", err)
	}

	for i, out := range outs {
		if out == nil {
			res.Failed = append(res.Failed, inputs[i].FileID)
			continue
		}
		res.Diagnostics = append(res.Diagnostics, out.Diagnostics...)
		if out.Context == nil {
			a.countCompile(true)
			res.Failed = append(res.Failed, out.FileID)
			continue
		}
		a.countCompile(false)
		written, err := a.writeOutput(out)
		res.Written = append(res.Written, written...)
		if err != nil {
			return res, fmt.Errorf("write %s: %w", out.FileID, err)
		}
	}
	res.Diagnostics = res.Diagnostics.Sorted()
	res.Duration = time.Since(start)
	return res, nil
}

func (a *App) writeOutput(out *pipeline.Output) ([]string, error) {
	root, outDir := a.Paths.ProjectRoot, a.Paths.OutDir
	jsPath := util.OutputPath(root, outDir, out.FileID, ".js")

	code := out.Code
	var written []string
	if out.Map != nil {
		data, err := out.Map.JSON()
		if err != nil {
			return written, err
		}
		mapPath := jsPath + ".map"
		if err := util.WriteFileWithDirs(mapPath, data, 0o644); err != nil {
			return written, err
		}
		written = append(written, mapPath)
		code += "\n//# sourceMappingURL=" + filepath.Base(mapPath) + "\n"
	}
	if err := util.WriteStringWithDirs(jsPath, code, 0o644); err != nil {
		return written, err
	}
	written = append(written, jsPath)

	for n, id := range util.SortedStringKeys(out.Styles) {
		style := out.Styles[id]
		cssPath := util.OutputPath(root, outDir, out.FileID, fmt.Sprintf(".style%d.css", n))
		if err := util.WriteStringWithDirs(cssPath, style.CSS, 0o644); err != nil {
			return written, err
		}
		written = append(written, cssPath)
	}
	return written, nil
}
