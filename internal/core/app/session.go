package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"vinec/internal/core/errors"
	"vinec/internal/core/ports"
	"vinec/internal/core/watcher"
	"vinec/internal/engine/extract"
	"vinec/internal/engine/hmr"
	"vinec/internal/engine/modgraph"
	"vinec/internal/engine/pipeline"
)

// ReadInputs loads files for a batch compile.
func ReadInputs(files []string) ([]pipeline.Input, error) {
	inputs := make([]pipeline.Input, 0, len(files))
	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			return nil, err
		}
		inputs = append(inputs, pipeline.Input{FileID: f, Source: data})
	}
	return inputs, nil
}

// Prime compiles every input once and tracks the files that succeed. It
// returns the number of failed files.
func (a *App) Prime(ctx context.Context, inputs []pipeline.Input) int {
	outs, err := a.Compiler.CompileBatch(ctx, inputs)
	if err != nil && ctx.Err() != nil {
		return len(inputs)
	}
	failed := 0
	for _, out := range outs {
		if out == nil || out.Context == nil {
			failed++
			a.countCompile(true)
			continue
		}
		a.countCompile(false)
		a.link(out.FileID, out.Context)
		a.storeOutput(out)
	}
	slog.Info("initial compile finished", "files", len(inputs), "failed", failed)
	return failed
}

// Run primes the watch paths and then handles changes until ctx ends.
func (a *App) Run(ctx context.Context) error {
	dirs, files := a.Config.Watch.Exclude.Dirs, a.Config.Watch.Exclude.Files
	found, err := ScanDirectories(a.Paths.WatchPaths, dirs, files)
	if err != nil {
		return err
	}
	inputs, err := ReadInputs(found)
	if err != nil {
		return err
	}
	a.Prime(ctx, inputs)

	changes := make(chan []string, 16)
	w, err := watcher.NewWatcher(a.Config.Watch.Debounce, dirs, files, func(paths []string) {
		select {
		case changes <- paths:
		case <-ctx.Done():
		}
	})
	if err != nil {
		return err
	}
	a.activeWatcher.Store(w)
	defer func() {
		if a.activeWatcher.CompareAndSwap(w, nil) {
			_ = w.Close()
		}
	}()
	if err := w.Watch(a.Paths.WatchPaths); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case paths := <-changes:
			a.HandleChanges(ctx, paths)
		}
	}
}

// HandleChanges applies one debounced batch of changed paths.
func (a *App) HandleChanges(ctx context.Context, paths []string) {
	slog.Info("detected changes", "count", len(paths))
	for _, path := range paths {
		if err := a.limiter.Wait(ctx, 1); err != nil {
			return
		}
		switch {
		case isStyleFile(path):
			a.handleStyle(ctx, path)
		case IsHostFile(path):
			a.handleHost(ctx, path)
		}
	}
}

func isStyleFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, s := range watcher.StyleExtensions {
		if ext == s {
			return true
		}
	}
	return false
}

func (a *App) handleHost(ctx context.Context, path string) {
	source, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		a.handleRemoved(path)
		return
	}
	if err != nil {
		slog.Warn("failed to read changed file", "path", path, "error", err)
		return
	}

	if a.Tracker.State(path) == StateTracked {
		a.recompile(ctx, path, source, "")
		return
	}
	a.handleAdded(ctx, path, source)
}

// handleStyle recompiles every tracked component file importing the sheet.
func (a *App) handleStyle(ctx context.Context, path string) {
	for _, host := range a.Modules.Importers(path) {
		if a.Tracker.State(host) != StateTracked {
			continue
		}
		source, err := os.ReadFile(host)
		if err != nil {
			slog.Warn("failed to read style importer", "path", host, "error", err)
			continue
		}
		a.recompile(ctx, host, source, path)
	}
}

func (a *App) handleAdded(ctx context.Context, path string, source []byte) {
	out, err := a.Compiler.Compile(ctx, path, source)
	a.countCompile(err != nil)
	if err != nil {
		if errors.IsCode(err, errors.CodeStale) {
			return
		}
		slog.Warn("new file failed to compile", "path", path, "error", err)
		a.publish(ports.UpdateEvent{
			FileID:      path,
			Kind:        hmr.KindReload.String(),
			Reason:      "new file failed to compile",
			Diagnostics: diagnosticStrings(out.Diagnostics),
			Timestamp:   time.Now().UTC(),
		}, out.Diagnostics)
		return
	}

	a.link(path, out.Context)
	a.storeOutput(out)
	for _, waiting := range a.Tracker.Waiting(path) {
		if fc := a.Compiler.Context(waiting); fc != nil {
			a.link(waiting, fc)
		}
	}
	a.publish(ports.UpdateEvent{
		FileID:      path,
		Kind:        hmr.KindReload.String(),
		Modules:     a.Modules.Invalidate(path),
		Reason:      "file added",
		Diagnostics: diagnosticStrings(out.Diagnostics),
		Timestamp:   time.Now().UTC(),
	}, out.Diagnostics)
}

// recompile handles a new version of a tracked file. sheet names the
// imported stylesheet whose edit triggered it, if any.
func (a *App) recompile(ctx context.Context, path string, source []byte, sheet string) {
	prev := a.Compiler.Context(path)
	out, plan, err := a.Compiler.Recompile(ctx, path, source)
	a.countCompile(err != nil)
	if errors.IsCode(err, errors.CodeStale) {
		slog.Debug("dropped stale result", "path", path)
		return
	}
	if err != nil {
		slog.Warn("recompile failed", "path", path, "error", err)
	} else {
		a.link(path, out.Context)
		a.storeOutput(out)
		if sheet != "" && plan.Kind == hmr.KindNone {
			plan = sheetPlan(prev, out.Context, sheet)
		}
	}

	event := ports.UpdateEvent{
		FileID:      path,
		Kind:        plan.Kind.String(),
		Component:   plan.ComponentName,
		ScopeID:     plan.ScopeID,
		Affected:    plan.Affected,
		Reason:      plan.Reason,
		Diagnostics: diagnosticStrings(out.Diagnostics),
		Timestamp:   time.Now().UTC(),
	}
	switch {
	case plan.Kind == hmr.KindReload:
		event.Modules = a.Modules.Invalidate(path)
		if len(plan.Notify) > 0 {
			event.Affected = plan.Notify
		}
		for _, m := range event.Modules[1:] {
			if chain, ok := a.Modules.FindImportChain(m, path); ok {
				slog.Debug("reload reaches importer", "module", m, "chain", strings.Join(chain, " -> "))
			}
		}
	case plan.Patching():
		event.Modules = patchModules(path, plan, out.Context)
	}
	if plan.Diff != "" {
		slog.Info("update explained", "path", path, "kind", event.Kind, "diff", plan.Diff)
	}
	a.publish(event, out.Diagnostics)
}

// patchModules lists what a patching client refetches: the host module for
// render updates plus the style modules of every changed scope. A style
// update that names no style module falls back to the host.
func patchModules(path string, plan hmr.UpdatePlan, fc *extract.FileContext) []string {
	var modules []string
	if plan.RenderOnly() {
		modules = append(modules, path)
	}
	if fc != nil {
		for _, scope := range plan.StyleScopes {
			for _, cc := range fc.Components {
				if cc.ScopeID != scope {
					continue
				}
				for _, frag := range cc.Styles {
					modules = append(modules, frag.ModuleID(path, scope))
				}
			}
		}
	}
	if len(modules) == 0 {
		modules = []string{path}
	}
	return modules
}

func (a *App) handleRemoved(path string) {
	if a.Tracker.State(path) != StateTracked {
		return
	}
	modules := a.Modules.Invalidate(path)
	a.Compiler.Forget(path)
	a.dropOutput(path)
	a.Modules.Remove(path)
	a.Tracker.Untrack(path)
	a.publish(ports.UpdateEvent{
		FileID:    path,
		Kind:      hmr.KindReload.String(),
		Modules:   modules,
		Reason:    "file removed",
		Timestamp: time.Now().UTC(),
	}, nil)
}

// sheetPlan classifies an edit to an imported stylesheet when the host text
// itself is unchanged. It patches the first component importing the sheet
// unless the sheet's v-bind() set moved.
func sheetPlan(prev, next *extract.FileContext, sheet string) hmr.UpdatePlan {
	plan := hmr.UpdatePlan{FileID: next.FileID, Reason: "imported stylesheet unchanged"}
	for i, nc := range next.Components {
		if !importsSheet(nc, sheet) {
			continue
		}
		if plan.Kind == hmr.KindNone {
			plan.Kind = hmr.KindStyle
			plan.ComponentName = nc.Name
			plan.ScopeID = nc.ScopeID
			plan.Reason = "imported stylesheet changed"
		}
		plan.StyleScopes = append(plan.StyleScopes, nc.ScopeID)
		if prev != nil && i < len(prev.Components) && !sameBindings(prev.Components[i].DynamicBindings, nc.DynamicBindings) {
			plan.Kind = hmr.KindReload
			plan.ComponentName = nc.Name
			plan.ScopeID = ""
			plan.Reason = "dynamic style bindings changed"
			return plan
		}
	}
	return plan
}

func importsSheet(c *extract.ComponentContext, sheet string) bool {
	for _, s := range c.Styles {
		if s.External && s.ResolvedPath == sheet {
			return true
		}
	}
	return false
}

func sameBindings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[string]bool, len(a))
	for _, s := range a {
		seen[s] = true
	}
	for _, s := range b {
		if !seen[s] {
			return false
		}
	}
	return true
}

// link records the import edges of a compiled file, including its external
// stylesheets, and tracks it.
func (a *App) link(fileID string, fc *extract.FileContext) {
	resolved, pending := modgraph.SplitImports(fileID, fc.Imports)
	for _, c := range fc.Components {
		for _, s := range c.Styles {
			if s.External && s.ResolvedPath != "" {
				resolved = append(resolved, s.ResolvedPath)
			}
		}
	}
	a.Modules.SetImports(fileID, resolved)
	a.Modules.Clear(fileID)
	a.Tracker.Track(fileID, pending)
	for _, cycle := range a.Modules.CyclesThrough(fileID) {
		slog.Warn("import cycle", "file", fileID, "cycle", strings.Join(cycle, " -> "))
	}
}

func diagnosticStrings(list errors.DiagnosticList) []string {
	if len(list) == 0 {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, d := range list {
		out = append(out, d.String())
	}
	return out
}

// Describe renders an event as one log-friendly line.
func Describe(e ports.UpdateEvent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s", e.Kind, filepath.Base(e.FileID))
	if e.Component != "" {
		fmt.Fprintf(&b, " (%s)", e.Component)
	}
	if e.Reason != "" {
		fmt.Fprintf(&b, ": %s", e.Reason)
	}
	return b.String()
}
