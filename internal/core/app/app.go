// Package app hosts the build command and the dev session on top of the
// compiler pipeline.
package app

import (
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"sync/atomic"

	"vinec/internal/core/config"
	"vinec/internal/core/errors"
	"vinec/internal/core/ports"
	"vinec/internal/core/watcher"
	"vinec/internal/engine/compile"
	"vinec/internal/engine/modgraph"
	"vinec/internal/engine/pipeline"
	"vinec/internal/shared/util"

	"github.com/google/uuid"
)

// Update is what the app reports to an attached UI after each handled change.
type Update struct {
	Event       ports.UpdateEvent
	Diagnostics errors.DiagnosticList
	Stats       Stats
}

type Stats struct {
	Tracked  int            `json:"tracked"`
	Compiles int            `json:"compiles"`
	Failures int            `json:"failures"`
	ByKind   map[string]int `json:"by_kind"`
}

type App struct {
	Config    *config.Config
	Paths     config.ResolvedPaths
	Compiler  *pipeline.Compiler
	Modules   *modgraph.Graph
	Tracker   *FileTracker
	SessionID string

	publishers []ports.UpdatePublisher
	limiter    *util.Limiter

	updateMu sync.RWMutex
	onUpdate func(Update)

	outMu   sync.RWMutex
	outputs map[string]*pipeline.Output
	styles  map[string]compile.CompiledStyle

	statsMu sync.Mutex
	stats   Stats

	activeWatcher atomic.Pointer[watcher.Watcher]
}

// New builds an app for cfg. paths anchors every relative config path.
func New(cfg *config.Config, paths config.ResolvedPaths) (*App, error) {
	opts, err := CompilerOptions(cfg, paths)
	if err != nil {
		return nil, err
	}
	return NewWithOptions(cfg, paths, opts), nil
}

// NewWithOptions builds an app around explicit compiler options.
func NewWithOptions(cfg *config.Config, paths config.ResolvedPaths, opts pipeline.Options) *App {
	return &App{
		Config:    cfg,
		Paths:     paths,
		Compiler:  pipeline.New(opts),
		Modules:   modgraph.New(),
		Tracker:   NewFileTracker(),
		SessionID: uuid.NewString(),
		limiter:   util.NewLimiter(cfg.Watch.MaxRecompilesPerSecond, cfg.Watch.Burst),
		outputs:   make(map[string]*pipeline.Output),
		styles:    make(map[string]compile.CompiledStyle),
		stats:     Stats{ByKind: make(map[string]int)},
	}
}

// CompilerOptions maps the [compiler] and [cache] sections onto pipeline
// options.
func CompilerOptions(cfg *config.Config, paths config.ResolvedPaths) (pipeline.Options, error) {
	opts := pipeline.Options{
		Mode:              ports.Mode(cfg.Compiler.Mode),
		MacroModule:       cfg.Compiler.MacroModule,
		RuntimeModule:     cfg.Compiler.RuntimeModule,
		TemplateTags:      cfg.Compiler.TemplateTags,
		StyleBaseDir:      paths.StyleBaseDir,
		NegativeBoolProps: cfg.Compiler.NegativeBoolProps,
		Preprocessors:     cfg.Compiler.Preprocessors,
		GraphCacheSize:    cfg.Cache.GraphCapacity,
		Workers:           cfg.Build.Workers,
	}
	if len(cfg.Compiler.CustomElements) > 0 {
		match, err := compile.TagMatcher(cfg.Compiler.CustomElements)
		if err != nil {
			return pipeline.Options{}, fmt.Errorf("compiler.custom_elements: %w", err)
		}
		opts.IsCustomElement = match
	}
	return opts, nil
}

// AddPublisher registers a sink for update events.
func (a *App) AddPublisher(p ports.UpdatePublisher) {
	a.updateMu.Lock()
	defer a.updateMu.Unlock()
	a.publishers = append(a.publishers, p)
}

func (a *App) SetUpdateHandler(handler func(Update)) {
	a.updateMu.Lock()
	defer a.updateMu.Unlock()
	a.onUpdate = handler
}

func (a *App) publish(event ports.UpdateEvent, diags errors.DiagnosticList) {
	if event.SessionID == "" {
		event.SessionID = a.SessionID
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}

	a.statsMu.Lock()
	a.stats.ByKind[event.Kind]++
	a.stats.Tracked = a.Tracker.Len()
	stats := a.snapshotStatsLocked()
	a.statsMu.Unlock()

	a.updateMu.RLock()
	publishers := append([]ports.UpdatePublisher(nil), a.publishers...)
	handler := a.onUpdate
	a.updateMu.RUnlock()

	slog.Debug("update", "file", event.FileID, "kind", event.Kind, "component", event.Component, "reason", event.Reason)
	for _, p := range publishers {
		p.Publish(event)
	}
	if handler != nil {
		handler(Update{Event: event, Diagnostics: diags, Stats: stats})
	}
}

func (a *App) countCompile(failed bool) {
	a.statsMu.Lock()
	defer a.statsMu.Unlock()
	a.stats.Compiles++
	if failed {
		a.stats.Failures++
	}
}

func (a *App) Stats() Stats {
	a.statsMu.Lock()
	defer a.statsMu.Unlock()
	a.stats.Tracked = a.Tracker.Len()
	return a.snapshotStatsLocked()
}

func (a *App) snapshotStatsLocked() Stats {
	out := a.stats
	out.ByKind = make(map[string]int, len(a.stats.ByKind))
	for k, v := range a.stats.ByKind {
		out.ByKind[k] = v
	}
	return out
}

// storeOutput keeps the newest good output of a file for the dev server.
func (a *App) storeOutput(out *pipeline.Output) {
	a.outMu.Lock()
	defer a.outMu.Unlock()
	if prev, ok := a.outputs[out.FileID]; ok {
		for id := range prev.Styles {
			delete(a.styles, id)
		}
	}
	a.outputs[out.FileID] = out
	for id, s := range out.Styles {
		a.styles[id] = s
	}
}

func (a *App) dropOutput(fileID string) {
	a.outMu.Lock()
	defer a.outMu.Unlock()
	if prev, ok := a.outputs[fileID]; ok {
		for id := range prev.Styles {
			delete(a.styles, id)
		}
	}
	delete(a.outputs, fileID)
}

// Output returns the last good compile of fileID.
func (a *App) Output(fileID string) (*pipeline.Output, bool) {
	a.outMu.RLock()
	defer a.outMu.RUnlock()
	out, ok := a.outputs[fileID]
	return out, ok
}

// Style returns a compiled virtual style module by id.
func (a *App) Style(moduleID string) (compile.CompiledStyle, bool) {
	a.outMu.RLock()
	defer a.outMu.RUnlock()
	s, ok := a.styles[moduleID]
	return s, ok
}

// ApplyConfig takes a reloaded configuration. Only the watch debounce
// applies live; compiler changes wait for a restart.
func (a *App) ApplyConfig(cfg *config.Config) {
	if w := a.activeWatcher.Load(); w != nil {
		w.SetDebounce(cfg.Watch.Debounce)
	}
	if !reflect.DeepEqual(cfg.Compiler, a.Config.Compiler) {
		slog.Warn("compiler settings changed, restart the dev session to apply them")
	}
	slog.Info("config reloaded", "debounce", cfg.Watch.Debounce)
}

func (a *App) Close() error {
	if w := a.activeWatcher.Swap(nil); w != nil {
		return w.Close()
	}
	return nil
}
