// Package pipeline wires the analysis and transform stages into a compiler
// instance that owns the per-process caches. Nothing here is global, so
// independent compilers can run side by side.
package pipeline

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"vinec/internal/core/errors"
	"vinec/internal/core/ports"
	"vinec/internal/engine/compile"
	"vinec/internal/engine/compile/style"
	"vinec/internal/engine/compile/template"
	"vinec/internal/engine/extract"
	"vinec/internal/engine/hmr"
	"vinec/internal/engine/hmrgraph"
	"vinec/internal/engine/macro"
	"vinec/internal/engine/parser"
	"vinec/internal/engine/rewrite"
	"vinec/internal/engine/transform"
	"vinec/internal/shared/observability"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

var DefaultTemplateTags = []string{"template", "vine"}

type Options struct {
	Mode              ports.Mode
	MacroModule       string
	RuntimeModule     string
	TemplateTags      []string
	StyleBaseDir      string
	NegativeBoolProps bool
	IsCustomElement   func(tag string) bool
	// Preprocessors maps a style language to its preprocessor command.
	Preprocessors  map[string]string
	Explain        bool
	GraphCacheSize int
	// Workers bounds CompileBatch concurrency. 0 uses one per CPU.
	Workers int
}

// Output is the result of compiling one file.
type Output struct {
	FileID string
	Seq    uint64
	Code   string
	Map    *rewrite.SourceMap
	// Styles are the compiled virtual style modules keyed by module id.
	Styles      map[string]compile.CompiledStyle
	Context     *extract.FileContext
	Diagnostics errors.DiagnosticList
}

// Input is one file of a batch.
type Input struct {
	FileID string
	Source []byte
}

type Compiler struct {
	opts        Options
	indexer     *parser.Indexer
	extractor   *extract.Extractor
	adapter     *compile.Adapter
	transformer *transform.Transformer
	decider     *hmr.Decider
	graphs      *hmrgraph.Cache

	seq atomic.Uint64

	mu       sync.RWMutex
	contexts map[string]*extract.FileContext
	// requested is the newest sequence handed out per file.
	requested map[string]uint64

	diagMu sync.Mutex
	diags  map[runKey]errors.DiagnosticList
}

// runKey identifies one pipeline run. Runs of the same file may overlap.
type runKey struct {
	fileID string
	seq    uint64
}

// New builds a compiler with the built-in template and style compilers.
func New(opts Options) *Compiler {
	loader := parser.NewGrammarLoader()
	return NewWithCompilers(opts, loader, template.NewCompiler(loader), style.NewCompiler(loader, opts.Preprocessors))
}

// NewWithCompilers builds a compiler around external template and style
// compilers.
func NewWithCompilers(opts Options, loader *parser.GrammarLoader, templates ports.TemplateCompiler, styles ports.StyleCompiler) *Compiler {
	if opts.Mode == "" {
		opts.Mode = ports.ModeDevelopment
	}
	if opts.MacroModule == "" {
		opts.MacroModule = "vue-vine"
	}
	if len(opts.TemplateTags) == 0 {
		opts.TemplateTags = DefaultTemplateTags
	}
	if opts.GraphCacheSize <= 0 {
		opts.GraphCacheSize = 256
	}
	graphs := hmrgraph.NewCache(opts.GraphCacheSize)
	return &Compiler{
		opts: opts,
		indexer: parser.NewIndexer(loader, parser.IndexOptions{
			TemplateTags:  opts.TemplateTags,
			IsMacroCallee: macro.IsMacroCallee,
		}),
		extractor: extract.New(extract.Options{MacroModule: opts.MacroModule, BaseDir: opts.StyleBaseDir}),
		adapter: compile.NewAdapter(templates, styles, compile.Options{
			Mode:              opts.Mode,
			NegativeBoolProps: opts.NegativeBoolProps,
			IsCustomElement:   opts.IsCustomElement,
		}),
		transformer: transform.New(transform.Options{
			Mode:          opts.Mode,
			RuntimeModule: opts.RuntimeModule,
			MacroModule:   opts.MacroModule,
		}),
		decider:   hmr.NewDecider(hmr.Options{Explain: opts.Explain, Graphs: graphs}),
		graphs:    graphs,
		contexts:  make(map[string]*extract.FileContext),
		requested: make(map[string]uint64),
		diags:     make(map[runKey]errors.DiagnosticList),
	}
}

func (c *Compiler) Mode() ports.Mode { return c.opts.Mode }

// Compile runs the full pipeline on one file and publishes its context.
func (c *Compiler) Compile(ctx context.Context, fileID string, source []byte) (*Output, error) {
	out, _, err := c.run(ctx, fileID, source, false)
	return out, err
}

// Recompile compiles a new version of a file and decides how a running
// application should pick it up. When the new version fails, the plan is the
// failure plan and the previous context stays published.
func (c *Compiler) Recompile(ctx context.Context, fileID string, source []byte) (*Output, hmr.UpdatePlan, error) {
	return c.run(ctx, fileID, source, true)
}

// CompileBatch compiles files concurrently. Every file is attempted; the
// first error is returned alongside all outputs, which keep input order.
func (c *Compiler) CompileBatch(ctx context.Context, inputs []Input) ([]*Output, error) {
	outputs := make([]*Output, len(inputs))
	g, gctx := errgroup.WithContext(ctx)
	workers := c.opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	g.SetLimit(max(1, min(workers, len(inputs))))

	var (
		errMu    sync.Mutex
		firstErr error
	)
	for i, in := range inputs {
		g.Go(func() error {
			out, err := c.Compile(gctx, in.FileID, in.Source)
			outputs[i] = out
			if err != nil {
				errMu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				errMu.Unlock()
			}
			// Cancellation is the only reason to stop the batch.
			if gctx.Err() != nil {
				return gctx.Err()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return outputs, err
	}
	return outputs, firstErr
}

func (c *Compiler) run(ctx context.Context, fileID string, source []byte, decide bool) (*Output, hmr.UpdatePlan, error) {
	seq := c.begin(fileID)
	start := time.Now()
	ctx, span := observability.Tracer.Start(ctx, "pipeline.compile", trace.WithAttributes(
		attribute.String("file", fileID),
		attribute.Int64("seq", int64(seq)),
		attribute.Bool("recompile", decide),
	))
	defer span.End()
	defer func() {
		observability.CompileDuration.WithLabelValues(string(c.opts.Mode)).Observe(time.Since(start).Seconds())
	}()

	prev := c.Context(fileID)
	out, fc, plan, err := c.stages(ctx, fileID, source, seq, prev, decide)
	out.Diagnostics = c.drain(runKey{fileID, seq})
	for _, d := range out.Diagnostics {
		observability.DiagnosticsTotal.WithLabelValues(d.Severity.String(), string(d.Code)).Inc()
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if decide {
			plan = hmr.Failure(prev, fileID, out.Diagnostics)
		}
		return out, plan, err
	}
	if err := c.publish(fileID, seq, fc); err != nil {
		span.RecordError(err)
		return out, plan, err
	}
	span.SetAttributes(attribute.String("plan", plan.Kind.String()))
	return out, plan, nil
}
