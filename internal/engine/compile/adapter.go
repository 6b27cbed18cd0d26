// Package compile runs each component's template and style fragments through
// the configured compilers and maps their errors back into the host file.
package compile

import (
	"context"
	"fmt"
	"os"
	"time"

	"vinec/internal/core/errors"
	"vinec/internal/core/ports"
	"vinec/internal/engine/extract"
	"vinec/internal/shared/observability"

	"github.com/gobwas/glob"
)

type Options struct {
	Mode              ports.Mode
	NegativeBoolProps bool
	// IsCustomElement reports tags rendered as plain elements.
	IsCustomElement func(tag string) bool
}

// CompiledStyle is the output of one style fragment.
type CompiledStyle struct {
	ModuleID string
	Index    int
	Scoped   bool
	CSS      string
	Map      string
}

// ComponentArtifacts holds the compiled output of one component.
type ComponentArtifacts struct {
	Name string
	// Render is the render expression, "null" without a template.
	Render  string
	Helpers []string
	Styles  []CompiledStyle
	Failed  bool
}

// FileArtifacts is the compile result of one FileContext.
type FileArtifacts struct {
	FileID      string
	Components  map[string]*ComponentArtifacts
	Diagnostics errors.DiagnosticList
}

// Styles returns every compiled style of the file keyed by module id.
func (f *FileArtifacts) Styles() map[string]CompiledStyle {
	out := make(map[string]CompiledStyle)
	for _, c := range f.Components {
		for _, s := range c.Styles {
			out[s.ModuleID] = s
		}
	}
	return out
}

// Adapter wraps a template compiler and a style compiler.
type Adapter struct {
	templates ports.TemplateCompiler
	styles    ports.StyleCompiler
	opts      Options
}

func NewAdapter(templates ports.TemplateCompiler, styles ports.StyleCompiler, opts Options) *Adapter {
	if opts.Mode == "" {
		opts.Mode = ports.ModeDevelopment
	}
	return &Adapter{templates: templates, styles: styles, opts: opts}
}

// Compile compiles every component of fc. Dynamic style bindings are
// recorded on the components, so it must run before fc is published. A
// failing component does not stop the others.
func (a *Adapter) Compile(ctx context.Context, fc *extract.FileContext) (*FileArtifacts, error) {
	start := time.Now()
	defer func() {
		observability.StageDuration.WithLabelValues("compile").Observe(time.Since(start).Seconds())
	}()

	out := &FileArtifacts{FileID: fc.FileID, Components: make(map[string]*ComponentArtifacts, len(fc.Components))}
	names := fc.ComponentNames()
	for _, cc := range fc.Components {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		art := &ComponentArtifacts{Name: cc.Name, Render: "null"}
		out.Components[cc.Name] = art

		diags, err := a.template(fc, cc, names, art)
		if err != nil {
			return nil, errors.AddContext(err, errors.CtxComponent, cc.Name)
		}
		out.Diagnostics = append(out.Diagnostics, diags...)

		diags, err = a.stylesOf(ctx, fc, cc, art)
		if err != nil {
			return nil, errors.AddContext(err, errors.CtxComponent, cc.Name)
		}
		out.Diagnostics = append(out.Diagnostics, diags...)
	}
	for i := range out.Diagnostics {
		out.Diagnostics[i].Locate(fc.Source)
	}
	out.Diagnostics = out.Diagnostics.Sorted()
	return out, nil
}

func (a *Adapter) template(fc *extract.FileContext, cc *extract.ComponentContext, names []string, art *ComponentArtifacts) (errors.DiagnosticList, error) {
	if !cc.HasTemplate {
		return nil, nil
	}
	res, err := a.templates.CompileTemplate(cc.TemplateText, ports.TemplateOptions{
		ComponentName:     cc.Name,
		ScopeID:           cc.ScopeID,
		Scoped:            cc.Scoped(),
		Mode:              a.opts.Mode,
		Components:        names,
		NegativeBoolProps: a.opts.NegativeBoolProps,
		IsCustomElement:   a.opts.IsCustomElement,
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeCompile, "template compiler failed")
	}
	diags := mapErrors(fc.FileID, cc.Name, cc.TemplateSpan, res.Errors, true)
	if diags.HasErrors() {
		art.Failed = true
		return diags, nil
	}
	art.Render = res.Code
	art.Helpers = res.ImportsUsed
	return diags, nil
}

func (a *Adapter) stylesOf(ctx context.Context, fc *extract.FileContext, cc *extract.ComponentContext, art *ComponentArtifacts) (errors.DiagnosticList, error) {
	var diags errors.DiagnosticList
	seen := make(map[string]bool)
	for i := range cc.Styles {
		frag := &cc.Styles[i]
		input := ports.StyleInput{Source: frag.Source}
		if frag.External {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			data, err := os.ReadFile(frag.ResolvedPath)
			if err != nil {
				diags = append(diags, errors.Diagnostic{
					Code:      errors.CodeCompile,
					Severity:  errors.SeverityError,
					Message:   fmt.Sprintf("cannot read style import %s: %v", frag.ResolvedPath, err),
					FileID:    fc.FileID,
					Span:      frag.Span,
					Component: cc.Name,
				})
				art.Failed = true
				continue
			}
			frag.Source = string(data)
			input = ports.StyleInput{Source: frag.Source, Path: frag.ResolvedPath}
		}

		res, err := a.styles.CompileStyle(ctx, input, ports.StyleOptions{
			ScopeID: cc.ScopeID,
			Scoped:  frag.Scoped,
			Lang:    frag.Lang,
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, errors.Wrap(err, errors.CodeCompile, "style compiler failed")
		}
		// Offsets inside an imported file do not map into the host file.
		fragDiags := mapErrors(fc.FileID, cc.Name, frag.Span, res.Errors, !frag.External)
		diags = append(diags, fragDiags...)
		if fragDiags.HasErrors() {
			art.Failed = true
			continue
		}
		for _, b := range res.DynamicBindings {
			if !seen[b] {
				seen[b] = true
				cc.DynamicBindings = append(cc.DynamicBindings, b)
			}
		}
		art.Styles = append(art.Styles, CompiledStyle{
			ModuleID: frag.ModuleID(fc.FileID, cc.ScopeID),
			Index:    frag.Index,
			Scoped:   frag.Scoped,
			CSS:      res.CSS,
			Map:      res.Map,
		})
	}
	return diags, nil
}

// mapErrors turns compiler errors relative to base into host file
// diagnostics. Without precise offsets every error covers base.
func mapErrors(fileID, component string, base errors.Span, errs []ports.CompileError, precise bool) errors.DiagnosticList {
	var out errors.DiagnosticList
	for _, e := range errs {
		span := base
		if precise {
			start := min(base.Start+max(e.Offset, 0), base.End)
			span = errors.Span{Start: start, End: min(start+max(e.Length, 0), base.End)}
		}
		sev := errors.SeverityError
		if e.Warning {
			sev = errors.SeverityWarning
		}
		out = append(out, errors.Diagnostic{
			Code:      errors.CodeCompile,
			Severity:  sev,
			Message:   e.Message,
			FileID:    fileID,
			Span:      span,
			Component: component,
		})
	}
	return out
}

// TagMatcher compiles glob patterns into a custom-element predicate.
func TagMatcher(patterns []string) (func(string) bool, error) {
	if len(patterns) == 0 {
		return nil, nil
	}
	globs := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p)
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeValidation, "invalid custom element pattern "+p)
		}
		globs = append(globs, g)
	}
	return func(tag string) bool {
		for _, g := range globs {
			if g.Match(tag) {
				return true
			}
		}
		return false
	}, nil
}
