// Package transform rewrites a compiled host file into plain runtime code.
// Every change goes through a rewrite.Buffer, stage by stage, so the result
// carries a source map back to the original file.
package transform

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"vinec/internal/core/errors"
	"vinec/internal/core/ports"
	"vinec/internal/engine/compile"
	"vinec/internal/engine/compile/style"
	"vinec/internal/engine/compile/template"
	"vinec/internal/engine/extract"
	"vinec/internal/engine/macro"
	"vinec/internal/engine/parser"
	"vinec/internal/engine/rewrite"
	"vinec/internal/shared/observability"
)

var paramName = regexp.MustCompile(`^\(?\s*([A-Za-z_$][\w$]*)`)

type Options struct {
	Mode ports.Mode
	// RuntimeModule provides defineComponent and the render helpers.
	RuntimeModule string
	MacroModule   string
}

// Result is the rewritten file.
type Result struct {
	Code  string
	Map   *rewrite.SourceMap
	Edits []rewrite.Edit
}

type Transformer struct {
	opts Options
}

func New(opts Options) *Transformer {
	if opts.Mode == "" {
		opts.Mode = ports.ModeDevelopment
	}
	if opts.RuntimeModule == "" {
		opts.RuntimeModule = "vue"
	}
	if opts.MacroModule == "" {
		opts.MacroModule = "vue-vine"
	}
	return &Transformer{opts: opts}
}

// run holds the state of one Transform call.
type run struct {
	opts    Options
	fc      *extract.FileContext
	art     *compile.FileArtifacts
	buf     *rewrite.Buffer
	helpers map[string]bool
}

// Transform rewrites fc using the compiled artifacts. An edit conflict is an
// internal error and fails the whole file.
func (t *Transformer) Transform(fc *extract.FileContext, art *compile.FileArtifacts) (*Result, error) {
	start := time.Now()
	defer func() {
		observability.StageDuration.WithLabelValues("transform").Observe(time.Since(start).Seconds())
	}()

	r := &run{
		opts:    t.opts,
		fc:      fc,
		art:     art,
		buf:     rewrite.NewBuffer(fc.Source),
		helpers: make(map[string]bool),
	}
	stages := []struct {
		name string
		fn   func() error
	}{
		{"templates", r.templates},
		{"styles", r.styles},
		{"macros", r.macros},
		{"imports", r.macroImports},
		{"components", r.components},
	}
	for _, stage := range stages {
		if err := stage.fn(); err != nil {
			err = errors.AddContext(err, errors.CtxOperation, "transform "+stage.name)
			return nil, errors.AddContext(err, errors.CtxFile, fc.FileID)
		}
	}
	if t.opts.Mode == ports.ModeDevelopment && len(fc.Components) > 0 {
		r.buf.Append(r.hmrFooter())
	}
	r.buf.Prepend(r.header())

	return &Result{
		Code:  r.buf.String(),
		Map:   r.buf.SourceMap(fc.FileID, fc.FileID),
		Edits: r.buf.Edits(),
	}, nil
}

func (r *run) helper(name string) string {
	r.helpers[name] = true
	return template.HelperPrefix + name
}

// templates replaces each tagged template with the setup binding object.
func (r *run) templates() error {
	for _, cc := range r.fc.Components {
		if !cc.HasTemplate {
			continue
		}
		obj := "{}"
		if len(cc.SetupReturn) > 0 {
			obj = "{ " + strings.Join(cc.SetupReturn, ", ") + " }"
		}
		if cc.ConciseBody {
			obj = "(" + obj + ")"
		}
		if err := r.buf.Overwrite(cc.TemplateExprSpan.Start, cc.TemplateExprSpan.End, obj); err != nil {
			return errors.AddContext(err, errors.CtxComponent, cc.Name)
		}
	}
	return nil
}

// styles removes style macro statements. The fragments come back as
// side-effect imports in the header.
func (r *run) styles() error {
	for _, cc := range r.fc.Components {
		for _, site := range cc.Macros {
			if site.Kind != macro.KindStyle && site.Kind != macro.KindStyleImport {
				continue
			}
			if err := r.drop(site); err != nil {
				return errors.AddContext(err, errors.CtxComponent, cc.Name)
			}
		}
	}
	return nil
}

// drop removes a macro whose value is compile time only.
func (r *run) drop(site extract.MacroSite) error {
	if site.ExprStatement {
		return r.buf.Remove(site.StmtSpan.Start, site.StmtSpan.End)
	}
	return r.buf.Overwrite(site.Span.Start, site.Span.End, "void 0")
}

func (r *run) macros() error {
	for _, cc := range r.fc.Components {
		models := 0
		for _, site := range cc.Macros {
			var err error
			switch site.Kind {
			case macro.KindProp, macro.KindPropDefault:
				code := fmt.Sprintf("%s(__props, %q)", r.helper("toRef"), site.Binding)
				err = r.buf.Overwrite(site.Span.Start, site.Span.End, code)
			case macro.KindEmits:
				if site.ExprStatement {
					err = r.buf.Remove(site.StmtSpan.Start, site.StmtSpan.End)
				} else {
					err = r.buf.Overwrite(site.Span.Start, site.Span.End, "__emit")
				}
			case macro.KindModel:
				name := cc.Models[models].Name
				models++
				code := fmt.Sprintf("%s(__props, %q)", r.helper("useModel"), name)
				err = r.buf.Overwrite(site.Span.Start, site.Span.End, code)
			case macro.KindExpose:
				err = r.buf.Overwrite(site.Span.Start, site.Span.End, "__expose("+site.Args[0]+")")
			case macro.KindSlots:
				if site.ExprStatement {
					err = r.buf.Remove(site.StmtSpan.Start, site.StmtSpan.End)
				} else {
					err = r.buf.Overwrite(site.Span.Start, site.Span.End, "__slots")
				}
			case macro.KindOptions, macro.KindValidators, macro.KindCustomElement:
				err = r.drop(site)
			}
			if err != nil {
				return errors.AddContext(err, errors.CtxComponent, cc.Name)
			}
		}
	}
	return nil
}

// macroImports removes imports of the macro module, which has no runtime.
func (r *run) macroImports() error {
	src := r.fc.Source
	for _, imp := range r.fc.Imports {
		if imp.Source != r.opts.MacroModule {
			continue
		}
		end := imp.Span.End
		if end < len(src) && src[end] == '\n' {
			end++
		}
		if err := r.buf.Remove(imp.Span.Start, end); err != nil {
			return err
		}
	}
	return nil
}

const setupContext = "{ emit: __emit, expose: __expose, slots: __slots }"

// components turns each component function into its setup function and
// appends the render function and the registration after it.
func (r *run) components() error {
	for _, cc := range r.fc.Components {
		if err := r.component(cc); err != nil {
			return errors.AddContext(err, errors.CtxComponent, cc.Name)
		}
	}
	return nil
}

func (r *run) component(cc *extract.ComponentContext) error {
	if cc.Export != parser.ExportNone {
		if err := r.buf.Remove(cc.ExportSpan.Start, cc.ExportSpan.End); err != nil {
			return err
		}
	}
	if err := r.buf.Overwrite(cc.NameSpan.Start, cc.NameSpan.End, setupName(cc.Name)); err != nil {
		return err
	}

	params := r.fc.Text(cc.ParamsSpan)
	sig := "(__props, " + setupContext + ")"
	if cc.ParamsSpan.Len() > 0 {
		if err := r.buf.Overwrite(cc.ParamsSpan.Start, cc.ParamsSpan.End, sig); err != nil {
			return err
		}
	}

	if !cc.ConciseBody && cc.BodySpan.Len() > 0 {
		var prologue strings.Builder
		if m := paramName.FindStringSubmatch(params); m != nil {
			fmt.Fprintf(&prologue, "\n  const %s = __props;", m[1])
		}
		if len(cc.DynamicBindings) > 0 {
			prologue.WriteString("\n  " + r.cssVars(cc))
		}
		if prologue.Len() > 0 {
			if err := r.buf.AppendLeft(cc.BodySpan.Start+1, prologue.String()); err != nil {
				return err
			}
		}
	}

	return r.buf.AppendLeft(cc.FnSpan.End, r.registration(cc))
}

func (r *run) cssVars(cc *extract.ComponentContext) string {
	entries := make([]string, 0, len(cc.DynamicBindings))
	for _, expr := range cc.DynamicBindings {
		entries = append(entries, fmt.Sprintf("%q: %s(%s)", style.VarName(cc.ScopeID, expr), r.helper("unref"), expr))
	}
	return fmt.Sprintf("%s(() => ({ %s }));", r.helper("useCssVars"), strings.Join(entries, ", "))
}

func setupName(component string) string { return "__" + component + "_setup" }

func renderName(component string) string { return template.HelperPrefix + component + "_render" }

// header is the runtime import plus one import per style fragment.
func (r *run) header() string {
	var b strings.Builder
	if r.art != nil {
		for _, c := range r.art.Components {
			for _, h := range c.Helpers {
				r.helpers[h] = true
			}
		}
	}
	if len(r.helpers) > 0 {
		names := make([]string, 0, len(r.helpers))
		for name := range r.helpers {
			names = append(names, name)
		}
		sort.Strings(names)
		specs := make([]string, 0, len(names))
		for _, name := range names {
			specs = append(specs, name+" as "+template.HelperPrefix+name)
		}
		fmt.Fprintf(&b, "import { %s } from %q;\n", strings.Join(specs, ", "), r.opts.RuntimeModule)
	}
	for _, cc := range r.fc.Components {
		for _, frag := range cc.Styles {
			fmt.Fprintf(&b, "import %q;\n", frag.ModuleID(r.fc.FileID, cc.ScopeID))
		}
	}
	return b.String()
}
