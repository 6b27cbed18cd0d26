// Package style is the built-in style compiler: optional preprocessing,
// v-bind() extraction and attribute selector scoping.
package style

import (
	"context"
	"os"
	"time"

	"vinec/internal/core/ports"
	"vinec/internal/engine/parser"
	"vinec/internal/shared/observability"
)

type Compiler struct {
	loader        *parser.GrammarLoader
	preprocessors map[string]Preprocessor
}

// NewCompiler builds a style compiler. commands maps a style language to its
// preprocessor command line.
func NewCompiler(loader *parser.GrammarLoader, commands map[string]string) *Compiler {
	c := &Compiler{loader: loader, preprocessors: make(map[string]Preprocessor, len(commands))}
	for lang, cmd := range commands {
		c.preprocessors[lang] = Preprocessor{Command: cmd}
	}
	return c
}

func (c *Compiler) CompileStyle(ctx context.Context, input ports.StyleInput, opts ports.StyleOptions) (ports.StyleResult, error) {
	start := time.Now()
	defer func() {
		observability.StageDuration.WithLabelValues("style").Observe(time.Since(start).Seconds())
	}()

	source := input.Source
	if source == "" && input.Path != "" {
		if err := ctx.Err(); err != nil {
			return ports.StyleResult{}, err
		}
		data, err := os.ReadFile(input.Path)
		if err != nil {
			return ports.StyleResult{}, err
		}
		source = string(data)
	}

	var res ports.StyleResult
	css := source
	switch opts.Lang {
	case "", "css", "postcss":
	default:
		pre, ok := c.preprocessors[opts.Lang]
		if !ok {
			res.Errors = append(res.Errors, ports.CompileError{
				Message: "no preprocessor configured for " + opts.Lang,
				Length:  len(source),
			})
			return res, nil
		}
		out, err := pre.Run(ctx, source)
		if err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			res.Errors = append(res.Errors, ports.CompileError{Message: err.Error(), Length: len(source)})
			return res, nil
		}
		css = out
	}

	css, res.DynamicBindings = extractBindings(css, opts.ScopeID)
	if opts.Scoped && opts.ScopeID != "" {
		scoped, errs, err := scope(c.loader, css, "[data-v-"+opts.ScopeID+"]")
		if err != nil {
			return res, err
		}
		res.Errors = append(res.Errors, errs...)
		css = scoped
	}
	res.CSS = css
	return res, nil
}
