package template

import (
	"time"

	"vinec/internal/core/ports"
	"vinec/internal/engine/parser"
	"vinec/internal/shared/observability"
)

// Compiler is the built-in ports.TemplateCompiler.
type Compiler struct {
	loader *parser.GrammarLoader
	prefix *prefixer
}

func NewCompiler(loader *parser.GrammarLoader) *Compiler {
	return &Compiler{loader: loader, prefix: &prefixer{loader: loader}}
}

func (c *Compiler) CompileTemplate(source string, opts ports.TemplateOptions) (ports.TemplateResult, error) {
	start := time.Now()
	defer func() {
		observability.StageDuration.WithLabelValues("template").Observe(time.Since(start).Seconds())
	}()

	nodes, parseErrs, err := Parse(c.loader, source)
	if err != nil {
		return ports.TemplateResult{}, err
	}
	g := newGenerator(opts, c.prefix)
	code := g.root(nodes)
	return ports.TemplateResult{
		Code:        code,
		ImportsUsed: g.usedHelpers(),
		Errors:      append(parseErrs, g.errors...),
	}, nil
}
