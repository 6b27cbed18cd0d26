package pipeline

import (
	"context"

	"vinec/internal/core/errors"
	"vinec/internal/engine/extract"
	"vinec/internal/engine/hmr"
	"vinec/internal/engine/macro"
	"vinec/internal/shared/observability"
)

// stages runs index through transform. On failure fc is nil and err says
// which stage gave up; the diagnostics are in the accumulator.
func (c *Compiler) stages(ctx context.Context, fileID string, source []byte, seq uint64, prev *extract.FileContext, decide bool) (*Output, *extract.FileContext, hmr.UpdatePlan, error) {
	out := &Output{FileID: fileID, Seq: seq}
	key := runKey{fileID, seq}
	var plan hmr.UpdatePlan

	file, err := c.indexer.Index(fileID, source)
	if err != nil {
		return out, nil, plan, err
	}
	defer file.Close()

	res := macro.Validate(file, c.indexer, c.opts.MacroModule)
	c.report(key, res.Diagnostics...)

	fc, diags, err := c.extractor.Extract(file, res)
	c.report(key, diags...)
	if err != nil {
		return out, nil, plan, err
	}
	if res.Diagnostics.HasErrors() {
		return out, nil, plan, failed(fileID, errors.CodeValidation, res.Diagnostics)
	}
	fc.Seq = seq

	art, err := c.adapter.Compile(ctx, fc)
	if err != nil {
		return out, nil, plan, errors.AddContext(err, errors.CtxFile, fileID)
	}
	c.report(key, art.Diagnostics...)
	if art.Diagnostics.HasErrors() {
		return out, nil, plan, failed(fileID, errors.CodeCompile, art.Diagnostics)
	}

	if decide {
		plan = c.decider.Decide(prev, fc)
		c.report(key, plan.Diagnostics...)
		fc = fc.WithVerdict(plan.Patching(), plan.RenderOnly(), plan.ComponentName, plan.Rerendered()...)
	}

	result, err := c.transformer.Transform(fc, art)
	if err != nil {
		return out, nil, plan, err
	}
	out.Code = result.Code
	out.Map = result.Map
	out.Styles = art.Styles()
	out.Context = fc
	return out, fc, plan, nil
}

func failed(fileID string, code errors.ErrorCode, diags errors.DiagnosticList) error {
	err := errors.Newf(code, "%s: %d error(s)", fileID, len(diags.Errors()))
	return errors.AddContext(err, errors.CtxFile, fileID)
}

// begin hands out the sequence of a new run and records it as the newest
// request for the file.
func (c *Compiler) begin(fileID string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	seq := c.seq.Add(1)
	c.requested[fileID] = seq
	return seq
}

// publish installs fc unless a newer request for the file exists, whether or
// not that request has finished or succeeded.
func (c *Compiler) publish(fileID string, seq uint64, fc *extract.FileContext) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if newest := c.requested[fileID]; seq < newest {
		observability.StaleResultsDropped.Inc()
		err := errors.Newf(errors.CodeStale, "result %d superseded by %d", seq, newest)
		return errors.AddContext(err, errors.CtxFile, fileID)
	}
	c.contexts[fileID] = fc
	observability.FileContextEntries.Set(float64(len(c.contexts)))
	return nil
}

// Context returns the published context of a file, nil when there is none.
func (c *Compiler) Context(fileID string) *extract.FileContext {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.contexts[fileID]
}

// Forget drops the published context of a deleted file.
func (c *Compiler) Forget(fileID string) {
	c.mu.Lock()
	delete(c.contexts, fileID)
	observability.FileContextEntries.Set(float64(len(c.contexts)))
	c.mu.Unlock()

	c.graphs.Evict(fileID)
}

// Reset clears every cache of the compiler.
func (c *Compiler) Reset() {
	c.mu.Lock()
	for id := range c.contexts {
		c.graphs.Evict(id)
	}
	c.contexts = make(map[string]*extract.FileContext)
	observability.FileContextEntries.Set(0)
	c.mu.Unlock()
}

func (c *Compiler) report(key runKey, diags ...errors.Diagnostic) {
	if len(diags) == 0 {
		return
	}
	c.diagMu.Lock()
	defer c.diagMu.Unlock()
	c.diags[key] = append(c.diags[key], diags...)
}

// drain returns and clears the diagnostics accumulated by one run.
func (c *Compiler) drain(key runKey) errors.DiagnosticList {
	c.diagMu.Lock()
	defer c.diagMu.Unlock()
	out := c.diags[key].Sorted()
	delete(c.diags, key)
	return out
}
