package hmr

import (
	"fmt"
	"slices"
	"time"

	"vinec/internal/core/errors"
	"vinec/internal/engine/extract"
	"vinec/internal/engine/hmrgraph"
	"vinec/internal/shared/observability"

	difflib "github.com/pmezard/go-difflib/difflib"
)

type Options struct {
	// Explain attaches a unified diff of the changed script to reload plans.
	Explain bool
	// MaxDiffBytes bounds the inputs of an explanation diff. 0 means no limit.
	MaxDiffBytes int
	// Graphs caches component graphs between decisions. Optional.
	Graphs *hmrgraph.Cache
}

type Decider struct {
	opts Options
}

func NewDecider(opts Options) *Decider {
	return &Decider{opts: opts}
}

// Decide compares two versions of the same file. It never fails: anything it
// cannot classify becomes a reload.
func Decide(prev, next *extract.FileContext) UpdatePlan {
	return NewDecider(Options{}).Decide(prev, next)
}

func (d *Decider) Decide(prev, next *extract.FileContext) UpdatePlan {
	start := time.Now()
	plan := d.decide(prev, next)
	observability.StageDuration.WithLabelValues("decide").Observe(time.Since(start).Seconds())
	observability.UpdatePlansTotal.WithLabelValues(plan.Kind.String()).Inc()
	return plan
}

func (d *Decider) decide(prev, next *extract.FileContext) UpdatePlan {
	plan := UpdatePlan{FileID: next.FileID}
	if prev == nil {
		plan.Kind = KindReload
		plan.Reason = "no previous version"
		return plan
	}
	if prev.Source == next.Source {
		plan.Reason = "source unchanged"
		return plan
	}

	oldNames, newNames := prev.ComponentNames(), next.ComponentNames()
	if !slices.Equal(oldNames, newNames) {
		plan.Kind = KindReload
		plan.ComponentName = firstAdded(oldNames, newNames)
		plan.Reason = "component set changed"
		return plan
	}

	var diffs []string
	for i, nc := range next.Components {
		oc := prev.Components[i]
		change, diff, warn := d.compare(prev, oc, next, nc)
		plan.Changes = append(plan.Changes, change)
		if warn != nil {
			plan.Diagnostics = append(plan.Diagnostics, *warn)
		}
		if diff != "" {
			diffs = append(diffs, diff)
		}
		if change.Kind == KindStyle || (change.Kind == KindReload && stylesDiffer(oc, nc)) {
			plan.StyleScopes = append(plan.StyleScopes, nc.ScopeID)
		}
		if change.Kind > plan.Kind {
			plan.Kind = change.Kind
			plan.ComponentName = change.Name
			plan.Reason = change.Reason
		}
	}
	if plan.Kind == KindNone {
		plan.Reason = "no component changed"
		return plan
	}

	primary := next.Component(plan.ComponentName)
	if plan.Kind == KindStyle {
		plan.ScopeID = primary.ScopeID
	}
	if plan.Kind == KindRender || plan.Kind == KindStyle {
		plan.Affected = d.graph(next).Affected(plan.ComponentName)
	}
	if d.opts.Explain && plan.Kind == KindReload {
		for _, diff := range diffs {
			plan.Diff += diff
		}
	}
	return plan
}

// compare classifies one component pair. Script dominates template, which
// dominates styles.
func (d *Decider) compare(oldFC *extract.FileContext, oc *extract.ComponentContext, newFC *extract.FileContext, nc *extract.ComponentContext) (ComponentChange, string, *errors.Diagnostic) {
	change := ComponentChange{Name: nc.Name}

	oldBody, okOld := PureBody(oldFC, oc)
	newBody, okNew := PureBody(newFC, nc)
	if !okOld || !okNew {
		change.Kind = KindReload
		change.Reason = "overlapping template and style spans"
		warn := &errors.Diagnostic{
			Code:      errors.CodeExtraction,
			Severity:  errors.SeverityWarning,
			Message:   fmt.Sprintf("%s: overlapping template and style spans, falling back to reload", nc.Name),
			FileID:    newFC.FileID,
			Span:      nc.FnSpan,
			Component: nc.Name,
		}
		warn.Locate(newFC.Source)
		return change, "", warn
	}
	if oldBody != newBody {
		change.Kind = KindReload
		change.Reason = "script changed"
		if d.opts.Explain {
			return change, d.diff(nc.Name, oldBody, newBody), nil
		}
		return change, "", nil
	}

	if normalize(oc.TemplateText) != normalize(nc.TemplateText) || oc.HasTemplate != nc.HasTemplate {
		change.Kind = KindRender
		change.Reason = "template changed"
		return change, "", nil
	}

	if stylesDiffer(oc, nc) {
		if sameSet(oc.DynamicBindings, nc.DynamicBindings) {
			change.Kind = KindStyle
			change.Reason = "style changed"
		} else {
			change.Kind = KindReload
			change.Reason = "dynamic style bindings changed"
		}
	}
	return change, "", nil
}

func (d *Decider) graph(fc *extract.FileContext) *hmrgraph.Graph {
	if d.opts.Graphs != nil {
		return d.opts.Graphs.Graph(fc)
	}
	return hmrgraph.Build(fc)
}

func (d *Decider) diff(name, a, b string) string {
	if d.opts.MaxDiffBytes > 0 && len(a)+len(b) > d.opts.MaxDiffBytes {
		return fmt.Sprintf("--- a/%s\n+++ b/%s\n@@ diff omitted (too large) @@\n", name, name)
	}
	out, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(a),
		B:        difflib.SplitLines(b),
		FromFile: "a/" + name,
		ToFile:   "b/" + name,
		Context:  2,
	})
	if err != nil {
		return ""
	}
	return out
}

func stylesDiffer(a, b *extract.ComponentContext) bool {
	at, bt := a.StyleTexts(), b.StyleTexts()
	if len(at) != len(bt) {
		return true
	}
	for i := range at {
		if normalize(at[i]) != normalize(bt[i]) {
			return true
		}
	}
	return false
}

func sameSet(a, b []string) bool {
	as := make(map[string]bool, len(a))
	for _, s := range a {
		as[s] = true
	}
	bs := make(map[string]bool, len(b))
	for _, s := range b {
		if !as[s] {
			return false
		}
		bs[s] = true
	}
	return len(as) == len(bs)
}

func firstAdded(prev, next []string) string {
	had := make(map[string]bool, len(prev))
	for _, n := range prev {
		had[n] = true
	}
	for _, n := range next {
		if !had[n] {
			return n
		}
	}
	return ""
}
