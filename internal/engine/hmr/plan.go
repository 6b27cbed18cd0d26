// Package hmr decides how a running application picks up an edited file:
// not at all, by swapping styles, by swapping a render function, or by
// reloading the module.
package hmr

import (
	"vinec/internal/core/errors"
	"vinec/internal/engine/extract"
)

// Kind is the update verdict. Larger values have a wider blast radius.
type Kind int

const (
	KindNone Kind = iota
	KindStyle
	KindRender
	KindReload
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindStyle:
		return "style"
	case KindRender:
		return "render"
	case KindReload:
		return "reload"
	}
	return "unknown"
}

// ComponentChange is the verdict for one component of the file.
type ComponentChange struct {
	Name   string
	Kind   Kind
	Reason string
}

// UpdatePlan is the single decision made for one recompile of a file.
type UpdatePlan struct {
	FileID string
	Kind   Kind
	// ComponentName is the primary component, empty when none applies.
	ComponentName string
	// ScopeID is set for style plans.
	ScopeID string
	Changes []ComponentChange
	// StyleScopes lists every component scope whose styles changed.
	StyleScopes []string
	// Affected are same-file components that render ComponentName.
	Affected []string
	// Notify is set when extraction of the new content failed.
	Notify      []string
	Diagnostics errors.DiagnosticList
	Reason      string
	// Diff is a unified diff of the changed script, filled when explaining.
	Diff string
}

// RenderOnly reports whether the plan swaps render functions only.
func (p UpdatePlan) RenderOnly() bool { return p.Kind == KindRender }

// Rerendered lists the components whose render function is swapped, in
// file order.
func (p UpdatePlan) Rerendered() []string {
	if p.Kind != KindRender {
		return nil
	}
	var out []string
	for _, c := range p.Changes {
		if c.Kind == KindRender {
			out = append(out, c.Name)
		}
	}
	return out
}

// Patching reports whether the running module is patched instead of reloaded.
func (p UpdatePlan) Patching() bool { return p.Kind == KindStyle || p.Kind == KindRender }

// Failure is the plan for a new version that could not be extracted. It
// reloads and names the last known good components so clients can show the
// error.
func Failure(old *extract.FileContext, fileID string, diags errors.DiagnosticList) UpdatePlan {
	plan := UpdatePlan{
		FileID:      fileID,
		Kind:        KindReload,
		Diagnostics: diags,
		Reason:      "new version failed to compile",
	}
	if old != nil {
		plan.Notify = old.ComponentNames()
	}
	return plan
}
