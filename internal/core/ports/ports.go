package ports

import (
	"context"
	"time"
)

// Mode selects development or production code generation.
type Mode string

const (
	ModeDevelopment Mode = "development"
	ModeProduction  Mode = "production"
)

// CompileError is an error reported by an external compiler. Offset and
// Length are relative to the text that compiler was given.
type CompileError struct {
	Message string
	Offset  int
	Length  int
	Warning bool
}

// TemplateOptions carries per-component settings to the markup compiler.
type TemplateOptions struct {
	ComponentName string
	ScopeID       string
	Scoped        bool
	Mode          Mode
	// Components are the names of same-file components, referenced directly.
	Components        []string
	NegativeBoolProps bool
	IsCustomElement   func(tag string) bool
}

// TemplateResult is the compiled render expression of one template.
type TemplateResult struct {
	// Code is a JavaScript expression evaluated inside
	// `function render(_ctx, _cache)`.
	Code string
	// ImportsUsed lists the runtime exports Code references.
	ImportsUsed []string
	Errors      []CompileError
}

// TemplateCompiler turns raw markup into a render expression.
type TemplateCompiler interface {
	CompileTemplate(source string, opts TemplateOptions) (TemplateResult, error)
}

// StyleInput is either inline style text or a stylesheet path.
type StyleInput struct {
	Source string
	Path   string
}

type StyleOptions struct {
	ScopeID string
	Scoped  bool
	Lang    string
}

type StyleResult struct {
	CSS string
	Map string
	// DynamicBindings are the expressions referenced via v-bind(), in first
	// seen order.
	DynamicBindings []string
	Errors          []CompileError
}

// StyleCompiler preprocesses and scopes one style fragment.
type StyleCompiler interface {
	CompileStyle(ctx context.Context, input StyleInput, opts StyleOptions) (StyleResult, error)
}

// ModuleGraph is the hosting build tool's module graph.
type ModuleGraph interface {
	// Invalidate marks fileID stale and returns every module that must be
	// re-evaluated as a result, fileID first.
	Invalidate(fileID string) []string
}

// UpdateEvent is what a dev session pushes to connected clients.
type UpdateEvent struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"session_id"`
	FileID      string    `json:"file"`
	Kind        string    `json:"kind"`
	Component   string    `json:"component,omitempty"`
	ScopeID     string    `json:"scope_id,omitempty"`
	Affected    []string  `json:"affected,omitempty"`
	Modules     []string  `json:"modules,omitempty"`
	Reason      string    `json:"reason,omitempty"`
	Diagnostics []string  `json:"diagnostics,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// UpdatePublisher fans update events out to clients.
type UpdatePublisher interface {
	Publish(event UpdateEvent)
}

// HistoryStore persists update events for later inspection.
type HistoryStore interface {
	SaveEvent(event UpdateEvent) error
	LoadEvents(since time.Time, limit int) ([]UpdateEvent, error)
}
