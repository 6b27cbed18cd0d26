package errors

import (
	"fmt"
	"sort"
	"strings"
)

type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
)

func (s Severity) String() string {
	if s == SeverityWarning {
		return "warning"
	}
	return "error"
}

// Span is a half-open byte range [Start, End) into a file's original source.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

func (s Span) Len() int { return s.End - s.Start }

func (s Span) Contains(o Span) bool { return o.Start >= s.Start && o.End <= s.End }

func (s Span) Overlaps(o Span) bool { return s.Start < o.End && o.Start < s.End }

// Diagnostic is one compile message attributed to a file span.
type Diagnostic struct {
	Code     ErrorCode `json:"code"`
	Severity Severity  `json:"severity"`
	Message  string    `json:"message"`
	FileID   string    `json:"file"`
	Span     Span      `json:"span"`
	Line     int       `json:"line,omitempty"`
	Column   int       `json:"column,omitempty"`
	// Component names the component the diagnostic belongs to, if any.
	Component string `json:"component,omitempty"`
}

func (d Diagnostic) IsError() bool { return d.Severity == SeverityError }

func (d Diagnostic) String() string {
	loc := d.FileID
	if d.Line > 0 {
		loc = fmt.Sprintf("%s:%d:%d", d.FileID, d.Line, d.Column)
	}
	return fmt.Sprintf("%s: %s [%s] %s", loc, d.Severity, d.Code, d.Message)
}

// Error lets a Diagnostic travel as an error value.
func (d Diagnostic) Error() string { return d.String() }

// Locate fills Line/Column (1-based) from the span start against source.
func (d *Diagnostic) Locate(source string) {
	if d.Span.Start < 0 || d.Span.Start > len(source) {
		return
	}
	prefix := source[:d.Span.Start]
	d.Line = strings.Count(prefix, "\n") + 1
	d.Column = d.Span.Start - (strings.LastIndex(prefix, "\n") + 1) + 1
}

type DiagnosticList []Diagnostic

func (l DiagnosticList) Errors() DiagnosticList {
	out := make(DiagnosticList, 0, len(l))
	for _, d := range l {
		if d.IsError() {
			out = append(out, d)
		}
	}
	return out
}

func (l DiagnosticList) Warnings() DiagnosticList {
	out := make(DiagnosticList, 0, len(l))
	for _, d := range l {
		if !d.IsError() {
			out = append(out, d)
		}
	}
	return out
}

func (l DiagnosticList) HasErrors() bool {
	for _, d := range l {
		if d.IsError() {
			return true
		}
	}
	return false
}

// Sorted orders by file, then span start, errors before warnings on ties.
func (l DiagnosticList) Sorted() DiagnosticList {
	out := append(DiagnosticList(nil), l...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].FileID != out[j].FileID {
			return out[i].FileID < out[j].FileID
		}
		if out[i].Span.Start != out[j].Span.Start {
			return out[i].Span.Start < out[j].Span.Start
		}
		return out[i].Severity < out[j].Severity
	})
	return out
}

// Err folds the error diagnostics into a single error, nil when there are none.
func (l DiagnosticList) Err() error {
	errs := l.Errors()
	if len(errs) == 0 {
		return nil
	}
	lines := make([]string, 0, len(errs))
	for _, d := range errs.Sorted() {
		lines = append(lines, d.String())
	}
	return &DomainError{
		Code:    errs[0].Code,
		Message: fmt.Sprintf("%d error(s):\n%s", len(errs), strings.Join(lines, "\n")),
	}
}
