package app

import (
	"fmt"
	"io"
	"path/filepath"
	"time"

	"vinec/internal/core/errors"
	"vinec/internal/data/history"
)

// PrintDiagnostics writes one line per diagnostic, errors before warnings.
func PrintDiagnostics(w io.Writer, list errors.DiagnosticList) {
	for _, d := range list.Errors() {
		fmt.Fprintln(w, d.String())
	}
	for _, d := range list.Warnings() {
		fmt.Fprintln(w, d.String())
	}
}

func PrintBuildSummary(w io.Writer, root string, res BuildResult) {
	fmt.Fprintf(w, "compiled %d file(s) in %s, %d failed, %d written\n",
		res.Files, res.Duration.Round(time.Millisecond), len(res.Failed), len(res.Written))
	for _, f := range res.Failed {
		rel, err := filepath.Rel(root, f)
		if err != nil {
			rel = f
		}
		fmt.Fprintf(w, "  failed: %s\n", rel)
	}
}

func PrintSummary(w io.Writer, s history.Summary) {
	fmt.Fprintf(w, "%d event(s) from %s to %s\n", s.EventCount,
		s.Since.Format("2006-01-02 15:04:05"), s.Until.Format("2006-01-02 15:04:05"))
	for _, kind := range []string{"none", "style", "render", "reload"} {
		fmt.Fprintf(w, "  %-7s %d\n", kind, s.ByKind[kind])
	}
	fmt.Fprintf(w, "patch ratio: %.2f\n", s.PatchRatio)
	if len(s.HotFiles) == 0 {
		return
	}
	fmt.Fprintln(w, "most reloaded:")
	for _, f := range s.HotFiles {
		fmt.Fprintf(w, "  %4d  %s\n", f.Reloads, f.FileID)
	}
}
