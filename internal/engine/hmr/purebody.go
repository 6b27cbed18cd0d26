package hmr

import (
	"sort"
	"strings"

	"vinec/internal/core/errors"
	"vinec/internal/engine/extract"
)

func normalize(s string) string {
	return strings.ReplaceAll(s, "\r\n", "\n")
}

// PureBody returns the component's declaration text with its template text
// and style fragment texts cut out, line endings normalized. ok is false when
// the cut spans overlap or leave the declaration.
func PureBody(fc *extract.FileContext, cc *extract.ComponentContext) (body string, ok bool) {
	var cuts []errors.Span
	if cc.HasTemplate {
		cuts = append(cuts, cc.TemplateSpan)
	}
	for _, s := range cc.Styles {
		cuts = append(cuts, s.Span)
	}
	sort.Slice(cuts, func(i, j int) bool { return cuts[i].Start < cuts[j].Start })

	var b strings.Builder
	pos := cc.FnSpan.Start
	for i, cut := range cuts {
		if !cc.FnSpan.Contains(cut) || (i > 0 && cuts[i-1].Overlaps(cut)) {
			return "", false
		}
		b.WriteString(fc.Text(errors.Span{Start: pos, End: cut.Start}))
		pos = cut.End
	}
	b.WriteString(fc.Text(errors.Span{Start: pos, End: cc.FnSpan.End}))
	return normalize(b.String()), true
}
