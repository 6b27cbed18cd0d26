package style

import (
	"regexp"
	"strings"
)

var (
	vBindPattern = regexp.MustCompile(`v-bind\(\s*(?:'([^']*)'|"([^"]*)"|([^'"\s)][^)]*?))\s*\)`)
	unsafeChars  = regexp.MustCompile(`[^\w-]`)
)

// VarName returns the custom property name (without the leading --) that
// carries a dynamic binding.
func VarName(scopeID, expr string) string {
	return scopeID + "-" + unsafeChars.ReplaceAllString(strings.TrimSpace(expr), "_")
}

// extractBindings replaces every v-bind() with a custom property reference
// and returns the bound expressions in first-seen order.
func extractBindings(css, scopeID string) (string, []string) {
	var bindings []string
	seen := make(map[string]bool)
	out := vBindPattern.ReplaceAllStringFunc(css, func(match string) string {
		m := vBindPattern.FindStringSubmatch(match)
		expr := strings.TrimSpace(m[1] + m[2] + m[3])
		if !seen[expr] {
			seen[expr] = true
			bindings = append(bindings, expr)
		}
		return "var(--" + VarName(scopeID, expr) + ")"
	})
	return out, bindings
}
