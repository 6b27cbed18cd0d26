package transform

import (
	"fmt"
	"strings"
)

// hmrFooter registers every component with the runtime's hot update API and
// accepts the next version of the module. A render-only verdict swaps the
// render function of each rerendered component. A style verdict leaves the
// module alone since the style modules update themselves. Anything else
// reloads.
func (r *run) hmrFooter() string {
	var b strings.Builder
	b.WriteString("\n")
	names := r.fc.ComponentNames()
	for _, cc := range r.fc.Components {
		fmt.Fprintf(&b, "%s.__hmrId = %q;\n", cc.Name, cc.ScopeID)
		fmt.Fprintf(&b, "typeof __VUE_HMR_RUNTIME__ !== \"undefined\" && __VUE_HMR_RUNTIME__.createRecord(%s.__hmrId, %s);\n", cc.Name, cc.Name)
	}
	fmt.Fprintf(&b, "export const __vine_hmr = { %s };\n", strings.Join(names, ", "))
	b.WriteString("if (import.meta.hot) {\n")
	b.WriteString("  import.meta.hot.accept((mod) => {\n")
	b.WriteString("    if (!mod) return;\n")
	switch {
	case r.fc.RenderOnly && len(r.fc.Rerender) > 0:
		for _, name := range r.fc.Rerender {
			fmt.Fprintf(&b, "    __VUE_HMR_RUNTIME__.rerender(mod.__vine_hmr.%s.__hmrId, mod.__vine_hmr.%s.render);\n", name, name)
		}
	case r.fc.HMRPatching && !r.fc.RenderOnly:
		// Nothing to swap.
	default:
		for _, name := range names {
			fmt.Fprintf(&b, "    __VUE_HMR_RUNTIME__.reload(mod.__vine_hmr.%s.__hmrId, mod.__vine_hmr.%s);\n", name, name)
		}
	}
	b.WriteString("  });\n")
	b.WriteString("}\n")
	return b.String()
}
