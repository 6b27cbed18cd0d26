package template

var nativeTags = func() map[string]bool {
	m := make(map[string]bool)
	for _, list := range [][]string{htmlTags, svgTags} {
		for _, tag := range list {
			m[tag] = true
		}
	}
	return m
}()

var htmlTags = []string{
	"html", "body", "base", "head", "link", "meta", "style", "title", "address", "article", "aside",
	"footer", "header", "hgroup", "h1", "h2", "h3", "h4", "h5", "h6", "nav", "section", "div", "dd",
	"dl", "dt", "figcaption", "figure", "picture", "hr", "img", "li", "main", "ol", "p", "pre", "ul",
	"a", "b", "abbr", "bdi", "bdo", "br", "cite", "code", "data", "dfn", "em", "i", "kbd", "mark", "q",
	"rp", "rt", "ruby", "s", "samp", "small", "span", "strong", "sub", "sup", "time", "u", "var", "wbr",
	"area", "audio", "map", "track", "video", "embed", "object", "param", "source", "canvas", "script",
	"noscript", "del", "ins", "caption", "col", "colgroup", "table", "thead", "tbody", "td", "th", "tr",
	"button", "datalist", "fieldset", "form", "input", "label", "legend", "meter", "optgroup", "option",
	"output", "progress", "select", "textarea", "details", "dialog", "menu", "summary", "blockquote",
	"iframe", "tfoot", "search",
}

var svgTags = []string{
	"svg", "animate", "circle", "clipPath", "defs", "desc", "ellipse", "feBlend", "feColorMatrix",
	"feGaussianBlur", "feOffset", "filter", "foreignObject", "g", "image", "line", "linearGradient",
	"marker", "mask", "metadata", "path", "pattern", "polygon", "polyline", "radialGradient", "rect",
	"stop", "symbol", "text", "textPath", "tspan", "use", "view",
}

func isNativeTag(tag string) bool { return nativeTags[tag] }
