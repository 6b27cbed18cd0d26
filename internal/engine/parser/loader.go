package parser

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_css "github.com/tree-sitter/tree-sitter-css/bindings/go"
	tree_sitter_html "github.com/tree-sitter/tree-sitter-html/bindings/go"
	tree_sitter_javascript "github.com/tree-sitter/tree-sitter-javascript/bindings/go"
	tree_sitter_typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"
)

const (
	LangTypeScript = "typescript"
	LangTSX        = "tsx"
	LangJavaScript = "javascript"
	LangCSS        = "css"
	LangHTML       = "html"
)

// hostExtensions maps component host file extensions to grammar ids.
var hostExtensions = map[string]string{
	".ts":  LangTypeScript,
	".mts": LangTypeScript,
	".cts": LangTypeScript,
	".tsx": LangTSX,
	".js":  LangJavaScript,
	".mjs": LangJavaScript,
	".cjs": LangJavaScript,
	".jsx": LangJavaScript,
}

// GrammarLoader owns the compiled-in grammars and one parser pool per grammar.
// It is safe for concurrent use once constructed.
type GrammarLoader struct {
	languages map[string]*sitter.Language
	pools     map[string]*ParserPool
}

func NewGrammarLoader() *GrammarLoader {
	gl := &GrammarLoader{
		languages: map[string]*sitter.Language{
			LangTypeScript: sitter.NewLanguage(tree_sitter_typescript.LanguageTypescript()),
			LangTSX:        sitter.NewLanguage(tree_sitter_typescript.LanguageTSX()),
			LangJavaScript: sitter.NewLanguage(tree_sitter_javascript.Language()),
			LangCSS:        sitter.NewLanguage(tree_sitter_css.Language()),
			LangHTML:       sitter.NewLanguage(tree_sitter_html.Language()),
		},
		pools: make(map[string]*ParserPool),
	}
	for id, lang := range gl.languages {
		gl.pools[id] = NewParserPool(lang)
	}
	return gl
}

// Parse parses content with the named grammar. The caller owns the returned
// tree and must Close it.
func (gl *GrammarLoader) Parse(lang string, content []byte) (*sitter.Tree, error) {
	pool, ok := gl.pools[lang]
	if !ok {
		return nil, fmt.Errorf("grammar %q is not loaded", lang)
	}
	sp := pool.Get()
	defer pool.Put(sp)

	tree := sp.Parse(content, nil)
	if tree == nil {
		return nil, fmt.Errorf("%s parse failed", lang)
	}
	return tree, nil
}

// Pool exposes the parser pool of a grammar, or nil.
func (gl *GrammarLoader) Pool(lang string) *ParserPool {
	return gl.pools[lang]
}

// HostLanguage returns the grammar id used for a component host file, or "".
func HostLanguage(path string) string {
	return hostExtensions[strings.ToLower(filepath.Ext(path))]
}

func IsHostFile(path string) bool {
	return HostLanguage(path) != ""
}

func HostExtensions() []string {
	out := make([]string, 0, len(hostExtensions))
	for ext := range hostExtensions {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}
