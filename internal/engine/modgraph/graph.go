// Package modgraph is an in-process module graph over host file imports. It
// answers which modules must be re-evaluated when a file changes.
package modgraph

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"vinec/internal/engine/parser"
)

// Graph implements ports.ModuleGraph.
type Graph struct {
	mu sync.RWMutex

	files      map[string]bool
	imports    map[string]map[string]bool // from -> to
	importedBy map[string]map[string]bool // to -> from
	dirty      map[string]bool
}

func New() *Graph {
	return &Graph{
		files:      make(map[string]bool),
		imports:    make(map[string]map[string]bool),
		importedBy: make(map[string]map[string]bool),
		dirty:      make(map[string]bool),
	}
}

// SetImports replaces the outgoing edges of fileID.
func (g *Graph) SetImports(fileID string, targets []string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.dropEdgesLocked(fileID)
	g.files[fileID] = true
	edges := make(map[string]bool, len(targets))
	for _, to := range targets {
		if to == "" {
			continue
		}
		edges[to] = true
		g.files[to] = true
		if g.importedBy[to] == nil {
			g.importedBy[to] = make(map[string]bool)
		}
		g.importedBy[to][fileID] = true
	}
	g.imports[fileID] = edges
}

// Remove forgets fileID and its outgoing edges. Importers keep their edges
// to it so a later re-add reconnects them.
func (g *Graph) Remove(fileID string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.dropEdgesLocked(fileID)
	delete(g.imports, fileID)
	delete(g.dirty, fileID)
	if len(g.importedBy[fileID]) == 0 {
		delete(g.files, fileID)
		delete(g.importedBy, fileID)
	}
}

func (g *Graph) dropEdgesLocked(fileID string) {
	for to := range g.imports[fileID] {
		delete(g.importedBy[to], fileID)
		if len(g.importedBy[to]) == 0 {
			delete(g.importedBy, to)
		}
	}
}

// Invalidate marks fileID and every transitive importer dirty and returns
// them, fileID first, importers in breadth-first order.
func (g *Graph) Invalidate(fileID string) []string {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := []string{fileID}
	seen := map[string]bool{fileID: true}
	g.dirty[fileID] = true
	queue := []string{fileID}
	for len(queue) > 0 {
		curr := queue[0]
		queue = queue[1:]
		for _, importer := range sortedKeys(g.importedBy[curr]) {
			if seen[importer] {
				continue
			}
			seen[importer] = true
			g.dirty[importer] = true
			out = append(out, importer)
			queue = append(queue, importer)
		}
	}
	return out
}

// Importers returns the direct importers of fileID.
func (g *Graph) Importers(fileID string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return sortedKeys(g.importedBy[fileID])
}

func (g *Graph) Imports(fileID string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return sortedKeys(g.imports[fileID])
}

// Dirty returns the invalidated files not yet cleared.
func (g *Graph) Dirty() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return sortedKeys(g.dirty)
}

func (g *Graph) Clear(fileID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.dirty, fileID)
}

func (g *Graph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.files)
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// SplitImports maps the relative imports of fileID to file ids. Bare
// specifiers are packages and are skipped. A specifier without extension is
// tried with each host extension and as a directory index. Specifiers that
// name no existing file come back as cleaned base paths in pending.
func SplitImports(fileID string, imports []parser.ImportDecl) (resolved, pending []string) {
	seen := make(map[string]bool)
	for _, imp := range imports {
		if !strings.HasPrefix(imp.Source, "./") && !strings.HasPrefix(imp.Source, "../") {
			continue
		}
		base := filepath.Join(filepath.Dir(fileID), imp.Source)
		path, ok := resolve(base)
		if !ok {
			if !seen[base] {
				seen[base] = true
				pending = append(pending, base)
			}
			continue
		}
		if !seen[path] {
			seen[path] = true
			resolved = append(resolved, path)
		}
	}
	return resolved, pending
}

// Satisfies reports whether a file at path would resolve an import of base.
func Satisfies(base, path string) bool {
	if path == base {
		return true
	}
	for _, ext := range parser.HostExtensions() {
		if path == base+ext || path == filepath.Join(base, "index"+ext) {
			return true
		}
	}
	return false
}

func resolve(base string) (string, bool) {
	if isFile(base) {
		return base, true
	}
	for _, ext := range parser.HostExtensions() {
		if isFile(base + ext) {
			return base + ext, true
		}
	}
	for _, ext := range parser.HostExtensions() {
		index := filepath.Join(base, "index"+ext)
		if isFile(index) {
			return index, true
		}
	}
	return "", false
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
