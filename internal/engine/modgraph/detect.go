package modgraph

import "slices"

const (
	unvisited = iota
	inProgress
	done
)

// DetectCycles returns every import cycle, each as the files on it in import
// order. Files are walked in sorted order so results are stable.
func (g *Graph) DetectCycles() [][]string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	state := make(map[string]int, len(g.files))
	var path []string
	var cycles [][]string

	var walk func(string)
	walk = func(f string) {
		state[f] = inProgress
		path = append(path, f)
		for _, dep := range sortedKeys(g.imports[f]) {
			switch state[dep] {
			case inProgress:
				cycles = append(cycles, slices.Clone(path[slices.Index(path, dep):]))
			case unvisited:
				walk(dep)
			}
		}
		path = path[:len(path)-1]
		state[f] = done
	}

	for _, f := range sortedKeys(g.files) {
		if state[f] == unvisited {
			walk(f)
		}
	}
	return cycles
}

// CyclesThrough returns the cycles that contain file.
func (g *Graph) CyclesThrough(file string) [][]string {
	var out [][]string
	for _, c := range g.DetectCycles() {
		if slices.Contains(c, file) {
			out = append(out, c)
		}
	}
	return out
}

// FindImportChain returns the shortest import path from one file to another.
func (g *Graph) FindImportChain(from, to string) ([]string, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if !g.files[from] || !g.files[to] {
		return nil, false
	}

	parent := map[string]string{from: from}
	for frontier := []string{from}; len(frontier) > 0; {
		var next []string
		for _, f := range frontier {
			if f == to {
				chain := []string{to}
				for n := to; n != from; n = parent[n] {
					chain = append(chain, parent[n])
				}
				slices.Reverse(chain)
				return chain, true
			}
			for _, dep := range sortedKeys(g.imports[f]) {
				if _, seen := parent[dep]; !seen {
					parent[dep] = f
					next = append(next, dep)
				}
			}
		}
		frontier = next
	}
	return nil, false
}
