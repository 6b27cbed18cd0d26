// Package hmrgraph builds the same-file component dependency graph used to
// find which components a hot update touches.
package hmrgraph

import (
	"sort"
	"strings"

	"vinec/internal/engine/extract"
)

// Graph has one node per component. An edge A -> B means A's template uses B.
type Graph struct {
	FileID string
	// Nodes are the component names in source order.
	Nodes []string
	order map[string]int
	deps  map[string][]string
	rdeps map[string][]string
}

func Build(fc *extract.FileContext) *Graph {
	g := &Graph{
		FileID: fc.FileID,
		order:  make(map[string]int, len(fc.Components)),
		deps:   make(map[string][]string, len(fc.Components)),
		rdeps:  make(map[string][]string, len(fc.Components)),
	}
	for i, c := range fc.Components {
		g.Nodes = append(g.Nodes, c.Name)
		g.order[c.Name] = i
	}
	for _, c := range fc.Components {
		for _, ref := range c.References {
			if _, ok := g.order[ref]; !ok || ref == c.Name {
				continue
			}
			g.deps[c.Name] = append(g.deps[c.Name], ref)
			g.rdeps[ref] = append(g.rdeps[ref], c.Name)
		}
	}
	for _, m := range []map[string][]string{g.deps, g.rdeps} {
		for k := range m {
			g.sortBySource(m[k])
		}
	}
	return g
}

func (g *Graph) sortBySource(names []string) {
	sort.SliceStable(names, func(i, j int) bool { return g.order[names[i]] < g.order[names[j]] })
}

func (g *Graph) Has(name string) bool {
	_, ok := g.order[name]
	return ok
}

// Dependencies are the components name renders.
func (g *Graph) Dependencies(name string) []string {
	return append([]string(nil), g.deps[name]...)
}

// Dependents are the components that render name.
func (g *Graph) Dependents(name string) []string {
	return append([]string(nil), g.rdeps[name]...)
}

// TopoOrder returns dependencies before their dependents, ties broken by
// source order. Components on a cycle come last, in source order.
func (g *Graph) TopoOrder() []string {
	inDegree := make(map[string]int, len(g.Nodes))
	for _, n := range g.Nodes {
		inDegree[n] = len(g.deps[n])
	}
	var ready []string
	for _, n := range g.Nodes {
		if inDegree[n] == 0 {
			ready = append(ready, n)
		}
	}

	out := make([]string, 0, len(g.Nodes))
	done := make(map[string]bool, len(g.Nodes))
	for len(ready) > 0 {
		g.sortBySource(ready)
		n := ready[0]
		ready = ready[1:]
		out = append(out, n)
		done[n] = true
		for _, user := range g.rdeps[n] {
			inDegree[user]--
			if inDegree[user] == 0 {
				ready = append(ready, user)
			}
		}
	}
	for _, n := range g.Nodes {
		if !done[n] {
			out = append(out, n)
		}
	}
	return out
}

// Cycles reports every reference cycle, each starting at its first
// component in source order.
func (g *Graph) Cycles() [][]string {
	var cycles [][]string
	visited := make(map[string]bool)
	onStack := make(map[string]bool)
	seen := make(map[string]bool)

	var walk func(curr string, path []string)
	walk = func(curr string, path []string) {
		visited[curr] = true
		onStack[curr] = true
		path = append(path, curr)
		for _, next := range g.deps[curr] {
			if onStack[next] {
				for i, n := range path {
					if n != next {
						continue
					}
					cycle := g.rotate(append([]string(nil), path[i:]...))
					key := strings.Join(cycle, "\x00")
					if !seen[key] {
						seen[key] = true
						cycles = append(cycles, cycle)
					}
					break
				}
			} else if !visited[next] {
				walk(next, path)
			}
		}
		onStack[curr] = false
	}
	for _, n := range g.Nodes {
		if !visited[n] {
			walk(n, nil)
		}
	}
	return cycles
}

func (g *Graph) rotate(cycle []string) []string {
	first := 0
	for i, n := range cycle {
		if g.order[n] < g.order[cycle[first]] {
			first = i
		}
	}
	return append(cycle[first:], cycle[:first]...)
}


// Affected returns every component that transitively renders name, in
// topological order. name itself is not included.
func (g *Graph) Affected(name string) []string {
	if !g.Has(name) {
		return nil
	}
	reached := map[string]bool{name: true}
	queue := []string{name}
	for len(queue) > 0 {
		curr := queue[0]
		queue = queue[1:]
		for _, user := range g.rdeps[curr] {
			if !reached[user] {
				reached[user] = true
				queue = append(queue, user)
			}
		}
	}
	var out []string
	for _, n := range g.TopoOrder() {
		if n != name && reached[n] {
			out = append(out, n)
		}
	}
	return out
}
