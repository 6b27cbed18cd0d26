package hmrgraph

import (
	"fmt"
	"sync"
	"testing"

	"vinec/internal/engine/extract"

	"github.com/stretchr/testify/assert"
)

// file builds a FileContext from "Name:Ref,Ref" specs.
func file(id string, specs ...[]string) *extract.FileContext {
	fc := &extract.FileContext{FileID: id}
	for _, s := range specs {
		fc.Components = append(fc.Components, &extract.ComponentContext{Name: s[0], References: s[1:]})
	}
	return fc
}

func TestGraphEdges(t *testing.T) {
	g := Build(file("a.ts",
		[]string{"App", "List", "Footer"},
		[]string{"List", "Item"},
		[]string{"Item"},
		[]string{"Footer", "Missing"},
	))

	assert.Equal(t, []string{"App", "List", "Item", "Footer"}, g.Nodes)
	assert.Equal(t, []string{"List", "Footer"}, g.Dependencies("App"))
	assert.Equal(t, []string{"List"}, g.Dependents("Item"))
	assert.Empty(t, g.Dependencies("Footer"))
	assert.False(t, g.Has("Missing"))
}

func TestGraphTopoOrder(t *testing.T) {
	g := Build(file("a.ts",
		[]string{"App", "List", "Footer"},
		[]string{"List", "Item"},
		[]string{"Item"},
		[]string{"Footer"},
	))
	assert.Equal(t, []string{"Item", "List", "Footer", "App"}, g.TopoOrder())
	assert.Empty(t, g.Cycles())
}

func TestGraphCycles(t *testing.T) {
	g := Build(file("a.ts",
		[]string{"A", "B"},
		[]string{"B", "C"},
		[]string{"C", "A"},
		[]string{"D", "D"},
		[]string{"E"},
	))
	cycles := g.Cycles()
	if len(cycles) != 1 {
		t.Fatalf("expected 1 cycle, got %v", cycles)
	}
	assert.Equal(t, []string{"A", "B", "C"}, cycles[0])
	// Cycle members trail the acyclic part.
	assert.Equal(t, []string{"D", "E", "A", "B", "C"}, g.TopoOrder())
}

func TestGraphAffected(t *testing.T) {
	g := Build(file("a.ts",
		[]string{"App", "List"},
		[]string{"List", "Item"},
		[]string{"Item"},
		[]string{"Other"},
	))
	assert.Equal(t, []string{"List", "App"}, g.Affected("Item"))
	assert.Equal(t, []string{"App"}, g.Affected("List"))
	assert.Empty(t, g.Affected("App"))
	assert.Empty(t, g.Affected("Other"))
	assert.Nil(t, g.Affected("Nope"))
}

func TestCacheReusesUnchangedSource(t *testing.T) {
	c := NewCache(2)
	fc := file("a.ts", []string{"A"})
	fc.Source = "v1"

	g1 := c.Graph(fc)
	if g2 := c.Graph(fc); g1 != g2 {
		t.Fatal("expected cached graph for unchanged source")
	}

	changed := file("a.ts", []string{"A"}, []string{"B"})
	changed.Source = "v2"
	g3 := c.Graph(changed)
	if g3 == g1 {
		t.Fatal("expected rebuild after source change")
	}
	assert.Equal(t, []string{"A", "B"}, g3.Nodes)

	c.Evict("a.ts")
	assert.Equal(t, 0, c.Len())
}

func TestLRUEviction(t *testing.T) {
	c := newLRU[string, int](2)
	c.put("a", 1)
	c.put("b", 2)
	c.get("a")
	c.put("c", 3)

	if _, ok := c.get("b"); ok {
		t.Fatal("expected 'b' to be evicted")
	}
	if v, ok := c.get("a"); !ok || v != 1 {
		t.Fatalf("expected a=1, got %d %v", v, ok)
	}
	c.put("a", 10)
	if v, _ := c.get("a"); v != 10 {
		t.Fatalf("expected updated value, got %d", v)
	}
	assert.Equal(t, 2, c.len())
}

func TestLRUConcurrent(t *testing.T) {
	c := newLRU[string, int](64)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				key := fmt.Sprintf("k%d", (n*100+j)%128)
				c.put(key, j)
				c.get(key)
			}
		}(i)
	}
	wg.Wait()
	assert.LessOrEqual(t, c.len(), 64)
}
