package hmrgraph

import (
	"vinec/internal/engine/extract"
	"vinec/internal/shared/observability"

	"github.com/cespare/xxhash/v2"
)

type cached struct {
	hash  uint64
	graph *Graph
}

// Cache keeps the most recently built graphs keyed by file id. An entry is
// reused only while the file's source is unchanged.
type Cache struct {
	entries *lru[string, cached]
}

func NewCache(capacity int) *Cache {
	return &Cache{entries: newLRU[string, cached](capacity)}
}

// Graph returns the graph of fc, building it on a miss.
func (c *Cache) Graph(fc *extract.FileContext) *Graph {
	sum := xxhash.Sum64String(fc.Source)
	if e, ok := c.entries.get(fc.FileID); ok && e.hash == sum {
		observability.ComponentGraphCacheHits.WithLabelValues("hit").Inc()
		return e.graph
	}
	observability.ComponentGraphCacheHits.WithLabelValues("miss").Inc()
	g := Build(fc)
	c.entries.put(fc.FileID, cached{hash: sum, graph: g})
	return g
}

func (c *Cache) Evict(fileID string) { c.entries.remove(fileID) }

func (c *Cache) Len() int { return c.entries.len() }
