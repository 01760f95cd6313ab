package graph

import (
	"math"
	"math/rand"

	"github.com/RoaringBitmap/roaring/v2"
)

// SearchOptions bounds a greedy graph walk.
type SearchOptions struct {
	// MaxSimilarities caps the number of similarity evaluations for the whole
	// call. Once exhausted the walk stops, whatever its position.
	MaxSimilarities int

	// Depth is the maximum number of hops per walk (default 100).
	Depth int

	// Expansion controls the number of random starting nodes,
	// max(1, int(Expansion)) (default 1.01, i.e. a single start).
	Expansion float64

	// Rand is the source used to pick starting nodes. Nil means a
	// non-deterministic source.
	Rand *rand.Rand
}

// DefaultSearchOptions are the GNSS defaults.
var DefaultSearchOptions = SearchOptions{
	Depth:     100,
	Expansion: 1.01,
}

// Search performs a bounded greedy walk (GNSS) for the k nodes of this graph
// most similar to query. From each starting node it scores every neighbor of
// the current node against the query, keeps a running top-k, and advances to
// the most similar unvisited neighbor; the walk ends when no neighbor
// improves on the current node, after Depth hops, or once the similarity
// budget is spent.
//
// Neighbor IDs referencing nodes outside this graph are skipped: those nodes
// belong to another partition.
func (g *Graph[T]) Search(query T, k int, optFns ...func(o *SearchOptions)) *NeighborList {
	opts := DefaultSearchOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	result := NewNeighborList(k)
	if len(g.entries) == 0 || opts.MaxSimilarities <= 0 {
		return result
	}

	numStarts := max(1, int(opts.Expansion))
	budget := opts.MaxSimilarities
	visited := roaring.New()

	for _, start := range g.sample(numStarts, opts.Rand) {
		if budget <= 0 {
			break
		}
		cur := g.entries[start]
		if visited.Contains(cur.ord) {
			continue
		}

		curSim := g.sim(query, cur.node.Value)
		budget--
		result.Add(Neighbor{ID: cur.node.ID, Similarity: curSim})

		for hop := 0; hop < opts.Depth && budget > 0; hop++ {
			visited.Add(cur.ord)

			var next *entry[T]
			nextSim := math.Inf(-1)
			for nb := range cur.nl.All() {
				e, ok := g.entries[nb.ID]
				if !ok || visited.Contains(e.ord) {
					continue
				}
				s := g.sim(query, e.node.Value)
				budget--
				result.Add(Neighbor{ID: e.node.ID, Similarity: s})
				if s > nextSim {
					nextSim = s
					next = e
				}
				if budget <= 0 {
					break
				}
			}

			if next == nil || nextSim <= curSim {
				break
			}
			cur, curSim = next, nextSim
		}
	}
	return result
}

// sample returns up to n distinct node IDs. With a seeded source the choice
// is reproducible; insertion order is the sampling universe.
func (g *Graph[T]) sample(n int, rng *rand.Rand) []NodeID {
	// The order slice can contain IDs removed since insertion; skip them.
	perm := permutation(len(g.order), rng)
	ids := make([]NodeID, 0, n)
	for _, i := range perm {
		id := g.order[i]
		if _, ok := g.entries[id]; !ok {
			continue
		}
		ids = append(ids, id)
		if len(ids) == n {
			break
		}
	}
	return ids
}

func permutation(n int, rng *rand.Rand) []int {
	if rng != nil {
		return rng.Perm(n)
	}
	return rand.Perm(n)
}
